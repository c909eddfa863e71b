/*
Package storage persists named sets of surfaces.

A Store maps a name to an export envelope.  Values are kept as envelope JSON inside a
dvid serialization container so they're compressed and checksummed at rest.  The
BadgerStore engine is the persistent backend, and CachedStore layers an in-memory byte
cache over any Store.
*/
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/janelia-flyem/surfaces/dvid"
	"github.com/janelia-flyem/surfaces/surface"
)

// ErrNotFound is returned when no surface set is stored under a name.
var ErrNotFound = errors.New("surface set not found")

// Store is a keyed store of surface sets.
type Store interface {
	Put(name string, exp *surface.Export) error
	Get(name string) (*surface.Export, error)
	Delete(name string) error
	List() ([]string, error)
	Close() error
}

// rawStore is implemented by stores that can hand over serialized values directly,
// letting a cache skip re-encoding.
type rawStore interface {
	getRaw(name string) ([]byte, error)
	putRaw(name string, value []byte) error

	// compression is the compression the store applies to values it encodes.
	compression() dvid.Compression
}

// DefaultCompression is used for stored values unless a store is configured otherwise.
const DefaultCompression = dvid.Zstd

const keyPrefix = "surfaces/"

// CheckName returns an error if name can't be used as a surface set name.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("surface set name can't be empty")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("surface set name %q can't contain '/'", name)
	}
	return nil
}

func nameKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// encodeValue returns the stored form of an export.
func encodeValue(exp *surface.Export, compress dvid.Compression) ([]byte, error) {
	data, err := surface.MarshalExport(exp)
	if err != nil {
		return nil, err
	}
	return dvid.SerializeData(data, compress, dvid.CRC32)
}

// decodeValue parses the stored form of an export.
func decodeValue(value []byte) (*surface.Export, error) {
	data, _, err := dvid.DeserializeData(value, true)
	if err != nil {
		return nil, err
	}
	return surface.UnmarshalExport(data)
}
