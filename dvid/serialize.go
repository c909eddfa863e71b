/*
	This file supports serialization/deserialization and compression of data.
*/

package dvid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the format of compression for storing data.
// NOTE: Should be no more than 8 (3 bits) of compression types.
type Compression uint8

const (
	Uncompressed Compression = iota
	Snappy
	LZ4
	Gzip
	Zstd
)

func (compress Compression) String() string {
	switch compress {
	case Uncompressed:
		return "No compression"
	case Snappy:
		return "Go Snappy compression"
	case LZ4:
		return "Go LZ4 compression"
	case Gzip:
		return "gzip compression"
	case Zstd:
		return "Zstandard compression"
	default:
		return "Unknown compression"
	}
}

// ParseCompression returns the Compression for names like "zstd", "snappy", "lz4",
// "gzip", or "none".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none", "uncompressed":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "lz4":
		return LZ4, nil
	case "gzip":
		return Gzip, nil
	case "zstd":
		return Zstd, nil
	default:
		return Uncompressed, fmt.Errorf("unknown compression %q", s)
	}
}

// Checksum is the type of checksum employed for error checking stored data.
// NOTE: Should be no more than 4 (2 bits) of checksum types.
type Checksum uint8

const (
	NoChecksum Checksum = iota
	CRC32
)

func (checksum Checksum) String() string {
	switch checksum {
	case NoChecksum:
		return "No checksum"
	case CRC32:
		return "CRC32 checksum"
	default:
		return "Unknown checksum"
	}
}

// SerializationFormat is a single byte combining both compression and checksum methods.
type SerializationFormat uint8

func EncodeSerializationFormat(compress Compression, checksum Checksum) SerializationFormat {
	a := (uint8(compress) & 0x07) << 5
	b := (uint8(checksum) & 0x03) << 3
	return SerializationFormat(a | b)
}

func DecodeSerializationFormat(s SerializationFormat) (compress Compression, checksum Checksum) {
	compress = Compression(uint8(s) >> 5)
	checksum = Checksum((uint8(s) >> 3) & 0x03)
	return
}

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll calls.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

func compressBytes(data []byte, compress Compression) ([]byte, error) {
	switch compress {
	case Uncompressed:
		return data, nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	case LZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Gzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Zstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	default:
		return nil, fmt.Errorf("Illegal compression (%s) during serialization", compress)
	}
}

func uncompressBytes(cdata []byte, compress Compression) ([]byte, error) {
	switch compress {
	case Uncompressed:
		return cdata, nil
	case Snappy:
		return snappy.Decode(nil, cdata)
	case LZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(cdata)))
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(cdata))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case Zstd:
		return zstdDecoder.DecodeAll(cdata, nil)
	default:
		return nil, fmt.Errorf("Illegal compression format (%d) in deserialization", compress)
	}
}

// SerializeData serializes a slice of bytes using optional compression, checksum.
// The layout is one format byte, an optional little-endian CRC32 of the stored
// bytes, then the possibly compressed data.
func SerializeData(data []byte, compress Compression, checksum Checksum) ([]byte, error) {
	byteData, err := compressBytes(data, compress)
	if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	buffer.WriteByte(byte(EncodeSerializationFormat(compress, checksum)))

	switch checksum {
	case NoChecksum:
	case CRC32:
		if err := binary.Write(&buffer, binary.LittleEndian, crc32.ChecksumIEEE(byteData)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("Illegal checksum (%s) in SerializeData()", checksum)
	}

	// The data is written last, after any checksum, so we don't have to worry
	// about length when deserializing.
	buffer.Write(byteData)
	return buffer.Bytes(), nil
}

// DeserializeData deserializes a slice of bytes using stored compression, checksum.
// If uncompress parameter is false, the data is not uncompressed.
func DeserializeData(s []byte, uncompress bool) (data []byte, compress Compression, err error) {
	if len(s) == 0 {
		err = fmt.Errorf("no data to deserialize")
		return
	}
	var checksum Checksum
	compress, checksum = DecodeSerializationFormat(SerializationFormat(s[0]))
	cdata := s[1:]

	switch checksum {
	case NoChecksum:
	case CRC32:
		if len(cdata) < 4 {
			err = fmt.Errorf("serialized data too short (%d bytes) for CRC32 checksum", len(s))
			return
		}
		storedCrc32 := binary.LittleEndian.Uint32(cdata[0:4])
		cdata = cdata[4:]
		if crcChecksum := crc32.ChecksumIEEE(cdata); crcChecksum != storedCrc32 {
			err = fmt.Errorf("Bad checksum.  Stored %x got %x", storedCrc32, crcChecksum)
			return
		}
	default:
		err = fmt.Errorf("Illegal checksum in deserializing data")
		return
	}

	if !uncompress {
		data = cdata
		return
	}
	data, err = uncompressBytes(cdata, compress)
	return
}
