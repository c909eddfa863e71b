package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blang/semver"
)

// FormatVersion is the export envelope version written by this package.
const FormatVersion = "0.1.0"

// formatVersion is FormatVersion parsed.  Envelopes with a different major version are
// rejected.
var formatVersion = semver.MustParse(FormatVersion)

// Metadata describes where an exported set of surfaces came from.
type Metadata struct {
	SourceImage    string
	SourceSurface  string
	SourceSoftware string
	ExportDateTime time.Time
}

type metadataJSON struct {
	SourceImage    string `json:"sourceImage,omitempty"`
	SourceSurface  string `json:"sourceSurface,omitempty"`
	SourceSoftware string `json:"sourceSoftware,omitempty"`
	ExportDateTime string `json:"exportDateTime,omitempty"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	mj := metadataJSON{
		SourceImage:    m.SourceImage,
		SourceSurface:  m.SourceSurface,
		SourceSoftware: m.SourceSoftware,
	}
	if !m.ExportDateTime.IsZero() {
		mj.ExportDateTime = m.ExportDateTime.Format(time.RFC3339Nano)
	}
	return json.Marshal(mj)
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var mj metadataJSON
	if err := json.Unmarshal(b, &mj); err != nil {
		return err
	}
	*m = Metadata{
		SourceImage:    mj.SourceImage,
		SourceSurface:  mj.SourceSurface,
		SourceSoftware: mj.SourceSoftware,
	}
	if mj.ExportDateTime != "" {
		t, err := time.Parse(time.RFC3339Nano, mj.ExportDateTime)
		if err != nil {
			return fmt.Errorf("bad exportDateTime %q: %v", mj.ExportDateTime, err)
		}
		m.ExportDateTime = t
	}
	return nil
}

// Export is a versioned set of surfaces with provenance.
type Export struct {
	Version  semver.Version
	Metadata Metadata
	Surfaces []*Surface
}

// NewExport returns an envelope at the current format version stamped with the
// current time.
func NewExport(surfaces []*Surface, md Metadata) *Export {
	if md.ExportDateTime.IsZero() {
		md.ExportDateTime = time.Now().UTC()
	}
	return &Export{Version: formatVersion, Metadata: md, Surfaces: surfaces}
}

type exportJSON struct {
	Version  string   `json:"version"`
	Metadata Metadata `json:"metadata"`
	Surfaces []Record `json:"surfaces"`
}

// MarshalExport returns the JSON encoding of an export envelope.  A zero version is
// written as FormatVersion.
func MarshalExport(exp *Export) ([]byte, error) {
	ej, err := exp.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(ej)
}

// MarshalExportIndent is like MarshalExport but pretty-prints the document.
func MarshalExportIndent(exp *Export, prefix, indent string) ([]byte, error) {
	ej, err := exp.toJSON()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(ej, prefix, indent)
}

func (exp *Export) toJSON() (*exportJSON, error) {
	records, err := Encode(exp.Surfaces)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	version := exp.Version
	if version.Equals(semver.Version{}) {
		version = formatVersion
	}
	return &exportJSON{Version: version.String(), Metadata: exp.Metadata, Surfaces: records}, nil
}

// UnmarshalExport parses a JSON export envelope.
func UnmarshalExport(data []byte) (*Export, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return decodeExport(context.Background(), v, 1)
}

// UnmarshalDocument parses either a bare list of surfaces or an export envelope.  A bare
// list is returned as an envelope with no metadata at the current format version.
func UnmarshalDocument(data []byte) (*Export, error) {
	return UnmarshalDocumentContext(context.Background(), data, 1)
}

// UnmarshalDocumentContext is UnmarshalDocument with surfaces decoded by up to workers
// goroutines.
func UnmarshalDocumentContext(ctx context.Context, data []byte, workers int) (*Export, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	if _, isList := v.([]interface{}); isList {
		surfaces, err := DecodeParallel(ctx, v, workers)
		if err != nil {
			return nil, err
		}
		return &Export{Version: formatVersion, Surfaces: surfaces}, nil
	}
	return decodeExport(ctx, v, workers)
}

func decodeExport(ctx context.Context, v interface{}, workers int) (*Export, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, newError(ErrMalformedDocument, NoAxis, "export is %s, not an object", jsonKind(v))
	}
	if err := validateEnvelope(v); err != nil {
		return nil, err
	}
	vstr, _ := obj["version"].(string)
	version, err := semver.ParseTolerant(vstr)
	if err != nil {
		return nil, &Error{Kind: ErrMalformedDocument, Surface: -1, Axis: NoAxis, Msg: fmt.Sprintf("bad version %q", vstr), Err: err}
	}
	if version.Major != formatVersion.Major {
		return nil, newError(ErrMalformedDocument, NoAxis, "unsupported export version %s, expected %d.x", version, formatVersion.Major)
	}
	exp := &Export{Version: version}
	if mdVal, found := obj["metadata"]; found {
		b, err := json.Marshal(mdVal)
		if err == nil {
			err = json.Unmarshal(b, &exp.Metadata)
		}
		if err != nil {
			return nil, &Error{Kind: ErrMalformedDocument, Surface: -1, Axis: NoAxis, Msg: "bad metadata", Err: err}
		}
	}
	if exp.Surfaces, err = DecodeParallel(ctx, obj["surfaces"], workers); err != nil {
		return nil, err
	}
	return exp, nil
}
