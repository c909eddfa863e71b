package surface

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// exportSchema describes the outer shape of an export envelope.  Surfaces themselves
// are checked by Decode so errors carry a kind and surface index.
const exportSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "surface export",
	"type": "object",
	"required": ["version", "surfaces"],
	"properties": {
		"version": {"type": "string", "minLength": 1},
		"metadata": {
			"type": "object",
			"properties": {
				"sourceImage": {"type": "string"},
				"sourceSurface": {"type": "string"},
				"sourceSoftware": {"type": "string"},
				"exportDateTime": {"type": "string"}
			}
		},
		"surfaces": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["xRange", "yRange", "zRange", "mask"]
			}
		}
	}
}`

var envelopeSchema = jsonschema.MustCompileString("surface-export.json", exportSchema)

// validateEnvelope checks a generic decoded JSON value against the export schema.
func validateEnvelope(v interface{}) error {
	if err := envelopeSchema.Validate(v); err != nil {
		return &Error{Kind: ErrMalformedDocument, Surface: -1, Axis: NoAxis, Msg: "invalid export envelope", Err: err}
	}
	return nil
}
