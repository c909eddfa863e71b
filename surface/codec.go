package surface

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Keys of a surface object in the wire format.
const (
	KeyID     = "id"
	KeyXRange = "xRange"
	KeyYRange = "yRange"
	KeyZRange = "zRange"
	KeyMask   = "mask"
)

var rangeKeys = [3]string{KeyXRange, KeyYRange, KeyZRange}

// maxExactInt is the largest integer a JSON number is guaranteed to carry exactly.
const maxExactInt = 1 << 53

// Record is the JSON-compatible form of one Surface.  The mask is nested [z][y][x].
type Record struct {
	ID     *int64        `json:"id,omitempty"`
	XRange Range         `json:"xRange"`
	YRange Range         `json:"yRange"`
	ZRange Range         `json:"zRange"`
	Mask   [][][]float64 `json:"mask"`
}

// Record returns the JSON-compatible form of the surface.
func (s *Surface) Record() Record {
	rec := Record{
		XRange: s.ranges[X],
		YRange: s.ranges[Y],
		ZRange: s.ranges[Z],
		Mask:   s.Mask(),
	}
	if s.hasID {
		id := s.id
		rec.ID = &id
	}
	return rec
}

// Encode converts surfaces into their JSON-compatible records, preserving order.
// It never modifies the surfaces.
func Encode(surfaces []*Surface) ([]Record, error) {
	records := make([]Record, len(surfaces))
	for i, s := range surfaces {
		if s == nil {
			return nil, &Error{Kind: ErrInvalidValue, Surface: i, Axis: NoAxis, Msg: "nil surface"}
		}
		if err := s.checkFinite(); err != nil {
			return nil, atSurface(err, i)
		}
		records[i] = s.Record()
	}
	return records, nil
}

// checkFinite guards against surfaces that bypassed the constructors, e.g., zero values.
func (s *Surface) checkFinite() error {
	for axis, r := range s.ranges {
		if !isFinite(r[0]) || !isFinite(r[1]) {
			return newError(ErrInvalidValue, Axis(axis), "range %v is not finite", r)
		}
	}
	if len(s.values) == 0 || len(s.values) != s.dims[0]*s.dims[1]*s.dims[2] {
		return newError(ErrInvalidValue, NoAxis, "surface has no valid mask")
	}
	for i, v := range s.values {
		if !isFinite(v) {
			return newError(ErrInvalidValue, NoAxis, "mask value %d is %g", i, v)
		}
	}
	return nil
}

// Marshal returns the compact JSON encoding of surfaces.
func Marshal(surfaces []*Surface) ([]byte, error) {
	records, err := Encode(surfaces)
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}

// MarshalIndent is like Marshal but pretty-prints the document.
func MarshalIndent(surfaces []*Surface, prefix, indent string) ([]byte, error) {
	records, err := Encode(surfaces)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(records, prefix, indent)
}

// Unmarshal parses a JSON document holding a list of surfaces.  Either every element
// is a valid surface or an error is returned with no surfaces.
func Unmarshal(data []byte) ([]*Surface, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// parseJSON decodes a single JSON value, keeping numbers as json.Number so integer
// ids survive exactly.
func parseJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, &Error{Kind: ErrMalformedDocument, Surface: -1, Axis: NoAxis, Msg: "bad JSON", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError(ErrMalformedDocument, NoAxis, "unexpected data after top-level value")
	}
	return v, nil
}

// Decode converts a generic decoded JSON value, as produced by encoding/json into an
// interface{}, into surfaces.  Numbers may be float64, json.Number, or Go integers.
func Decode(v interface{}) ([]*Surface, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, newError(ErrMalformedDocument, NoAxis, "top-level value is %s, not a list", jsonKind(v))
	}
	surfaces := make([]*Surface, len(list))
	for i, elem := range list {
		s, err := decodeSurface(elem)
		if err != nil {
			return nil, atSurface(err, i)
		}
		surfaces[i] = s
	}
	return surfaces, nil
}

func decodeSurface(v interface{}) (*Surface, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, newError(ErrMalformedDocument, NoAxis, "element is %s, not an object", jsonKind(v))
	}
	for _, key := range []string{KeyXRange, KeyYRange, KeyZRange, KeyMask} {
		if _, found := obj[key]; !found {
			return nil, newError(ErrMalformedDocument, NoAxis, "missing required key %q", key)
		}
	}
	var ranges [3]Range
	for axis, key := range rangeKeys {
		var err error
		if ranges[axis], err = decodeRange(obj[key], Axis(axis)); err != nil {
			return nil, err
		}
	}
	dims, values, err := decodeMask(obj[KeyMask])
	if err != nil {
		return nil, err
	}
	s, err := newFromFlat(ranges, dims, values)
	if err != nil {
		return nil, err
	}
	if idVal, found := obj[KeyID]; found {
		id, err := decodeID(idVal)
		if err != nil {
			return nil, err
		}
		s.id, s.hasID = id, true
	}
	return s, nil
}

func decodeRange(v interface{}, axis Axis) (Range, error) {
	list, ok := v.([]interface{})
	if !ok {
		return Range{}, newError(ErrMalformedRange, axis, "range is %s, not a list", jsonKind(v))
	}
	if len(list) != 2 {
		return Range{}, newError(ErrMalformedRange, axis, "range has %d elements, expected 2", len(list))
	}
	var r Range
	for i, elem := range list {
		f, ok := toFloat(elem)
		if !ok && overflows(elem) {
			return Range{}, newError(ErrInvalidValue, axis, "range element %d (%v) is out of float64 range", i, elem)
		}
		if !ok {
			return Range{}, newError(ErrMalformedRange, axis, "range element %d is %s, not a number", i, jsonKind(elem))
		}
		r[i] = f
	}
	if err := r.validate(axis); err != nil {
		return Range{}, err
	}
	return r, nil
}

func decodeMask(v interface{}) (dims [3]int, values []float64, err error) {
	planes, ok := v.([]interface{})
	if !ok {
		err = newError(ErrMalformedMask, Z, "mask is %s, not a list", jsonKind(v))
		return
	}
	nz := len(planes)
	if nz == 0 {
		err = newError(ErrMalformedMask, Z, "mask has no z planes")
		return
	}
	var nx, ny int
	for z, planeVal := range planes {
		rows, ok := planeVal.([]interface{})
		if !ok {
			err = newError(ErrMalformedMask, Y, "z plane %d is %s, not a list", z, jsonKind(planeVal))
			return
		}
		if z == 0 {
			if ny = len(rows); ny == 0 {
				err = newError(ErrMalformedMask, Y, "z plane 0 has no rows")
				return
			}
		} else if len(rows) != ny {
			err = newError(ErrMalformedMask, Y, "z plane %d has %d rows, expected %d", z, len(rows), ny)
			return
		}
		for y, rowVal := range rows {
			row, ok := rowVal.([]interface{})
			if !ok {
				err = newError(ErrMalformedMask, X, "row (y=%d, z=%d) is %s, not a list", y, z, jsonKind(rowVal))
				return
			}
			if z == 0 && y == 0 {
				if nx = len(row); nx == 0 {
					err = newError(ErrMalformedMask, X, "row (y=0, z=0) has no values")
					return
				}
				values = make([]float64, 0, nx*ny*nz)
			} else if len(row) != nx {
				err = newError(ErrMalformedMask, X, "row (y=%d, z=%d) has %d values, expected %d", y, z, len(row), nx)
				return
			}
			for x, elem := range row {
				f, ok := toFloat(elem)
				if !ok && overflows(elem) {
					err = newError(ErrInvalidValue, X, "value %v at (%d,%d,%d) is out of float64 range", elem, x, y, z)
					return
				}
				if !ok {
					err = newError(ErrMalformedMask, X, "value at (%d,%d,%d) is %s, not a number", x, y, z, jsonKind(elem))
					return
				}
				values = append(values, f)
			}
		}
	}
	dims = [3]int{nx, ny, nz}
	return
}

func decodeID(v interface{}) (int64, error) {
	if n, ok := v.(json.Number); ok {
		if id, err := n.Int64(); err == nil {
			if id < 0 {
				return 0, newError(ErrMalformedDocument, NoAxis, "negative id %d", id)
			}
			return id, nil
		}
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || f < 0 || f > maxExactInt {
		return 0, newError(ErrMalformedDocument, NoAxis, "id %v is not a non-negative integer", v)
	}
	return int64(f), nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// overflows returns true for a JSON number too large in magnitude for a float64.
func overflows(v interface{}) bool {
	n, ok := v.(json.Number)
	if !ok {
		return false
	}
	_, err := strconv.ParseFloat(string(n), 64)
	return errors.Is(err, strconv.ErrRange)
}

// jsonKind names the JSON type of a decoded value for error messages.
func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case string:
		return "a string"
	case []interface{}:
		return "a list"
	case map[string]interface{}:
		return "an object"
	default:
		if _, ok := toFloat(v); ok {
			return "a number"
		}
		return fmt.Sprintf("%T", v)
	}
}
