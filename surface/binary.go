package surface

import (
	"errors"
	"fmt"
	"time"

	"github.com/blang/semver"
	"github.com/tinylib/msgp/msgp"
)

// BinaryContentType is the MIME type of the binary export format.
const BinaryContentType = "application/x-msgpack"

// Keys used only by the binary export format.
const (
	keyVersion   = "version"
	keyMetadata  = "metadata"
	keySurfaces  = "surfaces"
	keyMaskShape = "maskShape"
)

// MarshalBinaryExport returns the compact msgpack encoding of an export envelope.  The
// mask of each surface is stored as a bitmap, most significant bit first in z-major
// order, where a set bit is a non-negative value.  Only the sign of mask values
// survives a round trip.
func MarshalBinaryExport(exp *Export) ([]byte, error) {
	ej, err := exp.toJSON()
	if err != nil {
		return nil, err
	}
	b := msgp.AppendMapHeader(nil, 3)
	b = msgp.AppendString(b, keyVersion)
	b = msgp.AppendString(b, ej.Version)

	md := exp.Metadata
	b = msgp.AppendString(b, keyMetadata)
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "sourceImage")
	b = msgp.AppendString(b, md.SourceImage)
	b = msgp.AppendString(b, "sourceSurface")
	b = msgp.AppendString(b, md.SourceSurface)
	b = msgp.AppendString(b, "sourceSoftware")
	b = msgp.AppendString(b, md.SourceSoftware)
	b = msgp.AppendString(b, "exportDateTime")
	if md.ExportDateTime.IsZero() {
		b = msgp.AppendString(b, "")
	} else {
		b = msgp.AppendString(b, md.ExportDateTime.Format(time.RFC3339Nano))
	}

	b = msgp.AppendString(b, keySurfaces)
	b = msgp.AppendArrayHeader(b, uint32(len(exp.Surfaces)))
	for _, s := range exp.Surfaces {
		b = s.appendBinary(b)
	}
	return b, nil
}

func (s *Surface) appendBinary(b []byte) []byte {
	fields := uint32(5)
	if s.hasID {
		fields++
	}
	b = msgp.AppendMapHeader(b, fields)
	if s.hasID {
		b = msgp.AppendString(b, KeyID)
		b = msgp.AppendInt64(b, s.id)
	}
	for axis, key := range rangeKeys {
		b = msgp.AppendString(b, key)
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendFloat64(b, s.ranges[axis][0])
		b = msgp.AppendFloat64(b, s.ranges[axis][1])
	}
	b = msgp.AppendString(b, keyMaskShape)
	b = msgp.AppendArrayHeader(b, 3)
	b = msgp.AppendInt(b, s.dims[2])
	b = msgp.AppendInt(b, s.dims[1])
	b = msgp.AppendInt(b, s.dims[0])
	b = msgp.AppendString(b, KeyMask)
	return msgp.AppendBytes(b, packSigns(s.values))
}

// packSigns packs one bit per value, most significant bit first, set if the value is
// positive.  Boundary voxels with value 0 are unset.
func packSigns(values []float64) []byte {
	bits := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v > 0 {
			bits[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return bits
}

// unpackSigns expands a bitmap into n mask values of 1 (set) or -1.
func unpackSigns(bits []byte, n int) ([]float64, error) {
	if len(bits) != (n+7)/8 {
		return nil, fmt.Errorf("bitmap has %d bytes, expected %d for %d voxels", len(bits), (n+7)/8, n)
	}
	values := make([]float64, n)
	for i := range values {
		if bits[i/8]&(0x80>>uint(i%8)) != 0 {
			values[i] = 1
		} else {
			values[i] = -1
		}
	}
	return values, nil
}

// UnmarshalBinaryExport parses the msgpack export format.  Decoded mask values are 1 for
// voxels on or inside the object and -1 outside.
func UnmarshalBinaryExport(data []byte) (*Export, error) {
	exp, rest, err := readBinaryExport(data)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, &Error{Kind: ErrMalformedDocument, Surface: -1, Axis: NoAxis, Msg: "bad msgpack export", Err: err}
	}
	if len(rest) != 0 {
		return nil, newError(ErrMalformedDocument, NoAxis, "%d bytes after msgpack export", len(rest))
	}
	return exp, nil
}

func readBinaryExport(b []byte) (exp *Export, rest []byte, err error) {
	var sz uint32
	if sz, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
		return
	}
	exp = &Export{}
	var haveVersion, haveSurfaces bool
	for i := uint32(0); i < sz; i++ {
		var key string
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return
		}
		switch key {
		case keyVersion:
			var vstr string
			if vstr, b, err = msgp.ReadStringBytes(b); err != nil {
				return
			}
			if exp.Version, err = semver.ParseTolerant(vstr); err != nil {
				return
			}
			if exp.Version.Major != formatVersion.Major {
				err = newError(ErrMalformedDocument, NoAxis, "unsupported export version %s", exp.Version)
				return
			}
			haveVersion = true
		case keyMetadata:
			if exp.Metadata, b, err = readBinaryMetadata(b); err != nil {
				return
			}
		case keySurfaces:
			var n uint32
			if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
				return
			}
			exp.Surfaces = make([]*Surface, n)
			for j := range exp.Surfaces {
				if exp.Surfaces[j], b, err = readBinarySurface(b); err != nil {
					err = atSurface(err, j)
					return
				}
			}
			haveSurfaces = true
		default:
			if b, err = msgp.Skip(b); err != nil {
				return
			}
		}
	}
	if !haveVersion || !haveSurfaces {
		err = newError(ErrMalformedDocument, NoAxis, "msgpack export needs both %q and %q", keyVersion, keySurfaces)
		return
	}
	return exp, b, nil
}

func readBinaryMetadata(b []byte) (md Metadata, rest []byte, err error) {
	var sz uint32
	if sz, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
		return
	}
	for i := uint32(0); i < sz; i++ {
		var key, val string
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return
		}
		if val, b, err = msgp.ReadStringBytes(b); err != nil {
			return
		}
		switch key {
		case "sourceImage":
			md.SourceImage = val
		case "sourceSurface":
			md.SourceSurface = val
		case "sourceSoftware":
			md.SourceSoftware = val
		case "exportDateTime":
			if val != "" {
				if md.ExportDateTime, err = time.Parse(time.RFC3339Nano, val); err != nil {
					return
				}
			}
		}
	}
	return md, b, nil
}

func readBinarySurface(b []byte) (s *Surface, rest []byte, err error) {
	var sz uint32
	if sz, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
		return
	}
	var (
		ranges  [3]Range
		dims    [3]int
		bits    []byte
		id      int64
		hasID   bool
		present = map[string]bool{}
	)
	for i := uint32(0); i < sz; i++ {
		var key string
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return
		}
		present[key] = true
		switch key {
		case KeyID:
			if id, b, err = msgp.ReadInt64Bytes(b); err != nil {
				return
			}
			if id < 0 {
				err = newError(ErrMalformedDocument, NoAxis, "negative id %d", id)
				return
			}
			hasID = true
		case KeyXRange, KeyYRange, KeyZRange:
			axis := map[string]Axis{KeyXRange: X, KeyYRange: Y, KeyZRange: Z}[key]
			if ranges[axis], b, err = readBinaryRange(b, axis); err != nil {
				return
			}
		case keyMaskShape:
			var n uint32
			if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
				return
			}
			if n != 3 {
				err = newError(ErrMalformedMask, NoAxis, "mask shape has %d dimensions, expected 3", n)
				return
			}
			// shape is stored (nz, ny, nx)
			for axis := Z; axis >= X; axis-- {
				var d int64
				if d, b, err = msgp.ReadInt64Bytes(b); err != nil {
					return
				}
				if d < 1 {
					err = newError(ErrMalformedMask, axis, "mask has %d voxels, need at least 1", d)
					return
				}
				dims[axis] = int(d)
			}
		case KeyMask:
			if bits, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
				return
			}
		default:
			if b, err = msgp.Skip(b); err != nil {
				return
			}
		}
	}
	for _, key := range []string{KeyXRange, KeyYRange, KeyZRange, keyMaskShape, KeyMask} {
		if !present[key] {
			err = newError(ErrMalformedDocument, NoAxis, "missing required key %q", key)
			return
		}
	}
	values, uerr := unpackSigns(bits, dims[0]*dims[1]*dims[2])
	if uerr != nil {
		err = &Error{Kind: ErrMalformedMask, Surface: -1, Axis: NoAxis, Err: uerr}
		return
	}
	if s, err = newFromFlat(ranges, dims, values); err != nil {
		return
	}
	s.id, s.hasID = id, hasID
	return s, b, nil
}

func readBinaryRange(b []byte, axis Axis) (r Range, rest []byte, err error) {
	var n uint32
	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return
	}
	if n != 2 {
		err = newError(ErrMalformedRange, axis, "range has %d elements, expected 2", n)
		return
	}
	for i := range r {
		if r[i], b, err = readBinaryNumber(b); err != nil {
			if !errors.Is(err, msgp.ErrShortBytes) {
				err = &Error{Kind: ErrMalformedRange, Surface: -1, Axis: axis, Err: err}
			}
			return
		}
	}
	if err = r.validate(axis); err != nil {
		return
	}
	return r, b, nil
}

// readBinaryNumber reads any msgpack number as a float64.
func readBinaryNumber(b []byte) (f float64, rest []byte, err error) {
	switch msgp.NextType(b) {
	case msgp.Float64Type:
		return msgp.ReadFloat64Bytes(b)
	case msgp.Float32Type:
		var f32 float32
		f32, rest, err = msgp.ReadFloat32Bytes(b)
		return float64(f32), rest, err
	case msgp.IntType:
		var i int64
		i, rest, err = msgp.ReadInt64Bytes(b)
		return float64(i), rest, err
	case msgp.UintType:
		var u uint64
		u, rest, err = msgp.ReadUint64Bytes(b)
		return float64(u), rest, err
	default:
		if len(b) == 0 {
			return 0, b, msgp.ErrShortBytes
		}
		return 0, b, fmt.Errorf("expected a number, got msgpack %s", msgp.NextType(b))
	}
}
