package surface

import (
	"fmt"
	"math"
	"strings"
)

// Axis identifies one of the three spatial axes.  It also indexes the per-axis
// ranges and voxel counts of a Surface.
type Axis int8

const (
	X Axis = iota
	Y
	Z

	// NoAxis marks errors that aren't tied to a particular axis.
	NoAxis Axis = -1
)

var axisNames = [3]string{"x", "y", "z"}

func (a Axis) String() string {
	if a < X || a > Z {
		return "none"
	}
	return axisNames[a]
}

// ParseAxis converts "x", "y", or "z" (any case) to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	}
	return NoAxis, fmt.Errorf("unknown axis %q, must be x, y, or z", s)
}

// others returns the two axes other than a in increasing order.
func (a Axis) others() (Axis, Axis) {
	switch a {
	case X:
		return Y, Z
	case Y:
		return X, Z
	default:
		return X, Y
	}
}

// Range is an inclusive (min, max) pair of coordinates along one axis.  The first and
// last voxel centers along the axis sit exactly at min and max.
type Range [2]float64

func (r Range) Min() float64 { return r[0] }

func (r Range) Max() float64 { return r[1] }

// Extent returns max - min.
func (r Range) Extent() float64 { return r[1] - r[0] }

// Contains returns true if min <= c <= max.
func (r Range) Contains(c float64) bool { return c >= r[0] && c <= r[1] }

func (r Range) validate(axis Axis) error {
	for _, v := range r {
		if !isFinite(v) {
			return newError(ErrMalformedRange, axis, "range %v is not finite", r)
		}
	}
	if r[0] > r[1] {
		return newError(ErrMalformedRange, axis, "min %g > max %g", r[0], r[1])
	}
	return nil
}

// Surface is one segmented object: a signed mask sampled on a regular lattice spanning
// an axis-aligned box.  Non-negative mask values are on or inside the object, negative
// values are outside.
//
// A Surface is only built through New or NewFromFlat, which validate once, and is
// read-only afterwards so it can be shared across goroutines.
type Surface struct {
	id    int64
	hasID bool

	ranges [3]Range
	dims   [3]int // voxel counts along x, y, z

	// values are stored z-major: index (z*ny + y)*nx + x.
	values []float64

	lattice [3]lattice
}

// lattice places the voxel centers along one axis.  Interior centers are
// origin + (i-originIndex)*step, and pinned indices hold exact coordinates.  Padding
// shifts originIndex and pins the old range ends so that the centers of the source
// surface reappear bit for bit.
type lattice struct {
	origin      float64
	originIndex int
	step        float64
	pins        []pin
}

type pin struct {
	index int
	value float64
}

func uniformLattices(ranges [3]Range, dims [3]int) (l [3]lattice) {
	for axis := range l {
		l[axis].origin = ranges[axis][0]
		if dims[axis] > 1 {
			l[axis].step = ranges[axis].Extent() / float64(dims[axis]-1)
		}
	}
	return
}

// New returns a Surface from ranges along x, y, z and a mask ordered [z][y][x].
// The mask must be rectangular with at least one voxel along each axis.
func New(xRange, yRange, zRange Range, mask [][][]float64) (*Surface, error) {
	ranges := [3]Range{xRange, yRange, zRange}
	for axis, r := range ranges {
		if err := r.validate(Axis(axis)); err != nil {
			return nil, err
		}
	}
	nz := len(mask)
	if nz == 0 {
		return nil, newError(ErrMalformedMask, Z, "mask has no z planes")
	}
	ny := len(mask[0])
	if ny == 0 {
		return nil, newError(ErrMalformedMask, Y, "z plane 0 has no rows")
	}
	nx := len(mask[0][0])
	if nx == 0 {
		return nil, newError(ErrMalformedMask, X, "row (y=0, z=0) has no values")
	}
	values := make([]float64, 0, nx*ny*nz)
	for z, plane := range mask {
		if len(plane) != ny {
			return nil, newError(ErrMalformedMask, Y, "z plane %d has %d rows, expected %d", z, len(plane), ny)
		}
		for y, row := range plane {
			if len(row) != nx {
				return nil, newError(ErrMalformedMask, X, "row (y=%d, z=%d) has %d values, expected %d", y, z, len(row), nx)
			}
			for x, v := range row {
				if !isFinite(v) {
					return nil, newError(ErrInvalidValue, NoAxis, "mask value at (%d,%d,%d) is %g", x, y, z, v)
				}
			}
			values = append(values, row...)
		}
	}
	dims := [3]int{nx, ny, nz}
	return &Surface{ranges: ranges, dims: dims, values: values, lattice: uniformLattices(ranges, dims)}, nil
}

// NewFromFlat returns a Surface from ranges and voxel counts indexed by Axis and a flat
// z-major value buffer of length nx*ny*nz.  The buffer is copied.
func NewFromFlat(ranges [3]Range, dims [3]int, values []float64) (*Surface, error) {
	s, err := newFromFlat(ranges, dims, values)
	if err != nil {
		return nil, err
	}
	s.values = append([]float64(nil), values...)
	return s, nil
}

// newFromFlat validates and takes ownership of values.
func newFromFlat(ranges [3]Range, dims [3]int, values []float64) (*Surface, error) {
	for axis, r := range ranges {
		if err := r.validate(Axis(axis)); err != nil {
			return nil, err
		}
	}
	for axis, n := range dims {
		if n < 1 {
			return nil, newError(ErrMalformedMask, Axis(axis), "mask has %d voxels, need at least 1", n)
		}
	}
	if n := dims[0] * dims[1] * dims[2]; len(values) != n {
		return nil, newError(ErrMalformedMask, NoAxis, "got %d mask values for shape %dx%dx%d", len(values), dims[0], dims[1], dims[2])
	}
	for i, v := range values {
		if !isFinite(v) {
			return nil, newError(ErrInvalidValue, NoAxis, "mask value %d is %g", i, v)
		}
	}
	return &Surface{ranges: ranges, dims: dims, values: values, lattice: uniformLattices(ranges, dims)}, nil
}

// WithID returns a copy of the surface carrying the given object id.  The mask
// buffer is shared since neither surface can modify it.
func (s *Surface) WithID(id int64) *Surface {
	dup := *s
	dup.id = id
	dup.hasID = true
	return &dup
}

// ID returns the object id and whether one was set.
func (s *Surface) ID() (int64, bool) {
	return s.id, s.hasID
}

// Range returns the (min, max) range along an axis.
func (s *Surface) Range(axis Axis) Range {
	return s.ranges[axis]
}

// Ranges returns the ranges indexed by Axis.
func (s *Surface) Ranges() [3]Range {
	return s.ranges
}

// Dim returns the number of voxels along an axis.
func (s *Surface) Dim(axis Axis) int {
	return s.dims[axis]
}

// Shape returns the voxel counts along x, y, and z.
func (s *Surface) Shape() (nx, ny, nz int) {
	return s.dims[0], s.dims[1], s.dims[2]
}

// NumVoxels returns nx*ny*nz.
func (s *Surface) NumVoxels() int {
	return len(s.values)
}

// Step returns the spacing between consecutive voxel centers along an axis, or 0 if
// the axis has a single voxel.
func (s *Surface) Step(axis Axis) float64 {
	return s.lattice[axis].step
}

func (s *Surface) offset(x, y, z int) int {
	return (z*s.dims[1]+y)*s.dims[0] + x
}

func (s *Surface) at(idx [3]int) float64 {
	return s.values[s.offset(idx[0], idx[1], idx[2])]
}

// Voxel returns the mask value at voxel indices (x, y, z).
func (s *Surface) Voxel(x, y, z int) (float64, error) {
	for axis, i := range [3]int{x, y, z} {
		if i < 0 || i >= s.dims[axis] {
			return 0, newError(ErrIndexOutOfRange, Axis(axis), "index %d not in [0, %d)", i, s.dims[axis])
		}
	}
	return s.values[s.offset(x, y, z)], nil
}

// Mask returns a copy of the mask ordered [z][y][x].
func (s *Surface) Mask() [][][]float64 {
	nx, ny, nz := s.Shape()
	mask := make([][][]float64, nz)
	for z := range mask {
		mask[z] = make([][]float64, ny)
		for y := range mask[z] {
			off := s.offset(0, y, z)
			mask[z][y] = append([]float64(nil), s.values[off:off+nx]...)
		}
	}
	return mask
}

// Values returns a copy of the flat z-major mask values.
func (s *Surface) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// Empty returns true if no voxel is on or inside the surface.  The codec doesn't
// reject empty surfaces; callers may.
func (s *Surface) Empty() bool {
	for _, v := range s.values {
		if v >= 0 {
			return false
		}
	}
	return true
}

// Equal returns true if both surfaces have the same id, ranges, shape, and values.
func (s *Surface) Equal(o *Surface) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.hasID != o.hasID || s.id != o.id || s.ranges != o.ranges || s.dims != o.dims {
		return false
	}
	for i, v := range s.values {
		if v != o.values[i] {
			return false
		}
	}
	return true
}

// Pad returns a new surface with extra outside (-1) voxel layers added before the min
// and after the max along an axis.  The range grows by whole voxel steps and existing
// voxel centers keep their exact coordinates.
func (s *Surface) Pad(axis Axis, before, after int) (*Surface, error) {
	if before < 0 || after < 0 {
		return nil, newError(ErrIndexOutOfRange, axis, "negative padding (%d, %d)", before, after)
	}
	step := s.Step(axis)
	if step == 0 {
		return nil, newError(ErrDegenerateAxis, axis, "can't pad an axis with zero voxel spacing")
	}
	n := s.dims[axis]
	ranges := s.ranges
	ranges[axis] = Range{
		ranges[axis][0] - float64(before)*step,
		ranges[axis][1] + float64(after)*step,
	}
	dims := s.dims
	dims[axis] += before + after

	lattices := s.lattice
	old := s.lattice[axis]
	l := lattice{origin: old.origin, originIndex: old.originIndex + before, step: old.step}
	l.pins = make([]pin, 0, len(old.pins)+2)
	for _, p := range old.pins {
		l.pins = append(l.pins, pin{p.index + before, p.value})
	}
	l.pins = append(l.pins, pin{before, s.ranges[axis][0]}, pin{before + n - 1, s.ranges[axis][1]})
	lattices[axis] = l

	values := make([]float64, dims[0]*dims[1]*dims[2])
	for i := range values {
		values[i] = -1
	}
	padded := &Surface{id: s.id, hasID: s.hasID, ranges: ranges, dims: dims, values: values, lattice: lattices}
	for z := 0; z < s.dims[2]; z++ {
		for y := 0; y < s.dims[1]; y++ {
			for x := 0; x < s.dims[0]; x++ {
				dst := [3]int{x, y, z}
				dst[axis] += before
				padded.values[padded.offset(dst[0], dst[1], dst[2])] = s.values[s.offset(x, y, z)]
			}
		}
	}
	return padded, nil
}

func (s *Surface) String() string {
	nx, ny, nz := s.Shape()
	var id string
	if s.hasID {
		id = fmt.Sprintf("id %d, ", s.id)
	}
	return fmt.Sprintf("surface (%sx %v, y %v, z %v, %dx%dx%d voxels)", id,
		s.ranges[0], s.ranges[1], s.ranges[2], nx, ny, nz)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
