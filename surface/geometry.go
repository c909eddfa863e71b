package surface

import (
	"math"

	"github.com/janelia-flyem/surfaces/dvid"
)

// Classification is the result of locating a point relative to a surface.
type Classification uint8

const (
	Outside Classification = iota
	Boundary
	Inside
)

func (c Classification) String() string {
	switch c {
	case Outside:
		return "outside"
	case Boundary:
		return "boundary"
	case Inside:
		return "inside"
	default:
		return "unknown"
	}
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// VoxelCenter returns the coordinate of the index-th voxel center along an axis.
func (s *Surface) VoxelCenter(axis Axis, index int) (float64, error) {
	if axis < X || axis > Z {
		return 0, newError(ErrIndexOutOfRange, NoAxis, "bad axis %d", axis)
	}
	if index < 0 || index >= s.dims[axis] {
		return 0, newError(ErrIndexOutOfRange, axis, "voxel index %d not in [0, %d)", index, s.dims[axis])
	}
	return s.center(axis, index), nil
}

// center is VoxelCenter without checks.  Both range ends are pinned so they are exact
// voxel centers regardless of rounding.
func (s *Surface) center(axis Axis, i int) float64 {
	n := s.dims[axis]
	r := s.ranges[axis]
	switch {
	case n == 1 || i == 0:
		return r[0]
	case i == n-1:
		return r[1]
	}
	l := &s.lattice[axis]
	for _, p := range l.pins {
		if p.index == i {
			return p.value
		}
	}
	return l.origin + float64(i-l.originIndex)*l.step
}

// bracket holds the lattice neighbors of a coordinate along one axis.  If exact,
// the coordinate is the center of voxel i0 and i1 == i0.
type bracket struct {
	i0, i1 int
	w      float64 // weight of i1
	exact  bool
}

func (s *Surface) locate(axis Axis, c float64) (bracket, error) {
	if !isFinite(c) {
		return bracket{}, newError(ErrInvalidValue, axis, "coordinate %g", c)
	}
	r := s.ranges[axis]
	if !r.Contains(c) {
		return bracket{}, newError(ErrOutOfBounds, axis, "coordinate %g outside range %v", c, r)
	}
	n := s.dims[axis]
	if n == 1 || r.Extent() == 0 {
		return bracket{exact: true}, nil
	}
	l := &s.lattice[axis]
	var i0 int
	if l.step > 0 {
		i0 = int(math.Floor((c-l.origin)/l.step)) + l.originIndex
	}
	if i0 < 0 {
		i0 = 0
	} else if i0 > n-2 {
		i0 = n - 2
	}
	// the estimate can be off by one from rounding or near pinned centers
	for i0 > 0 && c < s.center(axis, i0) {
		i0--
	}
	for i0 < n-2 && c > s.center(axis, i0+1) {
		i0++
	}
	c0, c1 := s.center(axis, i0), s.center(axis, i0+1)
	switch c {
	case c0:
		return bracket{i0: i0, i1: i0, exact: true}, nil
	case c1:
		return bracket{i0: i0 + 1, i1: i0 + 1, exact: true}, nil
	}
	w := (c - c0) / (c1 - c0)
	if w < 0 {
		w = 0
	} else if w > 1 {
		w = 1
	}
	return bracket{i0: i0, i1: i0 + 1, w: w}, nil
}

// interpolate returns the multilinear interpolation of mask values over the lattice
// neighbors given per axis.
func (s *Surface) interpolate(b [3]bracket) float64 {
	var sum float64
	for corner := 0; corner < 8; corner++ {
		weight := 1.0
		var idx [3]int
		for axis := 0; axis < 3; axis++ {
			if corner&(1<<axis) == 0 {
				idx[axis] = b[axis].i0
				weight *= 1 - b[axis].w
			} else {
				idx[axis] = b[axis].i1
				weight *= b[axis].w
			}
		}
		if weight != 0 {
			sum += weight * s.at(idx)
		}
	}
	return sum
}

func (s *Surface) brackets(pt dvid.Vector3d) ([3]bracket, error) {
	var b [3]bracket
	for axis := X; axis <= Z; axis++ {
		var err error
		if b[axis], err = s.locate(axis, pt[axis]); err != nil {
			return b, err
		}
	}
	return b, nil
}

// Value returns the mask value at a point, interpolated between voxel centers.
func (s *Surface) Value(pt dvid.Vector3d) (float64, error) {
	b, err := s.brackets(pt)
	if err != nil {
		return 0, err
	}
	return s.interpolate(b), nil
}

// Classify locates a point within the enclosing box relative to the surface.  A point
// on a voxel center is Inside if the voxel value is non-negative and Outside otherwise.
// Elsewhere the mask is interpolated and the sign of the result decides, with an exact
// zero classified as Boundary.  Points outside the box fail with ErrOutOfBounds.
func (s *Surface) Classify(pt dvid.Vector3d) (Classification, error) {
	b, err := s.brackets(pt)
	if err != nil {
		return Outside, err
	}
	if b[0].exact && b[1].exact && b[2].exact {
		if s.at([3]int{b[0].i0, b[1].i0, b[2].i0}) >= 0 {
			return Inside, nil
		}
		return Outside, nil
	}
	v := s.interpolate(b)
	switch {
	case v > 0:
		return Inside, nil
	case v < 0:
		return Outside, nil
	default:
		return Boundary, nil
	}
}
