package surface

import (
	"github.com/janelia-flyem/surfaces/dvid"
)

// crossingBetween returns where the boundary lies between two consecutive voxel centers
// ca < cb with mask values va and vb, if it does.  The boundary separates a non-negative
// sample from a negative one.  When both values are non-zero the crossing is the zero of
// the linear interpolant.  When the non-negative sample is exactly zero, the interpolant
// vanishes on that voxel center, which is itself inside, so the crossing is placed at
// voxel precision halfway between the two centers.
func crossingBetween(ca, cb, va, vb float64) (float64, bool) {
	if (va >= 0) == (vb >= 0) {
		return 0, false
	}
	if va == 0 || vb == 0 {
		return ca + (cb-ca)/2, true
	}
	return ca + (0-va)/(vb-va)*(cb-ca), true
}

// line samples the mask at each voxel center along axis, holding the other two
// coordinates of pt fixed and interpolating across them.
func (s *Surface) line(axis Axis, pt dvid.Vector3d) (centers, values []float64, err error) {
	if axis < X || axis > Z {
		return nil, nil, newError(ErrIndexOutOfRange, NoAxis, "bad axis %d", axis)
	}
	n := s.dims[axis]
	if n == 1 {
		return nil, nil, newError(ErrDegenerateAxis, axis, "single voxel, no interpolation possible")
	}
	var b [3]bracket
	a1, a2 := axis.others()
	for _, other := range []Axis{a1, a2} {
		if b[other], err = s.locate(other, pt[other]); err != nil {
			return nil, nil, err
		}
	}
	centers = make([]float64, n)
	values = make([]float64, n)
	for i := 0; i < n; i++ {
		b[axis] = bracket{i0: i, i1: i, exact: true}
		centers[i] = s.center(axis, i)
		values[i] = s.interpolate(b)
	}
	return centers, values, nil
}

// BoundaryCrossing scans the line parallel to axis through pt, starting from the min end,
// and returns the first boundary crossing whose coordinate lies within span (inclusive).
// The component of pt along axis is ignored.  found is false if the line doesn't cross
// the boundary within span.  Axes with a single voxel fail with ErrDegenerateAxis.
//
// To collect every crossing along a line, call again with a span starting past the
// last crossing, or use Crossings.
func (s *Surface) BoundaryCrossing(axis Axis, pt dvid.Vector3d, span Range) (coord float64, found bool, err error) {
	if !isFinite(span[0]) || !isFinite(span[1]) {
		return 0, false, newError(ErrInvalidValue, axis, "span %v is not finite", span)
	}
	if span[0] > span[1] {
		return 0, false, newError(ErrOutOfBounds, axis, "empty span %v", span)
	}
	centers, values, err := s.line(axis, pt)
	if err != nil {
		return 0, false, err
	}
	for i := 0; i+1 < len(centers); i++ {
		if centers[i] > span[1] {
			break
		}
		c, ok := crossingBetween(centers[i], centers[i+1], values[i], values[i+1])
		if ok && span.Contains(c) {
			return c, true, nil
		}
	}
	return 0, false, nil
}

// FirstCrossing is BoundaryCrossing over the whole extent of the axis.
func (s *Surface) FirstCrossing(axis Axis, pt dvid.Vector3d) (float64, bool, error) {
	if axis < X || axis > Z {
		return 0, false, newError(ErrIndexOutOfRange, NoAxis, "bad axis %d", axis)
	}
	return s.BoundaryCrossing(axis, pt, s.ranges[axis])
}

// CrossingIterator produces the boundary crossings along a line in increasing
// coordinate order, at most one per pair of consecutive voxel centers.  It holds its
// own copy of the sampled line so it stays valid independent of other queries, but a
// single iterator isn't safe for concurrent use.
type CrossingIterator struct {
	centers []float64
	values  []float64
	next    int
}

// Crossings returns an iterator over every boundary crossing along the line parallel
// to axis through pt.
func (s *Surface) Crossings(axis Axis, pt dvid.Vector3d) (*CrossingIterator, error) {
	centers, values, err := s.line(axis, pt)
	if err != nil {
		return nil, err
	}
	return &CrossingIterator{centers: centers, values: values}, nil
}

// Next returns the next crossing, or false when the line is exhausted.
func (it *CrossingIterator) Next() (float64, bool) {
	for it.next+1 < len(it.centers) {
		i := it.next
		it.next++
		if c, ok := crossingBetween(it.centers[i], it.centers[i+1], it.values[i], it.values[i+1]); ok {
			return c, true
		}
	}
	return 0, false
}

// Reset restarts iteration from the min end of the line.
func (it *CrossingIterator) Reset() {
	it.next = 0
}

// All returns the remaining crossings.
func (it *CrossingIterator) All() []float64 {
	var crossings []float64
	for {
		c, ok := it.Next()
		if !ok {
			return crossings
		}
		crossings = append(crossings, c)
	}
}
