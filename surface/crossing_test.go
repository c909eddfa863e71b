package surface

import (
	"errors"
	"math"
	"testing"

	"github.com/janelia-flyem/surfaces/dvid"
)

func TestCubeCrossings(t *testing.T) {
	s := makeCube(t)
	center := dvid.Vector3d{2, 12, 0}
	// the first crossing from the min end sits halfway between the -1 and 0 voxel centers.
	expected := [3]float64{0.5, 10.5, -1.5}
	for axis := X; axis <= Z; axis++ {
		c, found, err := s.FirstCrossing(axis, center)
		if err != nil {
			t.Fatalf("axis %s: unexpected error: %v\n", axis, err)
		}
		if !found {
			t.Fatalf("axis %s: expected crossing through center\n", axis)
		}
		if c != expected[axis] {
			t.Errorf("axis %s: expected crossing at %g, got %g\n", axis, expected[axis], c)
		}

		it, err := s.Crossings(axis, center)
		if err != nil {
			t.Fatalf("axis %s: unexpected error: %v\n", axis, err)
		}
		all := it.All()
		if len(all) != 2 {
			t.Fatalf("axis %s: expected 2 crossings, got %v\n", axis, all)
		}
		if all[0] != expected[axis] || all[1] != expected[axis]+3 {
			t.Errorf("axis %s: expected crossings at %g and %g, got %v\n", axis, expected[axis], expected[axis]+3, all)
		}
		it.Reset()
		if c, ok := it.Next(); !ok || c != expected[axis] {
			t.Errorf("axis %s: reset iterator gave %g (%t)\n", axis, c, ok)
		}
	}

	// a span past the first crossing finds the second.
	c, found, err := s.BoundaryCrossing(X, center, Range{1, 4})
	if err != nil || !found || c != 3.5 {
		t.Errorf("expected second crossing at 3.5, got %g (%t, %v)\n", c, found, err)
	}
	_, found, err = s.BoundaryCrossing(X, center, Range{1, 3})
	if err != nil || found {
		t.Errorf("expected no crossing within [1, 3], got found %t, err %v\n", found, err)
	}
}

func TestCrossingNoBoundary(t *testing.T) {
	inside, _ := New(Range{0, 3}, Range{0, 1}, Range{0, 1}, filled(4, 2, 2, 2))
	outside, _ := New(Range{0, 3}, Range{0, 1}, Range{0, 1}, filled(4, 2, 2, -2))
	for _, s := range []*Surface{inside, outside} {
		_, found, err := s.FirstCrossing(X, dvid.Vector3d{0, 0.5, 0.5})
		if err != nil {
			t.Fatalf("unexpected error: %v\n", err)
		}
		if found {
			t.Errorf("uniform surface shouldn't have a crossing\n")
		}
	}
}

func TestCrossingInterpolated(t *testing.T) {
	// values 3, 1, -1, -3 along x at spacing 2: the crossing is at x = 3.
	row := []float64{3, 1, -1, -3}
	s, err := New(Range{0, 6}, Range{0, 1}, Range{0, 0}, [][][]float64{{row, row}})
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	c, found, err := s.FirstCrossing(X, dvid.Vector3d{100, 0.25, 0})
	if err != nil || !found {
		t.Fatalf("expected crossing, got found %t, err %v\n", found, err)
	}
	if math.Abs(c-3) > 1e-12 {
		t.Errorf("expected crossing at 3, got %g\n", c)
	}
	// the other axes are interpolated, not snapped
	row2 := []float64{-1, -1, -1, -1}
	s2, _ := New(Range{0, 6}, Range{0, 1}, Range{0, 0}, [][][]float64{{row, row2}})
	if _, found, _ := s2.FirstCrossing(X, dvid.Vector3d{0, 1, 0}); found {
		t.Errorf("expected no crossing on all-negative row\n")
	}
	if c, found, _ := s2.FirstCrossing(X, dvid.Vector3d{0, 0, 0}); !found || math.Abs(c-3) > 1e-12 {
		t.Errorf("expected crossing at 3 on y = 0 row, got %g (%t)\n", c, found)
	}
}

func TestCrossingErrors(t *testing.T) {
	// degenerate z axis
	s, err := New(Range{0, 2}, Range{0, 2}, Range{5, 5}, [][][]float64{{{-1, 0, -1}, {0, 1, 0}, {-1, 0, -1}}})
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if _, _, err := s.BoundaryCrossing(Z, dvid.Vector3d{1, 1, 5}, Range{5, 5}); !errors.Is(err, ErrDegenerateAxis) {
		t.Errorf("expected DegenerateAxis along z, got %v\n", err)
	}
	if _, err := s.Crossings(Z, dvid.Vector3d{1, 1, 5}); !errors.Is(err, ErrDegenerateAxis) {
		t.Errorf("expected DegenerateAxis iterating along z, got %v\n", err)
	}
	// other queries still work on the degenerate surface
	if c, err := s.Classify(dvid.Vector3d{1, 1, 5}); err != nil || c != Inside {
		t.Errorf("expected inside at center, got %s (%v)\n", c, err)
	}
	if c, err := s.VoxelCenter(Z, 0); err != nil || c != 5 {
		t.Errorf("expected z center 5, got %g (%v)\n", c, err)
	}
	if c, found, err := s.FirstCrossing(X, dvid.Vector3d{0, 0, 5}); err != nil || !found || c != 0.5 {
		t.Errorf("expected x crossing at 0.5, got %g (%t, %v)\n", c, found, err)
	}

	if _, _, err := s.BoundaryCrossing(X, dvid.Vector3d{0, 3, 5}, Range{0, 2}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected OutOfBounds for fixed y outside box, got %v\n", err)
	}
	if _, _, err := s.BoundaryCrossing(X, dvid.Vector3d{0, 1, 5}, Range{2, 1}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected OutOfBounds for empty span, got %v\n", err)
	}
	if _, _, err := s.BoundaryCrossing(X, dvid.Vector3d{0, 1, 5}, Range{0, math.Inf(1)}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected InvalidValue for infinite span, got %v\n", err)
	}
}

func TestCrossingBetween(t *testing.T) {
	tests := []struct {
		va, vb float64
		want   float64
		found  bool
	}{
		{-1, 1, 0.5, true},
		{1, -3, 0.25, true},
		{0, -1, 0.5, true},
		{-1, 0, 0.5, true},
		{0, 1, 0, false},
		{0, 0, 0, false},
		{2, 5, 0, false},
		{-2, -5, 0, false},
	}
	for _, tc := range tests {
		c, found := crossingBetween(0, 1, tc.va, tc.vb)
		if found != tc.found || (found && c != tc.want) {
			t.Errorf("crossing between %g and %g: expected %g (%t), got %g (%t)\n", tc.va, tc.vb, tc.want, tc.found, c, found)
		}
	}
}
