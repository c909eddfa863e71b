package dvid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector3d is a 3D vector of 64-bit floats, a recommended type for math operations.
// Components are ordered x, y, z.
type Vector3d [3]float64

// StringToVector3d parses a string like "1.5,2,3" using the given separator.
func StringToVector3d(str, separator string) (Vector3d, error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		return Vector3d{}, fmt.Errorf("Can't convert string '%s' (length %d) to Vector3d", str, len(elems))
	}
	var v Vector3d
	var err error
	for i, elem := range elems {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(elem), 64)
		if err != nil {
			return Vector3d{}, err
		}
	}
	return v, nil
}

// Distance returns the distance between two points a and b.
func (v Vector3d) Distance(x Vector3d) float64 {
	dx := x[0] - v[0]
	dy := x[1] - v[1]
	dz := x[2] - v[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vector3d) Subtract(x Vector3d) Vector3d {
	return Vector3d{v[0] - x[0], v[1] - x[1], v[2] - x[2]}
}

func (v Vector3d) Add(x Vector3d) Vector3d {
	return Vector3d{v[0] + x[0], v[1] + x[1], v[2] + x[2]}
}

func (v Vector3d) DivideScalar(x float64) Vector3d {
	return Vector3d{v[0] / x, v[1] / x, v[2] / x}
}

// Modify returns a copy with the given dimension set to a new value.
func (v Vector3d) Modify(dim uint8, value float64) Vector3d {
	v[dim] = value
	return v
}

// IsFinite returns false if any component is NaN or infinite.
func (v Vector3d) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vector3d) String() string {
	return fmt.Sprintf("(%g,%g,%g)", v[0], v[1], v[2])
}

// VectorStr is a 3d coordinate in string format "x,y,z" where each coordinate is a float.
type VectorStr string

func (s VectorStr) Vector3d() (Vector3d, error) {
	return StringToVector3d(string(s), ",")
}
