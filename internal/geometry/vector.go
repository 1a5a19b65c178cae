// Package geometry provides the 3-D vector and matrix primitives used by the
// transform kernel: orthonormal basis construction, source→target rotation,
// moment-arm computation and Euler-angle bases.
package geometry

import (
	"fmt"
	"math"
)

// Vec3 is a 3-D vector.
type Vec3 struct {
	X, Y, Z float64
}

// FromSlice converts a 3-element slice to a Vec3.
func FromSlice(v []float64) (Vec3, error) {
	if len(v) != 3 {
		return Vec3{}, fmt.Errorf("expected 3 components, got %d", len(v))
	}
	return Vec3{v[0], v[1], v[2]}, nil
}

// Slice returns the vector as a 3-element slice.
func (v Vec3) Slice() []float64 { return []float64{v.X, v.Y, v.Z} }

// Array returns the vector as a fixed-size array.
func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v scaled by k.
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// zeroNorm is the threshold below which an axis vector is treated as zero.
const zeroNorm = 1e-10

// Normalize returns the unit vector in the direction of v. A vector with a
// near-zero norm cannot define an axis and is rejected.
func (v Vec3) Normalize() (Vec3, error) {
	n := v.Norm()
	if n < zeroNorm {
		return Vec3{}, fmt.Errorf("cannot normalize near-zero vector %+v (norm %.3e)", v, n)
	}
	return v.Scale(1 / n), nil
}
