package geometry

import (
	"fmt"
	"math"
)

// Mat3 is a 3×3 matrix stored row-major. A basis matrix holds the unit axis
// vectors of a coordinate system as its rows (row 0 = X, row 1 = Y, row 2 = Z).
type Mat3 [3][3]float64

// Identity returns the identity matrix.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Row returns row i as a vector.
func (m Mat3) Row(i int) Vec3 { return Vec3{m[i][0], m[i][1], m[i][2]} }

// Transpose returns the transposed matrix.
func (m Mat3) Transpose() Mat3 {
	var t Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// Mul returns the matrix product m · o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var p Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				p[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return p
}

// MulVec returns the matrix-vector product m · v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// singularDet is the determinant magnitude below which a basis is considered
// degenerate (linearly dependent axes).
const singularDet = 1e-6

// NewBasis builds a basis matrix from three axis vectors. The vectors are used
// exactly as supplied: a deviation from unit length or orthogonality is a
// quality problem the caller reports as a warning, never something to
// auto-correct. A near-zero axis or a singular (linearly dependent) triple is
// a hard configuration error.
func NewBasis(x, y, z Vec3) (Mat3, error) {
	for i, v := range []Vec3{x, y, z} {
		if v.Norm() < zeroNorm {
			return Mat3{}, fmt.Errorf("%c axis is a zero-length vector", "xyz"[i])
		}
	}

	b := Mat3{
		{x.X, x.Y, x.Z},
		{y.X, y.Y, y.Z},
		{z.X, z.Y, z.Z},
	}
	if det := b.Det(); math.Abs(det) < singularDet {
		return Mat3{}, fmt.Errorf("basis is near-singular (det %.3e), axes are linearly dependent", det)
	}
	return b, nil
}

// OrthogonalityResidual returns the largest pairwise |dot product| between the
// basis axes. Zero for a perfectly orthogonal basis.
func (m Mat3) OrthogonalityResidual() float64 {
	xy := math.Abs(m.Row(0).Dot(m.Row(1)))
	yz := math.Abs(m.Row(1).Dot(m.Row(2)))
	zx := math.Abs(m.Row(2).Dot(m.Row(0)))
	return math.Max(xy, math.Max(yz, zx))
}

// UnitLengthResidual returns the largest deviation of an axis length from 1.
func (m Mat3) UnitLengthResidual() float64 {
	res := 0.0
	for i := 0; i < 3; i++ {
		res = math.Max(res, math.Abs(m.Row(i).Norm()-1))
	}
	return res
}

// Rotation derives the rotation matrix mapping vectors from the source frame
// to the target frame: R = target · sourceᵀ. Both arguments are basis
// matrices; for orthonormal bases the transpose is the inverse.
func Rotation(source, target Mat3) Mat3 {
	return target.Mul(source.Transpose())
}

// MomentArm returns the moment-arm vector in global coordinates: the offset
// from the target moment center to the source reference point.
func MomentArm(sourceRef, targetCenter Vec3) Vec3 {
	return sourceRef.Sub(targetCenter)
}

// Project expresses a global-frame vector in the given basis. Used to bring
// the moment arm into the target frame before crossing it with the rotated
// force.
func Project(basis Mat3, global Vec3) Vec3 {
	return basis.MulVec(global)
}

// EulerBasis builds a basis matrix from aerodynamic Euler angles in degrees,
// applying yaw (Z), then pitch (Y), then roll (X). The rows of the result are
// the rotated axis directions expressed in global coordinates.
func EulerBasis(rollDeg, pitchDeg, yawDeg float64) Mat3 {
	r := rollDeg * math.Pi / 180
	p := pitchDeg * math.Pi / 180
	y := yawDeg * math.Pi / 180

	rz := Mat3{
		{math.Cos(y), -math.Sin(y), 0},
		{math.Sin(y), math.Cos(y), 0},
		{0, 0, 1},
	}
	ry := Mat3{
		{math.Cos(p), 0, math.Sin(p)},
		{0, 1, 0},
		{-math.Sin(p), 0, math.Cos(p)},
	}
	rx := Mat3{
		{1, 0, 0},
		{0, math.Cos(r), -math.Sin(r)},
		{0, math.Sin(r), math.Cos(r)},
	}

	// Columns of the composite rotation are the rotated axes.
	return rz.Mul(ry).Mul(rx).Transpose()
}
