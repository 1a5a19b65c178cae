package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3Operations(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	assert.Equal(t, Vec3{5, 7, 9}, a.Add(b))
	assert.Equal(t, Vec3{-3, -3, -3}, a.Sub(b))
	assert.Equal(t, Vec3{2, 4, 6}, a.Scale(2))
	assert.InDelta(t, 32.0, a.Dot(b), 1e-12)
	assert.Equal(t, Vec3{-3, 6, -3}, a.Cross(b))
	assert.InDelta(t, math.Sqrt(14), a.Norm(), 1e-12)
}

func TestNormalize(t *testing.T) {
	u, err := Vec3{3, 0, 4}.Normalize()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, u.Norm(), 1e-12)
	assert.InDelta(t, 0.6, u.X, 1e-12)
	assert.InDelta(t, 0.8, u.Z, 1e-12)

	_, err = Vec3{0, 0, 0}.Normalize()
	assert.Error(t, err)
}

func TestNewBasis(t *testing.T) {
	tests := []struct {
		name    string
		x, y, z Vec3
		wantErr bool
	}{
		{
			name: "identity axes",
			x:    Vec3{1, 0, 0}, y: Vec3{0, 1, 0}, z: Vec3{0, 0, 1},
		},
		{
			name: "non-unit axes are kept as supplied",
			x:    Vec3{2, 0, 0}, y: Vec3{0, 5, 0}, z: Vec3{0, 0, 0.1},
		},
		{
			name: "zero axis rejected",
			x:    Vec3{0, 0, 0}, y: Vec3{0, 1, 0}, z: Vec3{0, 0, 1},
			wantErr: true,
		},
		{
			name: "linearly dependent axes rejected",
			x:    Vec3{1, 0, 0}, y: Vec3{1, 0, 0}, z: Vec3{0, 0, 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBasis(tt.x, tt.y, tt.z)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.x.Norm(), b.Row(0).Norm(), 1e-12, "axes are not rescaled")
		})
	}
}

func TestRotationIsOrthonormal(t *testing.T) {
	src, err := NewBasis(Vec3{1, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1})
	require.NoError(t, err)
	tgt := EulerBasis(10, 25, -40)

	r := Rotation(src, tgt)
	shouldBeIdentity := r.Mul(r.Transpose())

	id := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, id[i][j], shouldBeIdentity[i][j], 1e-9, "R·Rᵗ element (%d,%d)", i, j)
		}
	}
}

func TestRotationIdentity(t *testing.T) {
	b, err := NewBasis(Vec3{1, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1})
	require.NoError(t, err)
	r := Rotation(b, b)
	id := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, id[i][j], r[i][j], 1e-12)
		}
	}
}

func TestOrthogonalityResidual(t *testing.T) {
	ortho, err := NewBasis(Vec3{1, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ortho.OrthogonalityResidual(), 1e-12)

	skewed, err := NewBasis(Vec3{1, 0, 0}, Vec3{1, 1, 0}, Vec3{0, 0, 1})
	require.NoError(t, err)
	assert.Greater(t, skewed.OrthogonalityResidual(), 0.5)
}

func TestUnitLengthResidual(t *testing.T) {
	b, err := NewBasis(Vec3{2, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, b.UnitLengthResidual(), 1e-12)
}

func TestMomentArm(t *testing.T) {
	arm := MomentArm(Vec3{1, 2, 3}, Vec3{0.5, 0, 3})
	assert.Equal(t, Vec3{0.5, 2, 0}, arm)
}

func TestEulerBasis(t *testing.T) {
	// Zero angles give the identity basis.
	b := EulerBasis(0, 0, 0)
	id := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, id[i][j], b[i][j], 1e-12)
		}
	}

	// 90° yaw rotates X into Y.
	yawed := EulerBasis(0, 0, 90)
	x := yawed.Row(0)
	assert.InDelta(t, 0, x.X, 1e-12)
	assert.InDelta(t, 1, x.Y, 1e-12)
	assert.InDelta(t, 0, x.Z, 1e-12)
}

func TestProject(t *testing.T) {
	// In a basis yawed 90° about Z, global +X has local coordinates (0,-1,0).
	b := EulerBasis(0, 0, 90)
	v := Project(b, Vec3{1, 0, 0})
	assert.InDelta(t, 0, v.X, 1e-12)
	assert.InDelta(t, -1, v.Y, 1e-12)
}
