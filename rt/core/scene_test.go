package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMaterial(t *testing.T) Material {
	t.Helper()
	m, err := NewMaterial(Vec3f{0.1, 0.1, 0.1}, Vec3f{0.8, 0.2, 0.2}, Vec3f{1, 1, 1}, 64, 0.5, 0)
	require.NoError(t, err)
	return m
}

func testScene(t *testing.T) *Scene {
	t.Helper()
	s, err := NewScene(Viewport{Width: 64, Height: 48}, DefaultCamera())
	require.NoError(t, err)
	return s
}

func TestSphereConstruction(t *testing.T) {
	_, err := NewSphere(Vec3f{0, 0, 0}, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = NewSphere(Vec3f{0, 0, 0}, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = NewSphere(Vec3f{float32(math.NaN()), 0, 0}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	sp, err := NewSphere(Vec3f{1, 2, 3}, 4, 7)
	require.NoError(t, err)
	assert.Equal(t, Vec3f{1, 2, 3}, sp.Center())
	assert.Equal(t, float32(4), sp.Radius())
	assert.Equal(t, MaterialIndex(7), sp.Material())

	minB, maxB := sp.Bounds()
	assert.Equal(t, Vec3f{-3, -2, -1}, minB)
	assert.Equal(t, Vec3f{5, 6, 7}, maxB)
}

func TestPlaneConstruction(t *testing.T) {
	_, err := NewPlane(0, Vec3f{}, Vec3f{0, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	p, err := NewPlane(0, Vec3f{}, Vec3f{0, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, Vec3f{0, 1, 0}, p.Normal())

	// An already-unit normal keeps its exact bits.
	n := Vec3f{1, 2, 3}.Normalize()
	p, err = NewPlane(0, Vec3f{}, n)
	require.NoError(t, err)
	assert.Equal(t, n, p.Normal())
}

func TestMaterialConstruction(t *testing.T) {
	cases := []struct {
		name              string
		shiny, refl, refr float32
		wantErr           bool
	}{
		{"valid", 10, 0.05, 0, false},
		{"zero shininess", 0, 0.5, 0, true},
		{"negative shininess", -3, 0.5, 0, true},
		{"reflectivity above one", 10, 1.5, 0, true},
		{"refractivity below zero", 10, 0.5, -0.1, true},
		{"bounds inclusive", 10, 1, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMaterial(Vec3f{}, Vec3f{}, Vec3f{}, tc.shiny, tc.refl, tc.refr)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMaterial)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLightConstruction(t *testing.T) {
	l, err := NewLight(Vec4f{1, 2, 3, 0}, Vec3f{0.5, 0.5, 0.5}, Vec3f{1, 1, 1}, Vec3f{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, Vec3f{1, 2, 3}, l.Position())

	_, err = NewLight(Vec4f{float32(math.Inf(1)), 0, 0, 0}, Vec3f{}, Vec3f{}, Vec3f{})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestSceneHandles(t *testing.T) {
	s := testScene(t)
	other := testScene(t)

	h, err := s.AddMaterial(testMaterial(t))
	require.NoError(t, err)
	assert.Equal(t, MaterialIndex(0), h.Index())
	assert.Equal(t, s.ID(), h.Scene())

	idx, err := s.AddSphere(Vec3f{0, 5, 0}, 5, h)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = other.AddSphere(Vec3f{0, 5, 0}, 5, h)
	assert.ErrorIs(t, err, ErrDanglingMaterialReference)
	_, err = other.AddPlane(Vec3f{}, Vec3f{0, 1, 0}, h)
	assert.ErrorIs(t, err, ErrDanglingMaterialReference)

	_, err = s.AddSphere(Vec3f{}, -1, h)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	assert.Equal(t, 1, s.SphereCount())
}

func TestFinalizeRejectsDanglingIndex(t *testing.T) {
	s := testScene(t)
	_, err := s.AddMaterial(testMaterial(t))
	require.NoError(t, err)

	p, err := NewPlane(3, Vec3f{}, Vec3f{0, 1, 0})
	require.NoError(t, err)
	_, err = s.InsertPlane(p)
	require.NoError(t, err)

	sp, err := NewSphere(Vec3f{}, 1, 0)
	require.NoError(t, err)
	_, err = s.InsertSphere(sp)
	require.NoError(t, err)

	err = s.Finalize()
	require.ErrorIs(t, err, ErrSceneValidation)

	var verr *SceneValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []int{0}, verr.Indices(CategoryPlane))
	assert.Empty(t, verr.Indices(CategorySphere))
	assert.False(t, s.Frozen())
}

func TestFinalizeFreezes(t *testing.T) {
	s := testScene(t)
	h, err := s.AddMaterial(testMaterial(t))
	require.NoError(t, err)
	_, err = s.AddPlane(Vec3f{}, Vec3f{0, 1, 0}, h)
	require.NoError(t, err)

	require.NoError(t, s.Finalize())
	assert.True(t, s.Frozen())
	require.NoError(t, s.Finalize())

	_, err = s.AddMaterial(testMaterial(t))
	assert.ErrorIs(t, err, ErrSceneFrozen)
	_, err = s.AddSphere(Vec3f{}, 1, h)
	assert.ErrorIs(t, err, ErrSceneFrozen)

	// Accessors hand out copies.
	planes := s.Planes()
	planes[0] = Plane{}
	assert.Equal(t, Vec3f{0, 1, 0}, s.Planes()[0].Normal())
}

func TestSceneValidatesViewport(t *testing.T) {
	_, err := NewScene(Viewport{Width: 0, Height: 10}, DefaultCamera())
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	cam := DefaultCamera()
	cam.FovY = 0
	_, err = NewScene(Viewport{Width: 10, Height: 10}, cam)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestSceneEqualIgnoresIdentity(t *testing.T) {
	build := func() *Scene {
		s := testScene(t)
		h, err := s.AddMaterial(testMaterial(t))
		require.NoError(t, err)
		_, err = s.AddSphere(Vec3f{1, 2, 3}, 2, h)
		require.NoError(t, err)
		return s
	}
	a, b := build(), build()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, a.Equal(b))

	h, err := b.AddMaterial(testMaterial(t))
	require.NoError(t, err)
	_, err = b.AddSphere(Vec3f{}, 1, h)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
}
