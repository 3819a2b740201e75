package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gekko3d/spherert/rt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testViewport = core.Viewport{Width: 320, Height: 240}

func TestBuildRandomDeterministic(t *testing.T) {
	a, err := BuildRandom(42, 20, testViewport)
	require.NoError(t, err)
	b, err := BuildRandom(42, 20, testViewport)
	require.NoError(t, err)

	assert.True(t, a.Frozen())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, a.Equal(b), "same seed must give equal scenes")

	c, err := BuildRandom(43, 20, testViewport)
	require.NoError(t, err)
	assert.False(t, a.Equal(c), "different seeds should differ")
}

func TestBuildRandomConcurrent(t *testing.T) {
	want, err := BuildRandom(7, 32, testViewport)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*core.Scene, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := BuildRandom(7, 32, testViewport)
			if err == nil {
				results[i] = s
			}
		}(i)
	}
	wg.Wait()
	for i, s := range results {
		require.NotNil(t, s, "build %d failed", i)
		assert.True(t, want.Equal(s), "build %d differs", i)
	}
}

func TestBuildRandomContents(t *testing.T) {
	r := DefaultRanges()
	s, err := BuildRandom(42, 20, testViewport)
	require.NoError(t, err)

	assert.Equal(t, 20, s.SphereCount())
	assert.Equal(t, 1, s.PlaneCount())
	assert.Equal(t, 21, s.MaterialCount())
	assert.Equal(t, len(DefaultLightPositions), s.LightCount())
	assert.Equal(t, core.DefaultCamera(), s.Camera())
	assert.Equal(t, testViewport, s.Viewport())

	plane := s.Planes()[0]
	assert.Equal(t, core.MaterialIndex(0), plane.Material())
	assert.Equal(t, core.Vec3f{0, 1, 0}, plane.Normal())

	for i, sp := range s.Spheres() {
		assert.GreaterOrEqual(t, sp.Radius(), r.MinRadius, "sphere %d", i)
		assert.LessOrEqual(t, sp.Radius(), r.MaxRadius, "sphere %d", i)
		assert.GreaterOrEqual(t, sp.Center().Y(), float32(0), "sphere %d", i)
		assert.Equal(t, core.MaterialIndex(i+1), sp.Material())

		m, ok := s.Material(sp.Material())
		require.True(t, ok)
		assert.GreaterOrEqual(t, m.Shininess(), r.MinShininess)
		assert.LessOrEqual(t, m.Shininess(), r.MaxShininess)
		assert.GreaterOrEqual(t, m.Reflectivity(), r.MinReflectivity)
		assert.LessOrEqual(t, m.Reflectivity(), r.MaxReflectivity)
		assert.Zero(t, m.Refractivity())
	}

	for i, l := range s.Lights() {
		assert.Equal(t, DefaultLightPositions[i], l.Position())
		assert.Zero(t, l.Center().W())
		assert.Equal(t, core.Vec3f{0.5, 0.5, 0.5}, l.Ambient())
	}
}

func TestBuildRandomOptions(t *testing.T) {
	r := DefaultRanges()
	r.MinRadius, r.MaxRadius = 2, 2
	cam := core.DefaultCamera()
	cam.Position = core.Vec3f{0, 10, 50}

	s, err := BuildRandom(1, 5, testViewport, WithRanges(r), WithCamera(cam), WithLights(2))
	require.NoError(t, err)
	assert.Equal(t, 2, s.LightCount())
	assert.Equal(t, cam, s.Camera())
	for _, sp := range s.Spheres() {
		assert.Equal(t, float32(2), sp.Radius())
	}

	s, err = BuildRandom(1, 0, testViewport, WithLights(0))
	require.NoError(t, err)
	assert.Zero(t, s.SphereCount())
	assert.Zero(t, s.LightCount())
	assert.Equal(t, 1, s.PlaneCount())
}

func TestBuildRandomRejectsBadInput(t *testing.T) {
	r := DefaultRanges()
	r.MinRadius, r.MaxRadius = 10, 5
	_, err := BuildRandom(1, 3, testViewport, WithRanges(r))
	assert.ErrorIs(t, err, ErrInvalidRanges)

	r = DefaultRanges()
	r.MinRadius = 0
	_, err = BuildRandom(1, 3, testViewport, WithRanges(r))
	assert.ErrorIs(t, err, ErrInvalidRanges)

	_, err = BuildRandom(1, 3, testViewport, WithLights(9))
	assert.ErrorIs(t, err, ErrInvalidRanges)

	_, err = BuildRandom(1, 3, core.Viewport{Width: 0, Height: 10})
	assert.ErrorIs(t, err, core.ErrInvalidGeometry)

	_, err = BuildRandom(1, core.MaxRecordsPerCategory+1, testViewport)
	assert.ErrorIs(t, err, core.ErrSceneValidation)

	// Rejected up front: the extra ground material would overflow the
	// material table during Finalize.
	_, err = BuildRandom(1, core.MaxRecordsPerCategory, testViewport)
	require.ErrorIs(t, err, core.ErrSceneValidation)
	var sve *core.SceneValidationError
	assert.False(t, errors.As(err, &sve))
	assert.ErrorContains(t, err, fmt.Sprintf("maximum is %d", core.MaxRecordsPerCategory-1))
}

const sampleYAML = `
viewport: {width: 64, height: 48}
camera:
  position: [0, 20, 80]
  fov: 50
materials:
  - name: floor
    ambient: [0.1, 0.1, 0.1]
    diffuse: [0.5, 0.5, 0.5]
    specular: [1, 1, 1]
    shininess: 20
  - name: glass
    diffuse: [0.2, 0.2, 0.9]
    shininess: 200
    reflectivity: 0.3
    refractivity: 0.8
lights:
  - position: [0, 50, 0]
    ambient: [0.2, 0.2, 0.2]
    diffuse: [1, 1, 1]
    specular: [1, 1, 1]
planes:
  - {point: [0, 0, 0], normal: [0, 2, 0], material: floor}
spheres:
  - {center: [0, 10, 0], radius: 10, material: glass}
  - {center: [25, 5, 0], radius: 5, material: floor}
`

func TestDescription(t *testing.T) {
	d, err := ParseDescription([]byte(sampleYAML))
	require.NoError(t, err)

	cam := d.Camera.camera()
	assert.Equal(t, core.Vec3f{0, 20, 80}, cam.Position)
	assert.Equal(t, float32(50), cam.FovY)
	assert.Equal(t, core.DefaultCamera().Yaw, cam.Yaw, "unset camera fields keep defaults")

	s, err := BuildFromDescription(d)
	require.NoError(t, err)
	assert.True(t, s.Frozen())
	assert.Equal(t, core.Viewport{Width: 64, Height: 48}, s.Viewport())
	assert.Equal(t, 2, s.MaterialCount())
	assert.Equal(t, 1, s.LightCount())
	assert.Equal(t, 2, s.SphereCount())

	planes := s.Planes()
	require.Len(t, planes, 1)
	assert.Equal(t, core.Vec3f{0, 1, 0}, planes[0].Normal())
	assert.Equal(t, core.MaterialIndex(0), planes[0].Material())

	spheres := s.Spheres()
	assert.Equal(t, core.MaterialIndex(1), spheres[0].Material())
	assert.Equal(t, core.MaterialIndex(0), spheres[1].Material())

	glass, ok := s.Material(1)
	require.True(t, ok)
	assert.Equal(t, float32(0.8), glass.Refractivity())
}

func TestDescriptionErrors(t *testing.T) {
	d, err := ParseDescription([]byte(sampleYAML))
	require.NoError(t, err)
	d.Spheres[0].Material = "chrome"
	_, err = BuildFromDescription(d)
	assert.ErrorIs(t, err, ErrUnknownMaterial)

	d, err = ParseDescription([]byte(sampleYAML))
	require.NoError(t, err)
	d.Materials = append(d.Materials, d.Materials[0])
	_, err = BuildFromDescription(d)
	assert.ErrorIs(t, err, ErrDuplicateMaterial)

	d, err = ParseDescription([]byte(sampleYAML))
	require.NoError(t, err)
	d.Spheres[1].Radius = -1
	_, err = BuildFromDescription(d)
	assert.ErrorIs(t, err, core.ErrInvalidGeometry)

	_, err = ParseDescription([]byte("viewport: {width: 4, height: 4}\nbogus: 1\n"))
	assert.Error(t, err)
}

func TestDescribeRoundTrip(t *testing.T) {
	s, err := BuildRandom(9, 6, testViewport)
	require.NoError(t, err)

	data, err := Describe(s).Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	d, err := LoadDescription(path)
	require.NoError(t, err)
	again, err := BuildFromDescription(d)
	require.NoError(t, err)
	assert.True(t, s.Equal(again))
}

func TestDescriptionWithCamera(t *testing.T) {
	d, err := ParseDescription([]byte(sampleYAML))
	require.NoError(t, err)

	cam := core.DefaultCamera()
	cam.Position = core.Vec3f{5, 6, 7}
	cam.Yaw = 30
	moved := d.WithCamera(cam)

	s, err := BuildFromDescription(moved)
	require.NoError(t, err)
	assert.Equal(t, cam, s.Camera())

	orig, err := BuildFromDescription(d)
	require.NoError(t, err)
	assert.NotEqual(t, cam, orig.Camera())
	assert.Equal(t, orig.SphereCount(), s.SphereCount())
}
