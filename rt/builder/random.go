package builder

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gekko3d/spherert/rt/core"
)

var (
	ErrInvalidRanges   = errors.New("invalid builder ranges")
	ErrUnknownMaterial = errors.New("unknown material")
)

// pcgStream is the PCG increment; the seed alone picks the sequence.
const pcgStream = 0x9e3779b97f4a7c15

type sampler struct {
	r *rand.Rand
}

func newSampler(seed uint64) *sampler {
	return &sampler{r: rand.New(rand.NewPCG(seed, pcgStream))}
}

func (s *sampler) between(lo, hi float32) float32 {
	return lo + (hi-lo)*s.r.Float32()
}

func (s *sampler) vec3(lo, hi float32) core.Vec3f {
	return core.Vec3f{s.between(lo, hi), s.between(lo, hi), s.between(lo, hi)}
}

func (s *sampler) material(r Ranges) (core.Material, error) {
	return core.NewMaterial(
		s.vec3(0.09, 1.0),
		s.vec3(0.09, 0.9),
		s.vec3(0.5, 1.0),
		s.between(r.MinShininess, r.MaxShininess),
		s.between(r.MinReflectivity, r.MaxReflectivity),
		s.between(r.MinRefractivity, r.MaxRefractivity),
	)
}

// BuildRandom builds and finalizes a scene of sphereCount random spheres over
// a ground plane. Every draw comes from one generator seeded with seed, so the
// same arguments always produce Equal scenes.
func BuildRandom(seed uint64, sphereCount uint32, viewport core.Viewport, opts ...Option) (*core.Scene, error) {
	o := options{ranges: DefaultRanges(), camera: core.DefaultCamera()}
	for _, opt := range opts {
		opt(&o)
	}
	r := o.ranges
	if err := r.Validate(); err != nil {
		return nil, err
	}
	// Each sphere gets its own material next to the ground's, so the
	// material table fills one record sooner than the sphere table.
	if sphereCount >= core.MaxRecordsPerCategory {
		return nil, fmt.Errorf("builder: %d spheres, maximum is %d: %w", sphereCount, core.MaxRecordsPerCategory-1, core.ErrSceneValidation)
	}

	s, err := core.NewScene(viewport, o.camera)
	if err != nil {
		return nil, err
	}
	rng := newSampler(seed)

	// Ground plane first so its material is always index 0.
	gm, err := rng.material(r)
	if err != nil {
		return nil, fmt.Errorf("builder: ground material: %w", err)
	}
	ground, err := s.AddMaterial(gm)
	if err != nil {
		return nil, err
	}
	if _, err := s.AddPlane(core.Vec3f{0, 0, 0}, core.Vec3f{0, 1, 0}, ground); err != nil {
		return nil, err
	}

	for i := 0; i < r.Lights; i++ {
		p := DefaultLightPositions[i]
		amb := core.Vec3f{r.LightAmbient, r.LightAmbient, r.LightAmbient}
		spec := core.Vec3f{r.LightSpecular, r.LightSpecular, r.LightSpecular}
		l, err := core.NewLight(p.Vec4(0), amb, rng.vec3(r.MinLightDiff, r.MaxLightDiff), spec)
		if err != nil {
			return nil, fmt.Errorf("builder: light %d: %w", i, err)
		}
		if _, err := s.AddLight(l); err != nil {
			return nil, err
		}
	}

	for i := uint32(0); i < sphereCount; i++ {
		m, err := rng.material(r)
		if err != nil {
			return nil, fmt.Errorf("builder: sphere %d material: %w", i, err)
		}
		h, err := s.AddMaterial(m)
		if err != nil {
			return nil, err
		}

		angle := float64(i) / float64(sphereCount) * 2 * math.Pi
		x := float32(math.Sin(angle))*r.RingRadius + rng.between(-r.Jitter, r.Jitter)
		y := float32(math.Abs(float64(rng.between(-r.Jitter, r.Jitter)))) * r.HeightScale
		z := float32(math.Cos(angle))*r.RingRadius + rng.between(-r.Jitter, r.Jitter)
		radius := rng.between(r.MinRadius, r.MaxRadius)

		if _, err := s.AddSphere(core.Vec3f{x, y, z}, radius, h); err != nil {
			return nil, fmt.Errorf("builder: sphere %d: %w", i, err)
		}
	}

	if err := s.Finalize(); err != nil {
		return nil, err
	}
	return s, nil
}
