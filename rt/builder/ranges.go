package builder

import (
	"fmt"

	"github.com/gekko3d/spherert/rt/core"
)

// DefaultLightPositions are the fixed light positions of the demo scene.
var DefaultLightPositions = []core.Vec3f{
	{35, 20, -35},
	{0, 20, 0},
	{0, 40, 40},
	{15, 20, -10},
	{30, 60, 20},
}

// Ranges bounds every random draw of BuildRandom. Min and Max are inclusive.
type Ranges struct {
	MinRadius, MaxRadius             float32
	MinShininess, MaxShininess       float32
	MinReflectivity, MaxReflectivity float32
	MinRefractivity, MaxRefractivity float32

	// Spheres are spread evenly around a ring in the XZ plane and pushed
	// off it by up to Jitter on each axis. Height is |jitter| * HeightScale.
	RingRadius  float32
	Jitter      float32
	HeightScale float32

	// Lights is how many of DefaultLightPositions are used.
	Lights        int
	LightAmbient  float32
	MinLightDiff  float32
	MaxLightDiff  float32
	LightSpecular float32
}

func DefaultRanges() Ranges {
	return Ranges{
		MinRadius:       5,
		MaxRadius:       25,
		MinShininess:    10,
		MaxShininess:    300,
		MinReflectivity: 0.05,
		MaxReflectivity: 1.0,
		MinRefractivity: 0,
		MaxRefractivity: 0,

		RingRadius:  125,
		Jitter:      15.25,
		HeightScale: 7.5,

		Lights:        len(DefaultLightPositions),
		LightAmbient:  0.5,
		MinLightDiff:  0.09,
		MaxLightDiff:  1.0,
		LightSpecular: 1.0,
	}
}

func checkRange(name string, lo, hi float32) error {
	if lo > hi {
		return fmt.Errorf("builder: %s range [%v,%v] is empty: %w", name, lo, hi, ErrInvalidRanges)
	}
	return nil
}

// Validate rejects ranges that could only produce invalid values.
func (r Ranges) Validate() error {
	for _, c := range []struct {
		name   string
		lo, hi float32
	}{
		{"radius", r.MinRadius, r.MaxRadius},
		{"shininess", r.MinShininess, r.MaxShininess},
		{"reflectivity", r.MinReflectivity, r.MaxReflectivity},
		{"refractivity", r.MinRefractivity, r.MaxRefractivity},
		{"light diffuse", r.MinLightDiff, r.MaxLightDiff},
	} {
		if err := checkRange(c.name, c.lo, c.hi); err != nil {
			return err
		}
	}
	if r.MinRadius <= 0 {
		return fmt.Errorf("builder: minimum radius %v: %w", r.MinRadius, ErrInvalidRanges)
	}
	if r.MinShininess <= 0 {
		return fmt.Errorf("builder: minimum shininess %v: %w", r.MinShininess, ErrInvalidRanges)
	}
	if r.MinReflectivity < 0 || r.MaxReflectivity > 1 || r.MinRefractivity < 0 || r.MaxRefractivity > 1 {
		return fmt.Errorf("builder: reflectivity and refractivity must lie in [0,1]: %w", ErrInvalidRanges)
	}
	if r.Lights < 0 || r.Lights > len(DefaultLightPositions) {
		return fmt.Errorf("builder: %d lights, at most %d: %w", r.Lights, len(DefaultLightPositions), ErrInvalidRanges)
	}
	return nil
}

type options struct {
	ranges Ranges
	camera core.Camera
}

// Option configures BuildRandom.
type Option func(*options)

// WithRanges replaces the default Ranges.
func WithRanges(r Ranges) Option {
	return func(o *options) {
		o.ranges = r
	}
}

// WithCamera places the camera instead of core.DefaultCamera.
func WithCamera(c core.Camera) Option {
	return func(o *options) {
		o.camera = c
	}
}

// WithLights limits the scene to the first n default light positions.
func WithLights(n int) Option {
	return func(o *options) {
		o.ranges.Lights = n
	}
}
