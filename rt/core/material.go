package core

import "fmt"

// Material holds Phong coefficients plus the reflect/refract weights used by
// the tracers. Primitives refer to it by index, never by pointer.
type Material struct {
	ambient      Vec3f
	diffuse      Vec3f
	specular     Vec3f
	shininess    float32
	reflectivity float32
	refractivity float32
}

func NewMaterial(ambient, diffuse, specular Vec3f, shininess, reflectivity, refractivity float32) (Material, error) {
	if !finite3(ambient) || !finite3(diffuse) || !finite3(specular) {
		return Material{}, fmt.Errorf("material colour is not finite: %w", ErrInvalidMaterial)
	}
	if !finite32(shininess) || shininess <= 0 {
		return Material{}, fmt.Errorf("shininess %v must be > 0: %w", shininess, ErrInvalidMaterial)
	}
	if !unit(reflectivity) {
		return Material{}, fmt.Errorf("reflectivity %v outside [0,1]: %w", reflectivity, ErrInvalidMaterial)
	}
	if !unit(refractivity) {
		return Material{}, fmt.Errorf("refractivity %v outside [0,1]: %w", refractivity, ErrInvalidMaterial)
	}
	return Material{
		ambient:      ambient,
		diffuse:      diffuse,
		specular:     specular,
		shininess:    shininess,
		reflectivity: reflectivity,
		refractivity: refractivity,
	}, nil
}

// DefaultMaterial is a matte white surface.
func DefaultMaterial() Material {
	return Material{
		ambient:   Vec3f{0.1, 0.1, 0.1},
		diffuse:   Vec3f{1, 1, 1},
		specular:  Vec3f{1, 1, 1},
		shininess: 32,
	}
}

func unit(v float32) bool {
	return finite32(v) && v >= 0 && v <= 1
}

func (m Material) Ambient() Vec3f        { return m.ambient }
func (m Material) Diffuse() Vec3f        { return m.diffuse }
func (m Material) Specular() Vec3f       { return m.specular }
func (m Material) Shininess() float32    { return m.shininess }
func (m Material) Reflectivity() float32 { return m.reflectivity }
func (m Material) Refractivity() float32 { return m.refractivity }

func (m Material) sameBits(o Material) bool {
	return sameBits3(m.ambient, o.ambient) && sameBits3(m.diffuse, o.diffuse) &&
		sameBits3(m.specular, o.specular) && sameBits(m.shininess, o.shininess) &&
		sameBits(m.reflectivity, o.reflectivity) && sameBits(m.refractivity, o.refractivity)
}
