package core

import "fmt"

// Light is a point light. Center.w is carried through untouched; the
// renderers only read xyz.
type Light struct {
	center   Vec4f
	ambient  Vec3f
	diffuse  Vec3f
	specular Vec3f
}

func NewLight(center Vec4f, ambient, diffuse, specular Vec3f) (Light, error) {
	if !finite4(center) {
		return Light{}, fmt.Errorf("light center %v: %w", center, ErrInvalidGeometry)
	}
	if !finite3(ambient) || !finite3(diffuse) || !finite3(specular) {
		return Light{}, fmt.Errorf("light colour is not finite: %w", ErrInvalidGeometry)
	}
	return Light{center: center, ambient: ambient, diffuse: diffuse, specular: specular}, nil
}

func (l Light) Center() Vec4f   { return l.center }
func (l Light) Position() Vec3f { return l.center.Vec3() }
func (l Light) Ambient() Vec3f  { return l.ambient }
func (l Light) Diffuse() Vec3f  { return l.diffuse }
func (l Light) Specular() Vec3f { return l.specular }

func (l Light) sameBits(o Light) bool {
	return sameBits4(l.center, o.center) && sameBits3(l.ambient, o.ambient) &&
		sameBits3(l.diffuse, o.diffuse) && sameBits3(l.specular, o.specular)
}
