package core

import (
	"fmt"
	"math"
)

// MaterialIndex is a position in a Scene's material list.
type MaterialIndex uint32

// normalTolerance keeps already-unit normals bit-exact so a decoded plane
// compares equal to the one that was encoded.
const normalTolerance = 1e-6

type Plane struct {
	material MaterialIndex
	point    Vec3f
	normal   Vec3f
}

// NewPlane normalizes normal; a zero-length normal is rejected.
func NewPlane(material MaterialIndex, point, normal Vec3f) (Plane, error) {
	if !finite3(point) || !finite3(normal) {
		return Plane{}, fmt.Errorf("plane point/normal is not finite: %w", ErrInvalidGeometry)
	}
	l := float64(normal.Len())
	if l == 0 || math.IsInf(l, 0) {
		return Plane{}, fmt.Errorf("plane normal %v has zero length: %w", normal, ErrInvalidGeometry)
	}
	if math.Abs(l-1) > normalTolerance {
		normal = normal.Mul(float32(1 / l))
	}
	return Plane{material: material, point: point, normal: normal}, nil
}

func (p Plane) Material() MaterialIndex { return p.material }
func (p Plane) Point() Vec3f            { return p.point }
func (p Plane) Normal() Vec3f           { return p.normal }

func (p Plane) sameBits(o Plane) bool {
	return p.material == o.material && sameBits3(p.point, o.point) && sameBits3(p.normal, o.normal)
}

type Sphere struct {
	center   Vec3f
	radius   float32
	material MaterialIndex
}

func NewSphere(center Vec3f, radius float32, material MaterialIndex) (Sphere, error) {
	if !finite3(center) {
		return Sphere{}, fmt.Errorf("sphere center %v: %w", center, ErrInvalidGeometry)
	}
	if !finite32(radius) || radius <= 0 {
		return Sphere{}, fmt.Errorf("sphere radius %v must be > 0: %w", radius, ErrInvalidGeometry)
	}
	return Sphere{center: center, radius: radius, material: material}, nil
}

func (s Sphere) Center() Vec3f           { return s.center }
func (s Sphere) Radius() float32         { return s.radius }
func (s Sphere) Material() MaterialIndex { return s.material }

// Bounds returns the axis-aligned box enclosing the sphere.
func (s Sphere) Bounds() (Vec3f, Vec3f) {
	r := Vec3f{s.radius, s.radius, s.radius}
	return s.center.Sub(r), s.center.Add(r)
}

func (s Sphere) sameBits(o Sphere) bool {
	return s.material == o.material && sameBits3(s.center, o.center) && sameBits(s.radius, o.radius)
}
