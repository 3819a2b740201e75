package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Viewport is the output image size in pixels.
type Viewport struct {
	Width  uint32
	Height uint32
}

func (v Viewport) Valid() bool { return v.Width > 0 && v.Height > 0 }

func (v Viewport) Aspect() float32 {
	if v.Height == 0 {
		return 1
	}
	return float32(v.Width) / float32(v.Height)
}

func (v Viewport) Pixels() int { return int(v.Width) * int(v.Height) }

// Camera is a Y-up fly camera. Yaw and Pitch are in degrees; yaw -90 looks
// down -Z.
type Camera struct {
	Position Vec3f
	Yaw      float32
	Pitch    float32
	FovY     float32
	Near     float32
	Far      float32
}

func DefaultCamera() Camera {
	return Camera{
		Position: Vec3f{0, 50, 200},
		Yaw:      -90,
		Pitch:    -10,
		FovY:     65,
		Near:     0.1,
		Far:      500,
	}
}

func (c Camera) Validate() error {
	if !finite3(c.Position) || !finite32(c.Yaw) || !finite32(c.Pitch) {
		return fmt.Errorf("camera pose is not finite: %w", ErrInvalidGeometry)
	}
	if !(c.FovY > 0 && c.FovY < 180) {
		return fmt.Errorf("camera fov %v outside (0,180): %w", c.FovY, ErrInvalidGeometry)
	}
	if !(c.Near > 0 && c.Far > c.Near) || !finite32(c.Far) {
		return fmt.Errorf("camera clip range [%v,%v]: %w", c.Near, c.Far, ErrInvalidGeometry)
	}
	return nil
}

func (c Camera) Forward() Vec3f {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))
	return Vec3f{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}.Normalize()
}

func (c Camera) Right() Vec3f {
	return c.Forward().Cross(Vec3f{0, 1, 0}).Normalize()
}

func (c Camera) Up() Vec3f {
	return c.Right().Cross(c.Forward()).Normalize()
}

func (c Camera) ViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.Forward()), c.Up())
}

func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// FrustumRays are the normalized eye rays through the four far-plane corners.
// RayXY is indexed by NDC sign: 0 is -1, 1 is +1.
type FrustumRays struct {
	Ray00, Ray01, Ray10, Ray11 Vec3f
}

// EyeRay unprojects NDC corner (x, y) onto the far plane and returns the
// normalized direction from the camera to it.
func (c Camera) EyeRay(aspect float32, x, y float32) Vec3f {
	inv := c.Projection(aspect).Mul4(c.ViewMatrix()).Inv()
	p := inv.Mul4x1(Vec4f{x, y, 1, 1})
	if p[3] != 0 {
		p = p.Mul(1 / p[3])
	}
	return p.Vec3().Sub(c.Position).Normalize()
}

func (c Camera) Frustum(aspect float32) FrustumRays {
	return FrustumRays{
		Ray00: c.EyeRay(aspect, -1, -1),
		Ray01: c.EyeRay(aspect, -1, 1),
		Ray10: c.EyeRay(aspect, 1, -1),
		Ray11: c.EyeRay(aspect, 1, 1),
	}
}

// At bilinearly interpolates the corner rays; u runs left to right and v
// bottom to top, both in [0,1]. raytrace.wgsl does the same.
func (f FrustumRays) At(u, v float32) Vec3f {
	left := f.Ray00.Mul(1 - v).Add(f.Ray01.Mul(v))
	right := f.Ray10.Mul(1 - v).Add(f.Ray11.Mul(v))
	return left.Mul(1 - u).Add(right.Mul(u)).Normalize()
}
