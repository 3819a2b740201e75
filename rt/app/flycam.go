package app

import (
	"github.com/gekko3d/spherert/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultFlySpeed       = 220
	DefaultFlySensitivity = 0.1
	maxPitch              = 89
)

// FlyInput is one frame of controller input. Move is in camera space: x
// right, y up, z forward, each in [-1,1]. Look is the cursor delta in
// pixels, y growing downwards.
type FlyInput struct {
	Move mgl32.Vec3
	Look mgl32.Vec2
}

func (in FlyInput) Idle() bool {
	return in.Move == (mgl32.Vec3{}) && in.Look == (mgl32.Vec2{})
}

// FlyCamera walks a camera over the ground: forward and right ignore pitch so
// W never digs into the plane, and vertical motion only comes from Move.Y.
type FlyCamera struct {
	Speed       float32
	Sensitivity float32
}

func NewFlyCamera() FlyCamera {
	return FlyCamera{Speed: DefaultFlySpeed, Sensitivity: DefaultFlySensitivity}
}

// Apply returns cam moved by in over dt seconds and whether anything changed.
func (f FlyCamera) Apply(cam core.Camera, in FlyInput, dt float32) (core.Camera, bool) {
	if in.Idle() {
		return cam, false
	}
	speed, sens := f.Speed, f.Sensitivity
	if speed == 0 {
		speed = DefaultFlySpeed
	}
	if sens == 0 {
		sens = DefaultFlySensitivity
	}

	cam.Yaw += in.Look[0] * sens
	cam.Pitch = mgl32.Clamp(cam.Pitch-in.Look[1]*sens, -maxPitch, maxPitch)

	fwd := cam.Forward()
	fwd[1] = 0
	if fwd.Len() > 0 {
		fwd = fwd.Normalize()
	}
	right := fwd.Cross(core.Vec3f{0, 1, 0})
	if right.Len() > 0 {
		right = right.Normalize()
	}

	dir := right.Mul(in.Move[0]).Add(core.Vec3f{0, in.Move[1], 0}).Add(fwd.Mul(in.Move[2]))
	if dt > 0 && dir.Len() > 0 {
		cam.Position = cam.Position.Add(dir.Normalize().Mul(speed * dt))
	}
	return cam, true
}
