package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Vec3f and Vec4f are plain float32 tuples. They alias mathgl so callers get
// Dot/Cross/Normalize without conversions.
type Vec3f = mgl32.Vec3
type Vec4f = mgl32.Vec4

func finite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finite3(v Vec3f) bool {
	return finite32(v[0]) && finite32(v[1]) && finite32(v[2])
}

func finite4(v Vec4f) bool {
	return finite32(v[0]) && finite32(v[1]) && finite32(v[2]) && finite32(v[3])
}

func sameBits3(a, b Vec3f) bool {
	for i := 0; i < 3; i++ {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}

func sameBits4(a, b Vec4f) bool {
	for i := 0; i < 4; i++ {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}

func sameBits(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}
