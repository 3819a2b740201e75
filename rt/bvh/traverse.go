package bvh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Ray is an origin and direction with the reciprocal direction cached for
// slab tests.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
	inv    mgl32.Vec3
}

func NewRay(origin, dir mgl32.Vec3) Ray {
	r := Ray{Origin: origin, Dir: dir}
	for a := 0; a < 3; a++ {
		r.inv[a] = 1 / dir[a]
	}
	return r
}

// hitsBox is the slab test against [tMin, tMax]. Infinite reciprocals from
// zero direction components behave correctly under IEEE rules.
func (r *Ray) hitsBox(minB, maxB mgl32.Vec3, tMin, tMax float32) bool {
	for a := 0; a < 3; a++ {
		t0 := (minB[a] - r.Origin[a]) * r.inv[a]
		t1 := (maxB[a] - r.Origin[a]) * r.inv[a]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = max(tMin, t0)
		tMax = min(tMax, t1)
		if tMax < tMin {
			return false
		}
	}
	return true
}

// LeafFunc tests leaf primitive index against the ray and returns the hit
// distance if it is closer than tMax.
type LeafFunc func(index int, tMax float32) (float32, bool)

// Closest returns the nearest leaf hit in (tMin, tMax), or -1.
func (t *Tree) Closest(r Ray, tMin, tMax float32, hit LeafFunc) (int, float32) {
	best := -1
	if len(t.Nodes) == 0 {
		return best, tMax
	}

	var stack [64]int32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		n := &t.Nodes[stack[sp]]
		if !r.hitsBox(n.Min, n.Max, tMin, tMax) {
			continue
		}
		if n.IsLeaf() {
			if d, ok := hit(int(n.LeafFirst), tMax); ok && d > tMin && d < tMax {
				best, tMax = int(n.LeafFirst), d
			}
			continue
		}
		if sp+2 > len(stack) {
			// Median splits keep depth at log2(n); 64 levels is never reached.
			continue
		}
		stack[sp] = n.Left
		stack[sp+1] = n.Right
		sp += 2
	}
	return best, tMax
}

// Any reports whether any leaf is hit in (tMin, tMax). Used for shadow rays.
func (t *Tree) Any(r Ray, tMin, tMax float32, hit LeafFunc) bool {
	if len(t.Nodes) == 0 {
		return false
	}

	var stack [64]int32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		n := &t.Nodes[stack[sp]]
		if !r.hitsBox(n.Min, n.Max, tMin, tMax) {
			continue
		}
		if n.IsLeaf() {
			if d, ok := hit(int(n.LeafFirst), tMax); ok && d > tMin && d < tMax {
				return true
			}
			continue
		}
		if sp+2 > len(stack) {
			continue
		}
		stack[sp] = n.Left
		stack[sp+1] = n.Right
		sp += 2
	}
	return false
}
