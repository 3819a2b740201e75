package cpu

import (
	"math"

	"github.com/gekko3d/spherert/rt/bvh"
	"github.com/gekko3d/spherert/rt/core"
)

const (
	// Offset along the surface normal for secondary rays.
	surfaceEpsilon = 1e-3
	// Index of refraction for every refractive material.
	glassIOR = 1.5
	farAway  = float32(1e30)
)

type hit struct {
	t        float32
	point    core.Vec3f
	normal   core.Vec3f // faces against the incoming ray
	inside   bool
	material core.MaterialIndex
}

// tracer holds one decoded scene. It is read-only once built and shared by
// every row task.
type tracer struct {
	materials []core.Material
	lights    []core.Light
	planes    []core.Plane
	spheres   []core.Sphere
	tree      *bvh.Tree
	maxDepth  int
}

func newTracer(s *core.Scene, maxDepth int) *tracer {
	spheres := s.Spheres()
	return &tracer{
		materials: s.Materials(),
		lights:    s.Lights(),
		planes:    s.Planes(),
		spheres:   spheres,
		tree:      bvh.Build(spheres),
		maxDepth:  maxDepth,
	}
}

// sphereT returns the nearest positive root of |o + t*d - c| = r.
func sphereT(sp *core.Sphere, o, d core.Vec3f) (float32, bool) {
	oc := o.Sub(sp.Center())
	b := oc.Dot(d)
	c := oc.Dot(oc) - sp.Radius()*sp.Radius()
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	if t := -b - sq; t > surfaceEpsilon {
		return t, true
	}
	if t := -b + sq; t > surfaceEpsilon {
		return t, true
	}
	return 0, false
}

func planeT(p *core.Plane, o, d core.Vec3f) (float32, bool) {
	denom := p.Normal().Dot(d)
	if denom > -1e-6 && denom < 1e-6 {
		return 0, false
	}
	t := p.Point().Sub(o).Dot(p.Normal()) / denom
	return t, t > surfaceEpsilon
}

func (tr *tracer) sphereLeaf(r bvh.Ray) bvh.LeafFunc {
	return func(i int, tMax float32) (float32, bool) {
		t, ok := sphereT(&tr.spheres[i], r.Origin, r.Dir)
		return t, ok && t < tMax
	}
}

func (tr *tracer) intersect(o, d core.Vec3f) (hit, bool) {
	r := bvh.NewRay(o, d)
	idx, best := tr.tree.Closest(r, surfaceEpsilon, farAway, tr.sphereLeaf(r))

	plane := -1
	for i := range tr.planes {
		if t, ok := planeT(&tr.planes[i], o, d); ok && t < best {
			best, plane, idx = t, i, -1
		}
	}
	if idx < 0 && plane < 0 {
		return hit{}, false
	}

	h := hit{t: best, point: o.Add(d.Mul(best))}
	if plane >= 0 {
		h.normal = tr.planes[plane].Normal()
		h.material = tr.planes[plane].Material()
	} else {
		sp := &tr.spheres[idx]
		h.normal = h.point.Sub(sp.Center()).Mul(1 / sp.Radius())
		h.material = sp.Material()
	}
	if h.normal.Dot(d) > 0 {
		h.normal = h.normal.Mul(-1)
		h.inside = true
	}
	return h, true
}

// occluded reports whether anything sits between p and a point dist away
// along dir.
func (tr *tracer) occluded(p, dir core.Vec3f, dist float32) bool {
	r := bvh.NewRay(p, dir)
	if tr.tree.Any(r, surfaceEpsilon, dist, tr.sphereLeaf(r)) {
		return true
	}
	for i := range tr.planes {
		if t, ok := planeT(&tr.planes[i], p, dir); ok && t < dist {
			return true
		}
	}
	return false
}

func mulv(a, b core.Vec3f) core.Vec3f {
	return core.Vec3f{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func reflect(d, n core.Vec3f) core.Vec3f {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}

// refract bends d through a surface with normal n (facing d's origin) and
// relative index eta. ok is false on total internal reflection.
func refract(d, n core.Vec3f, eta float32) (core.Vec3f, bool) {
	cosI := -d.Dot(n)
	k := 1 - eta*eta*(1-cosI*cosI)
	if k < 0 {
		return core.Vec3f{}, false
	}
	return d.Mul(eta).Add(n.Mul(eta*cosI - float32(math.Sqrt(float64(k))))).Normalize(), true
}

// phong sums ambient, diffuse and specular terms over every light; a light
// blocked by geometry only contributes its ambient term.
func (tr *tracer) phong(h hit, m *core.Material, view core.Vec3f) core.Vec3f {
	var c core.Vec3f
	p := h.point.Add(h.normal.Mul(surfaceEpsilon))
	for i := range tr.lights {
		l := &tr.lights[i]
		c = c.Add(mulv(l.Ambient(), m.Ambient()))

		toLight := l.Position().Sub(h.point)
		dist := toLight.Len()
		if dist == 0 {
			continue
		}
		ld := toLight.Mul(1 / dist)
		nl := h.normal.Dot(ld)
		if nl <= 0 || tr.occluded(p, ld, dist) {
			continue
		}
		c = c.Add(mulv(l.Diffuse(), m.Diffuse()).Mul(nl))

		if rv := reflect(ld.Mul(-1), h.normal).Dot(view); rv > 0 {
			spec := float32(math.Pow(float64(rv), float64(m.Shininess())))
			c = c.Add(mulv(l.Specular(), m.Specular()).Mul(spec))
		}
	}
	return c
}

// trace returns the colour seen along d from o. Background is black.
func (tr *tracer) trace(o, d core.Vec3f, depth int) core.Vec3f {
	h, ok := tr.intersect(o, d)
	if !ok {
		return core.Vec3f{}
	}
	m := &tr.materials[h.material]
	local := tr.phong(h, m, d.Mul(-1))
	if depth >= tr.maxDepth {
		return local
	}

	refl, refr := m.Reflectivity(), m.Refractivity()
	c := local.Mul(max(0, 1-refl-refr))

	if refl > 0 {
		rd := reflect(d, h.normal).Normalize()
		c = c.Add(tr.trace(h.point.Add(h.normal.Mul(surfaceEpsilon)), rd, depth+1).Mul(refl))
	}
	if refr > 0 {
		eta := float32(1 / glassIOR)
		if h.inside {
			eta = glassIOR
		}
		if td, ok := refract(d, h.normal, eta); ok {
			c = c.Add(tr.trace(h.point.Sub(h.normal.Mul(surfaceEpsilon)), td, depth+1).Mul(refr))
		} else {
			rd := reflect(d, h.normal).Normalize()
			c = c.Add(tr.trace(h.point.Add(h.normal.Mul(surfaceEpsilon)), rd, depth+1).Mul(refr))
		}
	}
	return c
}
