package core

import (
	"fmt"

	"github.com/google/uuid"
)

// MaxRecordsPerCategory bounds every collection so a packed scene stays a
// reasonable GPU buffer.
const MaxRecordsPerCategory = 1 << 16

// MaterialHandle identifies a material inside the scene that issued it.
type MaterialHandle struct {
	scene uuid.UUID
	index MaterialIndex
}

func (h MaterialHandle) Index() MaterialIndex { return h.index }
func (h MaterialHandle) Scene() uuid.UUID     { return h.scene }

// Scene owns lights, materials and primitives. It is built up with the Add
// methods, then frozen by Finalize; a frozen scene never changes again.
type Scene struct {
	id        uuid.UUID
	viewport  Viewport
	camera    Camera
	lights    []Light
	materials []Material
	planes    []Plane
	spheres   []Sphere
	frozen    bool
}

func NewScene(viewport Viewport, camera Camera) (*Scene, error) {
	if !viewport.Valid() {
		return nil, fmt.Errorf("viewport %dx%d: %w", viewport.Width, viewport.Height, ErrInvalidGeometry)
	}
	if err := camera.Validate(); err != nil {
		return nil, err
	}
	return &Scene{
		id:       uuid.New(),
		viewport: viewport,
		camera:   camera,
	}, nil
}

func (s *Scene) ID() uuid.UUID      { return s.id }
func (s *Scene) Viewport() Viewport { return s.viewport }
func (s *Scene) Camera() Camera     { return s.camera }
func (s *Scene) Frozen() bool       { return s.frozen }

func (s *Scene) Lights() []Light       { return append([]Light(nil), s.lights...) }
func (s *Scene) Materials() []Material { return append([]Material(nil), s.materials...) }
func (s *Scene) Planes() []Plane       { return append([]Plane(nil), s.planes...) }
func (s *Scene) Spheres() []Sphere     { return append([]Sphere(nil), s.spheres...) }

func (s *Scene) LightCount() int    { return len(s.lights) }
func (s *Scene) MaterialCount() int { return len(s.materials) }
func (s *Scene) PlaneCount() int    { return len(s.planes) }
func (s *Scene) SphereCount() int   { return len(s.spheres) }

// Material returns the material at idx, if any.
func (s *Scene) Material(idx MaterialIndex) (Material, bool) {
	if int(idx) >= len(s.materials) {
		return Material{}, false
	}
	return s.materials[idx], true
}

func (s *Scene) checkMutable() error {
	if s.frozen {
		return ErrSceneFrozen
	}
	return nil
}

func (s *Scene) resolve(h MaterialHandle) (MaterialIndex, error) {
	if h.scene != s.id {
		return 0, fmt.Errorf("handle from scene %s used in scene %s: %w", h.scene, s.id, ErrDanglingMaterialReference)
	}
	if int(h.index) >= len(s.materials) {
		return 0, fmt.Errorf("material %d of %d: %w", h.index, len(s.materials), ErrDanglingMaterialReference)
	}
	return h.index, nil
}

func (s *Scene) AddMaterial(m Material) (MaterialHandle, error) {
	if err := s.checkMutable(); err != nil {
		return MaterialHandle{}, err
	}
	s.materials = append(s.materials, m)
	return MaterialHandle{scene: s.id, index: MaterialIndex(len(s.materials) - 1)}, nil
}

func (s *Scene) AddLight(l Light) (int, error) {
	if err := s.checkMutable(); err != nil {
		return 0, err
	}
	s.lights = append(s.lights, l)
	return len(s.lights) - 1, nil
}

func (s *Scene) AddSphere(center Vec3f, radius float32, h MaterialHandle) (int, error) {
	if err := s.checkMutable(); err != nil {
		return 0, err
	}
	idx, err := s.resolve(h)
	if err != nil {
		return 0, err
	}
	sp, err := NewSphere(center, radius, idx)
	if err != nil {
		return 0, err
	}
	s.spheres = append(s.spheres, sp)
	return len(s.spheres) - 1, nil
}

func (s *Scene) AddPlane(point, normal Vec3f, h MaterialHandle) (int, error) {
	if err := s.checkMutable(); err != nil {
		return 0, err
	}
	idx, err := s.resolve(h)
	if err != nil {
		return 0, err
	}
	p, err := NewPlane(idx, point, normal)
	if err != nil {
		return 0, err
	}
	s.planes = append(s.planes, p)
	return len(s.planes) - 1, nil
}

// InsertSphere appends a sphere by raw material index. The index is checked
// by Finalize, not here.
func (s *Scene) InsertSphere(sp Sphere) (int, error) {
	if err := s.checkMutable(); err != nil {
		return 0, err
	}
	s.spheres = append(s.spheres, sp)
	return len(s.spheres) - 1, nil
}

// InsertPlane is InsertSphere for planes.
func (s *Scene) InsertPlane(p Plane) (int, error) {
	if err := s.checkMutable(); err != nil {
		return 0, err
	}
	s.planes = append(s.planes, p)
	return len(s.planes) - 1, nil
}

// Validate reports every broken invariant without freezing the scene.
func (s *Scene) Validate() error {
	var problems []Problem

	if !s.viewport.Valid() {
		problems = append(problems, Problem{CategoryViewport, -1, "width and height must be > 0"})
	}

	counts := []struct {
		c Category
		n int
	}{
		{CategoryLight, len(s.lights)},
		{CategoryMaterial, len(s.materials)},
		{CategoryPlane, len(s.planes)},
		{CategorySphere, len(s.spheres)},
	}
	for _, cn := range counts {
		if cn.n > MaxRecordsPerCategory {
			problems = append(problems, Problem{cn.c, -1, fmt.Sprintf("%d records exceed the maximum of %d", cn.n, MaxRecordsPerCategory)})
		}
	}

	n := len(s.materials)
	for i, p := range s.planes {
		if int(p.material) >= n {
			problems = append(problems, Problem{CategoryPlane, i, fmt.Sprintf("material %d out of range [0,%d)", p.material, n)})
		}
	}
	for i, sp := range s.spheres {
		if int(sp.material) >= n {
			problems = append(problems, Problem{CategorySphere, i, fmt.Sprintf("material %d out of range [0,%d)", sp.material, n)})
		}
	}

	if len(problems) > 0 {
		return &SceneValidationError{Problems: problems}
	}
	return nil
}

// Finalize validates and freezes the scene. Calling it twice is a no-op.
func (s *Scene) Finalize() error {
	if s.frozen {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	s.frozen = true
	return nil
}

// Equal compares content bit for bit. Identity and frozen state are ignored.
func (s *Scene) Equal(o *Scene) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.viewport != o.viewport || s.camera != o.camera {
		return false
	}
	if len(s.lights) != len(o.lights) || len(s.materials) != len(o.materials) ||
		len(s.planes) != len(o.planes) || len(s.spheres) != len(o.spheres) {
		return false
	}
	for i := range s.lights {
		if !s.lights[i].sameBits(o.lights[i]) {
			return false
		}
	}
	for i := range s.materials {
		if !s.materials[i].sameBits(o.materials[i]) {
			return false
		}
	}
	for i := range s.planes {
		if !s.planes[i].sameBits(o.planes[i]) {
			return false
		}
	}
	for i := range s.spheres {
		if !s.spheres[i].sameBits(o.spheres[i]) {
			return false
		}
	}
	return true
}
