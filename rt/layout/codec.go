package layout

import (
	"fmt"

	"github.com/gekko3d/spherert/rt/core"
)

// Codec packs scenes under one alignment policy. The zero value uses
// PolicyPadded. Codecs hold no state and are safe for concurrent use.
type Codec struct {
	Policy Policy
}

var defaultCodec = Codec{Policy: PolicyPadded}

func NewCodec(policy Policy) (Codec, error) {
	if !policy.Valid() {
		return Codec{}, fmt.Errorf("layout: unknown policy %v", policy)
	}
	return Codec{Policy: policy}, nil
}

// Encode packs s with the padded policy.
func Encode(s *core.Scene) (PackedBuffer, error) { return defaultCodec.Encode(s) }

// Decode unpacks pb using the policy recorded in its header.
func Decode(pb PackedBuffer) (*core.Scene, error) {
	if !pb.Header.Policy.Valid() {
		return nil, fmt.Errorf("layout: unknown policy %v: %w", pb.Header.Policy, ErrCorruptBuffer)
	}
	return Codec{Policy: pb.Header.Policy}.Decode(pb)
}

func (c Codec) Sizes() Sizes { return sizesFor(c.Policy) }

// HeaderFor computes the layout a scene with the given counts would get.
func (c Codec) HeaderFor(spheres, planes, materials, lights uint32) Header {
	return newHeader(c.Policy, c.Sizes(), spheres, planes, materials, lights)
}

func checkCapacity(c core.Category, n int) error {
	if n > MaxCount {
		return fmt.Errorf("layout: %d %s records, maximum is %d: %w", n, c, MaxCount, ErrCapacityExceeded)
	}
	return nil
}

// Encode packs a finalized scene. Capacity is checked before the finalized
// state so an oversized scene always reports ErrCapacityExceeded.
func (c Codec) Encode(s *core.Scene) (PackedBuffer, error) {
	if s == nil {
		return PackedBuffer{}, fmt.Errorf("layout: nil scene: %w", ErrSceneNotFinalized)
	}
	if !c.Policy.Valid() {
		return PackedBuffer{}, fmt.Errorf("layout: unknown policy %v", c.Policy)
	}
	for _, cn := range []struct {
		c core.Category
		n int
	}{
		{core.CategorySphere, s.SphereCount()},
		{core.CategoryPlane, s.PlaneCount()},
		{core.CategoryMaterial, s.MaterialCount()},
		{core.CategoryLight, s.LightCount()},
	} {
		if err := checkCapacity(cn.c, cn.n); err != nil {
			return PackedBuffer{}, err
		}
	}
	if !s.Frozen() {
		return PackedBuffer{}, fmt.Errorf("layout: scene %s: %w", s.ID(), ErrSceneNotFinalized)
	}

	h := c.HeaderFor(uint32(s.SphereCount()), uint32(s.PlaneCount()), uint32(s.MaterialCount()), uint32(s.LightCount()))
	h.Viewport = s.Viewport()
	h.Camera = s.Camera()

	buf := make([]byte, h.Size())
	putCounts(buf, h)

	off := h.MaterialOffset
	for _, m := range s.Materials() {
		writeRecord(c.Policy, buf[off:off+h.Sizes.Material], &rawMaterial{
			ambient:      m.Ambient(),
			diffuse:      m.Diffuse(),
			specular:     m.Specular(),
			shininess:    m.Shininess(),
			reflectivity: m.Reflectivity(),
			refractivity: m.Refractivity(),
		})
		off += h.Sizes.Material
	}
	for _, l := range s.Lights() {
		writeRecord(c.Policy, buf[off:off+h.Sizes.Light], &rawLight{
			center:   l.Center(),
			ambient:  l.Ambient(),
			diffuse:  l.Diffuse(),
			specular: l.Specular(),
		})
		off += h.Sizes.Light
	}
	for _, p := range s.Planes() {
		writeRecord(c.Policy, buf[off:off+h.Sizes.Plane], &rawPlane{
			material: uint32(p.Material()),
			point:    p.Point(),
			normal:   p.Normal(),
		})
		off += h.Sizes.Plane
	}
	for _, sp := range s.Spheres() {
		writeRecord(c.Policy, buf[off:off+h.Sizes.Sphere], &rawSphere{
			center:   sp.Center(),
			radius:   sp.Radius(),
			material: uint32(sp.Material()),
		})
		off += h.Sizes.Sphere
	}

	return PackedBuffer{Header: h, Bytes: buf}, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("layout: %s: %w", fmt.Sprintf(format, args...), ErrCorruptBuffer)
}

// FromBytes rebuilds the metadata for raw bytes, e.g. a buffer read back
// from disk. It only trusts the stored counts far enough to size the header;
// Decode does the full validation.
func (c Codec) FromBytes(b []byte, viewport core.Viewport, camera core.Camera) (PackedBuffer, error) {
	if len(b) < HeaderSize {
		return PackedBuffer{}, corrupt("%d bytes is shorter than the %d byte header", len(b), HeaderSize)
	}
	spheres, planes, materials, lights := readCounts(b)
	h := c.HeaderFor(spheres, planes, materials, lights)
	h.Viewport = viewport
	h.Camera = camera
	return PackedBuffer{Header: h, Bytes: b}, nil
}

// validate checks the structure of pb before any record is read.
func (c Codec) validate(pb PackedBuffer) (Header, error) {
	h := pb.Header
	if h.Version != LayoutVersion {
		return h, corrupt("layout version %d, want %d", h.Version, LayoutVersion)
	}
	if h.Policy != c.Policy {
		return h, corrupt("buffer policy %v, codec policy %v", h.Policy, c.Policy)
	}
	if len(pb.Bytes) < HeaderSize {
		return h, corrupt("%d bytes is shorter than the %d byte header", len(pb.Bytes), HeaderSize)
	}

	spheres, planes, materials, lights := readCounts(pb.Bytes)
	for _, cn := range []struct {
		c core.Category
		n uint32
	}{
		{core.CategorySphere, spheres},
		{core.CategoryPlane, planes},
		{core.CategoryMaterial, materials},
		{core.CategoryLight, lights},
	} {
		if cn.n > MaxCount {
			return h, corrupt("%d %s records exceed the maximum of %d", cn.n, cn.c, MaxCount)
		}
	}
	if spheres != h.SphereCount || planes != h.PlaneCount || materials != h.MaterialCount || lights != h.LightCount {
		return h, corrupt("stored counts %d/%d/%d/%d disagree with header %d/%d/%d/%d",
			spheres, planes, materials, lights, h.SphereCount, h.PlaneCount, h.MaterialCount, h.LightCount)
	}

	want := c.HeaderFor(spheres, planes, materials, lights)
	if h.Sizes != want.Sizes || h.MaterialOffset != want.MaterialOffset || h.LightOffset != want.LightOffset ||
		h.PlaneOffset != want.PlaneOffset || h.SphereOffset != want.SphereOffset {
		return h, corrupt("header offsets do not match the %v layout", c.Policy)
	}
	if len(pb.Bytes) != want.Size() {
		return h, corrupt("buffer is %d bytes, header declares %d", len(pb.Bytes), want.Size())
	}
	return h, nil
}

// Decode is the inverse of Encode. Every count, padding byte, value and
// material index is checked because the bytes may come from outside.
func (c Codec) Decode(pb PackedBuffer) (*core.Scene, error) {
	h, err := c.validate(pb)
	if err != nil {
		return nil, err
	}

	s, err := core.NewScene(h.Viewport, h.Camera)
	if err != nil {
		return nil, fmt.Errorf("layout: header view: %w: %w", ErrCorruptBuffer, err)
	}

	b := pb.Bytes
	off := h.MaterialOffset
	for i := 0; i < int(h.MaterialCount); i++ {
		var r rawMaterial
		if err := readRecord(c.Policy, b[off:off+h.Sizes.Material], &r); err != nil {
			return nil, fmt.Errorf("layout: material %d: %w", i, err)
		}
		m, err := core.NewMaterial(r.ambient, r.diffuse, r.specular, r.shininess, r.reflectivity, r.refractivity)
		if err != nil {
			return nil, fmt.Errorf("layout: material %d: %w: %w", i, ErrCorruptBuffer, err)
		}
		if _, err := s.AddMaterial(m); err != nil {
			return nil, err
		}
		off += h.Sizes.Material
	}

	for i := 0; i < int(h.LightCount); i++ {
		var r rawLight
		if err := readRecord(c.Policy, b[off:off+h.Sizes.Light], &r); err != nil {
			return nil, fmt.Errorf("layout: light %d: %w", i, err)
		}
		l, err := core.NewLight(r.center, r.ambient, r.diffuse, r.specular)
		if err != nil {
			return nil, fmt.Errorf("layout: light %d: %w: %w", i, ErrCorruptBuffer, err)
		}
		if _, err := s.AddLight(l); err != nil {
			return nil, err
		}
		off += h.Sizes.Light
	}

	for i := 0; i < int(h.PlaneCount); i++ {
		var r rawPlane
		if err := readRecord(c.Policy, b[off:off+h.Sizes.Plane], &r); err != nil {
			return nil, fmt.Errorf("layout: plane %d: %w", i, err)
		}
		if r.material >= h.MaterialCount {
			return nil, corrupt("plane %d references material %d of %d", i, r.material, h.MaterialCount)
		}
		p, err := core.NewPlane(core.MaterialIndex(r.material), r.point, r.normal)
		if err != nil {
			return nil, fmt.Errorf("layout: plane %d: %w: %w", i, ErrCorruptBuffer, err)
		}
		if _, err := s.InsertPlane(p); err != nil {
			return nil, err
		}
		off += h.Sizes.Plane
	}

	for i := 0; i < int(h.SphereCount); i++ {
		var r rawSphere
		if err := readRecord(c.Policy, b[off:off+h.Sizes.Sphere], &r); err != nil {
			return nil, fmt.Errorf("layout: sphere %d: %w", i, err)
		}
		if r.material >= h.MaterialCount {
			return nil, corrupt("sphere %d references material %d of %d", i, r.material, h.MaterialCount)
		}
		sp, err := core.NewSphere(r.center, r.radius, core.MaterialIndex(r.material))
		if err != nil {
			return nil, fmt.Errorf("layout: sphere %d: %w: %w", i, ErrCorruptBuffer, err)
		}
		if _, err := s.InsertSphere(sp); err != nil {
			return nil, err
		}
		off += h.Sizes.Sphere
	}

	if err := s.Finalize(); err != nil {
		return nil, fmt.Errorf("layout: %w: %w", ErrCorruptBuffer, err)
	}
	return s, nil
}
