package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/spherert/rt/core"
)

// Matches the storage block read by raytrace.wgsl (PolicyPadded):
//
//	header   : sphere_count, plane_count, material_count, light_count  (16)
//	Material : ambient vec3+pad, diffuse vec3+pad, specular vec3+pad,
//	           shininess, reflectivity, refractivity, pad               (64)
//	Light    : center vec4, ambient vec3+pad, diffuse vec3+pad,
//	           specular vec3+pad                                        (64)
//	Plane    : material u32, pad[3], point vec3+pad, normal vec3+pad    (48)
//	Sphere   : center vec3+pad, radius f32, material u32, pad[2]        (32)
//
// Sections follow the header in the order materials, lights, planes,
// spheres. All padding is zero and every value is little-endian.

const (
	LayoutVersion uint32 = 1
	HeaderSize           = 16
	RecordAlign          = 16
	MaxCount             = core.MaxRecordsPerCategory
)

var (
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrCorruptBuffer     = errors.New("corrupt buffer")
	ErrSceneNotFinalized = errors.New("scene is not finalized")
)

// Policy selects how vectors are laid out inside a record.
type Policy uint32

const (
	// PolicyPadded aligns every vec3/vec4 to 16 bytes and pads vec3 to 16,
	// the std430 rule for structs in a storage buffer.
	PolicyPadded Policy = iota
	// PolicyPacked stores vec3 as 12 bytes on a 4-byte boundary. Records are
	// still rounded up to 16 bytes.
	PolicyPacked
)

func (p Policy) Valid() bool { return p == PolicyPadded || p == PolicyPacked }

func (p Policy) String() string {
	switch p {
	case PolicyPadded:
		return "padded"
	case PolicyPacked:
		return "packed"
	}
	return fmt.Sprintf("Policy(%d)", uint32(p))
}

func (p Policy) vecAlign() int {
	if p == PolicyPadded {
		return 16
	}
	return 4
}

// Sizes are the byte sizes of one record of each kind.
type Sizes struct {
	Material int
	Light    int
	Plane    int
	Sphere   int
}

// Header is the layout metadata that travels with the bytes. Only the four
// counts are stored in the buffer itself.
type Header struct {
	Version uint32
	Policy  Policy

	SphereCount   uint32
	PlaneCount    uint32
	MaterialCount uint32
	LightCount    uint32

	MaterialOffset int
	LightOffset    int
	PlaneOffset    int
	SphereOffset   int

	Sizes Sizes

	Viewport core.Viewport
	Camera   core.Camera
}

// Size is the total byte length the header declares.
func (h Header) Size() int {
	return h.SphereOffset + int(h.SphereCount)*h.Sizes.Sphere
}

// PackedBuffer is a scene flattened for upload. It is derived from a Scene
// and never edited in place.
type PackedBuffer struct {
	Header Header
	Bytes  []byte
}

func (pb PackedBuffer) Len() int { return len(pb.Bytes) }

func newHeader(policy Policy, sizes Sizes, spheres, planes, materials, lights uint32) Header {
	h := Header{
		Version:       LayoutVersion,
		Policy:        policy,
		SphereCount:   spheres,
		PlaneCount:    planes,
		MaterialCount: materials,
		LightCount:    lights,
		Sizes:         sizes,
	}
	h.MaterialOffset = HeaderSize
	h.LightOffset = h.MaterialOffset + int(materials)*sizes.Material
	h.PlaneOffset = h.LightOffset + int(lights)*sizes.Light
	h.SphereOffset = h.PlaneOffset + int(planes)*sizes.Plane
	return h
}

func putCounts(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.SphereCount)
	binary.LittleEndian.PutUint32(buf[4:8], h.PlaneCount)
	binary.LittleEndian.PutUint32(buf[8:12], h.MaterialCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
}

func readCounts(buf []byte) (spheres, planes, materials, lights uint32) {
	return binary.LittleEndian.Uint32(buf[0:4]),
		binary.LittleEndian.Uint32(buf[4:8]),
		binary.LittleEndian.Uint32(buf[8:12]),
		binary.LittleEndian.Uint32(buf[12:16])
}

// fieldVisitor walks the fields of one record in layout order. The same walk
// measures, writes and reads a record, so the three can never disagree.
type fieldVisitor interface {
	u32(v *uint32)
	f32(v *float32)
	vec3(v *core.Vec3f)
	vec4(v *core.Vec4f)
}

type record interface {
	fields(f fieldVisitor)
}

// cursor implements fieldVisitor over one record. buf == nil only measures.
type cursor struct {
	policy Policy
	buf    []byte
	off    int
	read   bool
	err    error
}

func (c *cursor) skip(n int) {
	if c.read && c.err == nil {
		for i := c.off; i < c.off+n; i++ {
			if c.buf[i] != 0 {
				c.err = fmt.Errorf("non-zero padding at record byte %d: %w", i, ErrCorruptBuffer)
				break
			}
		}
	}
	c.off += n
}

func (c *cursor) align(n int) {
	if r := c.off % n; r != 0 {
		c.skip(n - r)
	}
}

func (c *cursor) u32(v *uint32) {
	c.align(4)
	if c.buf != nil {
		if c.read {
			*v = binary.LittleEndian.Uint32(c.buf[c.off:])
		} else {
			binary.LittleEndian.PutUint32(c.buf[c.off:], *v)
		}
	}
	c.off += 4
}

func (c *cursor) f32(v *float32) {
	bits := math.Float32bits(*v)
	c.u32(&bits)
	if c.read {
		*v = math.Float32frombits(bits)
	}
}

func (c *cursor) vec3(v *core.Vec3f) {
	c.align(c.policy.vecAlign())
	for i := 0; i < 3; i++ {
		c.f32(&v[i])
	}
	if c.policy == PolicyPadded {
		c.skip(4)
	}
}

func (c *cursor) vec4(v *core.Vec4f) {
	c.align(c.policy.vecAlign())
	for i := 0; i < 4; i++ {
		c.f32(&v[i])
	}
}

func (c *cursor) finish() int {
	c.align(RecordAlign)
	return c.off
}

func measure(policy Policy, r record) int {
	c := &cursor{policy: policy}
	r.fields(c)
	return c.finish()
}

func writeRecord(policy Policy, dst []byte, r record) {
	c := &cursor{policy: policy, buf: dst}
	r.fields(c)
	c.finish()
}

func readRecord(policy Policy, src []byte, r record) error {
	c := &cursor{policy: policy, buf: src, read: true}
	r.fields(c)
	c.finish()
	return c.err
}

type rawMaterial struct {
	ambient, diffuse, specular            core.Vec3f
	shininess, reflectivity, refractivity float32
}

func (r *rawMaterial) fields(f fieldVisitor) {
	f.vec3(&r.ambient)
	f.vec3(&r.diffuse)
	f.vec3(&r.specular)
	f.f32(&r.shininess)
	f.f32(&r.reflectivity)
	f.f32(&r.refractivity)
}

type rawLight struct {
	center                     core.Vec4f
	ambient, diffuse, specular core.Vec3f
}

func (r *rawLight) fields(f fieldVisitor) {
	f.vec4(&r.center)
	f.vec3(&r.ambient)
	f.vec3(&r.diffuse)
	f.vec3(&r.specular)
}

type rawPlane struct {
	material      uint32
	point, normal core.Vec3f
}

func (r *rawPlane) fields(f fieldVisitor) {
	f.u32(&r.material)
	f.vec3(&r.point)
	f.vec3(&r.normal)
}

type rawSphere struct {
	center   core.Vec3f
	radius   float32
	material uint32
}

func (r *rawSphere) fields(f fieldVisitor) {
	f.vec3(&r.center)
	f.f32(&r.radius)
	f.u32(&r.material)
}

func sizesFor(policy Policy) Sizes {
	return Sizes{
		Material: measure(policy, &rawMaterial{}),
		Light:    measure(policy, &rawLight{}),
		Plane:    measure(policy, &rawPlane{}),
		Sphere:   measure(policy, &rawSphere{}),
	}
}
