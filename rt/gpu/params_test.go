package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/spherert/rt/bvh"
	"github.com/gekko3d/spherert/rt/core"
	"github.com/gekko3d/spherert/rt/layout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func testScene(t *testing.T, spheres int) *core.Scene {
	t.Helper()
	s, err := core.NewScene(core.Viewport{Width: 40, Height: 30}, core.DefaultCamera())
	require.NoError(t, err)

	m, err := core.NewMaterial(core.Vec3f{0.1, 0.1, 0.1}, core.Vec3f{0.6, 0.2, 0.2}, core.Vec3f{1, 1, 1}, 50, 0.2, 0)
	require.NoError(t, err)
	mi, err := s.AddMaterial(m)
	require.NoError(t, err)

	l, err := core.NewLight(core.Vec4f{0, 100, 0, 1}, core.Vec3f{0.5, 0.5, 0.5}, core.Vec3f{1, 1, 1}, core.Vec3f{1, 1, 1})
	require.NoError(t, err)
	_, err = s.AddLight(l)
	require.NoError(t, err)

	_, err = s.AddPlane(core.Vec3f{}, core.Vec3f{0, 1, 0}, mi)
	require.NoError(t, err)
	for i := 0; i < spheres; i++ {
		_, err = s.AddSphere(core.Vec3f{float32(i) * 20, 10, 0}, 5, mi)
		require.NoError(t, err)
	}
	require.NoError(t, s.Finalize())
	return s
}

func TestPackParams(t *testing.T) {
	vp := core.Viewport{Width: 320, Height: 200}
	cam := core.DefaultCamera()
	bg := core.Vec4f{0.1, 0.2, 0.3, 1}

	buf := PackParams(vp, cam, 5, bg)
	require.Len(t, buf, ParamsSize)

	assert.Equal(t, cam.Position[0], f32At(buf, 0))
	assert.Equal(t, cam.Position[1], f32At(buf, 4))
	assert.Equal(t, cam.Position[2], f32At(buf, 8))
	assert.Equal(t, float32(1), f32At(buf, 12))

	rays := cam.Frustum(vp.Aspect())
	for i, r := range []core.Vec3f{rays.Ray00, rays.Ray01, rays.Ray10, rays.Ray11} {
		off := 16 + i*16
		assert.InDelta(t, r[0], f32At(buf, off), 1e-6)
		assert.InDelta(t, r[1], f32At(buf, off+4), 1e-6)
		assert.InDelta(t, r[2], f32At(buf, off+8), 1e-6)
		assert.Zero(t, f32At(buf, off+12))
	}

	assert.Equal(t, uint32(320), binary.LittleEndian.Uint32(buf[80:]))
	assert.Equal(t, uint32(200), binary.LittleEndian.Uint32(buf[84:]))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[88:]))
	assert.Zero(t, binary.LittleEndian.Uint32(buf[92:]))

	assert.Equal(t, float32(0.2), f32At(buf, 100))
	assert.Equal(t, make([]byte, 16), buf[112:128])
}

func TestPrepareUpload(t *testing.T) {
	s := testScene(t, 3)
	pb, err := layout.Encode(s)
	require.NoError(t, err)

	u, err := PrepareUpload(pb, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), u.Width)
	assert.Equal(t, uint32(30), u.Height)
	assert.Equal(t, uint64(40*30*16), u.OutputSize())
	assert.Equal(t, pb.Bytes, u.Scene)
	assert.Equal(t, bvh.Build(s.Spheres()).ToBytes(), u.Nodes)
	assert.Zero(t, len(u.Nodes)%bvh.NodeSize)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(u.Params[88:]))
	assert.Equal(t, float32(1), f32At(u.Params, 108))
}

func TestPrepareUploadNoSpheres(t *testing.T) {
	pb, err := layout.Encode(testScene(t, 0))
	require.NoError(t, err)

	u, err := PrepareUpload(pb, 1)
	require.NoError(t, err)
	// The shader binding needs one node even when there is nothing to trace.
	assert.Len(t, u.Nodes, bvh.NodeSize)
}

func TestPrepareUploadRejects(t *testing.T) {
	s := testScene(t, 2)

	packed, err := layout.NewCodec(layout.PolicyPacked)
	require.NoError(t, err)
	pb, err := packed.Encode(s)
	require.NoError(t, err)
	_, err = PrepareUpload(pb, 4)
	assert.ErrorIs(t, err, ErrUnsupportedPolicy)

	pb, err = layout.Encode(s)
	require.NoError(t, err)
	pb.Bytes = pb.Bytes[:len(pb.Bytes)-4]
	_, err = PrepareUpload(pb, 4)
	assert.ErrorIs(t, err, layout.ErrCorruptBuffer)
}

func TestImageFromBytes(t *testing.T) {
	data := make([]byte, 2*1*16)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(float32(i)/8))
	}
	img, err := imageFromBytes(2, 1, data)
	require.NoError(t, err)
	assert.Equal(t, [4]float32{0, 0.125, 0.25, 0.375}, img.At(0, 0))
	assert.Equal(t, [4]float32{0.5, 0.625, 0.75, 0.875}, img.At(1, 0))

	_, err = imageFromBytes(2, 2, data)
	assert.Error(t, err)
}

func TestAlign4(t *testing.T) {
	assert.Equal(t, uint64(0), align4(0))
	assert.Equal(t, uint64(4), align4(1))
	assert.Equal(t, uint64(16), align4(16))
	assert.Equal(t, uint64(20), align4(17))
}
