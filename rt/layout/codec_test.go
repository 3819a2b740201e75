package layout

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/gekko3d/spherert/rt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMaterial(t *testing.T, shiny, refl float32) core.Material {
	t.Helper()
	m, err := core.NewMaterial(core.Vec3f{0.1, 0.2, 0.3}, core.Vec3f{0.4, 0.5, 0.6}, core.Vec3f{1, 1, 1}, shiny, refl, 0.25)
	require.NoError(t, err)
	return m
}

// exampleScene has 1 light, 2 materials, 1 plane and 3 spheres.
func exampleScene(t *testing.T) *core.Scene {
	t.Helper()
	s, err := core.NewScene(core.Viewport{Width: 320, Height: 200}, core.DefaultCamera())
	require.NoError(t, err)

	ground, err := s.AddMaterial(mustMaterial(t, 10, 0.05))
	require.NoError(t, err)
	shiny, err := s.AddMaterial(mustMaterial(t, 300, 1))
	require.NoError(t, err)

	l, err := core.NewLight(core.Vec4f{35, 20, -35, 0}, core.Vec3f{0.5, 0.5, 0.5}, core.Vec3f{0.7, 0.8, 0.9}, core.Vec3f{1, 1, 1})
	require.NoError(t, err)
	_, err = s.AddLight(l)
	require.NoError(t, err)

	_, err = s.AddPlane(core.Vec3f{0, -6, 0}, core.Vec3f{0, 1, 0.001}, ground)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = s.AddSphere(core.Vec3f{float32(i) * 10.5, 1.25, -3}, 5+float32(i)*1.1, shiny)
		require.NoError(t, err)
	}
	require.NoError(t, s.Finalize())
	return s
}

func TestRecordSizes(t *testing.T) {
	padded := Codec{Policy: PolicyPadded}.Sizes()
	assert.Equal(t, Sizes{Material: 64, Light: 64, Plane: 48, Sphere: 32}, padded)

	packed := Codec{Policy: PolicyPacked}.Sizes()
	assert.Equal(t, Sizes{Material: 48, Light: 64, Plane: 32, Sphere: 32}, packed)

	for _, sz := range []int{padded.Material, padded.Light, padded.Plane, padded.Sphere,
		packed.Material, packed.Light, packed.Plane, packed.Sphere} {
		assert.Zero(t, sz%RecordAlign)
	}
}

func TestEncodeExampleScene(t *testing.T) {
	s := exampleScene(t)
	pb, err := Encode(s)
	require.NoError(t, err)

	sz := pb.Header.Sizes
	want := 16 + 2*sz.Material + 1*sz.Light + 1*sz.Plane + 3*sz.Sphere
	assert.Equal(t, want, pb.Len())
	assert.Equal(t, want, pb.Header.Size())

	// Header counts are sphere, plane, material, light.
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(pb.Bytes[0:4]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(pb.Bytes[4:8]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(pb.Bytes[8:12]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(pb.Bytes[12:16]))

	assert.Equal(t, 16, pb.Header.MaterialOffset)
	assert.Equal(t, 16+2*64, pb.Header.LightOffset)
	assert.Equal(t, 16+2*64+64, pb.Header.PlaneOffset)
	assert.Equal(t, 16+2*64+64+48, pb.Header.SphereOffset)
	assert.Equal(t, LayoutVersion, pb.Header.Version)
}

func TestEncodeFieldOffsets(t *testing.T) {
	s := exampleScene(t)
	pb, err := Encode(s)
	require.NoError(t, err)
	b := pb.Bytes
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

	// Material 1: shininess at +48, reflectivity at +52, refractivity at +56.
	m1 := pb.Header.MaterialOffset + 64
	assert.Equal(t, float32(300), f32(m1+48))
	assert.Equal(t, float32(1), f32(m1+52))
	assert.Equal(t, float32(0.25), f32(m1+56))
	assert.Zero(t, u32(m1+12), "vec3 padding must be zero")

	// Light: center vec4 then ambient at +16.
	lo := pb.Header.LightOffset
	assert.Equal(t, float32(35), f32(lo))
	assert.Equal(t, float32(-35), f32(lo+8))
	assert.Equal(t, float32(0.5), f32(lo+16))

	// Plane: material index at +0, point at +16, normal at +32.
	po := pb.Header.PlaneOffset
	assert.Equal(t, uint32(0), u32(po))
	assert.Equal(t, float32(-6), f32(po+20))
	assert.InDelta(t, 1.0, f32(po+36), 1e-5)

	// Sphere 2: center at +0, radius at +16, material at +20.
	so := pb.Header.SphereOffset + 2*32
	assert.Equal(t, float32(21), f32(so))
	assert.InDelta(t, 7.2, f32(so+16), 1e-5)
	assert.Equal(t, uint32(1), u32(so+20))
}

func TestRoundTrip(t *testing.T) {
	for _, policy := range []Policy{PolicyPadded, PolicyPacked} {
		t.Run(policy.String(), func(t *testing.T) {
			codec, err := NewCodec(policy)
			require.NoError(t, err)

			s := exampleScene(t)
			pb, err := codec.Encode(s)
			require.NoError(t, err)

			decoded, err := Decode(pb)
			require.NoError(t, err)
			assert.True(t, decoded.Frozen())
			assert.True(t, s.Equal(decoded), "decoded scene differs from the original")
			assert.Equal(t, s.Spheres(), decoded.Spheres())
			assert.Equal(t, s.Planes(), decoded.Planes())
			assert.Equal(t, s.Materials(), decoded.Materials())
			assert.Equal(t, s.Lights(), decoded.Lights())
			assert.Equal(t, s.Camera(), decoded.Camera())
			assert.Equal(t, s.Viewport(), decoded.Viewport())

			again, err := codec.Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, pb.Bytes, again.Bytes)
		})
	}
}

func TestRoundTripEmptyScene(t *testing.T) {
	s, err := core.NewScene(core.Viewport{Width: 1, Height: 1}, core.DefaultCamera())
	require.NoError(t, err)
	require.NoError(t, s.Finalize())

	pb, err := Encode(s)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize, pb.Len())

	decoded, err := Decode(pb)
	require.NoError(t, err)
	assert.True(t, s.Equal(decoded))
}

func TestEncodeRequiresFinalize(t *testing.T) {
	s, err := core.NewScene(core.Viewport{Width: 8, Height: 8}, core.DefaultCamera())
	require.NoError(t, err)
	_, err = Encode(s)
	assert.ErrorIs(t, err, ErrSceneNotFinalized)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrSceneNotFinalized)
}

func TestCapacity(t *testing.T) {
	s, err := core.NewScene(core.Viewport{Width: 8, Height: 8}, core.DefaultCamera())
	require.NoError(t, err)
	h, err := s.AddMaterial(mustMaterial(t, 10, 0.5))
	require.NoError(t, err)

	for i := 0; i < MaxCount+1; i++ {
		_, err := s.AddSphere(core.Vec3f{float32(i), 0, 0}, 1, h)
		require.NoError(t, err)
	}
	_, err = Encode(s)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.ErrorIs(t, s.Finalize(), core.ErrSceneValidation)

	atMax, err := core.NewScene(core.Viewport{Width: 8, Height: 8}, core.DefaultCamera())
	require.NoError(t, err)
	h, err = atMax.AddMaterial(mustMaterial(t, 10, 0.5))
	require.NoError(t, err)
	for i := 0; i < MaxCount; i++ {
		_, err := atMax.AddSphere(core.Vec3f{float32(i), 0, 0}, 1, h)
		require.NoError(t, err)
	}
	require.NoError(t, atMax.Finalize())
	pb, err := Encode(atMax)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize+64+MaxCount*32, pb.Len())
}

func TestDecodeTruncated(t *testing.T) {
	pb, err := Encode(exampleScene(t))
	require.NoError(t, err)

	pb.Bytes = pb.Bytes[:len(pb.Bytes)-1]
	_, err = Decode(pb)
	assert.ErrorIs(t, err, ErrCorruptBuffer)

	pb.Bytes = pb.Bytes[:8]
	_, err = Decode(pb)
	assert.ErrorIs(t, err, ErrCorruptBuffer)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	fresh := func() PackedBuffer {
		pb, err := Encode(exampleScene(t))
		require.NoError(t, err)
		return pb
	}

	t.Run("count mismatch", func(t *testing.T) {
		pb := fresh()
		binary.LittleEndian.PutUint32(pb.Bytes[0:4], 4)
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
	})

	t.Run("count over maximum", func(t *testing.T) {
		pb := fresh()
		binary.LittleEndian.PutUint32(pb.Bytes[12:16], MaxCount+1)
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
	})

	t.Run("sphere material out of range", func(t *testing.T) {
		pb := fresh()
		binary.LittleEndian.PutUint32(pb.Bytes[pb.Header.SphereOffset+20:], 2)
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
	})

	t.Run("plane material out of range", func(t *testing.T) {
		pb := fresh()
		binary.LittleEndian.PutUint32(pb.Bytes[pb.Header.PlaneOffset:], 9)
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
	})

	t.Run("negative radius", func(t *testing.T) {
		pb := fresh()
		binary.LittleEndian.PutUint32(pb.Bytes[pb.Header.SphereOffset+16:], math.Float32bits(-1))
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
		assert.ErrorIs(t, err, core.ErrInvalidGeometry)
	})

	t.Run("non-zero padding", func(t *testing.T) {
		pb := fresh()
		pb.Bytes[pb.Header.MaterialOffset+12] = 0xff
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
	})

	t.Run("wrong version", func(t *testing.T) {
		pb := fresh()
		pb.Header.Version = LayoutVersion + 1
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
	})

	t.Run("unknown policy", func(t *testing.T) {
		pb := fresh()
		pb.Header.Policy = Policy(7)
		_, err := Decode(pb)
		assert.ErrorIs(t, err, ErrCorruptBuffer)
	})
}

func TestFromBytes(t *testing.T) {
	s := exampleScene(t)
	pb, err := Encode(s)
	require.NoError(t, err)

	raw := append([]byte(nil), pb.Bytes...)
	rebuilt, err := defaultCodec.FromBytes(raw, s.Viewport(), s.Camera())
	require.NoError(t, err)
	assert.Equal(t, pb.Header, rebuilt.Header)

	decoded, err := Decode(rebuilt)
	require.NoError(t, err)
	assert.True(t, s.Equal(decoded))

	_, err = defaultCodec.FromBytes(raw[:10], s.Viewport(), s.Camera())
	assert.ErrorIs(t, err, ErrCorruptBuffer)
}

func TestConcurrentEncodeDecode(t *testing.T) {
	s := exampleScene(t)
	want, err := Encode(s)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pb, err := Encode(s)
			if err != nil {
				errs <- err
				return
			}
			if _, err := Decode(pb); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	again, err := Encode(s)
	require.NoError(t, err)
	assert.Equal(t, want.Bytes, again.Bytes)
}
