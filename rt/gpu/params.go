package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/spherert/rt/bvh"
	"github.com/gekko3d/spherert/rt/core"
	"github.com/gekko3d/spherert/rt/layout"
)

// ErrUnsupportedPolicy is returned for buffers the shader cannot read.
// raytrace.wgsl indexes the scene with the padded record strides.
var ErrUnsupportedPolicy = errors.New("unsupported layout policy")

// Matches WGSL Params
// struct Params {
//    eye : vec4<f32>; (16)
//    ray00, ray01, ray10, ray11 : vec4<f32>; (64)
//    width, height, max_depth, pad : u32; (16)
//    background : vec4<f32>; (16)
//    pad : vec4<f32>; (16)
// }; -> 128 bytes

const ParamsSize = 128

// Upload is everything the compute pass needs, already in GPU byte order.
type Upload struct {
	Params []byte
	Scene  []byte
	Nodes  []byte
	Width  uint32
	Height uint32
}

// OutputSize is the byte size of the vec4<f32> output buffer.
func (u Upload) OutputSize() uint64 {
	return uint64(u.Width) * uint64(u.Height) * 16
}

func putVec4(buf []byte, v core.Vec4f) {
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

// PackParams fills the uniform block for one dispatch.
func PackParams(viewport core.Viewport, camera core.Camera, maxDepth uint32, background core.Vec4f) []byte {
	buf := make([]byte, ParamsSize)
	rays := camera.Frustum(viewport.Aspect())

	putVec4(buf[0:16], camera.Position.Vec4(1))
	putVec4(buf[16:32], rays.Ray00.Vec4(0))
	putVec4(buf[32:48], rays.Ray01.Vec4(0))
	putVec4(buf[48:64], rays.Ray10.Vec4(0))
	putVec4(buf[64:80], rays.Ray11.Vec4(0))

	binary.LittleEndian.PutUint32(buf[80:84], viewport.Width)
	binary.LittleEndian.PutUint32(buf[84:88], viewport.Height)
	binary.LittleEndian.PutUint32(buf[88:92], maxDepth)

	putVec4(buf[96:112], background)
	return buf
}

// PrepareUpload validates pb and derives the uniform and BVH bytes from it.
// The scene bytes are uploaded unchanged.
func PrepareUpload(pb layout.PackedBuffer, maxDepth uint32) (Upload, error) {
	if pb.Header.Policy != layout.PolicyPadded {
		return Upload{}, fmt.Errorf("gpu: %v buffer: %w", pb.Header.Policy, ErrUnsupportedPolicy)
	}
	s, err := layout.Decode(pb)
	if err != nil {
		return Upload{}, fmt.Errorf("gpu: %w", err)
	}
	vp := s.Viewport()
	return Upload{
		Params: PackParams(vp, s.Camera(), maxDepth, core.Vec4f{0, 0, 0, 1}),
		Scene:  pb.Bytes,
		Nodes:  bvh.Build(s.Spheres()).ToBytes(),
		Width:  vp.Width,
		Height: vp.Height,
	}, nil
}

// imageFromBytes copies the mapped output buffer into an ImageBuffer.
func imageFromBytes(width, height uint32, data []byte) (*core.ImageBuffer, error) {
	img := core.NewImageBuffer(width, height)
	if len(data) < len(img.Pix)*4 {
		return nil, fmt.Errorf("gpu: readback of %d bytes, want %d", len(data), len(img.Pix)*4)
	}
	for i := range img.Pix {
		img.Pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return img, nil
}
