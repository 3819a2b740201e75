package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// GpuBufferManager owns the buffers of the ray trace pass and grows them on
// demand. Buffers are reused across dispatches while they are large enough.
type GpuBufferManager struct {
	Device *wgpu.Device

	ParamsBuf   *wgpu.Buffer
	SceneBuf    *wgpu.Buffer
	NodesBuf    *wgpu.Buffer
	OutputBuf   *wgpu.Buffer
	ReadbackBuf *wgpu.Buffer

	BindGroup0 *wgpu.BindGroup
}

func NewGpuBufferManager(device *wgpu.Device) *GpuBufferManager {
	return &GpuBufferManager{Device: device}
}

func align4(n uint64) uint64 {
	if n%4 != 0 {
		n += 4 - (n % 4)
	}
	return n
}

// ensureBuffer makes *buf at least size bytes and uploads data if any. It
// reports whether the buffer was recreated, which invalidates bind groups.
func (m *GpuBufferManager) ensureBuffer(name string, buf **wgpu.Buffer, size uint64, data []byte, usage wgpu.BufferUsage) (bool, error) {
	neededSize := align4(max(size, uint64(len(data))))

	recreated := false
	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}
		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            name,
			Size:             neededSize,
			Usage:            usage,
			MappedAtCreation: false,
		})
		if err != nil {
			*buf = nil
			return false, fmt.Errorf("gpu: create %s: %w", name, err)
		}
		*buf = newBuf
		recreated = true
	}

	if len(data) > 0 {
		m.Device.GetQueue().WriteBuffer(*buf, 0, data)
	}
	return recreated, nil
}

// Upload writes every input of u and sizes the output and readback buffers.
func (m *GpuBufferManager) Upload(u Upload) (bool, error) {
	changed := false
	steps := []struct {
		name  string
		buf   **wgpu.Buffer
		size  uint64
		data  []byte
		usage wgpu.BufferUsage
	}{
		{"ParamsBuf", &m.ParamsBuf, ParamsSize, u.Params, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		{"SceneBuf", &m.SceneBuf, 0, u.Scene, wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
		{"NodesBuf", &m.NodesBuf, 0, u.Nodes, wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
		{"OutputBuf", &m.OutputBuf, u.OutputSize(), nil, wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc},
		{"ReadbackBuf", &m.ReadbackBuf, u.OutputSize(), nil, wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst},
	}
	for _, s := range steps {
		recreated, err := m.ensureBuffer(s.name, s.buf, s.size, s.data, s.usage)
		if err != nil {
			return false, err
		}
		changed = changed || recreated
	}
	return changed, nil
}

func (m *GpuBufferManager) CreateBindGroups(pipeline *wgpu.ComputePipeline) error {
	if m.BindGroup0 != nil {
		m.BindGroup0.Release()
	}
	entries0 := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: m.ParamsBuf, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: m.SceneBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: m.OutputBuf, Size: wgpu.WholeSize},
		{Binding: 3, Buffer: m.NodesBuf, Size: wgpu.WholeSize},
	}
	var err error
	m.BindGroup0, err = m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Raytrace BG0",
		Layout:  pipeline.GetBindGroupLayout(0),
		Entries: entries0,
	})
	if err != nil {
		return fmt.Errorf("gpu: bind group: %w", err)
	}
	return nil
}

func (m *GpuBufferManager) Release() {
	if m.BindGroup0 != nil {
		m.BindGroup0.Release()
		m.BindGroup0 = nil
	}
	for _, b := range []**wgpu.Buffer{&m.ParamsBuf, &m.SceneBuf, &m.NodesBuf, &m.OutputBuf, &m.ReadbackBuf} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
}
