// Package gpu runs the ray trace compute shader over a packed scene and reads
// the image back to the host.
package gpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/spherert/rt/core"
	"github.com/gekko3d/spherert/rt/layout"
	"github.com/gekko3d/spherert/rt/shaders"
)

const (
	DefaultMaxDepth = 4
	workgroupSize   = 8
)

var ErrReadback = errors.New("output readback failed")

// Logger is the subset of spherert.Logger the executor writes to.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

type Option func(*Executor)

// WithMaxDepth bounds reflection and refraction bounces. The shader keeps a
// fixed ray stack, so very deep trees lose their faintest branches.
func WithMaxDepth(depth int) Option {
	return func(e *Executor) {
		e.maxDepth = uint32(max(depth, 0))
	}
}

func WithLogger(l Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDevice runs on an existing device instead of requesting a headless one.
// The executor does not release a device it did not create.
func WithDevice(device *wgpu.Device) Option {
	return func(e *Executor) {
		e.Device = device
	}
}

// Executor owns a compute pipeline and the buffers it dispatches with.
// Execute calls are serialized.
type Executor struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	Pipeline      *wgpu.ComputePipeline
	BufferManager *GpuBufferManager

	mu         sync.Mutex
	maxDepth   uint32
	logger     Logger
	ownsDevice bool
}

// NewExecutor requests an adapter and device unless WithDevice is given, then
// compiles the ray trace shader.
func NewExecutor(opts ...Option) (*Executor, error) {
	e := &Executor{
		maxDepth: DefaultMaxDepth,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.Device == nil {
		e.Instance = wgpu.CreateInstance(nil)
		adapter, err := e.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		if err != nil {
			e.Release()
			return nil, fmt.Errorf("gpu: request adapter: %w", err)
		}
		e.Adapter = adapter

		e.Device, err = adapter.RequestDevice(nil)
		if err != nil {
			e.Release()
			return nil, fmt.Errorf("gpu: request device: %w", err)
		}
		e.ownsDevice = true
	}
	e.Queue = e.Device.GetQueue()

	csModule, err := e.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Raytrace CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RaytraceWGSL},
	})
	if err != nil {
		e.Release()
		return nil, fmt.Errorf("gpu: shader module: %w", err)
	}
	defer csModule.Release()

	// Layout auto
	e.Pipeline, err = e.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Raytrace Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     csModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		e.Release()
		return nil, fmt.Errorf("gpu: compute pipeline: %w", err)
	}

	e.BufferManager = NewGpuBufferManager(e.Device)
	return e, nil
}

func (e *Executor) MaxDepth() int { return int(e.maxDepth) }

// Execute uploads pb, dispatches one invocation per pixel and blocks until
// the output has been copied back.
func (e *Executor) Execute(pb layout.PackedBuffer) (*core.ImageBuffer, error) {
	start := time.Now()
	u, err := PrepareUpload(pb, e.maxDepth)
	if err != nil {
		return nil, err
	}
	if u.Width == 0 || u.Height == 0 {
		return core.NewImageBuffer(u.Width, u.Height), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.BufferManager
	recreated, err := m.Upload(u)
	if err != nil {
		return nil, err
	}
	if recreated || m.BindGroup0 == nil {
		if err := m.CreateBindGroups(e.Pipeline); err != nil {
			return nil, err
		}
	}

	encoder, err := e.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: command encoder: %w", err)
	}

	cPass := encoder.BeginComputePass(nil)
	cPass.SetPipeline(e.Pipeline)
	cPass.SetBindGroup(0, m.BindGroup0, nil)

	// Dispatch
	wgX := (u.Width + workgroupSize - 1) / workgroupSize
	wgY := (u.Height + workgroupSize - 1) / workgroupSize
	cPass.DispatchWorkgroups(wgX, wgY, 1)
	if err := cPass.End(); err != nil {
		return nil, fmt.Errorf("gpu: compute pass: %w", err)
	}

	size := u.OutputSize()
	encoder.CopyBufferToBuffer(m.OutputBuf, 0, m.ReadbackBuf, 0, size)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: encoder finish: %w", err)
	}
	e.Queue.Submit(cmd)

	img, err := e.readback(u.Width, u.Height, size)
	if err != nil {
		return nil, err
	}
	e.logger.Debugf("traced %dx%d in %d workgroups in %s",
		u.Width, u.Height, wgX*wgY, time.Since(start))
	return img, nil
}

func (e *Executor) readback(width, height uint32, size uint64) (*core.ImageBuffer, error) {
	m := e.BufferManager
	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	m.ReadbackBuf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})

	var status wgpu.BufferMapAsyncStatus
	for waiting := true; waiting; {
		e.Device.Poll(true, nil)
		select {
		case status = <-done:
			waiting = false
		default:
		}
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("gpu: map status %v: %w", status, ErrReadback)
	}
	defer m.ReadbackBuf.Unmap()

	data := m.ReadbackBuf.GetMappedRange(0, uint(size))
	return imageFromBytes(width, height, data)
}

// Release frees the pipeline, the buffers and, if the executor created it,
// the device.
func (e *Executor) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.BufferManager != nil {
		e.BufferManager.Release()
		e.BufferManager = nil
	}
	if e.Pipeline != nil {
		e.Pipeline.Release()
		e.Pipeline = nil
	}
	if e.ownsDevice && e.Device != nil {
		e.Device.Release()
		e.Device = nil
	}
	if e.Adapter != nil {
		e.Adapter.Release()
		e.Adapter = nil
	}
	if e.Instance != nil {
		e.Instance.Release()
		e.Instance = nil
	}
}
