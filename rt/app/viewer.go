// Package app shows rendered frames in a window and times the stages that
// produce them.
package app

import (
	"fmt"
	"image"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/spherert/rt/core"
	"github.com/gekko3d/spherert/rt/shaders"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// Viewer blits the last frame handed to SetFrame onto a glfw window. Frames
// are stretched to the framebuffer with linear filtering.
type Viewer struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	RenderPipeline *wgpu.RenderPipeline
	Sampler        *wgpu.Sampler

	FrameTexture *wgpu.Texture
	FrameView    *wgpu.TextureView
	RenderBG     *wgpu.BindGroup
	frameW       uint32
	frameH       uint32

	// OnRerender is called when R is pressed. A non-nil frame replaces the
	// one on screen.
	OnRerender func() (*image.NRGBA, error)

	// Camera is flown with WASD, Space/Ctrl and, once Tab captures the
	// cursor, the mouse. OnCameraMove re-traces from the new pose.
	Camera       core.Camera
	Fly          FlyCamera
	OnCameraMove func(core.Camera) (*image.NRGBA, error)

	captured   bool
	lastCursor mgl32.Vec2
}

func NewViewer(window *glfw.Window) *Viewer {
	return &Viewer{Window: window, Fly: NewFlyCamera()}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}

func (v *Viewer) Init() error {
	v.Instance = wgpu.CreateInstance(nil)

	surface := v.Instance.CreateSurface(GetSurfaceDescriptor(v.Window))
	v.Surface = surface

	adapter, err := v.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	v.Adapter = adapter

	v.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	v.Queue = v.Device.GetQueue()

	width, height := v.Window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	v.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, v.Device, v.Config)

	fsModule, err := v.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL},
	})
	if err != nil {
		return err
	}
	defer fsModule.Release()

	v.RenderPipeline, err = v.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     fsModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	v.Sampler, err = v.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	// A 1x1 black frame until the first SetFrame.
	return v.SetFrame(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
}

func (v *Viewer) setupFrameTexture(w, h uint32) error {
	if v.FrameTexture != nil && v.frameW == w && v.frameH == h {
		return nil
	}
	if v.FrameView != nil {
		v.FrameView.Release()
	}
	if v.FrameTexture != nil {
		v.FrameTexture.Release()
	}

	var err error
	v.FrameTexture, err = v.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Frame Tex",
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("viewer: frame texture: %w", err)
	}
	v.FrameView, err = v.FrameTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("viewer: frame view: %w", err)
	}
	v.frameW, v.frameH = w, h

	if v.RenderBG != nil {
		v.RenderBG.Release()
	}
	v.RenderBG, err = v.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: v.RenderPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: v.FrameView},
			{Binding: 1, Sampler: v.Sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("viewer: blit bind group: %w", err)
	}
	return nil
}

// SetFrame uploads img; the texture is recreated when the size changes.
func (v *Viewer) SetFrame(img *image.NRGBA) error {
	b := img.Bounds()
	w, h := uint32(b.Dx()), uint32(b.Dy())
	if w == 0 || h == 0 {
		return nil
	}
	if err := v.setupFrameTexture(w, h); err != nil {
		return err
	}
	v.Queue.WriteTexture(v.FrameTexture.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: h,
	}, &wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1})
	return nil
}

func (v *Viewer) Resize(w, h int) {
	if w > 0 && h > 0 {
		v.Config.Width = uint32(w)
		v.Config.Height = uint32(h)
		v.Surface.Configure(v.Adapter, v.Device, v.Config)
	}
}

func (v *Viewer) Render() error {
	nextTexture, err := v.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("viewer: current texture: %w", err)
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("viewer: surface view: %w", err)
	}
	defer view.Release()

	encoder, err := v.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("viewer: command encoder: %w", err)
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	rPass.SetPipeline(v.RenderPipeline)
	rPass.SetBindGroup(0, v.RenderBG, nil)
	rPass.Draw(3, 1, 0, 0)
	if err := rPass.End(); err != nil {
		return fmt.Errorf("viewer: render pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("viewer: encoder finish: %w", err)
	}
	v.Queue.Submit(cmd)
	v.Surface.Present()
	return nil
}

func (v *Viewer) setCaptured(on bool) {
	v.captured = on
	mode := glfw.CursorNormal
	if on {
		mode = glfw.CursorDisabled
	}
	v.Window.SetInputMode(glfw.CursorMode, mode)
	x, y := v.Window.GetCursorPos()
	v.lastCursor = mgl32.Vec2{float32(x), float32(y)}
}

// flyInput samples the held movement keys and, while captured, the cursor
// delta since the previous call.
func (v *Viewer) flyInput() FlyInput {
	var in FlyInput
	held := func(k glfw.Key) bool { return v.Window.GetKey(k) == glfw.Press }
	if held(glfw.KeyW) {
		in.Move[2] += 1
	}
	if held(glfw.KeyS) {
		in.Move[2] -= 1
	}
	if held(glfw.KeyA) {
		in.Move[0] -= 1
	}
	if held(glfw.KeyD) {
		in.Move[0] += 1
	}
	if held(glfw.KeySpace) {
		in.Move[1] += 1
	}
	if held(glfw.KeyLeftControl) {
		in.Move[1] -= 1
	}
	if v.captured {
		x, y := v.Window.GetCursorPos()
		cur := mgl32.Vec2{float32(x), float32(y)}
		in.Look = cur.Sub(v.lastCursor)
		v.lastCursor = cur
	}
	return in
}

// Run installs the window callbacks and draws until the window closes.
// Escape closes the window, R calls OnRerender, Tab toggles mouse look and
// the movement keys fly Camera through OnCameraMove.
func (v *Viewer) Run() error {
	v.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		v.Resize(width, height)
	})

	var callbackErr error
	replace := func(img *image.NRGBA, err error) {
		if err != nil {
			callbackErr = err
			v.Window.SetShouldClose(true)
			return
		}
		if img != nil {
			callbackErr = v.SetFrame(img)
		}
	}

	v.Window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyTab:
			v.setCaptured(!v.captured)
		case glfw.KeyR:
			if v.OnRerender != nil {
				replace(v.OnRerender())
			}
		}
	})

	last := time.Now()
	for !v.Window.ShouldClose() {
		glfw.PollEvents()

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if v.OnCameraMove != nil {
			if cam, moved := v.Fly.Apply(v.Camera, v.flyInput(), dt); moved {
				v.Camera = cam
				replace(v.OnCameraMove(cam))
			}
		}

		if err := v.Render(); err != nil {
			return err
		}
	}
	return callbackErr
}

func (v *Viewer) Release() {
	if v.RenderBG != nil {
		v.RenderBG.Release()
	}
	if v.FrameView != nil {
		v.FrameView.Release()
	}
	if v.FrameTexture != nil {
		v.FrameTexture.Release()
	}
	if v.Sampler != nil {
		v.Sampler.Release()
	}
	if v.RenderPipeline != nil {
		v.RenderPipeline.Release()
	}
	if v.Device != nil {
		v.Device.Release()
	}
	if v.Adapter != nil {
		v.Adapter.Release()
	}
	if v.Surface != nil {
		v.Surface.Release()
	}
	if v.Instance != nil {
		v.Instance.Release()
	}
}
