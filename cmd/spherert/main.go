package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"runtime"

	"github.com/gekko3d/spherert"
	"github.com/gekko3d/spherert/rt/app"
	"github.com/gekko3d/spherert/rt/builder"
	"github.com/gekko3d/spherert/rt/core"
	"github.com/gekko3d/spherert/rt/imageio"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

type options struct {
	seed        uint64
	spheres     uint
	width       uint
	height      uint
	scene       string
	executor    string
	depth       int
	workers     int
	out         string
	supersample int
	gamma       float64
	ref         string
	dump        string
	describe    string
	window      bool
	debug       bool
	stats       bool
}

func parseFlags() options {
	var o options
	flag.Uint64Var(&o.seed, "seed", 1, "Random scene seed")
	flag.UintVar(&o.spheres, "spheres", 20, "Number of random spheres")
	flag.UintVar(&o.width, "width", 800, "Output width in pixels")
	flag.UintVar(&o.height, "height", 600, "Output height in pixels")
	flag.StringVar(&o.scene, "scene", "", "YAML scene description (replaces the random scene)")
	flag.StringVar(&o.executor, "executor", "cpu", "Executor: cpu or gpu")
	flag.IntVar(&o.depth, "depth", 4, "Maximum reflection/refraction depth")
	flag.IntVar(&o.workers, "workers", 0, "CPU worker count (0 = NumCPU-1)")
	flag.StringVar(&o.out, "out", "", "Write the image here (.png, .webp, .bmp, .tiff)")
	flag.IntVar(&o.supersample, "supersample", 1, "Render at n times the size and downscale")
	flag.Float64Var(&o.gamma, "gamma", 0, "Output gamma (0 = linear)")
	flag.StringVar(&o.ref, "ref", "", "Reference image to compare against (RMSE)")
	flag.StringVar(&o.dump, "dump", "", "Write the raw packed scene bytes here")
	flag.StringVar(&o.describe, "describe", "", "Write the scene as YAML here")
	flag.BoolVar(&o.window, "window", false, "Show the result in a window")
	flag.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&o.stats, "stats", false, "Print timings and counts")
	flag.Parse()
	return o
}

// sceneFor builds the scene for seed at supersampled resolution. A non-nil
// cam replaces the scene's own camera.
func sceneFor(o options, seed uint64, cam *core.Camera) (*core.Scene, error) {
	ss := uint32(max(o.supersample, 1))
	if o.scene != "" {
		desc, err := builder.LoadDescription(o.scene)
		if err != nil {
			return nil, err
		}
		desc.Viewport.Width *= ss
		desc.Viewport.Height *= ss
		if cam != nil {
			desc = desc.WithCamera(*cam)
		}
		return builder.BuildFromDescription(desc)
	}
	vp := core.Viewport{Width: uint32(o.width) * ss, Height: uint32(o.height) * ss}
	var opts []builder.Option
	if cam != nil {
		opts = append(opts, builder.WithCamera(*cam))
	}
	return builder.BuildRandom(seed, uint32(o.spheres), vp, opts...)
}

type session struct {
	opts     options
	logger   spherert.Logger
	profiler *app.Profiler
	renderer *spherert.Renderer
	camera   *core.Camera
}

// frame builds, packs and renders one scene and returns the 8-bit result.
func (s *session) frame(seed uint64, first bool) (*image.NRGBA, error) {
	s.profiler.Reset()

	end := s.profiler.Scope("build")
	scene, err := sceneFor(s.opts, seed, s.camera)
	end()
	if err != nil {
		return nil, err
	}
	cam := scene.Camera()
	s.camera = &cam
	s.profiler.SetCount("spheres", scene.SphereCount())
	s.profiler.SetCount("planes", scene.PlaneCount())
	s.profiler.SetCount("materials", scene.MaterialCount())
	s.profiler.SetCount("lights", scene.LightCount())

	end = s.profiler.Scope("encode")
	pb, err := s.renderer.Pack(scene)
	end()
	if err != nil {
		return nil, err
	}
	s.profiler.SetCount("bytes", pb.Len())

	if first && s.opts.dump != "" {
		if err := os.WriteFile(s.opts.dump, pb.Bytes, 0644); err != nil {
			return nil, err
		}
		s.logger.Infof("wrote %d packed bytes to %s", pb.Len(), s.opts.dump)
	}
	if first && s.opts.describe != "" {
		data, err := builder.Describe(scene).Marshal()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(s.opts.describe, data, 0644); err != nil {
			return nil, err
		}
	}

	end = s.profiler.Scope("execute")
	img, err := s.renderer.Execute(pb)
	end()
	if err != nil {
		return nil, err
	}

	end = s.profiler.Scope("resolve")
	out := imageio.Downsample(imageio.ToNRGBA(img, s.opts.gamma), s.opts.supersample)
	end()

	if s.opts.stats {
		fmt.Print(s.profiler.GetStatsString())
	}
	return out, nil
}

func (s *session) finish(img *image.NRGBA) error {
	if s.opts.out != "" {
		if err := imageio.Save(s.opts.out, img); err != nil {
			return err
		}
		s.logger.Infof("wrote %s", s.opts.out)
	}
	if s.opts.ref != "" {
		ref, err := imageio.LoadReference(s.opts.ref)
		if err != nil {
			return err
		}
		rmse, err := imageio.RMSE(img, ref)
		if err != nil {
			return err
		}
		s.logger.Infof("RMSE against %s: %.6f", s.opts.ref, rmse)
	}
	return nil
}

func run(o options) error {
	logger := spherert.NewDefaultLogger("spherert", o.debug)
	name, err := spherert.ParseExecutorName(o.executor)
	if err != nil {
		return err
	}
	cfg := spherert.ExecutorConfig{MaxDepth: o.depth, Workers: o.workers, Logger: logger}

	var viewer *app.Viewer
	if o.window {
		if err := glfw.Init(); err != nil {
			return err
		}
		defer glfw.Terminate()

		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
		window, err := glfw.CreateWindow(int(o.width), int(o.height), "spherert", nil, nil)
		if err != nil {
			return err
		}
		defer window.Destroy()

		viewer = app.NewViewer(window)
		if err := viewer.Init(); err != nil {
			return err
		}
		defer viewer.Release()
		cfg.Device = viewer.Device
	}

	executor, _, release, err := spherert.NewExecutor(name, cfg)
	if err != nil {
		return err
	}
	defer release()

	s := &session{
		opts:     o,
		logger:   logger,
		profiler: app.NewProfiler(),
		renderer: spherert.NewRendererBuilder().UseExecutor(executor).UseLogger(logger).Build(),
	}

	img, err := s.frame(o.seed, true)
	if err != nil {
		return err
	}
	if err := s.finish(img); err != nil {
		return err
	}
	if viewer == nil {
		return nil
	}

	if err := viewer.SetFrame(img); err != nil {
		return err
	}
	seed := o.seed
	viewer.Camera = *s.camera
	viewer.OnRerender = func() (*image.NRGBA, error) {
		seed++
		logger.Infof("re-rendering with seed %d", seed)
		return s.frame(seed, false)
	}
	viewer.OnCameraMove = func(cam core.Camera) (*image.NRGBA, error) {
		s.camera = &cam
		logger.Debugf("camera at %v yaw %.1f pitch %.1f", cam.Position, cam.Yaw, cam.Pitch)
		return s.frame(seed, false)
	}
	return viewer.Run()
}

func main() {
	o := parseFlags()
	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "spherert: %v\n", err)
		os.Exit(1)
	}
}
