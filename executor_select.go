package spherert

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/spherert/rt/cpu"
	"github.com/gekko3d/spherert/rt/gpu"
)

// ExecutorName identifies a concrete executor.
type ExecutorName string

const (
	ExecutorCPU ExecutorName = "cpu"
	ExecutorGPU ExecutorName = "gpu"
)

func ParseExecutorName(s string) (ExecutorName, error) {
	switch ExecutorName(s) {
	case ExecutorCPU, ExecutorGPU:
		return ExecutorName(s), nil
	}
	return "", fmt.Errorf("spherert: unknown executor %q (want cpu or gpu)", s)
}

// ExecutorConfig holds the settings shared by every executor.
type ExecutorConfig struct {
	MaxDepth int
	Workers  int
	Logger   Logger
	// Device is reused by the GPU executor when set, for example the
	// viewer's device.
	Device *wgpu.Device
}

// NewExecutor builds the named executor. When the GPU executor cannot get a
// device it logs a warning and falls back to the CPU. release frees whatever
// the executor holds and is never nil.
func NewExecutor(name ExecutorName, cfg ExecutorConfig) (e Executor, selected ExecutorName, release func(), err error) {
	logger := cfg.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	depth := cfg.MaxDepth
	if depth <= 0 {
		depth = cpu.DefaultMaxDepth
	}

	switch name {
	case ExecutorGPU:
		opts := []gpu.Option{gpu.WithMaxDepth(depth), gpu.WithLogger(logger.With(ComponentGPU))}
		if cfg.Device != nil {
			opts = append(opts, gpu.WithDevice(cfg.Device))
		}
		g, gerr := gpu.NewExecutor(opts...)
		if gerr == nil {
			logger.Infof("Executor selected: %s", ExecutorGPU)
			return g, ExecutorGPU, g.Release, nil
		}
		logger.Warnf("gpu executor unavailable, falling back to cpu: %v", gerr)
	case ExecutorCPU:
	default:
		return nil, "", func() {}, fmt.Errorf("spherert: unknown executor %q", name)
	}

	opts := []cpu.Option{cpu.WithMaxDepth(depth), cpu.WithLogger(logger.With(ComponentCPU))}
	if cfg.Workers > 0 {
		opts = append(opts, cpu.WithWorkers(cfg.Workers))
	}
	c := cpu.NewExecutor(opts...)
	logger.Infof("Executor selected: %s (%d workers)", ExecutorCPU, c.Workers())
	return c, ExecutorCPU, c.Release, nil
}
