// Package cpu renders packed scenes on the host. It is the reference the
// compute shader is checked against and the fallback when no GPU adapter is
// available.
package cpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/spherert/rt/core"
	"github.com/gekko3d/spherert/rt/layout"
)

const DefaultMaxDepth = 4

var ErrReleased = errors.New("cpu: executor released")

// Logger is the subset of spherert.Logger the executor writes to.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Executor decodes a PackedBuffer and ray traces it one row per task. A
// single Executor may be used from several goroutines. Its worker pool is
// started on the first Execute and lives until Release.
type Executor struct {
	maxDepth int
	workers  int
	logger   Logger

	mu       sync.Mutex
	pool     worker.DynamicWorkerPool
	released bool
}

type Option func(*Executor)

// WithMaxDepth bounds reflection and refraction bounces.
func WithMaxDepth(depth int) Option {
	return func(e *Executor) {
		e.maxDepth = depth
	}
}

// WithWorkers sets the worker pool size. Values below 1 mean one worker.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		e.workers = max(n, 1)
	}
}

func WithLogger(l Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		maxDepth: DefaultMaxDepth,
		workers:  max(runtime.NumCPU()-1, 1),
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) MaxDepth() int { return e.maxDepth }

func (e *Executor) Workers() int { return e.workers }

// workerPool returns the shared pool, starting it on first use.
func (e *Executor) workerPool() (worker.DynamicWorkerPool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil, ErrReleased
	}
	if e.pool == nil {
		e.pool = worker.NewDynamicWorkerPool(e.workers, 256, 1*time.Second)
		e.logger.Debugf("started %d workers", e.workers)
	}
	return e.pool, nil
}

// Release stops the worker pool. It must not overlap an Execute call;
// Execute fails with ErrReleased afterwards.
func (e *Executor) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	if e.pool != nil {
		e.pool.Stop()
		e.pool = nil
	}
}

// Execute renders pb at its header viewport. It blocks until every row is
// done.
func (e *Executor) Execute(pb layout.PackedBuffer) (*core.ImageBuffer, error) {
	start := time.Now()
	s, err := layout.Decode(pb)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	pool, err := e.workerPool()
	if err != nil {
		return nil, err
	}
	tr := newTracer(s, e.maxDepth)

	vp := s.Viewport()
	img := core.NewImageBuffer(vp.Width, vp.Height)
	cam := s.Camera()
	rays := cam.Frustum(vp.Aspect())
	eye := cam.Position

	var wg sync.WaitGroup
	for y := 0; y < int(vp.Height); y++ {
		wg.Add(1)
		row := y
		pool.SubmitTask(worker.Task{
			ID: row,
			Do: func() (any, error) {
				defer wg.Done()
				v := 1 - (float32(row)+0.5)/float32(vp.Height)
				for x := 0; x < int(vp.Width); x++ {
					u := (float32(x) + 0.5) / float32(vp.Width)
					c := tr.trace(eye, rays.At(u, v), 0)
					img.Set(x, row, [4]float32{c[0], c[1], c[2], 1})
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	e.logger.Debugf("traced %dx%d, %d spheres, %d planes, %d lights in %s",
		vp.Width, vp.Height, s.SphereCount(), s.PlaneCount(), s.LightCount(), time.Since(start))
	return img, nil
}
