// Package spherert packs sphere and plane scenes into GPU-ready buffers and
// hands them to an Executor that ray traces them.
package spherert

import (
	"errors"
	"fmt"

	"github.com/gekko3d/spherert/rt/core"
	"github.com/gekko3d/spherert/rt/layout"
)

var ErrNoExecutor = errors.New("renderer has no executor")

// Executor turns a packed scene into an image. Execute blocks until the
// image is complete and is not cancellable.
type Executor interface {
	Execute(pb layout.PackedBuffer) (*core.ImageBuffer, error)
}

// Renderer encodes finalized scenes with its codec and runs them on its
// executor.
type Renderer struct {
	executor Executor
	codec    layout.Codec
	logger   Logger
}

func (r *Renderer) Codec() layout.Codec { return r.codec }
func (r *Renderer) Logger() Logger      { return r.logger }

// Release frees the executor's resources when it holds any.
func (r *Renderer) Release() {
	if rel, ok := r.executor.(interface{ Release() }); ok {
		rel.Release()
	}
}

// Pack encodes s. s must be finalized.
func (r *Renderer) Pack(s *core.Scene) (layout.PackedBuffer, error) {
	pb, err := r.codec.Encode(s)
	if err != nil {
		return layout.PackedBuffer{}, err
	}
	h := pb.Header
	r.logger.Debugf("packed %d spheres, %d planes, %d materials, %d lights into %d bytes (%v)",
		h.SphereCount, h.PlaneCount, h.MaterialCount, h.LightCount, pb.Len(), h.Policy)
	return pb, nil
}

// Render packs s and executes it.
func (r *Renderer) Render(s *core.Scene) (*core.ImageBuffer, error) {
	pb, err := r.Pack(s)
	if err != nil {
		return nil, err
	}
	return r.Execute(pb)
}

// Execute runs an already packed buffer, for example one read back from a
// dump file.
func (r *Renderer) Execute(pb layout.PackedBuffer) (*core.ImageBuffer, error) {
	if r.executor == nil {
		return nil, ErrNoExecutor
	}
	img, err := r.executor.Execute(pb)
	if err != nil {
		r.logger.Errorf("execute failed: %v", err)
		return nil, fmt.Errorf("spherert: %w", err)
	}
	r.logger.Debugf("executed %dx%d image", img.Width, img.Height)
	return img, nil
}
