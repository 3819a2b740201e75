package spherert

import (
	"github.com/gekko3d/spherert/rt/cpu"
	"github.com/gekko3d/spherert/rt/layout"
)

type RendererBuilder struct {
	renderer *Renderer
}

func NewRendererBuilder() *RendererBuilder {
	return &RendererBuilder{renderer: &Renderer{
		codec:  layout.Codec{Policy: layout.PolicyPadded},
		logger: NewNopLogger(),
	}}
}

func (b *RendererBuilder) UseExecutor(e Executor) *RendererBuilder {
	b.renderer.executor = e

	return b
}

func (b *RendererBuilder) UseLogger(l Logger) *RendererBuilder {
	if l != nil {
		b.renderer.logger = l.With(ComponentRenderer)
	}

	return b
}

func (b *RendererBuilder) UseCodec(c layout.Codec) *RendererBuilder {
	b.renderer.codec = c

	return b
}

// Build returns the configured Renderer. Without UseExecutor it renders on a
// CPU executor that logs through the renderer's logger.
func (b *RendererBuilder) Build() *Renderer {
	r := b.renderer
	if r.executor == nil {
		r.executor = cpu.NewExecutor(cpu.WithLogger(r.logger.With(ComponentCPU)))
	}

	return r
}
