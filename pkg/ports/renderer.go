package ports

import (
	"context"

	"github.com/aretw0/diagramflow/pkg/domain"
)

// RenderRequest is a single call to the rendering engine.
type RenderRequest struct {
	// ID is unique per call so engine-side element ids never collide.
	ID     string
	Source string
	Theme  domain.Theme
}

// Renderer turns diagram source into markup (SVG).
// An error means the engine rejected the source or failed internally.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(ctx context.Context, req RenderRequest) (string, error)

func (f RendererFunc) Render(ctx context.Context, req RenderRequest) (string, error) {
	return f(ctx, req)
}
