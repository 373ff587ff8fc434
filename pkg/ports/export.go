package ports

import (
	"context"

	"github.com/aretw0/diagramflow/pkg/domain"
)

// RasterOptions configure an encoder call.
type RasterOptions struct {
	Format domain.Format
	Width  int
	Height int
	// BackgroundColor is empty for vector output.
	BackgroundColor string
	Quality         float64
}

// Surface is markup mounted off-screen for encoding.
type Surface interface {
	// Markup returns the mounted content.
	Markup() string
	// Path locates the mounted content on disk, for encoders that read files.
	Path() string
}

// Stage mounts markup away from the visible canvas.
// Every Surface returned by Mount must be passed to Unmount.
type Stage interface {
	Mount(ctx context.Context, markup string) (Surface, error)
	Unmount(s Surface) error
}

// Rasterizer encodes a mounted surface into an image payload.
type Rasterizer interface {
	Rasterize(ctx context.Context, s Surface, opts RasterOptions) ([]byte, error)
}

// Sink hands an exported payload to the user (a file download, an HTTP attachment).
type Sink interface {
	Deliver(ctx context.Context, d domain.Download) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, d domain.Download) error

func (f SinkFunc) Deliver(ctx context.Context, d domain.Download) error {
	return f(ctx, d)
}
