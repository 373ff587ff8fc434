// Package vector exports rendered SVG markup as-is.
package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Rasterizer passes vector markup through, prefixing an XML declaration when missing.
type Rasterizer struct{}

// New returns a passthrough rasterizer.
func New() Rasterizer {
	return Rasterizer{}
}

func (Rasterizer) Rasterize(ctx context.Context, s ports.Surface, opts ports.RasterOptions) ([]byte, error) {
	if opts.Format != domain.FormatVector {
		return nil, fmt.Errorf("vector rasterizer cannot encode %q", opts.Format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	markup := strings.TrimSpace(s.Markup())
	if !strings.HasPrefix(markup, "<svg") && !strings.HasPrefix(markup, "<?xml") {
		return nil, fmt.Errorf("surface does not contain svg markup")
	}
	if !strings.HasPrefix(markup, "<?xml") {
		markup = xmlHeader + markup
	}
	return []byte(markup), nil
}
