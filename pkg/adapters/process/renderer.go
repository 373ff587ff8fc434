package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
)

// Renderer renders diagram source by running the "render" tool on a scratch file.
type Renderer struct {
	runner  *Runner
	tool    string
	tempDir string
}

// NewRenderer creates a renderer using runner's render tool.
// tempDir holds per-call scratch directories; empty means os.TempDir().
func NewRenderer(runner *Runner, tempDir string) *Renderer {
	return &Renderer{runner: runner, tool: ToolRender, tempDir: tempDir}
}

func (r *Renderer) Render(ctx context.Context, req ports.RenderRequest) (string, error) {
	dir, err := os.MkdirTemp(r.tempDir, "render-")
	if err != nil {
		return "", fmt.Errorf("failed to create render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "diagram.mmd")
	output := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(input, []byte(req.Source), 0600); err != nil {
		return "", fmt.Errorf("failed to write render input: %w", err)
	}

	stdout, err := r.runner.Run(ctx, r.tool, map[string]string{
		"id":            req.ID,
		"input":         input,
		"output":        output,
		"theme":         string(req.Theme),
		"mermaid_theme": mermaidTheme(req.Theme),
	})
	if err != nil {
		return "", err
	}

	markup, err := os.ReadFile(output)
	if os.IsNotExist(err) && len(stdout) > 0 {
		// Tools that print the SVG instead of writing {output}.
		return string(stdout), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read render output: %w", err)
	}
	return string(markup), nil
}

func mermaidTheme(t domain.Theme) string {
	if t == domain.ThemeDark {
		return "dark"
	}
	return "default"
}

// Rasterizer encodes a mounted surface by running a rasterize tool.
type Rasterizer struct {
	runner  *Runner
	tool    string
	tempDir string
}

// NewRasterizer creates a rasterizer running tool (ToolRasterizePNG, ToolRasterizeSVG or a custom name).
func NewRasterizer(runner *Runner, tool, tempDir string) *Rasterizer {
	return &Rasterizer{runner: runner, tool: tool, tempDir: tempDir}
}

func (r *Rasterizer) Rasterize(ctx context.Context, s ports.Surface, opts ports.RasterOptions) ([]byte, error) {
	dir, err := os.MkdirTemp(r.tempDir, "raster-")
	if err != nil {
		return nil, fmt.Errorf("failed to create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := s.Path()
	if input == "" {
		input = filepath.Join(dir, "surface.svg")
		if err := os.WriteFile(input, []byte(s.Markup()), 0600); err != nil {
			return nil, fmt.Errorf("failed to write surface: %w", err)
		}
	}
	output := filepath.Join(dir, "out."+opts.Format.Ext())

	background := opts.BackgroundColor
	if background == "" {
		background = "transparent"
	}

	stdout, err := r.runner.Run(ctx, r.tool, map[string]string{
		"input":      input,
		"output":     output,
		"format":     string(opts.Format),
		"width":      strconv.Itoa(opts.Width),
		"height":     strconv.Itoa(opts.Height),
		"background": background,
		"quality":    strconv.FormatFloat(opts.Quality, 'f', -1, 64),
	})
	if err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(output)
	if os.IsNotExist(err) && len(stdout) > 0 {
		return stdout, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read raster output: %w", err)
	}
	return payload, nil
}

// ByFormat dispatches to a rasterizer per export format.
type ByFormat map[domain.Format]ports.Rasterizer

func (b ByFormat) Rasterize(ctx context.Context, s ports.Surface, opts ports.RasterOptions) ([]byte, error) {
	r, ok := b[opts.Format]
	if !ok || r == nil {
		return nil, fmt.Errorf("no rasterizer for format %q", opts.Format)
	}
	return r.Rasterize(ctx, s, opts)
}
