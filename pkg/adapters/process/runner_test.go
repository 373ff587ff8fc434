package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures need sh")
	}
}

type fileSurface struct {
	markup string
	path   string
}

func (s fileSurface) Markup() string { return s.markup }
func (s fileSurface) Path() string   { return s.path }

func TestRunner_Run(t *testing.T) {
	requireShell(t)
	runner := NewRunner()
	runner.Register("greet", "sh", "-c", `printf "%s %s" "$1" "$DIAGRAMFLOW_ARG_NAME"`, "sh", "{greeting}")

	t.Run("Expands Placeholders And Env", func(t *testing.T) {
		out, err := runner.Run(context.Background(), "greet", map[string]string{
			"greeting": "hello",
			"name":     "world",
		})
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(out))
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Run(context.Background(), "hacker_script", nil)
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("Reports Stderr", func(t *testing.T) {
		runner.Register("crashy", "sh", "-c", `echo "Parse error on line 2" >&2; exit 3`)
		_, err := runner.Run(context.Background(), "crashy", nil)

		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "Parse error on line 2", err.Error())
		assert.Equal(t, "crashy", execErr.Tool)
	})

	t.Run("Honours Context Deadline", func(t *testing.T) {
		runner.Register("slow", "sleep", "5")
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := runner.Run(ctx, "slow", nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	assert.Equal(t, []string{"crashy", "greet", "slow"}, runner.Tools())
}

func TestRenderer_Render(t *testing.T) {
	requireShell(t)
	runner := NewRunner(WithRegistry(map[string]ProcessConfig{
		ToolRender: {
			Command: "sh",
			Args:    []string{"-c", `printf '<svg class="%s">' "$3" > "$2"; cat "$1" >> "$2"; printf '</svg>' >> "$2"`, "sh", "{input}", "{output}", "{mermaid_theme}"},
		},
	}))
	r := NewRenderer(runner, t.TempDir())

	markup, err := r.Render(context.Background(), ports.RenderRequest{
		ID:     "mermaid-1-1",
		Source: "graph TD\nA-->B",
		Theme:  domain.ThemeDark,
	})
	require.NoError(t, err)
	assert.Equal(t, "<svg class=\"dark\">graph TD\nA-->B</svg>", markup)
}

func TestRenderer_RenderStdout(t *testing.T) {
	requireShell(t)
	runner := NewRunner()
	runner.Register(ToolRender, "sh", "-c", `printf '<svg>%s</svg>' "$1"`, "sh", "{theme}")
	r := NewRenderer(runner, t.TempDir())

	markup, err := r.Render(context.Background(), ports.RenderRequest{Source: "pie", Theme: domain.ThemeLight})
	require.NoError(t, err)
	assert.Equal(t, "<svg>light</svg>", markup)
}

func TestRenderer_EngineRejects(t *testing.T) {
	requireShell(t)
	runner := NewRunner()
	runner.Register(ToolRender, "sh", "-c", `echo "Lexical error on line 1" >&2; exit 1`)
	r := NewRenderer(runner, t.TempDir())

	_, err := r.Render(context.Background(), ports.RenderRequest{Source: "graph TD\n%%"})
	require.Error(t, err)
	assert.Equal(t, "Lexical error on line 1", err.Error())
	assert.Equal(t, "Rendering failed: Lexical error on line 1", (&domain.RenderError{Err: err}).Error())
}

func TestRasterizer_Rasterize(t *testing.T) {
	requireShell(t)
	runner := NewRunner()
	runner.Register(ToolRasterizePNG, "sh", "-c", `printf '%s %s %s %s' "$1" "$2" "$3" "$4" > "$5"`, "sh",
		"{format}", "{width}", "{height}", "{background}", "{output}")
	r := NewRasterizer(runner, ToolRasterizePNG, t.TempDir())

	payload, err := r.Rasterize(context.Background(), fileSurface{markup: "<svg/>"}, ports.RasterOptions{
		Format:          domain.FormatRaster,
		Width:           1200,
		Height:          800,
		BackgroundColor: "#1e293b",
	})
	require.NoError(t, err)
	assert.Equal(t, "png 1200 800 #1e293b", string(payload))
}

func TestRasterizer_ReadsMountedPath(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mounted.svg")
	require.NoError(t, os.WriteFile(path, []byte("<svg>mounted</svg>"), 0600))

	runner := NewRunner()
	runner.Register(ToolRasterizeSVG, "cat", "{input}")
	r := NewRasterizer(runner, ToolRasterizeSVG, dir)

	payload, err := r.Rasterize(context.Background(), fileSurface{path: path}, ports.RasterOptions{Format: domain.FormatVector})
	require.NoError(t, err)
	assert.Equal(t, "<svg>mounted</svg>", string(payload))
}

type stubRasterizer []byte

func (s stubRasterizer) Rasterize(context.Context, ports.Surface, ports.RasterOptions) ([]byte, error) {
	return s, nil
}

func TestByFormat(t *testing.T) {
	b := ByFormat{domain.FormatVector: stubRasterizer("svg")}

	out, err := b.Rasterize(context.Background(), fileSurface{}, ports.RasterOptions{Format: domain.FormatVector})
	require.NoError(t, err)
	assert.Equal(t, "svg", string(out))

	_, err = b.Rasterize(context.Background(), fileSurface{}, ports.RasterOptions{Format: domain.FormatRaster})
	assert.Error(t, err)
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing File", func(t *testing.T) {
		tools, err := LoadTools(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, tools)
	})

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "tools.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: render
    command: npx
    args: ["-y", "@mermaid-js/mermaid-cli", "-i", "{input}", "-o", "{output}"]
    env:
      PUPPETEER_CACHE_DIR: /tmp/puppeteer
  - name: unnamed-is-skipped
`), 0644))

		tools, err := LoadTools(path)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "npx", tools[ToolRender].Command)
		assert.Equal(t, "/tmp/puppeteer", tools[ToolRender].Environment["PUPPETEER_CACHE_DIR"])

		merged := MergeTools(DefaultTools(), tools)
		assert.Equal(t, "npx", merged[ToolRender].Command)
		assert.Equal(t, "rsvg-convert", merged[ToolRasterizePNG].Command)
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "tools.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"tools":[{"name":"rasterize-png","command":"magick"}]}`), 0644))

		tools, err := LoadTools(path)
		require.NoError(t, err)
		assert.Equal(t, "magick", tools[ToolRasterizePNG].Command)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tools: [::"), 0644))

		_, err := LoadTools(path)
		assert.Error(t, err)
		assert.False(t, errors.Is(err, os.ErrNotExist))
	})
}
