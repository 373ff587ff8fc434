package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/diagramflow/internal/config"
	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/internal/testutils"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.mmd")
	require.NoError(t, os.WriteFile(path, []byte("graph TD\nA-->B"), 0644))

	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	cfg.Render.Debounce = 10 * time.Millisecond
	cfg.Export.Dir = filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(cfg.Export.Dir, 0755))

	hooks, rendered := RenderNotifier()
	app, err := NewApp(cfg, Deps{
		Logger:   logging.NewNop(),
		Renderer: &testutils.Renderer{},
		Hooks:    hooks,
	})
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- RunWatch(ctx, app, rendered, WatchOptions{Path: path, Export: domain.FormatVector, Out: out})
	}()

	require.Eventually(t, func() bool {
		return app.Studio.Snapshot().Source == "graph TD\nA-->B"
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		entries, _ := os.ReadDir(cfg.Export.Dir)
		return len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("sequenceDiagram\nA->>B: hi"), 0644))
	require.Eventually(t, func() bool {
		return app.Studio.Snapshot().Source == "sequenceDiagram\nA->>B: hi"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("not a diagram"), 0644))
	require.Eventually(t, func() bool {
		return app.Studio.Snapshot().Status == domain.StatusError
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "Watching")
	assert.Contains(t, out.String(), "Exported 'diagram-")
}
