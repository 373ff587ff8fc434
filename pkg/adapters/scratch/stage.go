// Package scratch mounts markup in throwaway directories for export.
package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/diagramflow/pkg/ports"
)

// Stage writes each mounted surface to its own temp directory.
type Stage struct {
	dir string
}

// New creates a stage under dir. Empty means os.TempDir().
func New(dir string) *Stage {
	return &Stage{dir: dir}
}

// Surface is markup mounted on disk.
type Surface struct {
	markup string
	root   string
	path   string
}

func (s *Surface) Markup() string { return s.markup }
func (s *Surface) Path() string   { return s.path }

func (st *Stage) Mount(ctx context.Context, markup string) (ports.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if st.dir != "" {
		if err := os.MkdirAll(st.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create stage dir: %w", err)
		}
	}
	root, err := os.MkdirTemp(st.dir, "stage-")
	if err != nil {
		return nil, fmt.Errorf("failed to create surface: %w", err)
	}
	path := filepath.Join(root, "diagram.svg")
	if err := os.WriteFile(path, []byte(markup), 0600); err != nil {
		_ = os.RemoveAll(root)
		return nil, fmt.Errorf("failed to write surface: %w", err)
	}
	return &Surface{markup: markup, root: root, path: path}, nil
}

func (st *Stage) Unmount(s ports.Surface) error {
	surface, ok := s.(*Surface)
	if !ok || surface == nil {
		return fmt.Errorf("surface %T was not mounted by this stage", s)
	}
	return os.RemoveAll(surface.root)
}
