package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/diagramflow/pkg/domain"
)

// Sink implements ports.Sink by writing downloads into a directory.
type Sink struct {
	Dir string
}

// NewSink creates a Sink writing into dir (current directory when empty).
func NewSink(dir string) *Sink {
	if dir == "" {
		dir = "."
	}
	return &Sink{Dir: dir}
}

// Deliver writes the payload under its download name.
func (s *Sink) Deliver(ctx context.Context, d domain.Download) error {
	if d.Name == "" || filepath.Base(d.Name) != d.Name {
		return fmt.Errorf("invalid download name %q", d.Name)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure download directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, d.Name), d.Payload, 0644); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}

// Path returns where a download with the given name lands.
func (s *Sink) Path(name string) string {
	return filepath.Join(s.Dir, name)
}
