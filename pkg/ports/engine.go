package ports

import (
	"context"

	"github.com/aretw0/diagramflow/pkg/domain"
)

// Studio is the driving surface used by transport adapters (HTTP, MCP).
type Studio interface {
	// OnChange feeds new editor text and schedules a debounced render.
	OnChange(text string) domain.Session

	// SetTheme switches the theme and re-renders the current diagram.
	SetTheme(ctx context.Context, theme domain.Theme) domain.Session

	// Save persists the current document.
	Save(ctx context.Context) (domain.Session, error)

	// Restore loads the most recent saved document.
	Restore(ctx context.Context) (domain.Session, error)

	// Reset clears the document, preserving the theme.
	Reset() domain.Session

	// ExportTo runs an export and delivers the payload to sink.
	ExportTo(ctx context.Context, format domain.Format, sink Sink) (domain.Download, error)

	// Snapshot returns a copy of the current session.
	Snapshot() domain.Session

	// Flush renders a pending change now and waits for renders in flight.
	Flush()

	// Validate checks source without touching the session.
	Validate(source string) domain.ValidationResult
}
