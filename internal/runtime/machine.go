package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/internal/validator"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/persistence"
)

// Machine owns the single session and serializes every transition.
// Fields are never written from outside; callers receive snapshots.
type Machine struct {
	mu      sync.Mutex
	session domain.Session

	gateway *persistence.Gateway
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	now     func() time.Time
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithGateway enables Persist, RestoreLatest and the theme preference.
func WithGateway(g *persistence.Gateway) MachineOption {
	return func(m *Machine) {
		m.gateway = g
	}
}

// WithMachineHooks registers transition observers.
func WithMachineHooks(h domain.LifecycleHooks) MachineOption {
	return func(m *Machine) {
		m.hooks = h
	}
}

// WithMachineLogger sets the logger.
func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithInitialTheme sets the theme of the idle session. Unknown themes keep the default.
func WithInitialTheme(t domain.Theme) MachineOption {
	return func(m *Machine) {
		if t.Valid() {
			m.session.Theme = t
		}
	}
}

// NewMachine creates a machine holding an idle session.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{
		session: *domain.NewSession(domain.ThemeLight),
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a copy of the current session.
func (m *Machine) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Snapshot()
}

// apply runs fn on a copy of the session under the lock. When fn reports a change,
// flags are derived from the new status and the copy replaces the session.
func (m *Machine) apply(op string, fn func(s *domain.Session) (bool, error)) (domain.Session, error) {
	m.mu.Lock()
	prev := m.session
	next := m.session.Snapshot()

	changed, err := fn(&next)
	if !changed {
		snap := m.session.Snapshot()
		m.mu.Unlock()
		return snap, err
	}

	next.Flags = domain.DeriveFlags(next.Status, prev.Flags)
	if next.Status != domain.StatusExporting {
		next.ExportProgress = 0
		next.ExportFormat = ""
	}
	if next.Status != domain.StatusExporting && next.Status != domain.StatusThemeChange {
		next.Prior = ""
	}
	if cerr := next.Check(); cerr != nil {
		m.logger.Error("Session invariant violated", "operation", op, "status", next.Status, "err", cerr)
	}

	m.session = next
	snap := next.Snapshot()
	m.mu.Unlock()

	if prev.Status != next.Status {
		m.logger.Debug("Transition", "operation", op, "from", prev.Status, "to", next.Status)
	}
	if m.hooks.OnTransition != nil {
		m.hooks.OnTransition(context.Background(), &domain.TransitionEvent{
			EventBase: domain.EventBase{Timestamp: m.now(), Type: domain.EventTransition},
			Operation: op,
			From:      prev.Status,
			To:        next.Status,
			Flags:     next.Flags,
		})
	}
	return snap, err
}

func (m *Machine) update(op string, fn func(s *domain.Session) bool) domain.Session {
	snap, _ := m.apply(op, func(s *domain.Session) (bool, error) {
		return fn(s), nil
	})
	return snap
}

func lineCount(text string) int {
	return len(strings.Split(text, "\n"))
}

// SetSource replaces the document text.
// Over the line ceiling the session errors; blank text returns it to idle; otherwise
// it moves to editing unless an error is showing, in which case only the text and
// line count change until the pipeline clears the error.
func (m *Machine) SetSource(text string) domain.Session {
	return m.update("set_source", func(s *domain.Session) bool {
		n := lineCount(text)
		switch {
		case n > validator.MaxLines:
			s.Status = domain.StatusError
			s.Source = text
			s.LineCount = n
			s.ErrorMessage = fmt.Sprintf("Code exceeds %d line limit (%d lines)", validator.MaxLines, n)
			s.Rendered = false
		case strings.TrimSpace(text) == "":
			s.Status = domain.StatusIdle
			s.Source = ""
			s.LineCount = 0
			s.ErrorMessage = ""
			s.Artifact = nil
			s.Rendered = false
		case !s.HasError():
			s.Status = domain.StatusEditing
			s.Source = text
			s.LineCount = n
		default:
			s.Source = text
			s.LineCount = n
		}
		return true
	})
}

// ReportError moves the session to error. An empty message behaves like ClearError.
func (m *Machine) ReportError(msg string) domain.Session {
	if msg == "" {
		return m.ClearError()
	}
	return m.update("report_error", func(s *domain.Session) bool {
		s.Status = domain.StatusError
		s.ErrorMessage = msg
		s.Rendered = false
		return true
	})
}

// ClearError returns a non-empty document to editing. With an empty document it is a no-op.
func (m *Machine) ClearError() domain.Session {
	return m.update("clear_error", func(s *domain.Session) bool {
		if strings.TrimSpace(s.Source) == "" {
			return false
		}
		s.Status = domain.StatusEditing
		s.ErrorMessage = ""
		return true
	})
}

// SetTheme switches the theme and marks the session theme-change, keeping every
// other field. It never validates. The preference is persisted when a gateway is set.
func (m *Machine) SetTheme(ctx context.Context, theme domain.Theme) domain.Session {
	snap := m.update("set_theme", func(s *domain.Session) bool {
		if s.Status != domain.StatusThemeChange {
			s.Prior = s.Status
		}
		s.Status = domain.StatusThemeChange
		s.Theme = theme
		return true
	})
	if m.gateway != nil {
		if err := m.gateway.SaveTheme(ctx, theme); err != nil {
			m.logger.Warn("Failed to persist theme preference", "theme", theme, "err", err)
		}
	}
	return snap
}

// SettleTheme collapses a theme-change marker back to the status it interrupted.
func (m *Machine) SettleTheme() domain.Session {
	return m.update("settle_theme", func(s *domain.Session) bool {
		if s.Status != domain.StatusThemeChange {
			return false
		}
		s.Status = s.Prior
		if s.Status == "" {
			s.Status = domain.StatusIdle
		}
		return true
	})
}

// BeginRendering moves to rendering when the session can render and has no error.
func (m *Machine) BeginRendering() (domain.Session, bool) {
	var began bool
	snap := m.update("begin_rendering", func(s *domain.Session) bool {
		if !s.CanRender || s.HasError() {
			return false
		}
		s.Status = domain.StatusRendering
		s.ErrorMessage = ""
		s.Rendered = false
		began = true
		return true
	})
	return snap, began
}

// MarkRendered records whether the diagram has been drawn. Only applies while rendering.
func (m *Machine) MarkRendered(rendered bool) domain.Session {
	return m.update("mark_rendered", func(s *domain.Session) bool {
		if s.Status != domain.StatusRendering {
			return false
		}
		s.Rendered = rendered
		return true
	})
}

// SetArtifact replaces the rendered artifact unless a newer request already set one.
func (m *Machine) SetArtifact(a *domain.Artifact) (domain.Session, bool) {
	var stored bool
	snap := m.update("set_artifact", func(s *domain.Session) bool {
		if s.Artifact != nil && a != nil && s.Artifact.RequestID > a.RequestID {
			return false
		}
		s.Artifact = a
		stored = true
		return true
	})
	return snap, stored
}

// ClearArtifact drops any rendered artifact.
func (m *Machine) ClearArtifact() domain.Session {
	return m.update("clear_artifact", func(s *domain.Session) bool {
		if s.Artifact == nil {
			return false
		}
		s.Artifact = nil
		return true
	})
}

// BeginExport moves to exporting with progress 0 when the session can export.
// Only one export runs at a time.
func (m *Machine) BeginExport(format domain.Format) (domain.Session, bool) {
	var began bool
	snap := m.update("begin_export", func(s *domain.Session) bool {
		if !s.CanExport || s.Status == domain.StatusExporting ||
			(s.Status == domain.StatusThemeChange && s.Prior == domain.StatusExporting) {
			return false
		}
		s.Prior = s.Status
		s.Status = domain.StatusExporting
		s.ExportFormat = format
		s.ExportProgress = 0
		began = true
		return true
	})
	return snap, began
}

// UpdateExportProgress sets the export percentage. Only applies while exporting.
func (m *Machine) UpdateExportProgress(progress int) (domain.Session, bool) {
	var applied bool
	snap := m.update("update_export_progress", func(s *domain.Session) bool {
		if s.Status != domain.StatusExporting {
			return false
		}
		s.ExportProgress = max(0, min(progress, 100))
		applied = true
		return true
	})
	return snap, applied
}

// FinishExport returns a non-empty, error-free document to editing.
func (m *Machine) FinishExport() domain.Session {
	return m.update("finish_export", func(s *domain.Session) bool {
		if strings.TrimSpace(s.Source) == "" || s.HasError() {
			return false
		}
		s.Status = domain.StatusEditing
		return true
	})
}

// Persist writes the current document as a new record and moves to saved.
// Returns domain.ErrNothingToSave for an empty document.
func (m *Machine) Persist(ctx context.Context) (domain.Session, error) {
	if m.gateway == nil {
		return m.Snapshot(), errors.New("persistence is not configured")
	}
	return m.apply("persist", func(s *domain.Session) (bool, error) {
		if strings.TrimSpace(s.Source) == "" {
			return false, domain.ErrNothingToSave
		}
		rec, err := m.gateway.Save(ctx, s.Source, s.Theme)
		if err != nil {
			return false, err
		}
		s.Status = domain.StatusSaved
		s.RecordID = rec.ID
		s.SavedAt = rec.Timestamp
		return true, nil
	})
}

// RestoreLatest loads the most recent record and moves to loaded.
// Without records the session is unchanged and domain.ErrNotFound is returned.
func (m *Machine) RestoreLatest(ctx context.Context) (domain.Session, error) {
	if m.gateway == nil {
		return m.Snapshot(), errors.New("persistence is not configured")
	}
	return m.apply("restore_latest", func(s *domain.Session) (bool, error) {
		rec, err := m.gateway.Latest(ctx)
		if err != nil {
			return false, err
		}
		s.Status = domain.StatusLoaded
		s.Source = rec.Source
		s.Theme = rec.Theme
		s.ErrorMessage = ""
		s.LineCount = lineCount(rec.Source)
		s.Artifact = nil
		s.Rendered = false
		s.RecordID = rec.ID
		s.SavedAt = rec.Timestamp
		return true, nil
	})
}

// Reset returns to idle, clearing the document and keeping the theme.
func (m *Machine) Reset() domain.Session {
	return m.update("reset", func(s *domain.Session) bool {
		theme := s.Theme
		*s = *domain.NewSession(theme)
		return true
	})
}

// LoadPreferences applies the stored theme preference without changing status.
func (m *Machine) LoadPreferences(ctx context.Context) (domain.Session, error) {
	if m.gateway == nil {
		return m.Snapshot(), nil
	}
	theme, err := m.gateway.LoadTheme(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return m.Snapshot(), nil
		}
		return m.Snapshot(), fmt.Errorf("failed to load preferences: %w", err)
	}
	return m.update("load_preferences", func(s *domain.Session) bool {
		if s.Theme == theme {
			return false
		}
		s.Theme = theme
		return true
	}), nil
}
