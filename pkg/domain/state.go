package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of the session.
type Status string

const (
	StatusIdle        Status = "idle"         // No document
	StatusLoaded      Status = "loaded"       // Document restored from persistence
	StatusEditing     Status = "editing"      // User-modified valid document
	StatusRendering   Status = "rendering"    // Render in flight
	StatusError       Status = "error"        // Validation or render failure
	StatusSaved       Status = "saved"        // Document persisted
	StatusExporting   Status = "exporting"    // Export in flight
	StatusThemeChange Status = "theme-change" // Transient marker after a theme toggle
)

// Theme is the colour scheme used for rendering and export backgrounds.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Background returns the export background colour for the theme.
func (t Theme) Background() string {
	if t == ThemeDark {
		return "#1e293b"
	}
	return "#ffffff"
}

// Flags are the capabilities derived from a status.
type Flags struct {
	CanRender bool `json:"can_render"`
	CanExport bool `json:"can_export"`
}

// flagRule describes how a status derives each flag.
// A nil entry inherits the flag of the prior status.
type flagRule struct {
	canRender *bool
	canExport *bool
}

var (
	yes = true
	no  = false
)

var flagTable = map[Status]flagRule{
	StatusIdle:        {&no, &no},
	StatusLoaded:      {&yes, &yes},
	StatusEditing:     {&yes, &yes},
	StatusRendering:   {&yes, &yes},
	StatusError:       {&no, &no},
	StatusSaved:       {&yes, &yes},
	StatusExporting:   {nil, &yes},
	StatusThemeChange: {nil, nil},
}

// DeriveFlags computes the capabilities for status. Entries that inherit use prior,
// the flags held before the transition.
func DeriveFlags(status Status, prior Flags) Flags {
	rule, ok := flagTable[status]
	if !ok {
		return Flags{}
	}
	out := prior
	if rule.canRender != nil {
		out.CanRender = *rule.canRender
	}
	if rule.canExport != nil {
		out.CanExport = *rule.canExport
	}
	return out
}

// Session is the aggregate application state.
// Fields irrelevant to the current status keep their zero value.
type Session struct {
	Status       Status `json:"status"`
	Source       string `json:"source"`
	ErrorMessage string `json:"error,omitempty"`
	Theme        Theme  `json:"theme"`
	LineCount    int    `json:"line_count"`
	Flags

	// Rendered reports whether the render in flight has drawn the diagram.
	Rendered bool      `json:"rendered"`
	Artifact *Artifact `json:"artifact,omitempty"`

	ExportFormat   Format `json:"export_format,omitempty"`
	ExportProgress int    `json:"export_progress,omitempty"`

	// RecordID and SavedAt describe the last saved or restored record.
	RecordID string    `json:"record_id,omitempty"`
	SavedAt  time.Time `json:"saved_at,omitempty"`

	// Prior is the status active before an exporting or theme-change transition.
	Prior Status `json:"prior,omitempty"`
}

// NewSession returns the idle session created at process start.
func NewSession(theme Theme) *Session {
	if theme == "" {
		theme = ThemeLight
	}
	return &Session{
		Status: StatusIdle,
		Theme:  theme,
	}
}

// HasError reports whether an error message is set.
func (s *Session) HasError() bool {
	return s.ErrorMessage != ""
}

// Snapshot returns a deep copy safe to hand out of the state machine.
func (s *Session) Snapshot() Session {
	cp := *s
	if s.Artifact != nil {
		a := *s.Artifact
		cp.Artifact = &a
	}
	return cp
}

// Check verifies that the status is consistent with the other fields.
func (s *Session) Check() error {
	if _, ok := flagTable[s.Status]; !ok {
		return fmt.Errorf("unknown status %q", s.Status)
	}
	switch s.Status {
	case StatusIdle:
		if s.CanRender || s.CanExport {
			return fmt.Errorf("idle session must not render or export: %+v", s.Flags)
		}
	case StatusError:
		if s.CanRender || s.CanExport {
			return fmt.Errorf("error session must not render or export: %+v", s.Flags)
		}
		if !s.HasError() {
			return fmt.Errorf("error session without message")
		}
	case StatusRendering:
		if s.HasError() {
			return fmt.Errorf("rendering session carries error %q", s.ErrorMessage)
		}
		if !s.CanRender || !s.CanExport {
			return fmt.Errorf("rendering session must render and export: %+v", s.Flags)
		}
	case StatusLoaded, StatusEditing, StatusSaved:
		if !s.CanRender || !s.CanExport {
			return fmt.Errorf("%s session must render and export: %+v", s.Status, s.Flags)
		}
	case StatusExporting:
		if !s.CanExport {
			return fmt.Errorf("exporting session must export")
		}
		if s.ExportProgress < 0 || s.ExportProgress > 100 {
			return fmt.Errorf("export progress out of range: %d", s.ExportProgress)
		}
	}
	if s.Status != StatusExporting && s.ExportProgress != 0 {
		return fmt.Errorf("export progress %d outside exporting", s.ExportProgress)
	}
	if s.LineCount < 0 {
		return fmt.Errorf("negative line count %d", s.LineCount)
	}
	if !s.Theme.Valid() {
		return fmt.Errorf("unknown theme %q", s.Theme)
	}
	return nil
}
