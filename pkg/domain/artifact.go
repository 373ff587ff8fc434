package domain

import (
	"fmt"
	"time"
)

// ValidationResult is the outcome of checking source text against structural rules.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	ErrorMessage string `json:"error,omitempty"`
	LineCount    int    `json:"line_count"`
}

// Err returns the failure as a *ValidationError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Message: r.ErrorMessage, LineCount: r.LineCount}
}

// Artifact is the markup rendered for a document snapshot.
type Artifact struct {
	// RequestID is the monotonically increasing render request counter value.
	RequestID uint64 `json:"request_id"`
	// RenderID is the unique id handed to the rendering engine.
	RenderID   string    `json:"render_id"`
	Markup     string    `json:"markup"`
	Theme      Theme     `json:"theme"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Empty reports whether there is no markup to show or export.
func (a *Artifact) Empty() bool {
	return a == nil || a.Markup == ""
}

// Format is an export target.
type Format string

const (
	FormatRaster Format = "png"
	FormatVector Format = "svg"
)

// ParseFormat accepts the format names "raster"/"vector" and the extensions "png"/"svg".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "raster", "png":
		return FormatRaster, nil
	case "vector", "svg":
		return FormatVector, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	return string(f)
}

// MIME returns the media type of payloads in this format.
func (f Format) MIME() string {
	if f == FormatVector {
		return "image/svg+xml"
	}
	return "image/png"
}

// Download is an exported payload ready to be handed to the user.
type Download struct {
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Payload []byte `json:"-"`
}

// Record is a saved document.
type Record struct {
	ID        string    `json:"id" mapstructure:"id"`
	Source    string    `json:"source" mapstructure:"source"`
	Theme     Theme     `json:"theme" mapstructure:"theme"`
	Timestamp time.Time `json:"timestamp" mapstructure:"timestamp"`
}
