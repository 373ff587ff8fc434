package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key or record does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrNoArtifact is returned when an export is attempted without rendered content.
var ErrNoArtifact = errors.New("No diagram content to export")

// ErrExportUnavailable is returned when the session cannot export in its current status.
var ErrExportUnavailable = errors.New("export not available")

// ErrNothingToSave is returned when persisting an empty document.
var ErrNothingToSave = errors.New("nothing to save")

// RenderFailurePrefix starts every message surfaced for a rejected render.
const RenderFailurePrefix = "Rendering failed: "

// ValidationError reports source text that broke a structural rule.
type ValidationError struct {
	Message   string
	LineCount int
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RenderError reports that the rendering engine rejected the source.
type RenderError struct {
	RequestID uint64
	Err       error
}

func (e *RenderError) Error() string {
	msg := "Unknown error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return RenderFailurePrefix + msg
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ExportError reports a failed export step.
type ExportError struct {
	Format Format
	Step   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("Failed to export diagram (%s, %s): %v", e.Format, e.Step, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
