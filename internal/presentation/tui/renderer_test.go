package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationReport(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		src := "%% title\nflowchart LR\nA-->B"
		out := ValidationReport("flow.mmd", src, domain.ValidationResult{Valid: true, LineCount: 3})
		assert.Contains(t, out, "## flow.mmd")
		assert.Contains(t, out, "**Valid** diagram, 3 lines.")
		assert.Contains(t, out, "`flowchart`")
	})

	t.Run("Invalid", func(t *testing.T) {
		out := ValidationReport("x.mmd", "hello", domain.ValidationResult{
			ErrorMessage: "Invalid Mermaid syntax: Missing graph declaration",
			LineCount:    1,
		})
		assert.Contains(t, out, "**Invalid**: Invalid Mermaid syntax: Missing graph declaration")
	})
}

func TestNewRenderer(t *testing.T) {
	render := NewRenderer(false)
	out, err := render("**Valid** diagram")
	require.NoError(t, err)
	assert.Contains(t, out, "Valid")
}

func TestStatusLine(t *testing.T) {
	line := StatusLine(domain.Session{
		Status:         domain.StatusExporting,
		Theme:          domain.ThemeDark,
		LineCount:      4,
		ExportProgress: 30,
	})
	assert.Contains(t, line, "exporting")
	assert.Contains(t, line, "4 lines")
	assert.Contains(t, line, "30%")

	line = StatusLine(domain.Session{Status: domain.StatusError, ErrorMessage: "Code cannot be empty"})
	assert.Contains(t, line, "Code cannot be empty")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}
