package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// Output that is not a terminal gets the plain "notty" style.
func NewRenderer(interactive bool) func(string) (string, error) {
	style := glamour.WithStandardStyle("notty")
	if interactive {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ValidationReport formats a validation result for name as markdown.
func ValidationReport(name, source string, res domain.ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", name)
	if res.Valid {
		fmt.Fprintf(&b, "**Valid** diagram, %d lines.\n\n", res.LineCount)
		if kind := declarationOf(source); kind != "" {
			fmt.Fprintf(&b, "Declared as `%s`.\n", kind)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "**Invalid**: %s\n", res.ErrorMessage)
	if res.LineCount > 0 {
		fmt.Fprintf(&b, "\n%d lines checked.\n", res.LineCount)
	}
	return b.String()
}

func declarationOf(source string) string {
	for _, line := range strings.Split(source, "\n") {
		l := strings.TrimSpace(line)
		if l == "" || strings.HasPrefix(l, "%") {
			continue
		}
		if fields := strings.Fields(l); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// StatusLine renders a one-line session summary, coloured by status.
func StatusLine(s domain.Session) string {
	p := termenv.ColorProfile()
	label := termenv.String(fmt.Sprintf("[%s]", s.Status)).Bold()
	switch s.Status {
	case domain.StatusError:
		label = label.Foreground(p.Color("#f87171"))
	case domain.StatusRendering, domain.StatusSaved, domain.StatusLoaded:
		label = label.Foreground(p.Color("#4ade80"))
	case domain.StatusExporting, domain.StatusThemeChange:
		label = label.Foreground(p.Color("#facc15"))
	default:
		label = label.Foreground(p.Color("#94a3b8"))
	}

	parts := []string{label.String(), fmt.Sprintf("%d lines", s.LineCount), string(s.Theme)}
	if s.Status == domain.StatusExporting {
		parts = append(parts, fmt.Sprintf("%d%%", s.ExportProgress))
	}
	if s.HasError() {
		parts = append(parts, s.ErrorMessage)
	}
	return strings.Join(parts, "  ")
}
