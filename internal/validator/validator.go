package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/diagramflow/pkg/domain"
)

// MaxLines is the hard ceiling on document length.
const MaxLines = 400

const (
	msgEmpty          = "Code cannot be empty"
	msgMissingDecl    = "Invalid Mermaid syntax: Missing graph declaration"
	truncationMarker  = "\n// ... truncated (exceeds 400 lines)"
	commentLinePrefix = "%"
)

// Keywords are the diagram-kind declarations accepted at the start of content.
var Keywords = []string{
	"graph", "flowchart", "sequenceDiagram", "classDiagram", "stateDiagram",
	"erDiagram", "journey", "gantt", "pie", "quadrantChart", "requirement",
	"gitgraph", "mindmap", "timeline", "zenuml", "sankey", "xyChart", "block",
	"blockdiag", "seqdiag", "actdiag", "nwdiag", "packetdiag", "rackdiag",
	"c4Diagram", "mermaid",
}

var declaration = regexp.MustCompile(`(?i)^(` + strings.Join(Keywords, "|") + `)`)

// Validate checks source against the structural rules, in order; the first failure wins.
// It is pure: the same input always yields the same result.
//
// The declaration must open the first line that is neither blank nor a %-comment, so a
// source holding only comments reports a missing declaration. Any source that passes
// the declaration check therefore has content.
func Validate(source string) domain.ValidationResult {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return domain.ValidationResult{ErrorMessage: msgEmpty}
	}

	lines := strings.Split(trimmed, "\n")
	lineCount := len(lines)

	if lineCount > MaxLines {
		return domain.ValidationResult{
			ErrorMessage: fmt.Sprintf("Code exceeds %d line limit (%d lines)", MaxLines, lineCount),
			LineCount:    lineCount,
		}
	}

	// Leading comment lines (%% directives, titles) may precede the declaration.
	first := firstContentLine(lines)
	if !declaration.MatchString(first) {
		return domain.ValidationResult{ErrorMessage: msgMissingDecl, LineCount: lineCount}
	}

	return domain.ValidationResult{Valid: true, LineCount: lineCount}
}

// firstContentLine returns the first line that is neither blank nor a comment,
// or "" when there is none.
func firstContentLine(lines []string) string {
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if l != "" && !strings.HasPrefix(l, commentLinePrefix) {
			return l
		}
	}
	return ""
}

// CountLines returns 0 for blank text, else the number of newline-separated lines.
func CountLines(source string) int {
	if strings.TrimSpace(source) == "" {
		return 0
	}
	return strings.Count(source, "\n") + 1
}

// Truncate cuts source down to max lines and appends a marker when it had to cut.
func Truncate(source string, max int) string {
	lines := strings.Split(source, "\n")
	if len(lines) <= max {
		return source
	}
	return strings.Join(lines[:max], "\n") + truncationMarker
}

var (
	scriptBlock  = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	jsScheme     = regexp.MustCompile(`(?i)javascript:`)
	eventHandler = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// Sanitize strips script blocks, javascript: URLs and inline event handlers
// while leaving diagram syntax intact.
func Sanitize(source string) string {
	s := scriptBlock.ReplaceAllString(source, "")
	s = jsScheme.ReplaceAllString(s, "")
	s = eventHandler.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
