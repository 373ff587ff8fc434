package validator

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lines(n int) string {
	out := make([]string, n)
	out[0] = "graph TD"
	for i := 1; i < n; i++ {
		out[i] = "A-->B"
	}
	return strings.Join(out, "\n")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		valid     bool
		message   string
		lineCount int
	}{
		{"empty", "", false, "Code cannot be empty", 0},
		{"whitespace only", "  \n\t\n", false, "Code cannot be empty", 0},
		{"simple flowchart", "graph TD\nA-->B", true, "", 2},
		{"case insensitive keyword", "SEQUENCEDIAGRAM\nAlice->>Bob: hi", true, "", 2},
		{"leading comment", "%% title\nflowchart LR\nA-->B", true, "", 3},
		{"surrounding blank lines", "\n\ngraph TD\nA-->B\n\n", true, "", 2},
		{"missing declaration", "A-->B\nB-->C", false, "Invalid Mermaid syntax: Missing graph declaration", 2},
		{"comments only", "%% one\n%% two", false, "Invalid Mermaid syntax: Missing graph declaration", 2},
		{"keyword inside comment", "%% graph TD\n%% A-->B", false, "Invalid Mermaid syntax: Missing graph declaration", 2},
		{"declaration is content", "pie", true, "", 1},
		{"exactly at limit", lines(400), true, "", 400},
		{"over limit", lines(401), false, "Code exceeds 400 line limit (401 lines)", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.source)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.message, got.ErrorMessage)
			assert.Equal(t, tt.lineCount, got.LineCount)
		})
	}
}

func TestValidate_AllKeywords(t *testing.T) {
	for _, kw := range Keywords {
		got := Validate(kw + "\n  content")
		assert.True(t, got.Valid, "keyword %q should be accepted", kw)
	}
}

func TestValidate_LineLimitReportsCount(t *testing.T) {
	for _, n := range []int{401, 450, 1000} {
		got := Validate(lines(n))
		assert.False(t, got.Valid)
		assert.Contains(t, got.ErrorMessage, "("+strconv.Itoa(n)+" lines)")
		assert.Equal(t, n, got.LineCount)
	}
}

func TestValidate_Deterministic(t *testing.T) {
	src := "pie title Pets\n\"Dogs\": 386"
	assert.Equal(t, Validate(src), Validate(src))
}

func TestValidate_ErrType(t *testing.T) {
	assert.NoError(t, Validate("graph TD\nA").Err())
	err := Validate("nope").Err()
	assert.EqualError(t, err, "Invalid Mermaid syntax: Missing graph declaration")
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 0, CountLines(" \n "))
	assert.Equal(t, 1, CountLines("graph TD"))
	assert.Equal(t, 3, CountLines("graph TD\nA\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a\nb", Truncate("a\nb", 2))
	got := Truncate("a\nb\nc", 2)
	assert.True(t, strings.HasPrefix(got, "a\nb\n"))
	assert.Contains(t, got, "truncated")
}

func TestSanitize(t *testing.T) {
	in := "graph TD\nA[<script>alert(1)</script>]-->B\nclick A href \"javascript:alert(1)\"\nC[<img onerror=x>]"
	got := Sanitize(in)
	assert.NotContains(t, got, "<script>")
	assert.NotContains(t, strings.ToLower(got), "javascript:")
	assert.NotContains(t, got, "onerror=")
	assert.True(t, strings.HasPrefix(got, "graph TD"))
}
