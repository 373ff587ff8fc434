package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the diagramflow banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"     _ _                                 __ _", "#22d3ee"},
		{"  __| (_) __ _  __ _ _ __ __ _ _ __ ___ / _| | _____      __", "#38bdf8"},
		{" / _` | |/ _` |/ _` | '__/ _` | '_ ` _ \\| |_| |/ _ \\ \\ /\\ / /", "#60a5fa"},
		{"| (_| | | (_| | (_| | | | (_| | | | | | |  _| | (_) \\ V  V /", "#818cf8"},
		{" \\__,_|_|\\__,_|\\__, |_|  \\__,_|_| |_| |_|_| |_|\\___/ \\_/\\_/", "#a78bfa"},
		{"               |___/", "#c084fc"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
