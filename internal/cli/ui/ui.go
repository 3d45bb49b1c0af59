// Package ui holds the imgfit terminal styles and the startup banner.
// Everything here writes to stderr; stdout is reserved for command output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Colors are ANSI 4-bit; lipgloss degrades them on poorer terminals.
var (
	ColorCyan   = lipgloss.Color("6")
	ColorGreen  = lipgloss.Color("2")
	ColorYellow = lipgloss.Color("3")
	ColorRed    = lipgloss.Color("1")
)

var (
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleError   = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBoldRed = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	StyleHint    = lipgloss.NewStyle().Faint(true)
	StyleCode    = lipgloss.NewStyle().Foreground(ColorGreen)

	StyleBrandHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorCyan)
	StyleLabel       = lipgloss.NewStyle().Bold(true).Width(12)
)

const (
	SymbolCheck   = "✓"
	SymbolCross   = "✗"
	SymbolWarning = "⚠"
	SymbolArrow   = "→"
)

var (
	plainRenderer     *lipgloss.Renderer
	plainRendererOnce sync.Once
)

// PlainRenderer returns a renderer that never emits escape codes, for
// output going to files or pipes.
func PlainRenderer() *lipgloss.Renderer {
	plainRendererOnce.Do(func() {
		plainRenderer = lipgloss.NewRenderer(io.Discard)
		plainRenderer.SetColorProfile(termenv.Ascii)
	})
	return plainRenderer
}

// ColorEnabled returns whether stderr is a TTY that supports color.
// Respects NO_COLOR (https://no-color.org/).
func ColorEnabled() bool {
	return ColorEnabledFd(os.Stderr.Fd())
}

// ColorEnabledFd returns whether the given fd supports color.
func ColorEnabledFd(fd uintptr) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// BannerField is one labelled line of the startup banner.
type BannerField struct {
	Label string
	Value string
}

// Banner renders the startup banner. With color off the same text is
// produced without escape codes.
func Banner(version string, fields []BannerField, color bool) string {
	header := StyleBrandHeader
	label := StyleLabel
	code := StyleCode
	if !color {
		r := PlainRenderer()
		header = r.NewStyle()
		label = r.NewStyle().Width(12)
		code = r.NewStyle()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s %s\n\n", header.Render("imgfit"), version)
	for _, f := range fields {
		fmt.Fprintf(&b, "  %s%s\n", label.Render(f.Label), code.Render(f.Value))
	}
	b.WriteString("\n")
	return b.String()
}
