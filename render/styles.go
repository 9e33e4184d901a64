package render

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette shared by the tree and live views.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

// styles is the set of styles bound to one output. Building them from a
// renderer for the destination writer drops colors when it is not a
// terminal.
type styles struct {
	box     lipgloss.Style
	title   lipgloss.Style
	group   lipgloss.Style
	name    lipgloss.Style
	path    lipgloss.Style
	muted   lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	err     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1),
		title:   r.NewStyle().Bold(true).Foreground(ColorPrimary),
		group:   r.NewStyle().Bold(true).Foreground(ColorWarning),
		name:    r.NewStyle().Foreground(ColorHighlight),
		path:    r.NewStyle().Foreground(ColorMuted),
		muted:   r.NewStyle().Foreground(ColorMuted),
		added:   r.NewStyle().Foreground(ColorSuccess),
		removed: r.NewStyle().Foreground(ColorError),
		err:     r.NewStyle().Bold(true).Foreground(ColorError),
	}
}

// GetTerminalWidth returns terminal width or default
func GetTerminalWidth() int {
	return widthOf(os.Stdout)
}

// widthOf returns the width of w when it is a terminal, 80 otherwise.
func widthOf(w io.Writer) int {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// CenterString centers a string in the given width
func CenterString(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return s
	}
	leftPad := (width - n) / 2
	rightPad := width - n - leftPad
	return strings.Repeat(" ", leftPad) + s + strings.Repeat(" ", rightPad)
}

// truncateLeft shortens s to width cells, keeping its tail.
func truncateLeft(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[1:]
	}
	return "…" + string(r)
}
