// Package banner frames report text in a fixed-width horizontal rule:
//
//	---------------> in1.txt: 12ms <---------------
package banner

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

// DefaultWidth is used when the terminal width cannot be determined.
const DefaultWidth = 100

// decoration is the display width of "> " and " <".
const decoration = 4

var ruleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

// Pads returns the rule lengths left and right of a text of display width
// textWidth inside a frame of total width. The remainder of an odd split
// goes to the right; both are zero when the text does not fit.
func Pads(width, textWidth int) (left, right int) {
	free := width - decoration - textWidth
	if free <= 0 {
		return 0, 0
	}
	left = free / 2
	return left, free - left
}

// Framer renders banner lines.
type Framer struct {
	Width int

	// Colored renders the rules with ruleStyle. Text is never styled.
	Colored bool
}

// New returns a Framer of the given width. A non-positive width falls back
// to DefaultWidth.
func New(width int, colored bool) *Framer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Framer{Width: width, Colored: colored}
}

// Line returns text framed by rules, terminated by a newline.
func (f *Framer) Line(text string) string {
	left, right := Pads(f.Width, lipgloss.Width(text))

	var b strings.Builder
	b.Grow(f.Width + len(text))
	b.WriteString(f.rule(left))
	b.WriteString("> ")
	b.WriteString(text)
	b.WriteString(" <")
	b.WriteString(f.rule(right))
	b.WriteByte('\n')
	return b.String()
}

func (f *Framer) rule(n int) string {
	if n == 0 {
		return ""
	}
	r := strings.Repeat("-", n)
	if f.Colored {
		return ruleStyle.Render(r)
	}
	return r
}

// DetectWidth returns the column count of the terminal on fd, or fallback
// when fd is not a terminal.
func DetectWidth(fd uintptr, fallback int) int {
	if !term.IsTerminal(fd) {
		return fallback
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// IsTerminal reports whether fd refers to a terminal.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(fd)
}
