// Package styles holds the lipgloss styles of wrestler's human output.
package styles

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	SuccessColor = lipgloss.Color("#10B981") // Green
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	ErrorColor   = lipgloss.Color("#F87171") // Red
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray

	Header  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	Success = lipgloss.NewStyle().Bold(true).Foreground(SuccessColor)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Failure = lipgloss.NewStyle().Bold(true).Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)
	Command = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 100

// Printer renders styled text when writing to a terminal and plain text
// otherwise.
type Printer struct {
	w     io.Writer
	tty   bool
	color bool
	width int
}

// NewPrinter inspects w: only an *os.File attached to a terminal gets
// colors and its real width.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{w: w, width: DefaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		p.color = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			p.width = width
		}
	}
	return p
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Width returns the usable line width.
func (p *Printer) Width() int { return p.width }

// IsTerminal reports whether the writer is an interactive terminal.
func (p *Printer) IsTerminal() bool { return p.tty }

// Color reports whether styles are applied.
func (p *Printer) Color() bool { return p.color }

// Render applies style to text when colors are enabled.
func (p *Printer) Render(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}
