package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across all TUI components
var (
	Green  = lipgloss.Color("10") // success, assistant
	Red    = lipgloss.Color("9")  // error
	Grey   = lipgloss.Color("8")  // muted text
	Blue   = lipgloss.Color("4")  // headers, borders
	White  = lipgloss.Color("15") // header text
	Yellow = lipgloss.Color("11") // preview models, warnings
	Cyan   = lipgloss.Color("14") // user
)

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	ActiveIcon  = "●"
	IdleIcon    = "○"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	// Text styles
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	Bold        lipgloss.Style
	Highlighted lipgloss.Style

	// Conversation styles
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	StatusBar      lipgloss.Style
	Input          lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,

		Title: r.NewStyle().
			Bold(true).
			Foreground(White),

		Subtitle: r.NewStyle().
			Foreground(Grey),

		Success: r.NewStyle().
			Foreground(Green),

		Error: r.NewStyle().
			Foreground(Red),

		Warning: r.NewStyle().
			Foreground(Yellow),

		Muted: r.NewStyle().
			Foreground(Grey),

		Bold: r.NewStyle().
			Bold(true),

		Highlighted: r.NewStyle().
			Bold(true).
			Foreground(Green),

		UserLabel: r.NewStyle().
			Bold(true).
			Foreground(Cyan),

		AssistantLabel: r.NewStyle().
			Bold(true).
			Foreground(Green),

		StatusBar: r.NewStyle().
			Foreground(Grey).
			Padding(0, 1),

		Input: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Blue).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// FormatActive marks the active row of a list.
func (s *Styles) FormatActive(active bool, msg string) string {
	if active {
		return s.Highlighted.Render(ActiveIcon+" ") + msg
	}
	return s.Muted.Render(IdleIcon+" ") + msg
}

// Truncate shortens a string to maxLen runes with ellipsis
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
