package formatter

import (
	"charm.land/lipgloss/v2"
)

var (
	defaultTimestampColor = lipgloss.Color("240")
	defaultPathColor      = lipgloss.Color("14")
	defaultErrorColor     = lipgloss.Color("196")

	timestampStyle = lipgloss.NewStyle().Foreground(defaultTimestampColor)
	pathStyle      = lipgloss.NewStyle().Foreground(defaultPathColor)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(defaultErrorColor)
)

// Styles colors output fragments. The zero value renders plain text.
type Styles struct {
	Color bool
}

// NewStyles returns styles that color only when color is enabled.
func NewStyles(color bool) Styles {
	return Styles{Color: color}
}

func (s Styles) Timestamp(str string) string { return s.render(timestampStyle, str) }

func (s Styles) Path(str string) string { return s.render(pathStyle, str) }

func (s Styles) Error(str string) string { return s.render(errorStyle, str) }

func (s Styles) render(style lipgloss.Style, str string) string {
	if !s.Color {
		return str
	}
	return style.Render(str)
}
