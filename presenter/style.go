package presenter

import "github.com/charmbracelet/lipgloss"

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted    lipgloss.TerminalColor = ac("240", "243")
	colorAccent   lipgloss.TerminalColor = ac("27", "62")
	colorError    lipgloss.TerminalColor = ac("160", "203")
	colorSelectFg lipgloss.TerminalColor = ac("235", "255")
	colorSelectBg lipgloss.TerminalColor = ac("#e9e9e9", "#262626")
)

// Style holds the lipgloss styles used by Render.
type Style struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Category lipgloss.Style
	Task     lipgloss.Style
	Done     lipgloss.Style
	Selected lipgloss.Style

	RetryHint string
	Width     int
}

// DefaultStyle is readable on light and dark terminals.
func DefaultStyle() Style {
	return Style{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(colorError),
		Category:  lipgloss.NewStyle().Bold(true),
		Task:      lipgloss.NewStyle(),
		Done:      lipgloss.NewStyle().Foreground(colorMuted).Strikethrough(true),
		Selected:  lipgloss.NewStyle().Foreground(colorSelectFg).Background(colorSelectBg).Bold(true),
		RetryHint: "press r to try again",
	}
}

// PlainStyle renders without any decoration, for pipes and logs.
func PlainStyle() Style {
	plain := lipgloss.NewStyle()
	return Style{
		Title:     plain,
		Muted:     plain,
		Error:     plain,
		Category:  plain,
		Task:      plain,
		Done:      plain,
		Selected:  plain,
		RetryHint: "press r to try again",
	}
}
