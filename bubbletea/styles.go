package bubbletea

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/dataops"
)

// Styles maps a Theme to lipgloss styles for TUI rendering.
type Styles struct {
	UserMsg    lipgloss.Style
	Author     lipgloss.Style
	ToolCall   lipgloss.Style
	Result     lipgloss.Style
	Error      lipgloss.Style
	Consent    lipgloss.Style
	Muted      lipgloss.Style
	Accent     lipgloss.Style
	ConsentBox lipgloss.Style
}

// NewStyles creates Styles from a Theme.
func NewStyles(t dataops.Theme) Styles {
	return Styles{
		UserMsg:  lipgloss.NewStyle().Foreground(ansiColor(t.UserMsg)).Bold(true),
		Author:   lipgloss.NewStyle().Foreground(ansiColor(t.Author)).Bold(true),
		ToolCall: lipgloss.NewStyle().Foreground(ansiColor(t.ToolCall)),
		Result:   lipgloss.NewStyle().Foreground(ansiColor(t.Result)),
		Error:    lipgloss.NewStyle().Foreground(ansiColor(t.Error)),
		Consent:  lipgloss.NewStyle().Foreground(ansiColor(t.Consent)).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:   lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
		ConsentBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ansiColor(t.Consent)).
			Padding(0, 1),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
