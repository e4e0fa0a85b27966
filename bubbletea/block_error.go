package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*ErrorBlock)(nil)

// ErrorBlock renders a failed invocation.
type ErrorBlock struct {
	msg    string
	styles Styles
}

// NewErrorBlock creates an ErrorBlock. msg is shown as is.
func NewErrorBlock(msg string, styles Styles) *ErrorBlock {
	return &ErrorBlock{msg: msg, styles: styles}
}

func (b *ErrorBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *ErrorBlock) View(width int) string {
	return lipgloss.NewStyle().Width(width).Render(b.styles.Error.Render(b.msg))
}
