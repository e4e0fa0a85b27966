package bubbletea

import (
	"bytes"
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*ToolCallBlock)(nil)

// ToolCallBlock renders a function call with a collapsible toggle.
type ToolCallBlock struct {
	author    string
	name      string
	id        string
	args      map[string]any
	collapsed bool
	styles    Styles
}

// NewToolCallBlock creates a ToolCallBlock that starts collapsed.
func NewToolCallBlock(author, name, id string, args map[string]any, styles Styles) *ToolCallBlock {
	return &ToolCallBlock{author: author, name: name, id: id, args: args, collapsed: true, styles: styles}
}

// ID returns the tool call ID.
func (b *ToolCallBlock) ID() string { return b.id }

func (b *ToolCallBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *ToolCallBlock) View(width int) string {
	indicator := "▶"
	if !b.collapsed {
		indicator = "▼"
	}
	header := b.styles.Author.Render(b.author) + " " + b.styles.ToolCall.Render(indicator+" call "+b.name)
	content := header
	if !b.collapsed && len(b.args) > 0 {
		content = header + "\n" + b.styles.Muted.Render(indentJSON(b.args))
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}

// indentJSON formats v for display. HTML characters are not escaped.
func indentJSON(v map[string]any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
