package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*ToolResultBlock)(nil)

const maxPreviewLen = 60

// ToolResultBlock renders a function response with a collapsible toggle.
// Success results start collapsed; error results start expanded.
type ToolResultBlock struct {
	author    string
	toolName  string
	response  map[string]any
	isError   bool
	collapsed bool
	styles    Styles
}

// NewToolResultBlock creates a ToolResultBlock. A response carrying an
// "error" key is shown as an error.
func NewToolResultBlock(author, toolName string, response map[string]any, styles Styles) *ToolResultBlock {
	_, isError := response["error"]
	return &ToolResultBlock{
		author:    author,
		toolName:  toolName,
		response:  response,
		isError:   isError,
		collapsed: !isError,
		styles:    styles,
	}
}

// IsError reports whether this tool result represents an error.
func (b *ToolResultBlock) IsError() bool { return b.isError }

func (b *ToolResultBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		if b.isError {
			// Error results are always expanded.
			b.collapsed = false
			return b, nil
		}
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *ToolResultBlock) View(width int) string {
	icon, iconStyle := "✓", b.styles.Result
	if b.isError {
		icon, iconStyle = "✗", b.styles.Error
	}
	indicator := "▶"
	if !b.collapsed {
		indicator = "▼"
	}
	header := b.styles.Author.Render(b.author) + " " +
		b.styles.ToolCall.Render(indicator+" "+b.toolName) + " " + iconStyle.Render(icon)

	body := indentJSON(b.response)
	if b.isError {
		if msg, ok := b.response["error"].(string); ok {
			body = msg
		}
	}
	if b.collapsed {
		if preview := preview(body); preview != "" {
			header += "  " + preview
		}
		return lipgloss.NewStyle().Width(width).Render(header)
	}
	if b.isError {
		body = b.styles.Error.Render(body)
	}
	return lipgloss.NewStyle().Width(width).Render(header + "\n" + body)
}

// preview is the first non-empty line of s, shortened to maxPreviewLen runes.
func preview(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "{" {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxPreviewLen {
			return string(runes[:maxPreviewLen]) + "…"
		}
		return line
	}
	return ""
}
