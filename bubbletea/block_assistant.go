package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/goldmark"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

// AssistantTextBlock renders the text a stage produced, as markdown, under
// the stage name. Rendered output is cached per width.
type AssistantTextBlock struct {
	author string
	text   string
	theme  dataops.Theme
	styles Styles

	byWidth map[int]string
}

// NewAssistantTextBlock creates a block for one text event.
func NewAssistantTextBlock(author, text string, theme dataops.Theme, styles Styles) *AssistantTextBlock {
	return &AssistantTextBlock{
		author:  author,
		text:    text,
		theme:   theme,
		styles:  styles,
		byWidth: make(map[int]string),
	}
}

func (b *AssistantTextBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *AssistantTextBlock) View(width int) string {
	header := b.styles.Author.Render(b.author)
	if width <= 0 {
		return header
	}
	body, ok := b.byWidth[width]
	if !ok {
		body = strings.TrimRight(goldmark.Render(b.text, width, b.theme), "\n")
		b.byWidth[width] = body
	}
	if body == "" {
		return header
	}
	return header + "\n" + body
}
