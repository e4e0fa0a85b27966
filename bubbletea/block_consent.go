package bubbletea

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/goldmark"
)

var _ MessageBlock = (*ConsentBlock)(nil)

// ConsentBlock shows the query awaiting approval and, once answered, the
// decision.
type ConsentBlock struct {
	sql      string
	bytes    string
	decided  bool
	approved bool
	theme    dataops.Theme
	styles   Styles
}

// NewConsentBlock creates a pending ConsentBlock from a consent prompt.
func NewConsentBlock(p dataops.ToolCallPart, theme dataops.Theme, styles Styles) *ConsentBlock {
	sql, _ := p.Args["sql"].(string)
	return &ConsentBlock{sql: sql, bytes: dataops.FormatBytes(p.Args["bytes_processed"]), theme: theme, styles: styles}
}

// Resolve records the decision.
func (b *ConsentBlock) Resolve(approved bool) {
	b.decided, b.approved = true, approved
}

// Pending reports whether the block still waits for a decision.
func (b *ConsentBlock) Pending() bool { return !b.decided }

func (b *ConsentBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *ConsentBlock) View(width int) string {
	inner := width - 4 // border and padding
	if inner < 10 {
		inner = 10
	}
	title := b.styles.Consent.Render(fmt.Sprintf("This query will process %s.", b.bytes))
	code := goldmark.Render("```sql\n"+b.sql+"\n```", inner, b.theme)

	var footer string
	switch {
	case !b.decided:
		footer = b.styles.Accent.Render("[y]") + " run query  " + b.styles.Accent.Render("[n]") + " don't run"
	case b.approved:
		footer = b.styles.Result.Render("✓ approved")
	default:
		footer = b.styles.Error.Render("✗ declined")
	}
	return b.styles.ConsentBox.Width(inner).Render(title + "\n" + code + "\n" + footer)
}
