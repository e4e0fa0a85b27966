package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/dataops"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the dataops TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	conv   Conversation
	theme  dataops.Theme
	styles Styles

	blocks     []MessageBlock
	blockFocus int // index of focused collapsible block (-1 = none)

	// consent is the block of the request awaiting y/n, if any.
	consent *ConsentBlock

	running bool
	cancel  context.CancelFunc
	eventCh chan dataops.Event
	doneCh  chan error
	err     error
	ready   bool
}

// New creates a new TUI Model over conv. conv must already have a session.
func New(conv Conversation, theme dataops.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about GitHub repositories..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		Input:      ti,
		conv:       conv,
		theme:      theme,
		styles:     NewStyles(theme),
		blockFocus: -1,
	}
}

// Running returns whether an invocation is in flight.
func (m Model) Running() bool { return m.running }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// AwaitingConsent reports whether a consent request is waiting for y/n.
func (m Model) AwaitingConsent() bool { return m.consent != nil && m.consent.Pending() }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m = m.processEvent(msg.Event)
		m = m.refresh()
		if m.eventCh != nil {
			return m, listenForEvent(m.eventCh, m.doneCh)
		}
		return m, nil

	case DoneMsg:
		m.running = false
		m.cancel = nil
		m.eventCh = nil
		m.doneCh = nil
		m.consent = nil
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		}
		m = m.appendFailure()
		m = m.updateBlockFocus()
		m = m.refresh()
		cmds = append(cmds, m.Input.Focus())
		return m, tea.Batch(cmds...)

	case ConsentSentMsg:
		if msg.Err != nil {
			m.err = msg.Err
		}
		return m, nil

	case ResetMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.blocks = nil
		m.blockFocus = -1
		m = m.refresh()
		return m, nil
	}

	// Pass remaining messages to sub-components.
	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	// Output area.
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")

	// Status line.
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	// Input area.
	b.WriteString(m.Input.View())

	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := msg.Height - inputH - statusHeight - borderHeight

	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m = m.renderHistory()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m = m.refresh()

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyCtrlL:
		if !m.running {
			m.conv.Clear()
			m.blocks = nil
			m.blockFocus = -1
			m.err = nil
			m = m.refresh()
		}
		return m, nil

	case tea.KeyCtrlN:
		if !m.running {
			m.err = nil
			return m, resetSession(m.conv)
		}
		return m, nil

	case tea.KeyTab:
		if m.blockFocus >= 0 {
			block, cmd := m.blocks[m.blockFocus].Update(ToggleMsg{})
			m.blocks[m.blockFocus] = block
			m.Viewport.SetContent(m.renderContent())
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		m = m.cycleFocusPrev()
		m.Viewport.SetContent(m.renderContent())
		return m, nil

	case tea.KeyRunes:
		if m.AwaitingConsent() && len(msg.Runes) == 1 {
			switch msg.Runes[0] {
			case 'y', 'Y':
				return m.answerConsent(true)
			case 'n', 'N':
				return m.answerConsent(false)
			}
		}
	}

	// When idle, pass keys to both the input (for typing) and viewport
	// (for scrolling). Only forward non-character keys to viewport to avoid
	// conflicts (e.g. 'j'/'k' are viewport scroll AND text characters).
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.err = nil

	m.blocks = append(m.blocks, NewUserMessageBlock(text, m.styles))
	m = m.refresh()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.eventCh = make(chan dataops.Event, 256)
	m.doneCh = make(chan error, 1)
	m.running = true

	m.Input.Blur()

	return m, tea.Batch(
		startSubmit(m.conv, ctx, text, m.eventCh, m.doneCh),
		listenForEvent(m.eventCh, m.doneCh),
	)
}

func (m Model) answerConsent(approve bool) (tea.Model, tea.Cmd) {
	conv := m.conv
	return m, func() tea.Msg {
		return ConsentSentMsg{Err: conv.Consent(context.Background(), approve)}
	}
}

// renderHistory creates blocks from the conversation's past exchanges.
func (m Model) renderHistory() Model {
	for _, ex := range m.conv.History() {
		m.blocks = append(m.blocks, NewUserMessageBlock(ex.Input, m.styles))
		if len(ex.Events) == 0 {
			for _, line := range ex.Rendered {
				m.blocks = append(m.blocks, NewErrorBlock(line, m.styles))
			}
			continue
		}
		for _, e := range ex.Events {
			m = m.processEvent(e)
		}
	}
	m.consent = nil
	return m.updateBlockFocus()
}

// appendFailure shows the error the conversation recorded for the
// invocation that just finished, if it failed.
func (m Model) appendFailure() Model {
	history := m.conv.History()
	if len(history) == 0 {
		return m
	}
	last := history[len(history)-1]
	if len(last.Events) > 0 {
		return m
	}
	for _, line := range last.Rendered {
		if strings.HasPrefix(line, "Error: ") {
			m.blocks = append(m.blocks, NewErrorBlock(line, m.styles))
		}
	}
	return m
}

func (m Model) refresh() Model {
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	return m
}

func (m Model) renderContent() string {
	if len(m.blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

// processEvent turns a pipeline event into a block.
func (m Model) processEvent(e dataops.Event) Model {
	author := e.Author
	if author == "" {
		author = "unknown"
	}
	switch p := e.Part.(type) {
	case dataops.TextPart:
		if strings.TrimSpace(p.Text) == "" {
			return m
		}
		m.blocks = append(m.blocks, NewAssistantTextBlock(author, p.Text, m.theme, m.styles))
	case dataops.ToolCallPart:
		if prompt, ok := dataops.ConsentPrompt(e); ok {
			b := NewConsentBlock(prompt, m.theme, m.styles)
			m.blocks = append(m.blocks, b)
			m.consent = b
			return m
		}
		m.blocks = append(m.blocks, NewToolCallBlock(author, p.Name, p.ID, p.Args, m.styles))
		m = m.updateBlockFocus()
	case dataops.ToolResultPart:
		// A decision without a prompt was made by the gate itself and is
		// shown like any other result.
		if p.Name == dataops.ConsentTool && m.consent != nil {
			approved, _ := p.Response["approved"].(bool)
			m.consent.Resolve(approved)
			m.consent = nil
			return m
		}
		m.blocks = append(m.blocks, NewToolResultBlock(author, p.Name, p.Response, m.styles))
		m = m.updateBlockFocus()
	}
	return m
}

// updateBlockFocus scans backwards to find the last collapsible block.
// Only the focused block responds to Tab. ShiftTab cycles to the previous
// collapsible block.
func (m Model) updateBlockFocus() Model {
	m.blockFocus = -1
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if collapsible(m.blocks[i]) {
			m.blockFocus = i
			return m
		}
	}
	return m
}

// cycleFocusPrev moves blockFocus to the previous collapsible block, wrapping around.
func (m Model) cycleFocusPrev() Model {
	start := m.blockFocus - 1
	if start < 0 {
		start = len(m.blocks) - 1
	}
	for i := range len(m.blocks) {
		idx := (start - i + len(m.blocks)) % len(m.blocks)
		if collapsible(m.blocks[idx]) {
			m.blockFocus = idx
			return m
		}
	}
	m.blockFocus = -1
	return m
}

func (m Model) statusLine() string {
	var line string
	style := m.styles.Muted
	switch {
	case m.err != nil:
		line, style = fmt.Sprintf("Error: %v", m.err), m.styles.Error
	case m.AwaitingConsent():
		line, style = "Run this query? y to run, n to skip", m.styles.Consent
	case m.running:
		line = "Running..."
	default:
		line = fmt.Sprintf("Session %s · Enter to send, Ctrl+L clear, Ctrl+N new session, Ctrl+C quit", m.conv.SessionID())
	}
	if w := m.Viewport.Width; w > 0 {
		line = runewidth.Truncate(line, w, "…")
	}
	return style.Render(line)
}

// startSubmit runs one invocation in a goroutine and signals completion.
func startSubmit(conv Conversation, ctx context.Context, text string, eventCh chan<- dataops.Event, doneCh chan<- error) tea.Cmd {
	return func() tea.Msg {
		err := conv.Submit(ctx, text, func(e dataops.Event) {
			select {
			case eventCh <- e:
			case <-ctx.Done():
			}
		})
		close(eventCh)
		doneCh <- err
		return nil
	}
}

// listenForEvent waits for the next event from the channel.
// When the channel closes, it reads the error from doneCh and returns DoneMsg.
func listenForEvent(ch <-chan dataops.Event, doneCh <-chan error) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			err := <-doneCh
			return DoneMsg{Err: err}
		}
		return EventMsg{Event: evt}
	}
}

func resetSession(conv Conversation) tea.Cmd {
	return func() tea.Msg {
		return ResetMsg{Err: conv.Reset(context.Background())}
	}
}
