// Package bubbletea provides a Bubble Tea terminal UI for the dataops agent.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/dataops"
)

// Conversation is the session client the UI drives.
// *conversation.Client satisfies it.
type Conversation interface {
	SessionID() string
	Submit(ctx context.Context, text string, onEvent func(dataops.Event)) error
	Consent(ctx context.Context, approve bool) error
	Reset(ctx context.Context) error
	Clear()
	History() []dataops.Exchange
}

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// EventMsg wraps a pipeline event for delivery to the Bubble Tea model.
type EventMsg struct {
	Event dataops.Event
}

// DoneMsg signals that an invocation has completed.
type DoneMsg struct {
	Err error
}

// ConsentSentMsg reports the outcome of answering a consent request.
type ConsentSentMsg struct {
	Err error
}

// ResetMsg reports the outcome of starting a new session.
type ResetMsg struct {
	Err error
}
