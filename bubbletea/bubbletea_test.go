package bubbletea_test

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/dataops"
	bt "github.com/fwojciec/dataops/bubbletea"
	"github.com/fwojciec/dataops/conversation"
	"github.com/fwojciec/dataops/mock"
	"github.com/stretchr/testify/require"
)

// newConversation returns a started conversation over agent.
func newConversation(t *testing.T, agent *mock.Agent) *conversation.Client {
	t.Helper()
	if agent.CreateSessionFn == nil {
		agent.CreateSessionFn = func(_ context.Context, userID string) (dataops.Session, error) {
			return dataops.Session{ID: "sess-1", UserID: userID}, nil
		}
	}
	c := conversation.New(agent, "tui_user")
	require.NoError(t, c.Start(context.Background()))
	return c
}

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, conv bt.Conversation) bt.Model {
	t.Helper()
	return initModelWithSize(t, conv, 80, 24)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, conv bt.Conversation, width, height int) bt.Model {
	t.Helper()
	m := bt.New(conv, dataops.DefaultTheme())
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	m, _ = update(t, m, msg)
	return m
}

func update(t *testing.T, m bt.Model, msg tea.Msg) (bt.Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model, cmd
}

// drive executes cmd and the commands it leads to until the invocation
// finishes. When answer is non-zero it is typed as soon as the model waits
// for consent.
func drive(t *testing.T, m bt.Model, cmd tea.Cmd, answer rune) bt.Model {
	t.Helper()
	msgs := make(chan tea.Msg, 64)
	exec := func(c tea.Cmd) {
		if c != nil {
			go func() { msgs <- c() }()
		}
	}
	exec(cmd)
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-msgs:
			switch msg := msg.(type) {
			case tea.BatchMsg:
				for _, c := range msg {
					exec(c)
				}
			case bt.EventMsg:
				var next tea.Cmd
				m, next = update(t, m, msg)
				exec(next)
				if answer != 0 && m.AwaitingConsent() {
					m, next = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{answer}})
					exec(next)
					answer = 0
				}
			case bt.ConsentSentMsg:
				m = updateModel(t, m, msg)
			case bt.DoneMsg:
				return updateModel(t, m, msg)
			}
		case <-timeout:
			t.Fatal("invocation did not finish")
		}
	}
}

// submit types text, presses enter and drives the invocation to completion.
func submit(t *testing.T, m bt.Model, text string, answer rune) bt.Model {
	t.Helper()
	m.Input.SetValue(text)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.Running())
	return drive(t, m, cmd, answer)
}
