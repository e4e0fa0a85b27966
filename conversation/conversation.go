// Package conversation is the client side of a dataops agent: it owns one
// session, submits questions, and keeps the rendered history a UI shows.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fwojciec/dataops"
)

// Client talks to an agent on behalf of one user. Submit calls are
// serialized; the history accessors may be called concurrently with them.
type Client struct {
	agent  dataops.Agent
	userID string
	log    *slog.Logger

	run sync.Mutex // one in-flight action

	mu        sync.Mutex // guards the fields below
	sessionID string
	history   dataops.History
	pending   *dataops.Event
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client for userID. Call Start before Submit.
func New(agent dataops.Agent, userID string, opts ...Option) *Client {
	c := &Client{agent: agent, userID: userID, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start creates the session. It is a no-op once a session exists.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	started := c.sessionID != ""
	c.mu.Unlock()
	if started {
		return nil
	}
	return c.newSession(ctx)
}

// Reset starts a new session and clears the history.
func (c *Client) Reset(ctx context.Context) error {
	c.run.Lock()
	defer c.run.Unlock()
	if err := c.newSession(ctx); err != nil {
		return err
	}
	c.Clear()
	return nil
}

func (c *Client) newSession(ctx context.Context) error {
	sess, err := c.agent.CreateSession(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	c.mu.Lock()
	c.sessionID = sess.ID
	c.mu.Unlock()
	c.log.Info("session created", "session", sess.ID, "user", c.userID)
	return nil
}

// SessionID returns the current session id, or "" before Start.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Submit sends text to the agent and records one exchange. onEvent, if
// non-nil, sees each event as it arrives. A failed invocation is recorded
// as a single "Error: ..." exchange and Submit returns nil; only calling
// Submit before Start is an error.
func (c *Client) Submit(ctx context.Context, text string, onEvent func(dataops.Event)) error {
	c.run.Lock()
	defer c.run.Unlock()

	sessionID := c.SessionID()
	if sessionID == "" {
		return dataops.ErrSessionNotCreated
	}

	ex := dataops.Exchange{Input: text}
	stream := func(sessionID string) error {
		return c.agent.StreamQuery(ctx, dataops.QueryRequest{UserID: c.userID, SessionID: sessionID, Message: text}, func(e dataops.Event) {
			ex.Events = append(ex.Events, e)
			ex.Rendered = append(ex.Rendered, dataops.RenderEvent(e))
			c.trackConsent(e)
			if onEvent != nil {
				onEvent(e)
			}
		})
	}
	err := stream(sessionID)
	// The agent drops idle sessions. Start over in a fresh one unless the
	// invocation already produced events.
	if errors.Is(err, dataops.ErrSessionNotFound) && len(ex.Events) == 0 {
		c.log.Warn("session expired, creating a new one", "session", sessionID)
		if err = c.newSession(ctx); err == nil {
			sessionID = c.SessionID()
			err = stream(sessionID)
		}
	}
	c.clearConsent()
	if err != nil {
		c.log.Error("query failed", "session", sessionID, "error", err)
		ex = dataops.Exchange{Input: text, Rendered: []string{"Error: " + err.Error()}}
	}

	c.mu.Lock()
	c.history.Append(ex)
	c.mu.Unlock()
	return nil
}

func (c *Client) trackConsent(e dataops.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := dataops.ConsentPrompt(e); ok {
		c.pending = &e
		return
	}
	if p, ok := e.Part.(dataops.ToolResultPart); ok && p.Name == dataops.ConsentTool {
		c.pending = nil
	}
}

func (c *Client) clearConsent() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// PendingConsent returns the consent request of the in-flight invocation,
// if it is waiting for one.
func (c *Client) PendingConsent() (dataops.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return dataops.Event{}, false
	}
	return *c.pending, true
}

// Consent answers the pending consent request. It is meant to be called
// while Submit is running, typically from another goroutine.
func (c *Client) Consent(ctx context.Context, approve bool) error {
	e, ok := c.PendingConsent()
	if !ok {
		return dataops.ErrNoPendingConsent
	}
	return c.agent.Consent(ctx, c.SessionID(), e.InvocationID, approve)
}

// Clear empties the history. The session is kept.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Clear()
}

// History returns the exchanges in submission order.
func (c *Client) History() []dataops.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}
