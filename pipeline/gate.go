package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/fwojciec/dataops"
)

// GateFunc adapts a function to [dataops.Gate].
type GateFunc func(ctx context.Context, req dataops.ConsentRequest) (dataops.Decision, error)

// Await calls f.
func (f GateFunc) Await(ctx context.Context, req dataops.ConsentRequest) (dataops.Decision, error) {
	return f(ctx, req)
}

// Screener is implemented by gates that can settle some requests without
// waiting for anyone. Screen reports false when the request needs an answer.
// The pipeline only shows a consent prompt for requests that are not settled
// this way.
type Screener interface {
	Screen(req dataops.ConsentRequest) (dataops.Decision, bool)
}

type staticGate dataops.Decision

func (g staticGate) Await(context.Context, dataops.ConsentRequest) (dataops.Decision, error) {
	return dataops.Decision(g), nil
}

func (g staticGate) Screen(dataops.ConsentRequest) (dataops.Decision, bool) {
	return dataops.Decision(g), true
}

var (
	// Approve approves every request.
	Approve dataops.Gate = staticGate(dataops.DecisionApproved)

	// Decline declines every request.
	Decline dataops.Gate = staticGate(dataops.DecisionDeclined)
)

// ThresholdGate approves queries that process at most Limit bytes and asks
// Next about the rest. A nil Next declines.
type ThresholdGate struct {
	Limit int64
	Next  dataops.Gate
}

// Interface compliance checks.
var (
	_ Screener = ThresholdGate{}
	_ Screener = staticGate(0)
)

// Screen implements [Screener]. Requests within the limit are approved; the
// rest are settled only when Next can settle them.
func (g ThresholdGate) Screen(req dataops.ConsentRequest) (dataops.Decision, bool) {
	if req.Cost.Valid && req.Cost.BytesProcessed <= g.Limit {
		return dataops.DecisionApproved, true
	}
	if g.Next == nil {
		return dataops.DecisionDeclined, true
	}
	if s, ok := g.Next.(Screener); ok {
		return s.Screen(req)
	}
	return dataops.DecisionPending, false
}

// Await implements [dataops.Gate].
func (g ThresholdGate) Await(ctx context.Context, req dataops.ConsentRequest) (dataops.Decision, error) {
	if d, ok := g.Screen(req); ok {
		return d, nil
	}
	return g.Next.Await(ctx, req)
}

// Decider accepts decisions for pending consent requests.
type Decider interface {
	Decide(sessionID, invocationID string, approve bool) error
}

// ChannelGate blocks each request until Decide is called for its
// invocation or the context ends. It is safe for concurrent use.
type ChannelGate struct {
	mu      sync.Mutex
	pending map[string]*waiter
}

type waiter struct {
	req dataops.ConsentRequest
	ch  chan dataops.Decision
}

// Interface compliance checks.
var (
	_ dataops.Gate = (*ChannelGate)(nil)
	_ Decider      = (*ChannelGate)(nil)
)

// NewChannelGate returns an empty [ChannelGate].
func NewChannelGate() *ChannelGate {
	return &ChannelGate{pending: make(map[string]*waiter)}
}

// Await implements [dataops.Gate].
func (g *ChannelGate) Await(ctx context.Context, req dataops.ConsentRequest) (dataops.Decision, error) {
	w := &waiter{req: req, ch: make(chan dataops.Decision, 1)}
	g.mu.Lock()
	g.pending[req.InvocationID] = w
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, req.InvocationID)
		g.mu.Unlock()
	}()

	select {
	case d := <-w.ch:
		return d, nil
	case <-ctx.Done():
		return dataops.DecisionPending, ctx.Err()
	}
}

// Decide answers the pending request of invocationID. The session must
// match the one the request belongs to.
func (g *ChannelGate) Decide(sessionID, invocationID string, approve bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.pending[invocationID]
	if !ok || w.req.SessionID != sessionID {
		return fmt.Errorf("invocation %s: %w", invocationID, dataops.ErrNoPendingConsent)
	}
	d := dataops.DecisionDeclined
	if approve {
		d = dataops.DecisionApproved
	}
	select {
	case w.ch <- d:
	default:
		return fmt.Errorf("invocation %s already decided: %w", invocationID, dataops.ErrNoPendingConsent)
	}
	delete(g.pending, invocationID)
	return nil
}

// Pending returns the request waiting in sessionID, if any.
func (g *ChannelGate) Pending(sessionID string) (dataops.ConsentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, w := range g.pending {
		if w.req.SessionID == sessionID {
			return w.req, true
		}
	}
	return dataops.ConsentRequest{}, false
}
