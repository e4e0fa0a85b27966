package mock

import (
	"context"

	"github.com/fwojciec/dataops"
)

// Interface compliance checks.
var (
	_ dataops.Agent = (*Agent)(nil)
	_ dataops.Gate  = (*Gate)(nil)
)

// Agent is a test double for dataops.Agent.
type Agent struct {
	CreateSessionFn func(ctx context.Context, userID string) (dataops.Session, error)
	StreamQueryFn   func(ctx context.Context, req dataops.QueryRequest, onEvent func(dataops.Event)) error
	ConsentFn       func(ctx context.Context, sessionID, invocationID string, approve bool) error
}

// CreateSession delegates to CreateSessionFn.
func (a *Agent) CreateSession(ctx context.Context, userID string) (dataops.Session, error) {
	return a.CreateSessionFn(ctx, userID)
}

// StreamQuery delegates to StreamQueryFn.
func (a *Agent) StreamQuery(ctx context.Context, req dataops.QueryRequest, onEvent func(dataops.Event)) error {
	return a.StreamQueryFn(ctx, req, onEvent)
}

// Consent delegates to ConsentFn.
func (a *Agent) Consent(ctx context.Context, sessionID, invocationID string, approve bool) error {
	return a.ConsentFn(ctx, sessionID, invocationID, approve)
}

// Gate is a test double for dataops.Gate.
type Gate struct {
	AwaitFn func(ctx context.Context, req dataops.ConsentRequest) (dataops.Decision, error)
}

// Await delegates to AwaitFn.
func (g *Gate) Await(ctx context.Context, req dataops.ConsentRequest) (dataops.Decision, error) {
	return g.AwaitFn(ctx, req)
}
