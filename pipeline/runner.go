package pipeline

import (
	"context"
	"fmt"

	"github.com/fwojciec/dataops"
)

// Interface compliance check.
var _ dataops.Agent = (*Runner)(nil)

// Runner serves a [Pipeline] in-process through the [dataops.Agent]
// interface. Consent decisions are forwarded to the Decider, which should
// be the gate (or the interactive part of the gate) the pipeline waits on.
type Runner struct {
	pipeline *Pipeline
	decider  Decider
}

// NewRunner returns a Runner. A nil decider rejects every Consent call.
func NewRunner(p *Pipeline, d Decider) *Runner {
	return &Runner{pipeline: p, decider: d}
}

// CreateSession creates a session for userID under [AppName].
func (r *Runner) CreateSession(ctx context.Context, userID string) (dataops.Session, error) {
	if userID == "" {
		return dataops.Session{}, fmt.Errorf("user id is required: %w", dataops.ErrValidation)
	}
	return r.pipeline.Sessions().CreateSession(ctx, AppName, userID)
}

// StreamQuery runs one invocation and passes its events to onEvent.
func (r *Runner) StreamQuery(ctx context.Context, req dataops.QueryRequest, onEvent func(dataops.Event)) error {
	_, err := r.pipeline.Run(ctx, req, onEvent)
	return err
}

// Consent answers the pending consent request of an invocation.
func (r *Runner) Consent(_ context.Context, sessionID, invocationID string, approve bool) error {
	if r.decider == nil {
		return fmt.Errorf("invocation %s: %w", invocationID, dataops.ErrNoPendingConsent)
	}
	return r.decider.Decide(sessionID, invocationID, approve)
}
