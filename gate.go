package dataops

import "context"

// Gate decides whether a validated query may be executed. Await blocks until
// a decision is available or ctx is done. Only DecisionApproved lets the
// execution stage run.
type Gate interface {
	Await(ctx context.Context, req ConsentRequest) (Decision, error)
}

// ConsentRequest describes a query waiting for the user's go/no-go.
type ConsentRequest struct {
	InvocationID string
	SessionID    string
	SQL          string
	Cost         CostReport
}
