package dataops

import "context"

// Warehouse is the remote analytical query engine. Both methods are
// read-only with respect to the data. Domain failures (bad SQL, quota,
// permission) are reported in the returned value; the error return is
// reserved for infrastructure failures.
type Warehouse interface {
	// DryRun validates sql and estimates its cost without scanning billable
	// data or returning rows.
	DryRun(ctx context.Context, sql string) (CostReport, error)

	// Query executes sql and returns a bounded result set.
	Query(ctx context.Context, sql string) (QueryResult, error)
}

// ErrorKind classifies a warehouse failure.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindSyntax     ErrorKind = "syntax"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindQuota      ErrorKind = "quota"
	ErrorKindPermission ErrorKind = "permission"
	ErrorKindInternal   ErrorKind = "internal"
)

// CostReport is the outcome of a dry run.
type CostReport struct {
	SQL            string
	Valid          bool
	BytesProcessed int64
	Error          string
	ErrorKind      ErrorKind
}

// QueryResult is a bounded result set from a real execution.
type QueryResult struct {
	SQL       string
	Columns   []string
	Rows      []map[string]any
	TotalRows int64
	Truncated bool
	Error     string
	ErrorKind ErrorKind
}

// Agent is the backend handle a UI talks to: it owns sessions and runs the
// pipeline. Implementations exist in-process and over HTTP.
type Agent interface {
	// CreateSession opens a new conversation for userID.
	CreateSession(ctx context.Context, userID string) (Session, error)

	// StreamQuery runs one pipeline invocation. onEvent is called
	// sequentially for every event, in order; StreamQuery returns once the
	// invocation is complete.
	StreamQuery(ctx context.Context, req QueryRequest, onEvent func(Event)) error

	// Consent answers the pending consent request of an invocation.
	Consent(ctx context.Context, sessionID, invocationID string, approve bool) error
}

// QueryRequest identifies one user message sent to the pipeline.
type QueryRequest struct {
	UserID    string
	SessionID string
	Message   string
}
