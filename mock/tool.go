package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/dataops"
)

// Interface compliance check.
var _ dataops.ToolExecutor = (*ToolExecutor)(nil)

// ToolExecutor is a test double for dataops.ToolExecutor.
// Set ExecuteFn before calling Execute.
type ToolExecutor struct {
	ExecuteFn func(ctx context.Context, name string, args json.RawMessage) (*dataops.ToolResult, error)
}

// Execute delegates to ExecuteFn.
func (e *ToolExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (*dataops.ToolResult, error) {
	return e.ExecuteFn(ctx, name, args)
}
