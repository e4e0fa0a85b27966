package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/tools"
)

// Interface compliance check.
var _ dataops.ToolExecutor = (*pinned)(nil)

// pinned exposes a single tool bound to one query. Calls with any other SQL
// are refused with an error result, and the underlying call runs at most
// once; repeated calls get the cached result.
type pinned struct {
	name string
	sql  string
	call func(ctx context.Context) (*dataops.ToolResult, error)
	res  *dataops.ToolResult
}

func (p *pinned) Execute(ctx context.Context, name string, args json.RawMessage) (*dataops.ToolResult, error) {
	if name != p.name {
		return nil, fmt.Errorf("pipeline: %s: %w", name, dataops.ErrToolNotFound)
	}
	var in tools.Input
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return refuse(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}
	if normalizeSQL(in.SQL) != normalizeSQL(p.sql) {
		return refuse("the query was modified. Call the tool again with the query from the user message, unchanged"), nil
	}
	return p.run(ctx)
}

func (p *pinned) run(ctx context.Context) (*dataops.ToolResult, error) {
	if p.res != nil {
		return p.res, nil
	}
	res, err := p.call(ctx)
	if err != nil {
		return nil, err
	}
	p.res = res
	return res, nil
}

func (p *pinned) called() bool { return p.res != nil }

func refuse(msg string) *dataops.ToolResult {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return &dataops.ToolResult{
		Content: []dataops.ContentBlock{dataops.TextBlock{Text: string(b)}},
		Data:    map[string]any{"error": msg},
		IsError: true,
	}
}
