package dataops

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool is the schema sent to the model describing a tool's capabilities.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolExecutor runs tools. Execute returns error for infrastructure failures.
// ToolResult.IsError indicates tool-reported domain failures sent back to the model.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error)
}

// ToolResult represents the outcome of a tool execution. Data holds the
// structured response as a JSON object; Content is what the model sees.
type ToolResult struct {
	Content []ContentBlock
	Data    map[string]any
	IsError bool
}

// Text returns the concatenated text blocks of the result.
func (r *ToolResult) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if tb, ok := b.(TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}
