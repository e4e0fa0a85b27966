// Package agent orchestrates the conversation loop between a Provider and a ToolExecutor.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fwojciec/dataops"
)

// ErrMaxTurns is returned when the model keeps requesting tools past the
// configured turn limit.
var ErrMaxTurns = errors.New("agent: too many tool turns")

const defaultMaxTurns = 8

// Loop orchestrates the conversation between a Provider and a ToolExecutor.
type Loop struct {
	provider dataops.Provider
	executor dataops.ToolExecutor
}

// New creates a new Loop with the given provider and tool executor.
func New(provider dataops.Provider, executor dataops.ToolExecutor) *Loop {
	return &Loop{provider: provider, executor: executor}
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent   func(dataops.StreamEvent)
	onMessage func(dataops.Message)
	model     string
	maxTurns  int
}

// WithEventHandler sets a callback that receives each streaming event during
// the run. If nil or not set, events are silently discarded.
func WithEventHandler(h func(dataops.StreamEvent)) RunOption {
	return func(c *runConfig) {
		c.onEvent = h
	}
}

// WithMessageHandler sets a callback that receives every message appended to
// the transcript, in order: each assistant message, then the tool results it
// caused.
func WithMessageHandler(h func(dataops.Message)) RunOption {
	return func(c *runConfig) {
		c.onMessage = h
	}
}

// WithModel sets the model ID for provider requests during this run.
// Empty string means the provider uses its default model.
func WithModel(model string) RunOption {
	return func(c *runConfig) {
		c.model = model
	}
}

// WithMaxTurns bounds the number of model requests in one run.
func WithMaxTurns(n int) RunOption {
	return func(c *runConfig) {
		c.maxTurns = n
	}
}

// Run executes the agent loop. It sends the transcript's messages to the
// provider, streams the response, executes any tool calls, and repeats until
// the assistant stops requesting tools. It appends all messages to t.Messages.
func (l *Loop) Run(ctx context.Context, t *dataops.Transcript, tools []dataops.Tool, opts ...RunOption) error {
	cfg := runConfig{maxTurns: defaultMaxTurns}
	for _, opt := range opts {
		opt(&cfg)
	}
	for i := 0; ; i++ {
		if cfg.maxTurns > 0 && i >= cfg.maxTurns {
			return fmt.Errorf("%w (%d)", ErrMaxTurns, cfg.maxTurns)
		}
		cont, err := l.turn(ctx, t, tools, &cfg)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

func (c *runConfig) emit(t *dataops.Transcript, m dataops.Message) {
	t.Messages = append(t.Messages, m)
	if c.onMessage != nil {
		c.onMessage(m)
	}
}

// turn executes a single turn of the conversation loop. It returns true if the
// loop should continue (tool calls were made), false if it should stop.
func (l *Loop) turn(ctx context.Context, t *dataops.Transcript, tools []dataops.Tool, cfg *runConfig) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	req := dataops.Request{
		Model:        cfg.model,
		SystemPrompt: t.SystemPrompt,
		Messages:     t.Messages,
		Tools:        tools,
	}

	stream, err := l.provider.Stream(ctx, req)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	// Drain the stream, forwarding events to handler if set.
	var streamErr error
	for {
		evt, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if cfg.onEvent != nil {
			cfg.onEvent(evt)
		}
	}

	// Get the assembled message (partial or complete).
	msg, msgErr := stream.Message()
	if msgErr != nil {
		if streamErr != nil {
			return false, streamErr
		}
		return false, msgErr
	}

	cfg.emit(t, msg)

	if streamErr != nil {
		return false, streamErr
	}

	var toolCalls []dataops.ToolCallBlock
	for _, block := range msg.Content {
		if tc, ok := block.(dataops.ToolCallBlock); ok {
			toolCalls = append(toolCalls, tc)
		}
	}

	if len(toolCalls) == 0 {
		return false, nil
	}

	for _, tc := range toolCalls {
		result, execErr := l.executor.Execute(ctx, tc.Name, tc.Arguments)
		if execErr != nil {
			result = &dataops.ToolResult{
				Content: []dataops.ContentBlock{dataops.TextBlock{Text: execErr.Error()}},
				IsError: true,
			}
		}

		cfg.emit(t, dataops.ToolResultMessage{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Content:    result.Content,
			IsError:    result.IsError,
			Timestamp:  time.Now(),
		})
	}

	return true, nil
}
