package dataops

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving deltas.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

// Stream uses a pull-based iterator pattern over a single model response.
// Cancellation flows through the context passed to Provider.Stream().
//
// Message() returns the assembled AssistantMessage. Behavior by stream state:
//   - StreamStateComplete: complete message, nil error.
//   - StreamStateError: partial message, nil error. StopReason is StopError
//     for transport/protocol failures, StopAborted for context cancellation.
//   - StreamStateStreaming: partial message, nil error.
//   - StreamStateNew: zero-value message, non-nil error.
//   - StreamStateClosed: partial message with StopReason = StopAborted.
type Stream interface {
	Next() (StreamEvent, error)
	State() StreamState
	Message() (AssistantMessage, error)
	Close() error
}

// StreamEvent is a sealed interface for incremental model output. These are
// provider-level deltas; the pipeline folds them into [Event] values.
// Transport/protocol errors come from Next()'s error return, not from events.
type StreamEvent interface {
	streamEvent()
}

// StreamTextDelta represents a text content delta. Index identifies the
// content block within the current message.
type StreamTextDelta struct {
	Index int
	Delta string
}

func (StreamTextDelta) streamEvent() {}

// StreamThinkingDelta represents a thinking content delta.
type StreamThinkingDelta struct {
	Index int
	Delta string
}

func (StreamThinkingDelta) streamEvent() {}

// StreamToolCallBegin signals the start of a tool call.
type StreamToolCallBegin struct {
	ID   string
	Name string
}

func (StreamToolCallBegin) streamEvent() {}

// StreamToolCallEnd signals the completion of a tool call with the assembled block.
type StreamToolCallEnd struct {
	Call ToolCallBlock
}

func (StreamToolCallEnd) streamEvent() {}

// Interface compliance checks.
var (
	_ StreamEvent = StreamTextDelta{}
	_ StreamEvent = StreamThinkingDelta{}
	_ StreamEvent = StreamToolCallBegin{}
	_ StreamEvent = StreamToolCallEnd{}
)
