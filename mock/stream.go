package mock

import (
	"context"
	"io"

	"github.com/fwojciec/dataops"
)

// Interface compliance check.
var _ dataops.Stream = (*Stream)(nil)

// Stream is a test double for dataops.Stream.
// Set the function fields for the methods you need. NextFn and MessageFn
// panic when nil to catch missing setup. CloseFn and StateFn are nil-safe
// (no-op and zero value) because test code commonly calls defer stream.Close()
// and these methods rarely need custom behavior.
type Stream struct {
	NextFn    func() (dataops.StreamEvent, error)
	StateFn   func() dataops.StreamState
	MessageFn func() (dataops.AssistantMessage, error)
	CloseFn   func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (dataops.StreamEvent, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() dataops.StreamState {
	if s.StateFn == nil {
		return dataops.StreamStateNew
	}
	return s.StateFn()
}

// Message delegates to MessageFn.
func (s *Stream) Message() (dataops.AssistantMessage, error) {
	return s.MessageFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// CompletedStream returns a Stream that emits events in order, then io.EOF,
// and reports msg as the assembled message.
func CompletedStream(msg dataops.AssistantMessage, events ...dataops.StreamEvent) *Stream {
	i := 0
	return &Stream{
		NextFn: func() (dataops.StreamEvent, error) {
			if i >= len(events) {
				return nil, io.EOF
			}
			evt := events[i]
			i++
			return evt, nil
		},
		MessageFn: func() (dataops.AssistantMessage, error) {
			return msg, nil
		},
	}
}

// ScriptedProvider returns a Provider that answers successive Stream calls
// with the given messages in order. Calls beyond the script end the turn
// with an empty message. Not safe for concurrent use.
func ScriptedProvider(msgs ...dataops.AssistantMessage) *Provider {
	i := 0
	return &Provider{
		StreamFn: func(_ context.Context, _ dataops.Request) (dataops.Stream, error) {
			if i >= len(msgs) {
				return CompletedStream(dataops.AssistantMessage{StopReason: dataops.StopEndTurn}), nil
			}
			m := msgs[i]
			i++
			return CompletedStream(m), nil
		},
	}
}
