package pipeline

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fwojciec/dataops"
)

// emitter stamps events of one invocation with a strictly increasing Seq.
type emitter struct {
	invocationID string
	seq          int
	now          func() time.Time
	fn           func(dataops.Event)
}

func (e *emitter) emit(author string, part dataops.Part) {
	evt := dataops.Event{
		Author:       author,
		InvocationID: e.invocationID,
		Seq:          e.seq,
		Part:         part,
		Timestamp:    e.now(),
	}
	e.seq++
	if e.fn != nil {
		e.fn(evt)
	}
}

// message converts a transcript message into events, in content order.
// Thinking blocks are not surfaced.
func (e *emitter) message(author string, m dataops.Message) {
	switch m := m.(type) {
	case dataops.AssistantMessage:
		var text strings.Builder
		flush := func() {
			if s := strings.TrimSpace(text.String()); s != "" {
				e.emit(author, dataops.TextPart{Text: s})
			}
			text.Reset()
		}
		for _, b := range m.Content {
			switch b := b.(type) {
			case dataops.TextBlock:
				text.WriteString(b.Text)
			case dataops.ToolCallBlock:
				flush()
				e.emit(author, dataops.ToolCallPart{ID: b.ID, Name: b.Name, Args: decodeObject(b.Arguments, "arguments")})
			}
		}
		flush()
	case dataops.ToolResultMessage:
		var text strings.Builder
		for _, b := range m.Content {
			if tb, ok := b.(dataops.TextBlock); ok {
				text.WriteString(tb.Text)
			}
		}
		e.emit(author, dataops.ToolResultPart{ID: m.ToolCallID, Name: m.ToolName, Response: decodeObject([]byte(text.String()), "result")})
	}
}

// decodeObject parses raw as a JSON object. Anything else is wrapped under
// key so events always carry an object.
func decodeObject(raw []byte, key string) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{key: string(raw)}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
