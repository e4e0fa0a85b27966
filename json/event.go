package json

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/dataops"
)

// eventDTO is the JSON representation of an Event.
type eventDTO struct {
	Author       string    `json:"author"`
	InvocationID string    `json:"invocation_id"`
	Seq          int       `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Part         partDTO   `json:"part"`
}

// partDTO is the JSON representation of a Part with a type discriminator.
type partDTO struct {
	Type     string          `json:"type"`
	Text     *string         `json:"text,omitempty"`
	ID       *string         `json:"id,omitempty"`
	Name     *string         `json:"name,omitempty"`
	Args     *map[string]any `json:"args,omitempty"`
	Response *map[string]any `json:"response,omitempty"`
}

// MarshalEvent serializes an Event to a single line of JSON.
func MarshalEvent(e dataops.Event) ([]byte, error) {
	p, err := marshalPart(e.Part)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventDTO{
		Author:       e.Author,
		InvocationID: e.InvocationID,
		Seq:          e.Seq,
		Timestamp:    e.Timestamp,
		Part:         p,
	})
}

// UnmarshalEvent deserializes an Event.
func UnmarshalEvent(data []byte) (dataops.Event, error) {
	var dto eventDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return dataops.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	p, err := unmarshalPart(dto.Part)
	if err != nil {
		return dataops.Event{}, err
	}
	return dataops.Event{
		Author:       dto.Author,
		InvocationID: dto.InvocationID,
		Seq:          dto.Seq,
		Timestamp:    dto.Timestamp,
		Part:         p,
	}, nil
}

func marshalPart(p dataops.Part) (partDTO, error) {
	switch v := p.(type) {
	case dataops.TextPart:
		return partDTO{Type: "text", Text: &v.Text}, nil
	case dataops.ToolCallPart:
		args := orEmpty(v.Args)
		return partDTO{Type: "tool_call", ID: &v.ID, Name: &v.Name, Args: &args}, nil
	case dataops.ToolResultPart:
		resp := orEmpty(v.Response)
		return partDTO{Type: "tool_result", ID: &v.ID, Name: &v.Name, Response: &resp}, nil
	default:
		return partDTO{}, fmt.Errorf("unknown part type: %T", p)
	}
}

func unmarshalPart(dto partDTO) (dataops.Part, error) {
	switch dto.Type {
	case "text":
		return dataops.TextPart{Text: deref(dto.Text)}, nil
	case "tool_call":
		p := dataops.ToolCallPart{ID: deref(dto.ID), Name: deref(dto.Name)}
		if dto.Args != nil {
			p.Args = *dto.Args
		}
		return p, nil
	case "tool_result":
		p := dataops.ToolResultPart{ID: deref(dto.ID), Name: deref(dto.Name)}
		if dto.Response != nil {
			p.Response = *dto.Response
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown part type: %q", dto.Type)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
