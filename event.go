package dataops

import "time"

// Event is one unit of streamed output from a pipeline invocation. Every
// event belongs to exactly one stage (Author) and one invocation. Seq is
// strictly increasing within an invocation, starting at 0.
type Event struct {
	Author       string
	InvocationID string
	Seq          int
	Part         Part
	Timestamp    time.Time
}

// Part is a sealed interface over the kinds of event payload.
// The unexported marker method prevents external implementations.
type Part interface {
	part()
}

// TextPart is plain text produced by a stage.
type TextPart struct {
	Text string
}

func (TextPart) part() {}

// ToolCallPart is a request by a stage to invoke a tool.
type ToolCallPart struct {
	ID   string
	Name string
	Args map[string]any
}

func (ToolCallPart) part() {}

// ToolResultPart is the response of a tool invocation.
type ToolResultPart struct {
	ID       string
	Name     string
	Response map[string]any
}

func (ToolResultPart) part() {}

// Interface compliance checks.
var (
	_ Part = TextPart{}
	_ Part = ToolCallPart{}
	_ Part = ToolResultPart{}
)

// ConsentTool is the name of the pseudo tool call a pipeline emits when it
// starts waiting for the user's go/no-go, and of the matching response once
// a decision is made.
const ConsentTool = "request_consent"

// ConsentPrompt returns the consent request carried by e, if any.
func ConsentPrompt(e Event) (ToolCallPart, bool) {
	p, ok := e.Part.(ToolCallPart)
	if !ok || p.Name != ConsentTool {
		return ToolCallPart{}, false
	}
	return p, true
}
