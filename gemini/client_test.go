package gemini_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMessages_UserMessage(t *testing.T) {
	t.Parallel()
	msgs := []dataops.Message{
		dataops.UserMessage{Content: []dataops.ContentBlock{dataops.TextBlock{Text: "Hello"}}},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 1)
	assert.Equal(t, "user", got[0].Role)
	require.Len(t, got[0].Parts, 1)
	assert.Equal(t, "Hello", got[0].Parts[0].Text)
}

func TestConvertMessages_AssistantMessage(t *testing.T) {
	t.Parallel()
	msgs := []dataops.Message{
		dataops.AssistantMessage{Content: []dataops.ContentBlock{
			dataops.TextBlock{Text: "Let me help."},
		}},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 1)
	assert.Equal(t, "model", got[0].Role)
	require.Len(t, got[0].Parts, 1)
	assert.Equal(t, "Let me help.", got[0].Parts[0].Text)
}

func TestConvertMessages_ThinkingWithSignature(t *testing.T) {
	t.Parallel()
	sig := []byte("thought-sig-data")
	msgs := []dataops.Message{
		dataops.AssistantMessage{Content: []dataops.ContentBlock{
			dataops.ThinkingBlock{Thinking: "reasoning", Signature: sig},
			dataops.TextBlock{Text: "Answer"},
		}},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 1)
	require.Len(t, got[0].Parts, 2)
	assert.Equal(t, "reasoning", got[0].Parts[0].Text)
	assert.True(t, got[0].Parts[0].Thought)
	assert.Equal(t, []byte("thought-sig-data"), got[0].Parts[0].ThoughtSignature)
	assert.Equal(t, "Answer", got[0].Parts[1].Text)
}

func TestConvertMessages_ToolCallAndResult(t *testing.T) {
	t.Parallel()
	msgs := []dataops.Message{
		dataops.AssistantMessage{Content: []dataops.ContentBlock{
			dataops.ToolCallBlock{ID: "call_123", Name: "explain_query", Arguments: json.RawMessage(`{"sql":"SELECT 1"}`)},
		}},
		dataops.ToolResultMessage{
			ToolCallID: "call_123",
			ToolName:   "explain_query",
			Content:    []dataops.ContentBlock{dataops.TextBlock{Text: "no rows"}},
		},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 2)

	// Assistant with tool call: ID passed through.
	assert.Equal(t, "model", got[0].Role)
	require.Len(t, got[0].Parts, 1)
	require.NotNil(t, got[0].Parts[0].FunctionCall)
	assert.Equal(t, "call_123", got[0].Parts[0].FunctionCall.ID)
	assert.Equal(t, "explain_query", got[0].Parts[0].FunctionCall.Name)
	assert.Equal(t, "SELECT 1", got[0].Parts[0].FunctionCall.Args["sql"])

	// Tool result: ID correlates, output in "output" key.
	assert.Equal(t, "user", got[1].Role)
	require.Len(t, got[1].Parts, 1)
	require.NotNil(t, got[1].Parts[0].FunctionResponse)
	assert.Equal(t, "call_123", got[1].Parts[0].FunctionResponse.ID)
	assert.Equal(t, "explain_query", got[1].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "no rows", got[1].Parts[0].FunctionResponse.Response["output"])
}

func TestConvertMessages_ToolResultError(t *testing.T) {
	t.Parallel()
	msgs := []dataops.Message{
		dataops.AssistantMessage{Content: []dataops.ContentBlock{
			dataops.ToolCallBlock{ID: "call_err", Name: "execute_bigquery_sql", Arguments: json.RawMessage(`{"sql":"SELECT 1"}`)},
		}},
		dataops.ToolResultMessage{
			ToolCallID: "call_err",
			ToolName:   "execute_bigquery_sql",
			Content:    []dataops.ContentBlock{dataops.TextBlock{Text: "Access Denied: Table bigquery-public-data"}},
			IsError:    true,
		},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 2)

	// Error result: uses "error" key.
	resp := got[1].Parts[0].FunctionResponse
	assert.Equal(t, "call_err", resp.ID)
	assert.Equal(t, "Access Denied: Table bigquery-public-data", resp.Response["error"])
	assert.Nil(t, resp.Response["output"])
}

func TestConvertTools(t *testing.T) {
	t.Parallel()
	tools := []dataops.Tool{
		{Name: "explain_query", Description: "Dry-run a query", Parameters: json.RawMessage(`{"type":"object","properties":{"sql":{"type":"string"}},"required":["sql"]}`)},
		{Name: "execute_bigquery_sql", Description: "Execute a query", Parameters: json.RawMessage(`{"type":"object","properties":{"sql":{"type":"string"}}}`)},
	}
	got := gemini.ConvertTools(tools)
	require.Len(t, got, 1) // single genai.Tool with multiple declarations
	require.Len(t, got[0].FunctionDeclarations, 2)
	assert.Equal(t, "explain_query", got[0].FunctionDeclarations[0].Name)
	assert.Equal(t, "Dry-run a query", got[0].FunctionDeclarations[0].Description)
	assert.Equal(t, "execute_bigquery_sql", got[0].FunctionDeclarations[1].Name)
}

func TestConvertTools_Empty(t *testing.T) {
	t.Parallel()
	got := gemini.ConvertTools(nil)
	assert.Nil(t, got)
}

func TestConvertMessages_ThinkingNoSignature(t *testing.T) {
	t.Parallel()
	msgs := []dataops.Message{
		dataops.AssistantMessage{Content: []dataops.ContentBlock{
			dataops.ThinkingBlock{Thinking: "just thinking"},
			dataops.TextBlock{Text: "Answer"},
		}},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 1)
	require.Len(t, got[0].Parts, 2)
	assert.True(t, got[0].Parts[0].Thought)
	assert.Nil(t, got[0].Parts[0].ThoughtSignature)
}

func TestConvertMessages_ToolResultJSONObject(t *testing.T) {
	t.Parallel()
	msgs := []dataops.Message{
		dataops.ToolResultMessage{
			ToolCallID: "call_1",
			ToolName:   "explain_query",
			Content:    []dataops.ContentBlock{dataops.TextBlock{Text: `{"valid":true,"bytes_processed":1024}`}},
		},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 1)
	out, ok := got[0].Parts[0].FunctionResponse.Response["output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["valid"])
	assert.InDelta(t, 1024, out["bytes_processed"], 0)
}

func TestConvertMessages_ToolCallSignature(t *testing.T) {
	t.Parallel()
	msgs := []dataops.Message{
		dataops.AssistantMessage{Content: []dataops.ContentBlock{
			dataops.ToolCallBlock{ID: "c", Name: "explain_query", Arguments: json.RawMessage(`{}`), Signature: []byte("sig")},
		}},
	}
	got := gemini.ConvertMessages(msgs)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("sig"), got[0].Parts[0].ThoughtSignature)
}
