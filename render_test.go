package dataops_test

import (
	"testing"

	"github.com/fwojciec/dataops"
	"github.com/stretchr/testify/assert"
)

func TestRenderEvent(t *testing.T) {
	t.Parallel()

	t.Run("text part", func(t *testing.T) {
		t.Parallel()
		got := dataops.RenderEvent(dataops.Event{
			Author: "a",
			Part:   dataops.TextPart{Text: "hi"},
		})
		assert.Equal(t, "**a**: hi", got)
	})

	t.Run("tool call part", func(t *testing.T) {
		t.Parallel()
		got := dataops.RenderEvent(dataops.Event{
			Author: "a",
			Part:   dataops.ToolCallPart{Name: "run", Args: map[string]any{"x": 1}},
		})
		assert.Contains(t, got, "Function Call: `run`")
		assert.Contains(t, got, `"x": 1`)
		assert.Equal(t, "**a** - Function Call: `run`\n```json\n{\n  \"x\": 1\n}\n```", got)
	})

	t.Run("tool result part", func(t *testing.T) {
		t.Parallel()
		got := dataops.RenderEvent(dataops.Event{
			Author: "explainer",
			Part: dataops.ToolResultPart{
				Name:     "explain_query",
				Response: map[string]any{"valid": true, "bytes_processed": 1024},
			},
		})
		assert.Contains(t, got, "**explainer** - Function Response: `explain_query`")
		assert.Contains(t, got, `"bytes_processed": 1024`)
		assert.Contains(t, got, `"valid": true`)
	})

	t.Run("does not escape html in sql", func(t *testing.T) {
		t.Parallel()
		got := dataops.RenderEvent(dataops.Event{
			Author: "a",
			Part:   dataops.ToolCallPart{Name: "run", Args: map[string]any{"sql": "SELECT 1 WHERE a < b"}},
		})
		assert.Contains(t, got, "a < b")
	})

	t.Run("nil args render as empty object", func(t *testing.T) {
		t.Parallel()
		got := dataops.RenderEvent(dataops.Event{Author: "a", Part: dataops.ToolCallPart{Name: "run"}})
		assert.Contains(t, got, "```json\n{}\n```")
	})

	t.Run("missing author and name", func(t *testing.T) {
		t.Parallel()
		got := dataops.RenderEvent(dataops.Event{Part: dataops.ToolResultPart{}})
		assert.Contains(t, got, "**unknown** - Function Response: `unknown`")
	})

	t.Run("nil part", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "**a**: ", dataops.RenderEvent(dataops.Event{Author: "a"}))
	})
}

func TestPartTypeSwitch_Exhaustive(t *testing.T) {
	t.Parallel()
	parts := []dataops.Part{
		dataops.TextPart{Text: "hello"},
		dataops.ToolCallPart{ID: "tc_1", Name: "explain_query"},
		dataops.ToolResultPart{ID: "tc_1", Name: "explain_query"},
	}
	assert.Len(t, parts, 3, "update slice and switch when adding new Part types")
	for _, p := range parts {
		switch p.(type) {
		case dataops.TextPart:
		case dataops.ToolCallPart:
		case dataops.ToolResultPart:
		default:
			t.Fatalf("unexpected part type: %T", p)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", dataops.FormatBytes(int64(512)))
	assert.Equal(t, "2.00 KiB", dataops.FormatBytes(float64(2048)))
	assert.Equal(t, "1.50 GiB", dataops.FormatBytes(int64(3<<29)))
	assert.Equal(t, "unknown", dataops.FormatBytes(nil))
	assert.Equal(t, "unknown", dataops.FormatBytes("10"))
}
