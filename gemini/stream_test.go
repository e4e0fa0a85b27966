package gemini_test

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// chunks returns a genai-style streaming iterator over fixed responses.
func chunks(cs ...*genai.GenerateContentResponse) func(func(*genai.GenerateContentResponse, error) bool) {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range cs {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func chunk(finish genai.FinishReason, parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: parts},
			FinishReason: finish,
		}},
	}
}

func drain(t *testing.T, s dataops.Stream) []dataops.StreamEvent {
	t.Helper()
	var events []dataops.StreamEvent
	for {
		evt, err := s.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, evt)
	}
}

func TestStream_TextAccumulates(t *testing.T) {
	t.Parallel()

	first := chunk("", &genai.Part{Text: "```sql\nSELECT repo_name"})
	second := chunk(genai.FinishReasonStop, &genai.Part{Text: " FROM t\n```"})
	second.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:        120,
		CachedContentTokenCount: 20,
		CandidatesTokenCount:    7,
	}

	s := gemini.NewStreamFromIter(context.Background(), chunks(first, nil, &genai.GenerateContentResponse{}, second))
	events := drain(t, s)

	assert.Equal(t, []dataops.StreamEvent{
		dataops.StreamTextDelta{Index: 0, Delta: "```sql\nSELECT repo_name"},
		dataops.StreamTextDelta{Index: 0, Delta: " FROM t\n```"},
	}, events)

	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, []dataops.ContentBlock{dataops.TextBlock{Text: "```sql\nSELECT repo_name FROM t\n```"}}, msg.Content)
	assert.Equal(t, dataops.StopEndTurn, msg.StopReason)
	assert.Equal(t, dataops.Usage{InputTokens: 100, OutputTokens: 7, CacheReadTokens: 20}, msg.Usage)
	assert.Equal(t, dataops.StreamStateComplete, s.State())
}

func TestStream_ToolCall(t *testing.T) {
	t.Parallel()

	s := gemini.NewStreamFromIter(context.Background(), chunks(
		chunk("", &genai.Part{Text: "checking cost", Thought: true}),
		chunk(genai.FinishReasonStop, &genai.Part{
			FunctionCall:     &genai.FunctionCall{Name: "explain_query", Args: map[string]any{"sql": "SELECT 1"}},
			ThoughtSignature: []byte("sig"),
		}),
	))
	events := drain(t, s)

	require.Len(t, events, 3)
	assert.Equal(t, dataops.StreamThinkingDelta{Index: 0, Delta: "checking cost"}, events[0])
	begin, ok := events[1].(dataops.StreamToolCallBegin)
	require.True(t, ok)
	assert.Equal(t, "explain_query", begin.Name)
	assert.True(t, strings.HasPrefix(begin.ID, "call_"), begin.ID)
	end, ok := events[2].(dataops.StreamToolCallEnd)
	require.True(t, ok)
	assert.Equal(t, begin.ID, end.Call.ID)
	assert.JSONEq(t, `{"sql":"SELECT 1"}`, string(end.Call.Arguments))

	msg, err := s.Message()
	require.NoError(t, err)
	require.Len(t, msg.Content, 2)
	// The call's signature is carried back to the unsigned thinking block.
	assert.Equal(t, dataops.ThinkingBlock{Thinking: "checking cost", Signature: []byte("sig")}, msg.Content[0])
	assert.Equal(t, end.Call, msg.Content[1])
	assert.Equal(t, dataops.StopToolUse, msg.StopReason)
}

func TestStream_ToolCallKeepsIDAndDefaultsArgs(t *testing.T) {
	t.Parallel()

	s := gemini.NewStreamFromIter(context.Background(), chunks(
		chunk(genai.FinishReasonStop,
			&genai.Part{FunctionCall: &genai.FunctionCall{ID: "fc_1", Name: "execute_bigquery_sql"}},
			&genai.Part{FunctionCall: &genai.FunctionCall{ID: "fc_2", Name: "explain_query", Args: map[string]any{}}},
		),
	))
	drain(t, s)

	msg, err := s.Message()
	require.NoError(t, err)
	require.Len(t, msg.Content, 2)
	first := msg.Content[0].(dataops.ToolCallBlock)
	assert.Equal(t, "fc_1", first.ID)
	assert.JSONEq(t, `{}`, string(first.Arguments))
	assert.Equal(t, "fc_2", msg.Content[1].(dataops.ToolCallBlock).ID)
}

func TestStream_InterleavedBlocks(t *testing.T) {
	t.Parallel()

	s := gemini.NewStreamFromIter(context.Background(), chunks(
		chunk("",
			&genai.Part{Text: "plan ", Thought: true},
			&genai.Part{Text: "a", Thought: true, ThoughtSignature: []byte("s1")},
			&genai.Part{Text: "The top repo"},
		),
		chunk(genai.FinishReasonStop,
			&genai.Part{Text: "more", Thought: true},
			&genai.Part{Text: "", Thought: true},
		),
	))
	events := drain(t, s)

	assert.Equal(t, []dataops.StreamEvent{
		dataops.StreamThinkingDelta{Index: 0, Delta: "plan "},
		dataops.StreamThinkingDelta{Index: 0, Delta: "a"},
		dataops.StreamTextDelta{Index: 1, Delta: "The top repo"},
		dataops.StreamThinkingDelta{Index: 2, Delta: "more"},
	}, events)

	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, []dataops.ContentBlock{
		dataops.ThinkingBlock{Thinking: "plan a", Signature: []byte("s1")},
		dataops.TextBlock{Text: "The top repo"},
		dataops.ThinkingBlock{Thinking: "more"},
	}, msg.Content)
}

func TestStream_FinishReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		finish genai.FinishReason
		want   dataops.StopReason
		raw    string
	}{
		{name: "stop", finish: genai.FinishReasonStop, want: dataops.StopEndTurn, raw: "STOP"},
		{name: "max tokens", finish: genai.FinishReasonMaxTokens, want: dataops.StopLength, raw: "MAX_TOKENS"},
		{name: "safety", finish: genai.FinishReasonSafety, want: dataops.StopError, raw: "SAFETY"},
		{name: "missing", finish: "", want: dataops.StopEndTurn, raw: "end_turn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := gemini.NewStreamFromIter(context.Background(), chunks(chunk(tt.finish, &genai.Part{Text: "x"})))
			drain(t, s)
			msg, err := s.Message()
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.StopReason)
			assert.Equal(t, tt.raw, msg.RawStopReason)
		})
	}
}

func TestStream_LengthWithToolCallIsNotToolUse(t *testing.T) {
	t.Parallel()

	s := gemini.NewStreamFromIter(context.Background(), chunks(
		chunk(genai.FinishReasonMaxTokens, &genai.Part{FunctionCall: &genai.FunctionCall{ID: "fc", Name: "explain_query"}}),
	))
	drain(t, s)

	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, dataops.StopLength, msg.StopReason)
}

func TestStream_Failures(t *testing.T) {
	t.Parallel()

	t.Run("prompt blocked", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), chunks(&genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}))
		_, err := s.Next()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prompt blocked")
		assert.Equal(t, dataops.StreamStateError, s.State())
		msg, err := s.Message()
		require.NoError(t, err)
		assert.Equal(t, dataops.StopError, msg.StopReason)
		assert.Equal(t, "SAFETY", msg.RawStopReason)
	})

	t.Run("iterator error", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), func(yield func(*genai.GenerateContentResponse, error) bool) {
			yield(nil, assert.AnError)
		})
		_, err := s.Next()
		require.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "gemini:")
		// The error is sticky.
		_, again := s.Next()
		assert.Equal(t, err, again)
		msg, _ := s.Message()
		assert.Equal(t, dataops.StopError, msg.StopReason)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := gemini.NewStreamFromIter(ctx, chunks(chunk(genai.FinishReasonStop, &genai.Part{Text: "x"})))
		_, err := s.Next()
		require.ErrorIs(t, err, context.Canceled)
		msg, _ := s.Message()
		assert.Equal(t, dataops.StopAborted, msg.StopReason)
		assert.Equal(t, "aborted", msg.RawStopReason)
	})

	t.Run("unencodable arguments", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), chunks(chunk(genai.FinishReasonStop,
			&genai.Part{FunctionCall: &genai.FunctionCall{ID: "fc", Name: "explain_query", Args: map[string]any{"v": math.NaN()}}},
		)))
		_, err := s.Next()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid tool call arguments for explain_query")
		assert.Equal(t, dataops.StreamStateError, s.State())
	})
}

func TestStream_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("message before next", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), chunks())
		assert.Equal(t, dataops.StreamStateNew, s.State())
		_, err := s.Message()
		require.ErrorIs(t, err, dataops.ErrStreamNotReady)
	})

	t.Run("close mid-stream aborts", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), chunks(
			chunk("", &genai.Part{Text: "partial"}),
			chunk(genai.FinishReasonStop, &genai.Part{Text: " rest"}),
		))
		_, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, dataops.StreamStateStreaming, s.State())

		require.NoError(t, s.Close())
		assert.Equal(t, dataops.StreamStateClosed, s.State())
		_, err = s.Next()
		require.ErrorIs(t, err, gemini.ErrStreamClosed)

		msg, err := s.Message()
		require.NoError(t, err)
		assert.Equal(t, dataops.StopAborted, msg.StopReason)
		assert.Equal(t, []dataops.ContentBlock{dataops.TextBlock{Text: "partial"}}, msg.Content)
	})

	t.Run("close after completion keeps result", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), chunks(chunk(genai.FinishReasonStop, &genai.Part{Text: "done"})))
		drain(t, s)
		require.NoError(t, s.Close())
		assert.Equal(t, dataops.StreamStateComplete, s.State())
		_, err := s.Next()
		assert.Equal(t, io.EOF, err)
		msg, _ := s.Message()
		assert.Equal(t, dataops.StopEndTurn, msg.StopReason)
	})
}
