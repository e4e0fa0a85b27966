package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/fwojciec/dataops"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// stream implements [dataops.Stream] by wrapping the genai SDK's streaming
// iterator. Each response chunk may yield several events; they are queued
// and handed out one per Next call.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	state   dataops.StreamState
	msg     dataops.AssistantMessage
	err     error
	pending []dataops.StreamEvent
	// open is the index of the text or thinking block that receives the next
	// delta of the same kind, or -1.
	open     int
	toolCall bool
}

// Interface compliance check.
var _ dataops.Stream = (*stream)(nil)

// NewStreamFromIter wraps a genai streaming iterator. Exported for testing.
func NewStreamFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) dataops.Stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		pull:  next,
		stop:  stop,
		state: dataops.StreamStateNew,
		open:  -1,
	}
}

func (s *stream) Next() (dataops.StreamEvent, error) {
	switch s.state {
	case dataops.StreamStateComplete:
		return nil, io.EOF
	case dataops.StreamStateError:
		return nil, s.err
	case dataops.StreamStateClosed:
		return nil, fmt.Errorf("gemini: %w", ErrStreamClosed)
	}
	for {
		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			s.state = dataops.StreamStateStreaming
			return evt, nil
		}
		if err := s.ctx.Err(); err != nil {
			return nil, s.fail(dataops.StopAborted, "aborted", err)
		}
		chunk, err, ok := s.pull()
		if !ok {
			s.finalize()
			s.state = dataops.StreamStateComplete
			return nil, io.EOF
		}
		if err != nil {
			return nil, s.fail(dataops.StopError, "error", err)
		}
		if chunk == nil {
			continue
		}
		if err := s.processChunk(chunk); err != nil {
			return nil, err
		}
	}
}

func (s *stream) fail(reason dataops.StopReason, raw string, err error) error {
	s.state = dataops.StreamStateError
	s.msg.StopReason = reason
	if s.msg.RawStopReason == "" || reason == dataops.StopAborted {
		s.msg.RawStopReason = raw
	}
	s.err = fmt.Errorf("gemini: %w", err)
	return s.err
}

func (s *stream) processChunk(chunk *genai.GenerateContentResponse) error {
	if u := chunk.UsageMetadata; u != nil {
		cached := int(u.CachedContentTokenCount)
		s.msg.Usage = dataops.Usage{
			InputTokens:     max(int(u.PromptTokenCount)-cached, 0),
			OutputTokens:    int(u.CandidatesTokenCount),
			CacheReadTokens: cached,
		}
	}
	if len(chunk.Candidates) == 0 {
		if fb := chunk.PromptFeedback; fb != nil && fb.BlockReason != "" {
			s.msg.RawStopReason = string(fb.BlockReason)
			return s.fail(dataops.StopError, string(fb.BlockReason), fmt.Errorf("prompt blocked: %s", fb.BlockReason))
		}
		return nil
	}
	cand := chunk.Candidates[0]
	if cand.FinishReason != "" {
		s.msg.StopReason = mapFinishReason(cand.FinishReason)
		s.msg.RawStopReason = string(cand.FinishReason)
	}
	if cand.Content == nil {
		return nil
	}
	for _, p := range cand.Content.Parts {
		if p == nil {
			continue
		}
		if err := s.processPart(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *stream) processPart(p *genai.Part) error {
	switch {
	case p.FunctionCall != nil:
		return s.processCall(p)
	case p.Thought:
		idx := s.openBlock(func(b dataops.ContentBlock) bool {
			_, ok := b.(dataops.ThinkingBlock)
			return ok
		}, dataops.ThinkingBlock{})
		tb := s.msg.Content[idx].(dataops.ThinkingBlock)
		tb.Thinking += p.Text
		if len(p.ThoughtSignature) > 0 {
			tb.Signature = p.ThoughtSignature
		}
		s.msg.Content[idx] = tb
		if p.Text != "" {
			s.pending = append(s.pending, dataops.StreamThinkingDelta{Index: idx, Delta: p.Text})
		}
	case p.Text != "":
		idx := s.openBlock(func(b dataops.ContentBlock) bool {
			_, ok := b.(dataops.TextBlock)
			return ok
		}, dataops.TextBlock{})
		tb := s.msg.Content[idx].(dataops.TextBlock)
		tb.Text += p.Text
		s.msg.Content[idx] = tb
		s.pending = append(s.pending, dataops.StreamTextDelta{Index: idx, Delta: p.Text})
	}
	return nil
}

// openBlock returns the index of the open block if it matches, otherwise
// appends fresh and returns its index.
func (s *stream) openBlock(match func(dataops.ContentBlock) bool, fresh dataops.ContentBlock) int {
	if s.open >= 0 && match(s.msg.Content[s.open]) {
		return s.open
	}
	s.msg.Content = append(s.msg.Content, fresh)
	s.open = len(s.msg.Content) - 1
	return s.open
}

func (s *stream) processCall(p *genai.Part) error {
	fc := p.FunctionCall
	args := json.RawMessage("{}")
	if fc.Args != nil {
		b, err := json.Marshal(fc.Args)
		if err != nil {
			return s.fail(dataops.StopError, "error", fmt.Errorf("invalid tool call arguments for %s: %w", fc.Name, err))
		}
		args = b
	}
	// Gemini attaches the thought signature to the call part; carry it back
	// to an unsigned thinking block that precedes it.
	if len(p.ThoughtSignature) > 0 && s.open >= 0 {
		if tb, ok := s.msg.Content[s.open].(dataops.ThinkingBlock); ok && tb.Signature == nil {
			tb.Signature = p.ThoughtSignature
			s.msg.Content[s.open] = tb
		}
	}
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	call := dataops.ToolCallBlock{ID: id, Name: fc.Name, Arguments: args}
	s.msg.Content = append(s.msg.Content, call)
	s.open = -1
	s.toolCall = true
	s.pending = append(s.pending,
		dataops.StreamToolCallBegin{ID: id, Name: fc.Name},
		dataops.StreamToolCallEnd{Call: call},
	)
	return nil
}

func (s *stream) finalize() {
	if s.msg.StopReason == "" {
		s.msg.StopReason = dataops.StopEndTurn
		s.msg.RawStopReason = "end_turn"
	}
	if s.toolCall && s.msg.StopReason == dataops.StopEndTurn {
		s.msg.StopReason = dataops.StopToolUse
	}
}

func mapFinishReason(r genai.FinishReason) dataops.StopReason {
	switch r {
	case genai.FinishReasonStop:
		return dataops.StopEndTurn
	case genai.FinishReasonMaxTokens:
		return dataops.StopLength
	default:
		return dataops.StopError
	}
}

func (s *stream) State() dataops.StreamState {
	return s.state
}

func (s *stream) Message() (dataops.AssistantMessage, error) {
	if s.state == dataops.StreamStateNew {
		return dataops.AssistantMessage{}, fmt.Errorf("gemini: %w", dataops.ErrStreamNotReady)
	}
	return s.msg, nil
}

func (s *stream) Close() error {
	if s.state != dataops.StreamStateComplete && s.state != dataops.StreamStateError {
		s.state = dataops.StreamStateClosed
		s.msg.StopReason = dataops.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	s.stop()
	return nil
}
