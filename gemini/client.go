package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fwojciec/dataops"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ dataops.Provider = (*Client)(nil)

// Client implements [dataops.Provider] for Gemini models.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the default model ID used when a request does not name one.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a [Client] backed by the Gemini API using an API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	return newClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, opts)
}

// NewVertex creates a [Client] backed by Vertex AI in the given project and
// location, authenticated with application default credentials.
func NewVertex(ctx context.Context, project, location string, opts ...Option) (*Client, error) {
	return newClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}, opts)
}

func newClient(ctx context.Context, cfg *genai.ClientConfig, opts []Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream sends a streaming request and returns a [dataops.Stream] that emits
// semantic events.
func (c *Client) Stream(ctx context.Context, req dataops.Request) (dataops.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	contents := ConvertMessages(req.Messages)
	config := buildConfig(req)

	seq := c.client.Models.GenerateContentStream(ctx, model, contents, config)
	return NewStreamFromIter(ctx, seq), nil
}

func buildConfig(req dataops.Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Tools:           ConvertTools(req.Tools),
	}

	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	return config
}

// ConvertMessages converts domain Messages to genai Contents.
// Exported for testing.
func ConvertMessages(msgs []dataops.Message) []*genai.Content {
	var result []*genai.Content
	for _, msg := range msgs {
		switch m := msg.(type) {
		case dataops.UserMessage:
			result = append(result, &genai.Content{
				Role:  "user",
				Parts: convertParts(m.Content),
			})
		case dataops.AssistantMessage:
			result = append(result, &genai.Content{
				Role:  "model",
				Parts: convertParts(m.Content),
			})
		case dataops.ToolResultMessage:
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     m.ToolName,
						Response: toolResponse(m),
					},
				}},
			})
		}
	}
	return result
}

// toolResponse builds the function response object. A JSON object result is
// passed through under "output" so the model sees structured fields.
func toolResponse(m dataops.ToolResultMessage) map[string]any {
	text := extractText(m.Content)
	key := "output"
	if m.IsError {
		key = "error"
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return map[string]any{key: obj}
	}
	return map[string]any{key: text}
}

func convertParts(blocks []dataops.ContentBlock) []*genai.Part {
	var parts []*genai.Part
	for _, b := range blocks {
		switch bl := b.(type) {
		case dataops.TextBlock:
			parts = append(parts, &genai.Part{Text: bl.Text})
		case dataops.ThinkingBlock:
			p := &genai.Part{Text: bl.Thinking, Thought: true}
			if bl.Signature != nil {
				p.ThoughtSignature = bl.Signature
			}
			parts = append(parts, p)
		case dataops.ToolCallBlock:
			// Arguments is json.RawMessage, always valid JSON from domain types.
			var args map[string]any
			_ = json.Unmarshal(bl.Arguments, &args)
			p := &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   bl.ID,
					Name: bl.Name,
					Args: args,
				},
			}
			if bl.Signature != nil {
				p.ThoughtSignature = bl.Signature
			}
			parts = append(parts, p)
		}
	}
	return parts
}

// extractText returns the text of the first TextBlock, or empty string if none.
func extractText(blocks []dataops.ContentBlock) string {
	for _, b := range blocks {
		if tb, ok := b.(dataops.TextBlock); ok {
			return tb.Text
		}
	}
	return ""
}

// ConvertTools converts domain Tools to genai Tools.
// Exported for testing.
func ConvertTools(tools []dataops.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
