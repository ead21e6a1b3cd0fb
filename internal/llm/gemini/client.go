package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"energy-advisor/internal/llm"
)

type streamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

type getModelFunc func(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)

// Client implements llm.Generator on top of the Gemini API.
type Client struct {
	model    string
	stream   streamFunc
	getModel getModelFunc
}

// NewClient constructs a Gemini-backed generator.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{
		model:    model,
		stream:   cli.Models.GenerateContentStream,
		getModel: cli.Models.Get,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// StreamGenerate yields the text of each streamed chunk and a terminal
// fragment once the stream finishes cleanly.
func (c *Client) StreamGenerate(ctx context.Context, prompt string, opts llm.Options) iter.Seq2[llm.Fragment, error] {
	return func(yield func(llm.Fragment, error) bool) {
		contents := []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		}}
		for resp, err := range c.stream(ctx, c.model, contents, buildConfig(opts)) {
			if err != nil {
				yield(llm.Fragment{}, classify(ctx, err))
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			if !yield(llm.Fragment{Text: text}, nil) {
				return
			}
		}
		yield(llm.Fragment{Done: true}, nil)
	}
}

// Ping checks that the configured model is visible to the API key.
func (c *Client) Ping(ctx context.Context) error {
	if c.getModel == nil {
		return nil
	}
	if _, err := c.getModel(ctx, c.model, nil); err != nil {
		return classify(ctx, err)
	}
	return nil
}

func buildConfig(opts llm.Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: ptr(float32(opts.Temperature)),
		TopP:        ptr(float32(opts.TopP)),
	}
	if strings.EqualFold(opts.Format, "json") {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 && apiErr.Code != http.StatusOK {
		return &llm.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return llm.Classify(err)
}

func ptr[T any](v T) *T {
	return &v
}

var (
	_ llm.Generator = (*Client)(nil)
	_ llm.Pinger    = (*Client)(nil)
)
