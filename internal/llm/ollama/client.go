package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"energy-advisor/internal/llm"
	"energy-advisor/internal/shared/telemetry"
)

const (
	generatePath = "/api/generate"
	tagsPath     = "/api/tags"

	maxLineBytes  = 1 << 20
	maxErrorBytes = 64 << 10
)

// Client implements llm.Generator against an Ollama server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new Ollama client. httpClient may be nil.
func NewClient(baseURL, model string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("OLLAMA_MODEL is required")
	}
	if httpClient == nil {
		// No client-wide timeout: the body is a long-lived stream and callers
		// bound it through the context.
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
	Format  string          `json:"format,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// StreamGenerate posts the prompt to /api/generate and yields one fragment
// per NDJSON status line. Lines that are not valid JSON are skipped.
func (c *Client) StreamGenerate(ctx context.Context, prompt string, opts llm.Options) iter.Seq2[llm.Fragment, error] {
	return func(yield func(llm.Fragment, error) bool) {
		resp, err := c.open(ctx, prompt, opts)
		if err != nil {
			yield(llm.Fragment{}, err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
		for scanner.Scan() {
			chunk, ok := decodeLine(scanner.Bytes())
			if !ok {
				continue
			}
			if chunk.Error != "" {
				yield(llm.Fragment{}, fmt.Errorf("ollama: %s", chunk.Error))
				return
			}
			frag := llm.Fragment{Text: chunk.Response, Done: chunk.Done}
			if !yield(frag, nil) || frag.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
				yield(llm.Fragment{}, ctxErr)
				return
			}
			yield(llm.Fragment{}, llm.Classify(err))
		}
	}
}

func (c *Client) open(ctx context.Context, prompt string, opts llm.Options) (*http.Response, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: true,
		Options: generateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
		},
		Format: opts.Format,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, llm.Classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		telemetry.Warn("ollama.generate.status", map[string]any{
			"status": resp.StatusCode,
			"model":  c.model,
		})
		return nil, &llm.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func decodeLine(line []byte) (generateChunk, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return generateChunk{}, false
	}
	var chunk generateChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		telemetry.Debug("ollama.generate.skip_line", map[string]any{
			"error": err.Error(),
			"bytes": len(trimmed),
		})
		return generateChunk{}, false
	}
	return chunk, true
}

// Ping checks that the server answers /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llm.Classify(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBytes))
	if resp.StatusCode != http.StatusOK {
		return &llm.StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

var (
	_ llm.Generator = (*Client)(nil)
	_ llm.Pinger    = (*Client)(nil)
)
