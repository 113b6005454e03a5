// Package openai implements the llm.Client contract against the
// OpenAI REST API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kagami-labs/kagami/internal/llm"
)

const (
	defaultBaseURL = "https://api.openai.com"
	embedModel     = "text-embedding-3-small"
)

type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client

	abortOnce sync.Once
	abort     chan struct{}
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		abort:   make(chan struct{}),
	}
}

// SetBaseURL points the client at a test server.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Abort cancels every in-flight and future request on this client.
func (c *Client) Abort() {
	c.abortOnce.Do(func() { close(c.abort) })
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string      `json:"name"`
	Schema *llm.Schema `json:"schema"`
	Strict bool        `json:"strict"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: prompt}},
	}
	return c.chat(ctx, req)
}

func (c *Client) GenerateWithSchema(ctx context.Context, prompt string, schema *llm.Schema) (json.RawMessage, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: prompt}},
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaFormat{Name: "result", Schema: schema, Strict: true},
		},
	}
	text, err := c.chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("model returned invalid JSON: %.80s", text)
	}
	return json.RawMessage(text), nil
}

func (c *Client) chat(ctx context.Context, req chatRequest) (string, error) {
	body, err := c.post(ctx, "/v1/chat/completions", req)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := c.post(ctx, "/v1/embeddings", embedRequest{Model: embedModel, Input: texts})
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// post sends one API request with retry. The abort channel cancels the
// request context, so a user-initiated abort surfaces as context
// cancellation rather than a retryable network error.
func (c *Client) post(ctx context.Context, path string, reqBody any) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.abort:
			cancel()
		case <-ctx.Done():
		}
	}()

	var result []byte
	err = llm.Retry(ctx, func() error {
		select {
		case <-c.abort:
			return errAborted()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return &llm.APIError{Code: llm.ErrTimeout, Message: err.Error()}
			}
			if errors.Is(err, context.Canceled) {
				return errAborted()
			}
			return &llm.APIError{Code: llm.ErrNetwork, Message: err.Error()}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &llm.APIError{Code: llm.ErrNetwork, Message: err.Error()}
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &llm.APIError{Code: llm.CodeForStatus(resp.StatusCode), Status: resp.StatusCode}
			if resp.StatusCode == http.StatusTooManyRequests {
				apiErr.RetryAfter = retryAfterHint(resp.Header)
			}
			var errResp errorResponse
			if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
				apiErr.Message = errResp.Error.Message
			} else {
				apiErr.Message = string(body)
			}
			return apiErr
		}

		result = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func errAborted() error {
	return &llm.APIError{Code: llm.ErrUnknown, Message: "request aborted"}
}

// retryAfterHint reads the Retry-After header in seconds, falling back
// to a minute when the server omits it.
func retryAfterHint(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}
