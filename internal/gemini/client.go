// Package gemini implements the llm.Client contract against the
// Google Generative Language REST API.
package gemini

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
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	embedModel     = "text-embedding-004"
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

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string      `json:"responseMimeType,omitempty"`
	ResponseSchema   *llm.Schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type embedItem struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedRequest struct {
	Requests []embedItem `json:"requests"`
}

type embedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	resp, err := c.generate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (c *Client) GenerateWithSchema(ctx context.Context, prompt string, schema *llm.Schema) (json.RawMessage, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}
	text, err := c.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("model returned invalid JSON: %.80s", text)
	}
	return json.RawMessage(text), nil
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	body, err := c.post(ctx, path, req)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response content")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	req := embedRequest{}
	for _, t := range texts {
		req.Requests = append(req.Requests, embedItem{
			Model:   "models/" + embedModel,
			Content: content{Parts: []part{{Text: t}}},
		})
	}

	path := fmt.Sprintf("/v1beta/models/%s:batchEmbedContents", embedModel)
	body, err := c.post(ctx, path, req)
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
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
		req.Header.Set("x-goog-api-key", c.apiKey)

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
