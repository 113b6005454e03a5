// Package llm defines the provider-neutral model client contract:
// plain text generation, schema-constrained JSON generation and batch
// embeddings. Provider packages implement Client against their own
// wire formats.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type ErrorCode string

const (
	ErrRateLimit ErrorCode = "RATE_LIMIT"
	ErrAuth      ErrorCode = "AUTH_ERROR"
	ErrNetwork   ErrorCode = "NETWORK_ERROR"
	ErrTimeout   ErrorCode = "TIMEOUT"
	ErrServer    ErrorCode = "SERVER_ERROR"
	ErrUnknown   ErrorCode = "UNKNOWN"
)

// APIError carries the provider-neutral failure classification. Status
// is the HTTP status when one was received, 0 otherwise. RetryAfter is
// the server-suggested wait before the next attempt (rate limits), 0
// when the server gave none.
type APIError struct {
	Code       ErrorCode
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether another attempt could succeed. Auth
// failures and malformed requests never recover on retry.
func (e *APIError) Retryable() bool {
	switch e.Code {
	case ErrRateLimit, ErrNetwork, ErrTimeout, ErrServer:
		return true
	}
	return false
}

// CodeForStatus maps an HTTP status to an error code.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == 429:
		return ErrRateLimit
	case status == 401 || status == 403:
		return ErrAuth
	case status == 408:
		return ErrTimeout
	case status >= 500:
		return ErrServer
	default:
		return ErrUnknown
	}
}

// Schema is a minimal JSON-schema subset, enough to constrain
// structured generation on every supported provider.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Client is the contract analysis code depends on. Abort cancels every
// in-flight and future request on the client.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithSchema(ctx context.Context, prompt string, schema *Schema) (json.RawMessage, error)
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Abort()
}

const maxRetries = 2 // three attempts total

// Retry runs op with exponential backoff starting at one second.
// Non-retryable API errors stop immediately. A RetryAfter hint on the
// last error overrides the computed wait.
func Retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second

	var hint time.Duration
	policy := backoff.WithContext(backoff.WithMaxRetries(&hintedBackOff{next: b, hint: &hint}, maxRetries), ctx)

	return backoff.Retry(func() error {
		hint = 0
		err := op()
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !apiErr.Retryable() {
				return backoff.Permanent(err)
			}
			hint = apiErr.RetryAfter
		}
		return err
	}, policy)
}

// hintedBackOff defers to the wrapped policy but lets a Retry-After
// hint from the server replace the computed interval.
type hintedBackOff struct {
	next backoff.BackOff
	hint *time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	d := h.next.NextBackOff()
	if d == backoff.Stop {
		return backoff.Stop
	}
	if *h.hint > 0 {
		return *h.hint
	}
	return d
}

func (h *hintedBackOff) Reset() { h.next.Reset() }
