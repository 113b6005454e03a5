// Package events publishes run lifecycle notifications over NATS so
// other services (and UI backends) can follow long analyses without
// polling.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Run lifecycle subjects.
const (
	SubjectRunCreated   = "kagami.run.created"
	SubjectRunProgress  = "kagami.run.progress"
	SubjectRunCompleted = "kagami.run.completed"
	SubjectRunFailed    = "kagami.run.failed"
)

// RunCreated is emitted when an export upload is accepted.
type RunCreated struct {
	RunID      string `json:"run_id"`
	SourceName string `json:"source_name"`
	Timestamp  string `json:"timestamp"`
}

// RunProgress mirrors the orchestrator's progress callback: cumulative
// percent plus the step label.
type RunProgress struct {
	RunID   string `json:"run_id"`
	Percent int    `json:"percent"`
	Label   string `json:"label"`
}

type RunCompleted struct {
	RunID         string `json:"run_id"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Skipped       int    `json:"skipped"`
}

type RunFailed struct {
	RunID  string `json:"run_id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
