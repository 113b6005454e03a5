package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kagami-labs/kagami/internal/insight"
	"github.com/kagami-labs/kagami/internal/stats"
)

// Run statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one analysis of an uploaded export: the parse counters, the
// locally computed report and, once generated, the model insights.
type Run struct {
	ID            uuid.UUID        `json:"id"`
	Status        string           `json:"status"`
	SourceName    string           `json:"source_name"`
	Conversations int              `json:"conversations"`
	Messages      int              `json:"messages"`
	Skipped       int              `json:"skipped"`
	Report        *stats.Report    `json:"report,omitempty"`
	Insights      *insight.Results `json:"insights,omitempty"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CreateRun inserts a pending run for an uploaded export.
func (s *Store) CreateRun(ctx context.Context, sourceName string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_runs (id, status, source_name, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())`,
		id, StatusPending, sourceName,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// CompleteRun stores the parse counters and the statistics report and
// marks the run completed.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, conversations, messages, skipped int, report *stats.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET status = $2, conversations = $3, messages = $4, skipped = $5, report = $6, updated_at = now()
		WHERE id = $1`,
		id, StatusCompleted, conversations, messages, skipped, payload,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// FailRun marks the run failed with a user-facing reason.
func (s *Store) FailRun(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`,
		id, StatusFailed, reason,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// SaveInsights attaches pipeline results to a completed run. Partial
// results overwrite nothing else on the row.
func (s *Store) SaveInsights(ctx context.Context, id uuid.UUID, results *insight.Results) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET insights = $2, updated_at = now()
		WHERE id = $1`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun fetches one run with its report and insights documents.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run      Run
		report   []byte
		insights []byte
		errText  *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, source_name, conversations, messages, skipped, report, insights, error, created_at, updated_at
		FROM analysis_runs
		WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Status, &run.SourceName, &run.Conversations, &run.Messages, &run.Skipped,
		&report, &insights, &errText, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	if errText != nil {
		run.Error = *errText
	}
	if len(report) > 0 {
		run.Report = &stats.Report{}
		if err := json.Unmarshal(report, run.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
	}
	if len(insights) > 0 {
		run.Insights = &insight.Results{}
		if err := json.Unmarshal(insights, run.Insights); err != nil {
			return nil, fmt.Errorf("unmarshal insights: %w", err)
		}
	}
	return &run, nil
}
