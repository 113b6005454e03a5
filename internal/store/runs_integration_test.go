//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/kagami-labs/kagami/internal/insight"
	"github.com/kagami-labs/kagami/internal/stats"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_RunLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, "conversations.json")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	t.Cleanup(func() {
		s.pool.Exec(ctx, "DELETE FROM analysis_runs WHERE id = $1", id)
	})

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != StatusPending {
		t.Errorf("expected status pending, got %q", run.Status)
	}

	report := &stats.Report{}
	report.Basic.TotalConversations = 2
	report.Basic.TotalMessages = 4
	if err := s.CompleteRun(ctx, id, 2, 4, 1, report); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	run, err = s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun after complete failed: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Errorf("expected status completed, got %q", run.Status)
	}
	if run.Report == nil || run.Report.Basic.TotalConversations != 2 {
		t.Errorf("report not round-tripped: %+v", run.Report)
	}
	if run.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", run.Skipped)
	}

	results := &insight.Results{
		MBTI: &insight.MBTI{Type: "INTJ", TypeTitle: "建築家"},
	}
	if err := s.SaveInsights(ctx, id, results); err != nil {
		t.Fatalf("SaveInsights failed: %v", err)
	}

	run, err = s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun after insights failed: %v", err)
	}
	if run.Insights == nil || run.Insights.MBTI == nil || run.Insights.MBTI.Type != "INTJ" {
		t.Errorf("insights not round-tripped: %+v", run.Insights)
	}
	if run.Insights.BigFive != nil {
		t.Errorf("unset step should stay nil, got %+v", run.Insights.BigFive)
	}
}

func TestIntegration_FailRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, "broken.json")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	t.Cleanup(func() {
		s.pool.Exec(ctx, "DELETE FROM analysis_runs WHERE id = $1", id)
	})

	if err := s.FailRun(ctx, id, "INVALID_JSON: unable to parse file"); err != nil {
		t.Fatalf("FailRun failed: %v", err)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != StatusFailed {
		t.Errorf("expected status failed, got %q", run.Status)
	}
	if run.Error == "" {
		t.Error("expected error text on failed run")
	}
}

func TestIntegration_GetRun_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRun(context.Background(), uuid.New())
	if err != ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
