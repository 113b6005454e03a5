// Package api exposes the HTTP surface: upload an export, read back
// the analysis run, and kick off the insight pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kagami-labs/kagami/internal/events"
	"github.com/kagami-labs/kagami/internal/export"
	"github.com/kagami-labs/kagami/internal/insight"
	"github.com/kagami-labs/kagami/internal/llm"
	"github.com/kagami-labs/kagami/internal/stats"
	"github.com/kagami-labs/kagami/internal/store"
)

// Uploads larger than this are rejected before parsing.
const maxUploadBytes = 1 << 30

// RunStore is the slice of the database the handlers need.
type RunStore interface {
	CreateRun(ctx context.Context, sourceName string) (uuid.UUID, error)
	CompleteRun(ctx context.Context, id uuid.UUID, conversations, messages, skipped int, report *stats.Report) error
	FailRun(ctx context.Context, id uuid.UUID, reason string) error
	SaveInsights(ctx context.Context, id uuid.UUID, results *insight.Results) error
	GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error)
}

// Publisher emits run lifecycle events. Nil-safe via noopPublisher so
// the server can run without a broker.
type Publisher interface {
	Publish(subject string, data any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) error { return nil }

type Server struct {
	router     *chi.Mux
	port       int
	logger     *slog.Logger
	db         RunStore
	events     Publisher
	llmFactory func() llm.Client
}

// NewServer wires routes and middleware. llmFactory builds a fresh
// provider client per insight run so Abort stays scoped to that run;
// it may be nil when no provider is configured.
func NewServer(port int, db RunStore, ev Publisher, llmFactory func() llm.Client, logger *slog.Logger) *Server {
	if ev == nil {
		ev = noopPublisher{}
	}

	s := &Server{
		router:     chi.NewRouter(),
		port:       port,
		logger:     logger,
		db:         db,
		events:     ev,
		llmFactory: llmFactory,
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api/v1/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/{id}", s.handleGetRun)
		r.Post("/{id}/insights", s.handleRunInsights)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting api server", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateRun accepts a raw export file as the request body, parses
// it and computes the local statistics report in one pass. Parse
// failures still leave a failed run row behind so the client can fetch
// the error later.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, string(export.ErrFileTooLarge), "upload exceeds size limit")
		return
	}

	sourceName := r.URL.Query().Get("filename")
	if sourceName == "" {
		sourceName = "conversations.json"
	}

	id, err := s.db.CreateRun(ctx, sourceName)
	if err != nil {
		s.logger.Error("failed to create run", "error", err)
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to create run")
		return
	}
	s.publish(events.SubjectRunCreated, events.RunCreated{
		RunID:      id.String(),
		SourceName: sourceName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})

	result, err := export.Parse(body)
	if err != nil {
		code, message := "PARSE_ERROR", err.Error()
		var perr *export.ParseError
		if errors.As(err, &perr) {
			code, message = string(perr.Code), perr.Message
		}
		if ferr := s.db.FailRun(ctx, id, err.Error()); ferr != nil {
			s.logger.Error("failed to mark run failed", "run_id", id, "error", ferr)
		}
		s.publish(events.SubjectRunFailed, events.RunFailed{RunID: id.String(), Code: code, Reason: message})
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"run_id": id,
			"error":  map[string]string{"code": code, "message": message},
		})
		return
	}

	report := stats.Compute(result.Conversations)
	if err := s.db.CompleteRun(ctx, id, len(result.Conversations), result.TotalMessages, result.SkippedMessages, report); err != nil {
		s.logger.Error("failed to complete run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to save report")
		return
	}
	s.publish(events.SubjectRunCompleted, events.RunCompleted{
		RunID:         id.String(),
		Conversations: len(result.Conversations),
		Messages:      result.TotalMessages,
		Skipped:       result.SkippedMessages,
	})

	s.logger.Info("run completed",
		"run_id", id,
		"conversations", len(result.Conversations),
		"messages", result.TotalMessages,
		"skipped", result.SkippedMessages)

	writeJSON(w, http.StatusCreated, map[string]any{
		"run_id":        id,
		"status":        store.StatusCompleted,
		"conversations": len(result.Conversations),
		"messages":      result.TotalMessages,
		"skipped":       result.SkippedMessages,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "run id must be a UUID")
		return
	}

	run, err := s.db.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to fetch run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to fetch run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// handleRunInsights re-reads the export from the body (conversations
// are not persisted) and runs the model pipeline in the background.
// Progress is published over NATS; results land on the run row.
func (s *Server) handleRunInsights(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "run id must be a UUID")
		return
	}
	if s.llmFactory == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_PROVIDER", "no model provider configured")
		return
	}

	if _, err := s.db.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "run not found")
			return
		}
		s.logger.Error("failed to fetch run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to fetch run")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, string(export.ErrFileTooLarge), "upload exceeds size limit")
		return
	}

	result, err := export.Parse(body)
	if err != nil {
		code, message := "PARSE_ERROR", err.Error()
		var perr *export.ParseError
		if errors.As(err, &perr) {
			code, message = string(perr.Code), perr.Message
		}
		writeError(w, http.StatusBadRequest, code, message)
		return
	}

	go s.runInsights(id, result.Conversations)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": id,
		"status": "analyzing",
	})
}

func (s *Server) runInsights(id uuid.UUID, convs []export.Conversation) {
	orch := insight.New(s.llmFactory(), s.logger)

	results := orch.Run(context.Background(), convs, func(percent int, label string) {
		s.publish(events.SubjectRunProgress, events.RunProgress{
			RunID:   id.String(),
			Percent: percent,
			Label:   label,
		})
	})

	if err := s.db.SaveInsights(context.Background(), id, results); err != nil {
		s.logger.Error("failed to save insights", "run_id", id, "error", err)
		s.publish(events.SubjectRunFailed, events.RunFailed{
			RunID:  id.String(),
			Code:   "STORE_ERROR",
			Reason: "failed to save insights",
		})
		return
	}

	s.logger.Info("insights saved", "run_id", id)
}

func (s *Server) publish(subject string, data any) {
	if err := s.events.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
