package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kagami-labs/kagami/internal/api"
	"github.com/kagami-labs/kagami/internal/config"
	"github.com/kagami-labs/kagami/internal/events"
	"github.com/kagami-labs/kagami/internal/gemini"
	"github.com/kagami-labs/kagami/internal/llm"
	"github.com/kagami-labs/kagami/internal/openai"
	"github.com/kagami-labs/kagami/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("kagami starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Model provider
	llmFactory := buildProvider(cfg)
	if llmFactory == nil {
		slog.Warn("no model provider configured — insight analysis disabled")
	} else {
		slog.Info("model provider ready", "provider", cfg.Provider)
	}

	// NATS
	var publisher api.Publisher
	var eventsClient *events.Client
	if cfg.NatsURL != "" {
		eventsClient, err = events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = eventsClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without run events")
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, db, publisher, llmFactory, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if eventsClient != nil {
		if err := eventsClient.Publish("kagami.service.started", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish startup event", "error", err)
		}
	}

	slog.Info("kagami ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("kagami stopped")
}

// buildProvider returns a factory so each insight run gets its own
// client with an independent abort scope. Nil when the configured
// provider has no API key.
func buildProvider(cfg config.Config) func() llm.Client {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			slog.Error("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
			return nil
		}
		return func() llm.Client {
			return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("GEMINI_API_KEY not set")
			return nil
		}
		return func() llm.Client {
			return gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		}
	default:
		slog.Error("unknown LLM_PROVIDER", "provider", cfg.Provider)
		return nil
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
