package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kagami-labs/kagami/internal/export"
	"github.com/kagami-labs/kagami/internal/llm"
)

const (
	defaultTotalBudget = 5 * time.Minute
	defaultStepBudget  = 90 * time.Second

	digestMaxConversations  = 100
	digestMessageRunes      = 200
	digestConversationRunes = 500
)

// ProgressFunc receives cumulative progress (0-100) and a step label.
// Progress advances in whole step weights, never partially.
type ProgressFunc func(percent int, label string)

type Orchestrator struct {
	client  llm.Client
	logger  *slog.Logger
	aborted atomic.Bool

	// Deadlines for the whole pipeline and for each step.
	totalBudget time.Duration
	stepBudget  time.Duration
}

func New(client llm.Client, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client:      client,
		logger:      logger,
		totalBudget: defaultTotalBudget,
		stepBudget:  defaultStepBudget,
	}
}

// Abort stops the pipeline at the next step boundary and cancels the
// in-flight provider call.
func (o *Orchestrator) Abort() {
	o.aborted.Store(true)
	o.client.Abort()
}

type step struct {
	key    string
	label  string
	weight int
	run    func(ctx context.Context, digest string, convs []export.Conversation, results *Results) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{key: "bigFive", label: "Big Five診断", weight: 15, run: o.runBigFive},
		{key: "mbti", label: "タイプ診断", weight: 15, run: o.runMBTI},
		{key: "thinkingStyle", label: "思考スタイル分析", weight: 15, run: o.runThinkingStyle},
		{key: "communication", label: "コミュニケーション分析", weight: 15, run: o.runCommunication},
		{key: "intelligenceMap", label: "ナレッジマップ生成", weight: 20, run: o.runIntelligenceMap},
		{key: "personalitySummary", label: "総合サマリー生成", weight: 20, run: o.runSummary},
	}
}

// Run executes every analysis step in order and returns whatever subset
// completed. Timeouts, aborts and per-step failures all yield a partial
// Results value, never an error.
func (o *Orchestrator) Run(ctx context.Context, convs []export.Conversation, onProgress ProgressFunc) *Results {
	if onProgress == nil {
		onProgress = func(int, string) {}
	}
	o.aborted.Store(false)

	results := &Results{}
	digest := buildDigest(convs)
	start := time.Now()
	done := 0

	o.logger.Info("analysis started", "conversations", len(convs), "digest_len", len(digest))

	for _, s := range o.steps() {
		if time.Since(start) > o.totalBudget {
			o.logger.Warn("total budget exhausted, returning partial results", "elapsed", time.Since(start), "progress", done)
			onProgress(done, "タイムアウト - 部分結果を表示")
			break
		}
		if o.aborted.Load() {
			o.logger.Info("analysis aborted", "progress", done)
			break
		}

		onProgress(done, s.label+"中...")
		stepStart := time.Now()

		stepCtx, cancel := context.WithTimeout(ctx, o.stepBudget)
		err := s.run(stepCtx, digest, convs, results)
		cancel()

		if err != nil {
			o.logger.Warn("analysis step failed", "step", s.key, "duration", time.Since(stepStart), "error", err)
		} else {
			o.logger.Info("analysis step done", "step", s.key, "duration", time.Since(stepStart))
		}

		done += s.weight
		onProgress(done, s.label+"完了")
	}

	o.logger.Info("analysis finished", "duration", time.Since(start), "progress", done)
	return results
}

// generateAs runs a schema-constrained generation and decodes the
// result into T.
func generateAs[T any](ctx context.Context, client llm.Client, prompt string, schema *llm.Schema) (*T, error) {
	raw, err := client.GenerateWithSchema(ctx, prompt, schema)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &out, nil
}

func (o *Orchestrator) runBigFive(ctx context.Context, digest string, _ []export.Conversation, results *Results) error {
	out, err := generateAs[BigFive](ctx, o.client, bigFivePrompt(digest), bigFiveSchema())
	if err != nil {
		return err
	}
	results.BigFive = out
	return nil
}

func (o *Orchestrator) runMBTI(ctx context.Context, digest string, _ []export.Conversation, results *Results) error {
	out, err := generateAs[MBTI](ctx, o.client, mbtiPrompt(digest), mbtiSchema())
	if err != nil {
		return err
	}
	results.MBTI = out
	return nil
}

func (o *Orchestrator) runThinkingStyle(ctx context.Context, digest string, _ []export.Conversation, results *Results) error {
	out, err := generateAs[ThinkingStyle](ctx, o.client, thinkingStylePrompt(digest), thinkingStyleSchema())
	if err != nil {
		return err
	}
	results.ThinkingStyle = out
	return nil
}

func (o *Orchestrator) runCommunication(ctx context.Context, digest string, _ []export.Conversation, results *Results) error {
	out, err := generateAs[Communication](ctx, o.client, communicationPrompt(digest), communicationSchema())
	if err != nil {
		return err
	}
	results.Communication = out
	return nil
}

func (o *Orchestrator) runIntelligenceMap(ctx context.Context, _ string, convs []export.Conversation, results *Results) error {
	m, err := o.buildMap(ctx, convs)
	if err != nil {
		return err
	}
	results.IntelligenceMap = m
	return nil
}

// runSummary reads the accumulator so the final summary can reference
// earlier results. This is the only cross-step dependency.
func (o *Orchestrator) runSummary(ctx context.Context, digest string, _ []export.Conversation, results *Results) error {
	out, err := generateAs[Summary](ctx, o.client, summaryPrompt(digest, results), summarySchema())
	if err != nil {
		return err
	}
	results.Summary = out
	return nil
}

// buildDigest reduces the conversation set to a bounded prompt payload:
// at most 100 conversations, each carrying its title, timestamp and up
// to 500 runes of user text.
func buildDigest(convs []export.Conversation) string {
	n := len(convs)
	if n > digestMaxConversations {
		n = digestMaxConversations
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		conv := &convs[i]
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}

		var parts []string
		for j := range conv.Messages {
			if conv.Messages[j].Role != "user" {
				continue
			}
			parts = append(parts, truncRunes(conv.Messages[j].Content, digestMessageRunes))
		}
		userText := truncRunes(strings.Join(parts, "\n"), digestConversationRunes)

		fmt.Fprintf(&b, "【会話%d】タイトル: %s\n日時: %s\nユーザー発言:\n%s",
			i+1, conv.Title, conv.CreateTime.UTC().Format(time.RFC3339), userText)
	}
	return b.String()
}

func truncRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
