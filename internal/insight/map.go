package insight

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kagami-labs/kagami/internal/export"
	"github.com/kagami-labs/kagami/internal/pca"
)

const (
	mapMaxConversations = 30
	mapBatchSize        = 10
	mapBudget           = 60 * time.Second

	// Skip axis labeling when less than this remains of the budget.
	axisLabelMinRemaining = 5 * time.Second

	// A 2D projection of fewer points is meaningless.
	minMapPoints = 3
)

type convSummary struct {
	id        string
	title     string
	summary   string
	embedding []float64
}

// buildMap runs the summarize-embed-project sub-pipeline. Per-batch and
// per-conversation failures are swallowed; too few surviving summaries
// yield a nil map rather than an error.
func (o *Orchestrator) buildMap(ctx context.Context, convs []export.Conversation) (*IntelligenceMap, error) {
	if len(convs) > mapMaxConversations {
		convs = convs[:mapMaxConversations]
	}

	deadline := time.Now().Add(mapBudget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var summaries []convSummary
	for start := 0; start < len(convs); start += mapBatchSize {
		if ctx.Err() != nil || o.aborted.Load() {
			o.logger.Warn("map batch loop stopped early", "collected", len(summaries))
			break
		}

		end := start + mapBatchSize
		if end > len(convs) {
			end = len(convs)
		}
		batch := convs[start:end]

		texts := make([]string, len(batch))
		var g errgroup.Group
		g.SetLimit(mapBatchSize)
		for i := range batch {
			g.Go(func() error {
				text, err := o.summarizeConversation(ctx, &batch[i])
				if err != nil {
					o.logger.Warn("conversation summary failed", "conversation_id", batch[i].ID, "error", err)
					return nil
				}
				texts[i] = text
				return nil
			})
		}
		g.Wait()

		var kept []convSummary
		var keptTexts []string
		for i, text := range texts {
			if text == "" {
				continue
			}
			kept = append(kept, convSummary{id: batch[i].ID, title: batch[i].Title, summary: text})
			keptTexts = append(keptTexts, text)
		}
		if len(kept) == 0 {
			continue
		}

		vectors, err := o.client.Embed(ctx, keptTexts)
		if err != nil {
			// One bad summary must not take the whole batch with it.
			o.logger.Warn("batch embedding failed, retrying per conversation", "batch_size", len(kept), "error", err)
			for i := range kept {
				single, err := o.client.Embed(ctx, []string{kept[i].summary})
				if err != nil || len(single) != 1 {
					o.logger.Warn("conversation embedding failed", "conversation_id", kept[i].id, "error", err)
					continue
				}
				kept[i].embedding = single[0]
				summaries = append(summaries, kept[i])
			}
			continue
		}
		for i := range kept {
			kept[i].embedding = vectors[i]
			summaries = append(summaries, kept[i])
		}
	}

	if len(summaries) < minMapPoints {
		o.logger.Warn("too few summaries for map", "count", len(summaries))
		return nil, nil
	}

	vectors := make([][]float64, len(summaries))
	for i, s := range summaries {
		vectors[i] = s.embedding
	}
	coords := pca.Project(vectors)

	labels := defaultAxisLabels()
	if time.Until(deadline) > axisLabelMinRemaining {
		if inferred, err := o.inferAxisLabels(ctx, summaries, coords); err != nil {
			o.logger.Warn("axis label inference failed, using defaults", "error", err)
		} else {
			labels = inferred
		}
	} else {
		o.logger.Warn("axis label inference skipped, budget exhausted")
	}

	points := make([]MapPoint, len(summaries))
	for i, s := range summaries {
		points[i] = MapPoint{
			X:              coords[i][0],
			Y:              coords[i][1],
			ConversationID: s.id,
			Title:          s.title,
			Summary:        s.summary,
		}
	}
	return &IntelligenceMap{Points: points, AxisLabels: labels}, nil
}

func (o *Orchestrator) summarizeConversation(ctx context.Context, conv *export.Conversation) (string, error) {
	var parts []string
	for i := range conv.Messages {
		if conv.Messages[i].Role != "user" {
			continue
		}
		parts = append(parts, truncRunes(conv.Messages[i].Content, digestMessageRunes))
	}
	userText := truncRunes(strings.Join(parts, "\n"), digestConversationRunes)

	text, err := o.client.Generate(ctx, conversationSummaryPrompt(conv.Title, userText))
	if err != nil {
		return "", err
	}
	return truncRunes(text, 100), nil
}

func defaultAxisLabels() AxisLabels {
	return AxisLabels{
		XPositive: "創造的",
		XNegative: "実用的",
		YPositive: "技術的",
		YNegative: "日常的",
	}
}

// inferAxisLabels asks the model to name each axis from the summaries
// sitting at its extremes.
func (o *Orchestrator) inferAxisLabels(ctx context.Context, summaries []convSummary, coords [][2]float64) (AxisLabels, error) {
	byX := sortedByAxis(summaries, coords, 0)
	byY := sortedByAxis(summaries, coords, 1)

	prompt := axisLabelPrompt(
		extremes(byX, false), extremes(byX, true),
		extremes(byY, false), extremes(byY, true),
	)
	raw, err := o.client.GenerateWithSchema(ctx, prompt, axisLabelSchema())
	if err != nil {
		return AxisLabels{}, err
	}

	var labels AxisLabels
	if err := json.Unmarshal(raw, &labels); err != nil {
		return AxisLabels{}, err
	}
	return labels, nil
}

func sortedByAxis(summaries []convSummary, coords [][2]float64, axis int) []string {
	idx := make([]int, len(summaries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return coords[idx[a]][axis] < coords[idx[b]][axis] })

	texts := make([]string, len(idx))
	for i, j := range idx {
		texts[i] = summaries[j].summary
	}
	return texts
}

func extremes(sorted []string, top bool) []string {
	n := 3
	if n > len(sorted) {
		n = len(sorted)
	}
	if top {
		return sorted[len(sorted)-n:]
	}
	return sorted[:n]
}
