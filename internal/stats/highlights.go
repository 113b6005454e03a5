package stats

import (
	"sort"
	"unicode/utf8"

	"github.com/kagami-labs/kagami/internal/export"
)

// Insights bundles word frequency, question analysis and the
// conversation highlight rankings.
func Insights(convs []export.Conversation) InsightsStats {
	return InsightsStats{
		FrequentWords: FrequentWords(convs),
		Questions:     Questions(convs),
		MostActive:    MostActive(convs),
		Earliest:      Earliest(convs),
	}
}

func summarize(convs []export.Conversation) []ConversationHighlight {
	highlights := make([]ConversationHighlight, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		h := ConversationHighlight{
			ID:         conv.ID,
			Title:      conv.Title,
			CreateTime: conv.CreateTime,
			Messages:   conv.Messages,
		}
		for j := range conv.Messages {
			msg := &conv.Messages[j]
			h.MessageCount++
			h.TotalChars += utf8.RuneCountInString(msg.Content)
			switch msg.Role {
			case "user":
				h.UserMessageCount++
			case "assistant":
				h.AssistantMessageCount++
			}
		}
		highlights = append(highlights, h)
	}
	return highlights
}

// MostActive returns the top 5 conversations by message count.
func MostActive(convs []export.Conversation) []ConversationHighlight {
	highlights := summarize(convs)
	sort.SliceStable(highlights, func(i, j int) bool {
		return highlights[i].MessageCount > highlights[j].MessageCount
	})
	if len(highlights) > 5 {
		highlights = highlights[:5]
	}
	return highlights
}

// Earliest returns the first 5 conversations by create time.
func Earliest(convs []export.Conversation) []ConversationHighlight {
	highlights := summarize(convs)
	sort.SliceStable(highlights, func(i, j int) bool {
		return highlights[i].CreateTime.Before(highlights[j].CreateTime)
	})
	if len(highlights) > 5 {
		highlights = highlights[:5]
	}
	return highlights
}
