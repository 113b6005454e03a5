package stats

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/kagami-labs/kagami/internal/export"
)

// charsPerToken is a crude character-to-token heuristic carried over from
// the original estimator. Not a measurement.
const charsPerToken = 4

// Basic computes aggregate counts, the token estimate, active days and
// the longest consecutive-day streak.
func Basic(convs []export.Conversation) BasicStats {
	var (
		totalMessages     int
		userMessages      int
		assistantMessages int
		totalChars        int
	)
	activeDates := make(map[string]struct{})
	var minDate, maxDate time.Time

	observe := func(t time.Time) {
		activeDates[dateKey(t)] = struct{}{}
		if minDate.IsZero() || t.Before(minDate) {
			minDate = t
		}
		if maxDate.IsZero() || t.After(maxDate) {
			maxDate = t
		}
	}

	for i := range convs {
		conv := &convs[i]
		for j := range conv.Messages {
			msg := &conv.Messages[j]
			totalMessages++
			totalChars += utf8.RuneCountInString(msg.Content)

			switch msg.Role {
			case "user":
				userMessages++
			case "assistant":
				assistantMessages++
			}

			if msg.CreateTime != nil {
				observe(*msg.CreateTime)
			}
		}
		observe(conv.CreateTime)
	}

	start, end := minDate, maxDate
	if start.IsZero() {
		now := time.Now().UTC()
		start, end = now, now
	}

	return BasicStats{
		TotalConversations: len(convs),
		TotalMessages:      totalMessages,
		UserMessages:       userMessages,
		AssistantMessages:  assistantMessages,
		EstimatedTokens:    int(math.Round(float64(totalChars) / charsPerToken)),
		ActiveDays:         len(activeDates),
		LongestStreak:      longestStreak(activeDates),
		DateRange:          DateRange{Start: start, End: end},
	}
}

// longestStreak finds the longest run of consecutive calendar dates.
func longestStreak(activeDates map[string]struct{}) int {
	if len(activeDates) == 0 {
		return 0
	}

	dates := make([]string, 0, len(activeDates))
	for d := range activeDates {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	maxStreak, current := 1, 1
	for i := 1; i < len(dates); i++ {
		prev, err1 := time.Parse("2006-01-02", dates[i-1])
		curr, err2 := time.Parse("2006-01-02", dates[i])
		if err1 != nil || err2 != nil {
			current = 1
			continue
		}
		if int(curr.Sub(prev).Hours()/24) == 1 {
			current++
			if current > maxStreak {
				maxStreak = current
			}
		} else {
			current = 1
		}
	}
	return maxStreak
}
