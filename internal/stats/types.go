// Package stats derives quantitative and behavioral statistics from
// normalized conversations. Everything here is pure local computation:
// no network calls, no failure modes on valid input. Calendar bucketing
// is done in UTC so results are reproducible regardless of server locale.
package stats

import (
	"time"

	"github.com/kagami-labs/kagami/internal/export"
)

// maxUsages bounds the evidence list attached to any frequency or
// pattern result.
const maxUsages = 10

// PhraseUsage is an evidence record: where a word or phrase was observed.
type PhraseUsage struct {
	ConversationID    string    `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
	MessageContent    string    `json:"message_content"`
	CreateTime        time.Time `json:"create_time"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type BasicStats struct {
	TotalConversations int       `json:"total_conversations"`
	TotalMessages      int       `json:"total_messages"`
	UserMessages       int       `json:"user_messages"`
	AssistantMessages  int       `json:"assistant_messages"`
	EstimatedTokens    int       `json:"estimated_tokens"`
	ActiveDays         int       `json:"active_days"`
	LongestStreak      int       `json:"longest_streak"`
	DateRange          DateRange `json:"date_range"`
}

type MonthlyCount struct {
	Month string `json:"month"` // "2006-01"
	Count int    `json:"count"`
}

type WeekdayCount struct {
	Day      string `json:"day"` // 日月火水木金土
	DayIndex int    `json:"day_index"`
	Count    int    `json:"count"`
}

// YearlyHeatmap holds per-date message counts for one calendar year plus
// the conversations that contributed to each date.
type YearlyHeatmap struct {
	Year               int                 `json:"year"`
	DailyCounts        map[string]int      `json:"daily_counts"`
	DailyConversations map[string][]string `json:"daily_conversations"`
}

type ActivityPattern struct {
	HourlyHeatmap       [7][24]int      `json:"hourly_heatmap"` // [day-of-week][hour], Sunday = 0
	MonthlyMessages     []MonthlyCount  `json:"monthly_messages"`
	WeekdayDistribution []WeekdayCount  `json:"weekday_distribution"`
	YearlyHeatmaps      []YearlyHeatmap `json:"yearly_heatmaps"`
}

type WordFrequency struct {
	Word   string        `json:"word"`
	Count  int           `json:"count"`
	Usages []PhraseUsage `json:"usages"`
}

type QuestionPattern struct {
	Pattern  string   `json:"pattern"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

type QuestionStats struct {
	TotalQuestions int               `json:"total_questions"`
	QuestionRate   float64           `json:"question_rate"` // percent of user messages
	Patterns       []QuestionPattern `json:"patterns"`
}

// ConversationHighlight is a per-conversation summary record used for the
// most-active and earliest rankings.
type ConversationHighlight struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	MessageCount          int              `json:"message_count"`
	UserMessageCount      int              `json:"user_message_count"`
	AssistantMessageCount int              `json:"assistant_message_count"`
	TotalChars            int              `json:"total_chars"`
	CreateTime            time.Time        `json:"create_time"`
	Messages              []export.Message `json:"messages"`
}

type InsightsStats struct {
	FrequentWords []WordFrequency         `json:"frequent_words"`
	Questions     QuestionStats           `json:"questions"`
	MostActive    []ConversationHighlight `json:"most_active"`
	Earliest      []ConversationHighlight `json:"earliest"`
}

type HourlyHeatmap struct {
	Matrix    [7][24]int `json:"matrix"`
	PeakDay   int        `json:"peak_day"`
	PeakHour  int        `json:"peak_hour"`
	PeakCount int        `json:"peak_count"`
}

type CatchPhrase struct {
	Phrase string        `json:"phrase"`
	Count  int           `json:"count"`
	Usages []PhraseUsage `json:"usages"`
}

type NgramPhrase struct {
	Phrase string        `json:"phrase"`
	N      int           `json:"n"`
	Count  int           `json:"count"`
	Usages []PhraseUsage `json:"usages"`
}

type NgramStats struct {
	Unigrams []NgramPhrase `json:"unigrams"`
	Bigrams  []NgramPhrase `json:"bigrams"`
	Trigrams []NgramPhrase `json:"trigrams"`
}

type GratitudeVariation struct {
	Phrase string        `json:"phrase"`
	Count  int           `json:"count"`
	Usages []PhraseUsage `json:"usages"`
}

// GratitudeStats separates the raw occurrence total from the rate, which
// counts messages containing any gratitude phrase, not occurrences.
type GratitudeStats struct {
	TotalThanks int                  `json:"total_thanks"`
	ThanksRate  float64              `json:"thanks_rate"` // percent of user messages
	Variations  []GratitudeVariation `json:"variations"`
}

type ConfusionPattern struct {
	Pattern string        `json:"pattern"`
	Count   int           `json:"count"`
	Usages  []PhraseUsage `json:"usages"`
}

type ConfusionStats struct {
	TotalConfused int                `json:"total_confused"`
	ConfusionRate float64            `json:"confusion_rate"` // percent of user messages
	Patterns      []ConfusionPattern `json:"patterns"`
}

type BehaviorStats struct {
	HourlyHeatmap HourlyHeatmap  `json:"hourly_heatmap"`
	CatchPhrases  []CatchPhrase  `json:"catch_phrases"`
	Ngrams        NgramStats     `json:"ngrams"`
	Gratitude     GratitudeStats `json:"gratitude"`
	Confusion     ConfusionStats `json:"confusion"`
}

// Report bundles every locally computed statistic for one export.
type Report struct {
	Basic    BasicStats      `json:"basic"`
	Activity ActivityPattern `json:"activity"`
	Insights InsightsStats   `json:"insights"`
	Behavior BehaviorStats   `json:"behavior"`
}

// Compute runs the full statistics engine over normalized conversations.
func Compute(convs []export.Conversation) *Report {
	return &Report{
		Basic:    Basic(convs),
		Activity: Activity(convs),
		Insights: Insights(convs),
		Behavior: Behavior(convs),
	}
}

// msgTime returns the message timestamp, falling back to the
// conversation's create time when the export omitted it.
func msgTime(conv *export.Conversation, msg *export.Message) time.Time {
	if msg.CreateTime != nil {
		return *msg.CreateTime
	}
	return conv.CreateTime
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
