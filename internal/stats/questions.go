package stats

import (
	"regexp"
	"sort"

	"github.com/kagami-labs/kagami/internal/export"
)

// matcher counts pattern occurrences in a message. RE2 has no negative
// lookahead, so patterns that need one carry an exclude expression whose
// match count is subtracted from the broad count.
type matcher struct {
	label   string
	re      *regexp.Regexp
	exclude *regexp.Regexp
}

func (m matcher) count(text string) int {
	n := len(m.re.FindAllStringIndex(text, -1))
	if m.exclude != nil {
		n -= len(m.exclude.FindAllStringIndex(text, -1))
	}
	if n < 0 {
		return 0
	}
	return n
}

var questionMatchers = []matcher{
	{label: "？や?を含む質問", re: regexp.MustCompile(`[？?]`)},
	{label: "「教えて」系", re: regexp.MustCompile(`教えて|おしえて`)},
	{label: "「どうすれば」系", re: regexp.MustCompile(`どうすれば|どうしたら|どうやって`)},
	{label: "「なぜ/なんで」系", re: regexp.MustCompile(`なぜ|なんで|どうして`)},
	{label: "「何/なに」系", re: regexp.MustCompile(`何|なに|なん`)},
	{label: "「どう」系", re: regexp.MustCompile(`どう`), exclude: regexp.MustCompile(`どう(?:すれば|したら|やって|して)`)},
}

// Questions detects question-style patterns in user messages. A message
// counts once per pattern regardless of how many times the pattern fires
// inside it, and once toward the overall question rate regardless of how
// many patterns matched.
func Questions(convs []export.Conversation) QuestionStats {
	type entry struct {
		count    int
		examples []string
	}
	data := make(map[string]*entry, len(questionMatchers))
	for _, m := range questionMatchers {
		data[m.label] = &entry{}
	}

	totalUserMessages := 0
	totalQuestions := 0

	for i := range convs {
		conv := &convs[i]
		for j := range conv.Messages {
			msg := &conv.Messages[j]
			if msg.Role != "user" {
				continue
			}
			totalUserMessages++

			isQuestion := false
			for _, m := range questionMatchers {
				if m.count(msg.Content) == 0 {
					continue
				}
				e := data[m.label]
				e.count++
				if len(e.examples) < 3 {
					e.examples = append(e.examples, truncateRunes(msg.Content, 50))
				}
				isQuestion = true
			}
			if isQuestion {
				totalQuestions++
			}
		}
	}

	patterns := make([]QuestionPattern, 0, len(questionMatchers))
	for _, m := range questionMatchers {
		e := data[m.label]
		if e.count == 0 {
			continue
		}
		patterns = append(patterns, QuestionPattern{Pattern: m.label, Count: e.count, Examples: e.examples})
	}
	sort.SliceStable(patterns, func(i, j int) bool { return patterns[i].Count > patterns[j].Count })

	rate := 0.0
	if totalUserMessages > 0 {
		rate = float64(totalQuestions) / float64(totalUserMessages) * 100
	}
	return QuestionStats{
		TotalQuestions: totalQuestions,
		QuestionRate:   rate,
		Patterns:       patterns,
	}
}

func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
