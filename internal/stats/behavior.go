package stats

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kagami-labs/kagami/internal/export"
)

// Behavior computes the user-message heatmap and the phrase detectors.
func Behavior(convs []export.Conversation) BehaviorStats {
	return BehaviorStats{
		HourlyHeatmap: UserHeatmap(convs),
		CatchPhrases:  CatchPhrases(convs),
		Ngrams:        Ngrams(convs),
		Gratitude:     Gratitude(convs),
		Confusion:     Confusion(convs),
	}
}

// UserHeatmap builds the 7x24 matrix over user messages only and locates
// the single peak cell.
func UserHeatmap(convs []export.Conversation) HourlyHeatmap {
	var matrix [7][24]int
	for i := range convs {
		conv := &convs[i]
		for j := range conv.Messages {
			msg := &conv.Messages[j]
			if msg.Role != "user" {
				continue
			}
			t := msgTime(conv, msg).UTC()
			matrix[int(t.Weekday())][t.Hour()]++
		}
	}

	peak := HourlyHeatmap{Matrix: matrix}
	for day := 0; day < 7; day++ {
		for hour := 0; hour < 24; hour++ {
			if matrix[day][hour] > peak.PeakCount {
				peak.PeakCount = matrix[day][hour]
				peak.PeakDay = day
				peak.PeakHour = hour
			}
		}
	}
	return peak
}

// catchPhrases are literal expressions tested against lower-cased user
// text: fillers, acknowledgements, topic shifts, hedges and emphasis
// markers common in Japanese chat.
var catchPhrases = []string{
	// フィラー・つなぎ言葉
	"ちょっと", "とりあえず", "なんか", "っていうか", "まあ", "えーと", "あのー",
	"その", "なんだろう", "なんていうか",
	// 確認・同意系
	"やっぱり", "やっぱ", "やはり", "なるほど", "たしかに", "そうですね", "おっしゃる通り",
	// 話題転換
	"ちなみに", "というか", "ていうか", "ところで", "そういえば", "あと", "それと", "ついでに",
	// 説明・要約系
	"ぶっちゃけ", "正直", "結局", "要するに", "簡単に言うと", "つまり", "例えば",
	"具体的には", "基本的に", "一応",
	// 依頼・お願い系
	"お願い", "してほしい", "してください", "していただけ", "教えて", "助けて",
	// 謝罪・丁寧系
	"すみません", "すいません", "ごめん", "お手数", "恐れ入り", "申し訳",
	// 感情表現
	"なんとなく", "めっちゃ", "すごく", "かなり", "けっこう", "本当に", "マジで",
	// 思考・推測系
	"多分", "たぶん", "おそらく", "思うんですけど", "気がする", "かもしれない",
	// 逆接・条件
	"でも", "ただ", "けど", "ただし", "もし", "仮に",
	// 強調
	"絶対", "必ず", "特に", "とにかく",
	// その他よく使う表現
	"いわゆる", "そもそも", "実は", "個人的に",
}

// CatchPhrases counts habitual phrases across user messages; phrases used
// fewer than 3 times are dropped, top 10 kept.
func CatchPhrases(convs []export.Conversation) []CatchPhrase {
	type entry struct {
		count  int
		usages []PhraseUsage
	}
	data := make(map[string]*entry)

	for i := range convs {
		conv := &convs[i]
		for j := range conv.Messages {
			msg := &conv.Messages[j]
			if msg.Role != "user" {
				continue
			}
			content := strings.ToLower(msg.Content)

			for _, phrase := range catchPhrases {
				n := strings.Count(content, phrase)
				if n == 0 {
					continue
				}
				e, ok := data[phrase]
				if !ok {
					e = &entry{}
					data[phrase] = e
				}
				e.count += n
				if len(e.usages) < maxUsages {
					e.usages = append(e.usages, PhraseUsage{
						ConversationID:    conv.ID,
						ConversationTitle: conv.Title,
						MessageContent:    msg.Content,
						CreateTime:        msgTime(conv, msg),
					})
				}
			}
		}
	}

	phrases := make([]CatchPhrase, 0, len(data))
	for phrase, e := range data {
		if e.count < 3 {
			continue
		}
		phrases = append(phrases, CatchPhrase{Phrase: phrase, Count: e.count, Usages: e.usages})
	}
	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Count != phrases[j].Count {
			return phrases[i].Count > phrases[j].Count
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})
	if len(phrases) > 10 {
		phrases = phrases[:10]
	}
	return phrases
}

var gratitudeMatchers = []matcher{
	{label: "ありがとう", re: regexp.MustCompile(`ありがとう`)},
	{label: "ありがと", re: regexp.MustCompile(`ありがと`), exclude: regexp.MustCompile(`ありがとう`)},
	{label: "サンキュー", re: regexp.MustCompile(`サンキュー`)},
	{label: "thanks", re: regexp.MustCompile(`(?i)thanks`)},
	{label: "thank you", re: regexp.MustCompile(`(?i)thank you`)},
	{label: "感謝", re: regexp.MustCompile(`感謝`)},
	{label: "助かり", re: regexp.MustCompile(`助かり`)},
}

// Gratitude counts thanks expressions. TotalThanks is the raw occurrence
// total; ThanksRate is over messages containing at least one expression.
func Gratitude(convs []export.Conversation) GratitudeStats {
	total, rate, variations := detectPhrases(convs, gratitudeMatchers)
	result := GratitudeStats{TotalThanks: total, ThanksRate: rate}
	for _, v := range variations {
		result.Variations = append(result.Variations, GratitudeVariation(v))
	}
	return result
}

var confusionMatchers = []matcher{
	{label: "わからない", re: regexp.MustCompile(`わからない|分からない|わかんない`)},
	{label: "教えて", re: regexp.MustCompile(`教えて|おしえて`)},
	{label: "どうすれば", re: regexp.MustCompile(`どうすれば|どうしたら`)},
	{label: "困って", re: regexp.MustCompile(`困って|こまって`)},
	{label: "できない", re: regexp.MustCompile(`できない|出来ない`)},
	{label: "うまくいかない", re: regexp.MustCompile(`うまくいかない|上手くいかない`)},
	{label: "エラー", re: regexp.MustCompile(`(?i)エラー|error`)},
	{label: "なぜ", re: regexp.MustCompile(`なぜ|なんで`)},
	{label: "助けて", re: regexp.MustCompile(`助けて|たすけて`)},
}

// Confusion counts expressions of being stuck, with the same
// count-vs-rate split as Gratitude.
func Confusion(convs []export.Conversation) ConfusionStats {
	total, rate, variations := detectPhrases(convs, confusionMatchers)
	result := ConfusionStats{TotalConfused: total, ConfusionRate: rate}
	for _, v := range variations {
		result.Patterns = append(result.Patterns, ConfusionPattern{
			Pattern: v.Phrase,
			Count:   v.Count,
			Usages:  v.Usages,
		})
	}
	return result
}

type phraseResult struct {
	Phrase string
	Count  int
	Usages []PhraseUsage
}

// detectPhrases runs a matcher list over every user message. Occurrences
// accumulate per label; the returned rate is the percentage of user
// messages where any matcher fired at least once.
func detectPhrases(convs []export.Conversation, matchers []matcher) (int, float64, []phraseResult) {
	type entry struct {
		count  int
		usages []PhraseUsage
	}
	data := make(map[string]*entry)

	totalUserMessages := 0
	matchedMessages := 0

	for i := range convs {
		conv := &convs[i]
		for j := range conv.Messages {
			msg := &conv.Messages[j]
			if msg.Role != "user" {
				continue
			}
			totalUserMessages++

			matched := false
			for _, m := range matchers {
				n := m.count(msg.Content)
				if n == 0 {
					continue
				}
				e, ok := data[m.label]
				if !ok {
					e = &entry{}
					data[m.label] = e
				}
				e.count += n
				matched = true
				if len(e.usages) < maxUsages {
					e.usages = append(e.usages, PhraseUsage{
						ConversationID:    conv.ID,
						ConversationTitle: conv.Title,
						MessageContent:    msg.Content,
						CreateTime:        msgTime(conv, msg),
					})
				}
			}
			if matched {
				matchedMessages++
			}
		}
	}

	total := 0
	results := make([]phraseResult, 0, len(data))
	for label, e := range data {
		total += e.count
		results = append(results, phraseResult{Phrase: label, Count: e.count, Usages: e.usages})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Phrase < results[j].Phrase
	})

	rate := 0.0
	if totalUserMessages > 0 {
		rate = float64(matchedMessages) / float64(totalUserMessages) * 100
	}
	return total, rate, results
}
