package stats

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kagami-labs/kagami/internal/export"
	"github.com/kagami-labs/kagami/internal/segment"
)

// ngramStopWords is a stricter list than stopWords: particles, copulas
// and demonstratives that would dominate n-gram results.
var ngramStopWords = makeSet(
	"の", "に", "は", "を", "た", "が", "で", "て", "と", "し", "れ", "さ",
	"も", "な", "い", "や", "か", "だ", "う", "ね", "よ", "わ", "ん",
	"です", "ます", "ある", "いる", "する", "なる", "こと", "もの", "ない",
	"この", "その", "あの", "どの", "これ", "それ", "あれ", "どれ",
	"から", "まで", "より", "ので", "のに", "けど", "けれど",
	"という", "といった", "として", "について", "における", "によって",
	"ください", "ほしい", "たい", "られ", "せる", "させ",
)

// isNgramToken applies the n-gram filter: the token must carry at least
// one Japanese character, so purely foreign-script tokens are excluded
// even though they may appear in general frequency analysis. One- and
// two-character hiragana-only tokens are bare particles and dropped.
func isNgramToken(token string) bool {
	n := utf8.RuneCountInString(token)
	if n < 2 {
		return false
	}
	if !segment.HasJapanese(token) {
		return false
	}
	if _, ok := ngramStopWords[token]; ok {
		return false
	}
	if segment.IsNumeric(token) {
		return false
	}
	if segment.IsPunctuation(token) {
		return false
	}
	if segment.IsHiraganaOnly(token) && n <= 2 {
		return false
	}
	return true
}

// Ngrams extracts unigram/bigram/trigram phrases from user messages.
// Minimum occurrence thresholds are 5/5/3 and the buckets keep the top
// 20/15/10 respectively.
func Ngrams(convs []export.Conversation) NgramStats {
	type entry struct {
		count  int
		usages []PhraseUsage
	}
	grams := [3]map[string]*entry{
		make(map[string]*entry),
		make(map[string]*entry),
		make(map[string]*entry),
	}

	record := func(n int, phrase string, usage PhraseUsage) {
		e, ok := grams[n-1][phrase]
		if !ok {
			e = &entry{}
			grams[n-1][phrase] = e
		}
		e.count++
		if len(e.usages) < maxUsages {
			e.usages = append(e.usages, usage)
		}
	}

	for i := range convs {
		conv := &convs[i]
		for j := range conv.Messages {
			msg := &conv.Messages[j]
			if msg.Role != "user" {
				continue
			}

			var tokens []string
			for _, tok := range segment.Words(msg.Content) {
				if isNgramToken(tok) {
					tokens = append(tokens, tok)
				}
			}

			usage := PhraseUsage{
				ConversationID:    conv.ID,
				ConversationTitle: conv.Title,
				MessageContent:    msg.Content,
				CreateTime:        msgTime(conv, msg),
			}

			for k := range tokens {
				record(1, tokens[k], usage)
				if k+1 < len(tokens) {
					record(2, tokens[k]+" "+tokens[k+1], usage)
				}
				if k+2 < len(tokens) {
					record(3, strings.Join(tokens[k:k+3], " "), usage)
				}
			}
		}
	}

	rank := func(n, minCount, top int) []NgramPhrase {
		phrases := make([]NgramPhrase, 0, len(grams[n-1]))
		for phrase, e := range grams[n-1] {
			if e.count < minCount {
				continue
			}
			phrases = append(phrases, NgramPhrase{Phrase: phrase, N: n, Count: e.count, Usages: e.usages})
		}
		sort.Slice(phrases, func(i, j int) bool {
			if phrases[i].Count != phrases[j].Count {
				return phrases[i].Count > phrases[j].Count
			}
			return phrases[i].Phrase < phrases[j].Phrase
		})
		if len(phrases) > top {
			phrases = phrases[:top]
		}
		return phrases
	}

	return NgramStats{
		Unigrams: rank(1, 5, 20),
		Bigrams:  rank(2, 5, 15),
		Trigrams: rank(3, 3, 10),
	}
}
