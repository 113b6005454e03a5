package stats

import (
	"sort"
	"unicode/utf8"

	"github.com/kagami-labs/kagami/internal/export"
	"github.com/kagami-labs/kagami/internal/segment"
)

// stopWords covers common Japanese function words plus English function
// words; both appear in the corpus since exports mix languages.
var stopWords = makeSet(
	"の", "に", "は", "を", "た", "が", "で", "て", "と", "し", "れ", "さ",
	"ある", "いる", "も", "する", "から", "な", "こと", "として", "い", "や",
	"れる", "など", "なっ", "ない", "この", "ため", "その", "あっ", "よう",
	"また", "もの", "という", "あり", "まで", "られ", "なる", "へ", "か",
	"だ", "これ", "によって", "により", "おり", "より", "による", "ず", "なり",
	"られる", "において", "ば", "なかっ", "なく", "しかし", "について", "せ",
	"だっ", "その他", "できる", "それ", "う", "ので", "なお", "のみ", "でき",
	"き", "つ", "における", "および", "いう", "さらに", "でも", "ら", "たり",
	"その後", "ただし", "かつて", "それぞれ", "または", "お", "ほど", "ものの",
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could", "should",
	"may", "might", "must", "shall", "can", "need", "dare", "ought", "used",
	"to", "of", "in", "for", "on", "with", "at", "by", "from", "as", "into",
	"through", "during", "before", "after", "above", "below", "between",
	"and", "but", "or", "nor", "so", "yet", "both", "either", "neither",
	"not", "only", "own", "same", "than", "too", "very", "just", "that", "this",
	"these", "those", "i", "you", "he", "she", "it", "we", "they", "me", "him",
	"her", "us", "them", "my", "your", "his", "its", "our", "their",
	"what", "which", "who", "whom", "when", "where", "why", "how",
	"all", "each", "every", "any", "some", "no", "if", "then", "else",
)

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isCountableWord(token string) bool {
	if utf8.RuneCountInString(token) < 2 {
		return false
	}
	if _, ok := stopWords[token]; ok {
		return false
	}
	if segment.IsNumeric(token) {
		return false
	}
	if segment.IsPunctuation(token) {
		return false
	}
	return true
}

// FrequentWords counts word usage across user messages. Counts are per
// occurrence; evidence is per message (at most one entry per word per
// message, capped at maxUsages overall). Top 30 by count.
func FrequentWords(convs []export.Conversation) []WordFrequency {
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

			usage := PhraseUsage{
				ConversationID:    conv.ID,
				ConversationTitle: conv.Title,
				MessageContent:    msg.Content,
				CreateTime:        msgTime(conv, msg),
			}

			evidenced := make(map[string]bool)
			for _, token := range segment.Words(msg.Content) {
				if !isCountableWord(token) {
					continue
				}
				e, ok := data[token]
				if !ok {
					e = &entry{}
					data[token] = e
				}
				e.count++
				if !evidenced[token] && len(e.usages) < maxUsages {
					e.usages = append(e.usages, usage)
					evidenced[token] = true
				}
			}
		}
	}

	words := make([]WordFrequency, 0, len(data))
	for word, e := range data {
		words = append(words, WordFrequency{Word: word, Count: e.count, Usages: e.usages})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	if len(words) > 30 {
		words = words[:30]
	}
	return words
}
