// Package segment provides word segmentation and script helpers for the
// statistics engine. Tokenization follows Unicode UAX #29 word boundaries,
// which keeps Latin words and katakana runs intact while splitting CJK
// ideographs.
package segment

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// Words splits text into lower-cased word tokens. Whitespace-only tokens
// are dropped; punctuation tokens are kept so callers can filter them with
// their own rules.
func Words(text string) []string {
	var tokens []string
	iter := words.FromString(text)
	for iter.Next() {
		tok := strings.ToLower(strings.TrimSpace(iter.Value()))
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// HasJapanese reports whether the token contains at least one hiragana,
// katakana or kanji rune.
func HasJapanese(token string) bool {
	for _, r := range token {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}

// IsHiraganaOnly reports whether every rune in the token is hiragana.
// Used to drop bare grammatical particles.
func IsHiraganaOnly(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.Is(unicode.Hiragana, r) {
			return false
		}
	}
	return true
}

// IsNumeric reports whether the token is purely digits.
func IsNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsPunctuation reports whether the token consists entirely of
// punctuation, symbols or whitespace.
func IsPunctuation(token string) bool {
	if token == "" {
		return true
	}
	for _, r := range token {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			continue
		}
		return false
	}
	return true
}
