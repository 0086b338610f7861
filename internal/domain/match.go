package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// StopWords are ignored when comparing a guess with the answer.
var StopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "was": {}, "were": {}, "of": {},
	"to": {}, "and": {}, "in": {}, "on": {}, "at": {}, "by": {},
}

var fold = cases.Fold()

// Tokens splits text into lower-cased words, dropping punctuation.
func Tokens(text string) []string {
	folded := fold.String(norm.NFC.String(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// SignificantTokens returns the stop-word filtered token set of text.
// Text made only of stop words keeps its raw tokens so it can still be matched.
func SignificantTokens(text string) map[string]struct{} {
	words := Tokens(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, stop := StopWords[w]; !stop {
			set[w] = struct{}{}
		}
	}
	if len(set) == 0 {
		for _, w := range words {
			set[w] = struct{}{}
		}
	}
	return set
}

// IsCorrectGuess reports whether guess shares any significant word with answer.
// The match is deliberately lenient: "a piano" and "grand piano" both solve "piano".
func IsCorrectGuess(guess, answer string) bool {
	answerWords := SignificantTokens(answer)
	for w := range SignificantTokens(guess) {
		if _, ok := answerWords[w]; ok {
			return true
		}
	}
	return false
}

// NormalizeQuestion folds case and collapses whitespace for duplicate detection.
func NormalizeQuestion(question string) string {
	return strings.Join(strings.Fields(fold.String(norm.NFC.String(question))), " ")
}
