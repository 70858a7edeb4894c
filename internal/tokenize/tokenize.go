// Package tokenize provides the tokenizer and normalizer functions the
// guesser engine is parameterised with. The engine itself never splits or
// folds text; callers pick (or supply) functions from here.
package tokenize

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Func produces an ordered sequence of raw tokens from a text. It must be
// deterministic for identical input so vocabularies and embeddings are
// reproducible.
type Func func(text string) []string

// Normalizer maps a raw token to its canonical form.
type Normalizer func(token string) string

// Words splits text on any run of non-alphanumeric runes. It performs no
// case folding; pair it with a Normalizer.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Whitespace splits text on whitespace only, keeping punctuation attached.
func Whitespace(text string) []string {
	return strings.Fields(text)
}

// Lower is the default normalizer: simple case folding.
func Lower(token string) string {
	return strings.ToLower(token)
}

// Identity returns the token unchanged.
func Identity(token string) string {
	return token
}

// Stem lower-cases and applies the English snowball stemmer. Tokens the
// stemmer rejects (non-ASCII, empty) fall back to plain case folding.
func Stem(token string) string {
	stemmed, err := snowball.Stem(token, "english", true)
	if err != nil || stemmed == "" {
		return strings.ToLower(token)
	}
	return stemmed
}
