// Package text turns raw message text into clean tokens.
package text

import "strings"

// Normalizer splits a message into an ordered sequence of clean tokens
type Normalizer interface {
	Tokenize(text string) []string
}

type normalizer struct {
	res *ResourceBundle
}

// NewNormalizer creates a Normalizer over shared lexical resources
func NewNormalizer(res *ResourceBundle) Normalizer {
	return &normalizer{res: res}
}

// Tokenize splits on whitespace, then lemmatizes, lowercases and strips each fragment.
// Fragments that end up empty are dropped; the rest keep their original order.
func (n *normalizer) Tokenize(text string) []string {
	fragments := strings.Fields(text)
	tokens := make([]string, 0, len(fragments))

	for _, fragment := range fragments {
		token := n.res.Lemmatizer.Lemma(fragment)
		token = strings.ToLower(token)
		token = strings.Trim(token, n.res.StopChars)
		token = n.res.Bracketed.ReplaceAllString(token, "")

		if token != "" {
			tokens = append(tokens, token)
		}
	}

	return tokens
}
