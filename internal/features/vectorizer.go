package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"disaster-classifier/internal/text"
)

var (
	// ErrNotFitted is returned when transforming before the vocabulary is learned
	ErrNotFitted = errors.New("vectorizer has not been fitted")

	// ErrAlreadyFitted is returned when Fit is called on a fitted vectorizer
	ErrAlreadyFitted = errors.New("vectorizer is already fitted")

	// ErrEmptyVocabulary is returned when the training documents produce no tokens at all
	ErrEmptyVocabulary = errors.New("empty vocabulary: training documents contain no tokens")
)

// CountVectorizer maps documents to raw term counts over a fixed vocabulary
type CountVectorizer struct {
	normalizer text.Normalizer
	lowercase  bool
	vocabulary map[string]int
	terms      []string
}

// NewCountVectorizer creates an unfitted vectorizer using the given normalizer.
// With lowercase set, documents are lowercased before tokenization.
func NewCountVectorizer(normalizer text.Normalizer, lowercase bool) *CountVectorizer {
	return &CountVectorizer{
		normalizer: normalizer,
		lowercase:  lowercase,
	}
}

// NewFittedCountVectorizer restores a vectorizer from a previously learned term list
func NewFittedCountVectorizer(normalizer text.Normalizer, lowercase bool, terms []string) (*CountVectorizer, error) {
	if len(terms) == 0 {
		return nil, ErrEmptyVocabulary
	}

	vocabulary := make(map[string]int, len(terms))
	for i, term := range terms {
		if _, dup := vocabulary[term]; dup {
			return nil, fmt.Errorf("duplicate vocabulary term %q", term)
		}
		vocabulary[term] = i
	}

	copied := make([]string, len(terms))
	copy(copied, terms)

	return &CountVectorizer{
		normalizer: normalizer,
		lowercase:  lowercase,
		vocabulary: vocabulary,
		terms:      copied,
	}, nil
}

func (v *CountVectorizer) tokenize(doc string) []string {
	if v.lowercase {
		doc = strings.ToLower(doc)
	}
	return v.normalizer.Tokenize(doc)
}

// Fit learns the vocabulary. Columns follow lexicographic term order.
func (v *CountVectorizer) Fit(docs []string) error {
	_, err := v.FitTransform(docs)
	return err
}

// FitTransform learns the vocabulary and returns the count matrix of docs
func (v *CountVectorizer) FitTransform(docs []string) (*Matrix, error) {
	if v.vocabulary != nil {
		return nil, ErrAlreadyFitted
	}

	tokenized := make([][]string, len(docs))
	seen := make(map[string]struct{})
	for i, doc := range docs {
		tokenized[i] = v.tokenize(doc)
		for _, tok := range tokenized[i] {
			seen[tok] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v.terms = terms
	v.vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
	}

	m := &Matrix{Rows: make([]Vector, len(docs)), Cols: len(terms)}
	for i, tokens := range tokenized {
		m.Rows[i] = v.count(tokens)
	}
	return m, nil
}

// Transform maps docs onto the fitted vocabulary. Unknown terms are ignored.
func (v *CountVectorizer) Transform(docs []string) (*Matrix, error) {
	if v.vocabulary == nil {
		return nil, ErrNotFitted
	}

	m := &Matrix{Rows: make([]Vector, len(docs)), Cols: len(v.terms)}
	for i, doc := range docs {
		m.Rows[i] = v.count(v.tokenize(doc))
	}
	return m, nil
}

func (v *CountVectorizer) count(tokens []string) Vector {
	counts := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		if idx, ok := v.vocabulary[tok]; ok {
			counts[idx]++
		}
	}

	row := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		row.Indices = append(row.Indices, idx)
	}
	sort.Ints(row.Indices)
	for _, idx := range row.Indices {
		row.Values = append(row.Values, counts[idx])
	}
	return row
}

// Vocabulary returns the learned terms in column order
func (v *CountVectorizer) Vocabulary() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Lowercase reports whether documents are lowercased before tokenization
func (v *CountVectorizer) Lowercase() bool {
	return v.lowercase
}
