package text

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// StopChars is the set of characters stripped from both ends of every token
const StopChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// bracketedPattern matches bracket-enclosed content that carries no sentence punctuation
const bracketedPattern = `\[[^.,;:\]]*\]`

// Lemmatizer reduces a word to its dictionary base form
type Lemmatizer interface {
	Lemma(word string) string
}

// LexiconOptions selects where the lemmatization table comes from
type LexiconOptions struct {
	// LemmaFile is a tab separated "inflected<TAB>lemma" file. Empty uses the built-in English dictionary.
	LemmaFile string
}

// ResourceBundle holds the read-only lexical resources shared by every normalizer
type ResourceBundle struct {
	Lemmatizer Lemmatizer
	StopChars  string
	Bracketed  *regexp.Regexp
}

// LoadLexicalResources loads the lemmatization table and compiles the token filters.
// Call it once at startup and share the result.
func LoadLexicalResources(opts LexiconOptions) (*ResourceBundle, error) {
	var lemmatizer Lemmatizer

	if opts.LemmaFile != "" {
		file, err := os.Open(opts.LemmaFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open lemma file: %w", err)
		}
		defer file.Close()

		table, err := ReadLemmaTable(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read lemma file %s: %w", opts.LemmaFile, err)
		}
		lemmatizer = table
	} else {
		dict, err := golem.New(en.New())
		if err != nil {
			return nil, fmt.Errorf("failed to load english lemma dictionary: %w", err)
		}
		lemmatizer = dict
	}

	return NewResourceBundle(lemmatizer), nil
}

// NewResourceBundle wraps an already loaded lemmatizer with the standard token filters
func NewResourceBundle(lemmatizer Lemmatizer) *ResourceBundle {
	return &ResourceBundle{
		Lemmatizer: lemmatizer,
		StopChars:  StopChars,
		Bracketed:  regexp.MustCompile(bracketedPattern),
	}
}

// LemmaTable is an in-memory inflected form to lemma mapping
type LemmaTable map[string]string

// Lemma returns the base form of word, or word itself when it is not in the table
func (t LemmaTable) Lemma(word string) string {
	if lemma, ok := t[word]; ok {
		return lemma
	}
	return word
}

// ReadLemmaTable parses "inflected<TAB>lemma" lines. Blank lines and lines starting with # are ignored.
func ReadLemmaTable(r io.Reader) (LemmaTable, error) {
	table := make(LemmaTable)
	scanner := bufio.NewScanner(r)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		parts := strings.Split(raw, "\t")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("line %d: expected two tab separated fields", line)
		}
		table[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return table, nil
}
