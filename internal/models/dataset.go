package models

import (
	"fmt"
	"strings"
)

// Message represents a single row of the disaster response table
type Message struct {
	ID       int64   `db:"id"`
	Text     string  `db:"message"`
	Original *string `db:"original"` // Untranslated text, often missing
	Genre    string  `db:"genre"`    // direct, news, social
}

// LabelVector is a binary membership vector aligned to a LabelSpace
type LabelVector []uint8

// Positives returns the number of categories set in the vector
func (v LabelVector) Positives() int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}

// LabelSpace is the ordered, duplicate-free set of category names
type LabelSpace struct {
	names []string
	index map[string]int
}

// NewLabelSpace builds a LabelSpace from category names in column order
func NewLabelSpace(names []string) (LabelSpace, error) {
	if len(names) == 0 {
		return LabelSpace{}, fmt.Errorf("label space must contain at least one category")
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return LabelSpace{}, fmt.Errorf("category %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return LabelSpace{}, fmt.Errorf("duplicate category %q", name)
		}
		index[name] = i
	}

	copied := make([]string, len(names))
	for name, i := range index {
		copied[i] = name
	}

	return LabelSpace{names: copied, index: index}, nil
}

// Len returns the number of categories
func (s LabelSpace) Len() int {
	return len(s.names)
}

// Names returns a copy of the category names in order
func (s LabelSpace) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Name returns the category at position i
func (s LabelSpace) Name(i int) string {
	return s.names[i]
}

// Index returns the position of the named category, or -1
func (s LabelSpace) Index(name string) int {
	i, ok := s.index[name]
	if !ok {
		return -1
	}
	return i
}

// Without returns a new space lacking the named category and the position it held
func (s LabelSpace) Without(name string) (LabelSpace, int, error) {
	pos := s.Index(name)
	if pos < 0 {
		return LabelSpace{}, -1, fmt.Errorf("unknown category %q", name)
	}

	rest := make([]string, 0, len(s.names)-1)
	rest = append(rest, s.names[:pos]...)
	rest = append(rest, s.names[pos+1:]...)

	space, err := NewLabelSpace(rest)
	if err != nil {
		return LabelSpace{}, -1, err
	}
	return space, pos, nil
}

// Corpus pairs message texts with their label vectors
type Corpus struct {
	Messages   []string
	Labels     []LabelVector
	Categories LabelSpace
}

// Len returns the number of messages
func (c *Corpus) Len() int {
	return len(c.Messages)
}

// Validate checks that every label vector matches the label space
func (c *Corpus) Validate() error {
	if c.Categories.Len() == 0 {
		return fmt.Errorf("corpus has no categories")
	}
	if len(c.Messages) != len(c.Labels) {
		return fmt.Errorf("corpus has %d messages but %d label vectors", len(c.Messages), len(c.Labels))
	}
	for i, v := range c.Labels {
		if len(v) != c.Categories.Len() {
			return fmt.Errorf("label vector %d has length %d, want %d", i, len(v), c.Categories.Len())
		}
		for j, x := range v {
			if x > 1 {
				return fmt.Errorf("label vector %d has non-binary value %d for %q", i, x, c.Categories.Name(j))
			}
		}
	}
	return nil
}

// Subset returns a corpus holding the rows at the given indices, in that order
func (c *Corpus) Subset(indices []int) *Corpus {
	sub := &Corpus{
		Messages:   make([]string, len(indices)),
		Labels:     make([]LabelVector, len(indices)),
		Categories: c.Categories,
	}
	for i, idx := range indices {
		sub.Messages[i] = c.Messages[idx]
		sub.Labels[i] = c.Labels[idx]
	}
	return sub
}

// Matrix returns the label vectors as a plain row-major matrix
func (c *Corpus) Matrix() [][]uint8 {
	out := make([][]uint8, len(c.Labels))
	for i, v := range c.Labels {
		out[i] = v
	}
	return out
}
