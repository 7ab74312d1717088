// Package pipeline chains tokenization, tf-idf weighting and one binary classifier per category.
package pipeline

import (
	"errors"
	"fmt"

	"disaster-classifier/internal/features"
	"disaster-classifier/internal/models"
	"disaster-classifier/internal/svm"
	"disaster-classifier/internal/text"

	"go.uber.org/zap"
)

// FinalFold marks a fit on the whole training split rather than a validation fold
const FinalFold = -1

// Config holds the hyperparameters of one pipeline
type Config struct {
	SmoothIDF bool
	C         float64
	Lowercase bool
	Tol       float64
	MaxIter   int
	Seed      uint64
}

// Pipeline is a vectorizer, a tf-idf transformer and K independent binary classifiers
type Pipeline struct {
	cfg         Config
	normalizer  text.Normalizer
	categories  models.LabelSpace
	vectorizer  *features.CountVectorizer
	tfidf       *features.TfidfTransformer
	classifiers []svm.BinaryClassifier
	constant    []string
	logger      *zap.Logger
}

// New creates an unfitted pipeline
func New(normalizer text.Normalizer, categories models.LabelSpace, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:        cfg,
		normalizer: normalizer,
		categories: categories,
		vectorizer: features.NewCountVectorizer(normalizer, cfg.Lowercase),
		tfidf:      features.NewTfidfTransformer(cfg.SmoothIDF),
		logger:     logger,
	}
}

// Restore rebuilds a fitted pipeline from its parts
func Restore(
	categories models.LabelSpace,
	cfg Config,
	vectorizer *features.CountVectorizer,
	tfidf *features.TfidfTransformer,
	classifiers []svm.BinaryClassifier,
) (*Pipeline, error) {
	if len(classifiers) != categories.Len() {
		return nil, fmt.Errorf("got %d classifiers for %d categories", len(classifiers), categories.Len())
	}

	p := &Pipeline{
		cfg:         cfg,
		categories:  categories,
		vectorizer:  vectorizer,
		tfidf:       tfidf,
		classifiers: classifiers,
		logger:      zap.NewNop(),
	}
	for k, clf := range classifiers {
		if _, ok := clf.(*svm.Constant); ok {
			p.constant = append(p.constant, categories.Name(k))
		}
	}
	return p, nil
}

// Fit trains the pipeline on the whole training split
func (p *Pipeline) Fit(docs []string, labels [][]uint8) error {
	return p.FitFold(docs, labels, FinalFold)
}

// FitFold trains the pipeline; fold only labels log lines and errors.
// A category with a single class in labels gets a constant predictor and a warning.
func (p *Pipeline) FitFold(docs []string, labels [][]uint8, fold int) error {
	if len(docs) == 0 {
		return fmt.Errorf("cannot fit on an empty document set")
	}
	if len(docs) != len(labels) {
		return fmt.Errorf("got %d documents but %d label vectors", len(docs), len(labels))
	}

	counts, err := p.vectorizer.FitTransform(docs)
	if err != nil {
		return fmt.Errorf("failed to fit vectorizer: %w", err)
	}
	x, err := p.tfidf.FitTransform(counts)
	if err != nil {
		return fmt.Errorf("failed to fit tfidf: %w", err)
	}

	k := p.categories.Len()
	p.classifiers = make([]svm.BinaryClassifier, k)
	p.constant = nil

	column := make([]uint8, len(labels))
	for j := 0; j < k; j++ {
		name := p.categories.Name(j)
		for i, row := range labels {
			if len(row) != k {
				return fmt.Errorf("label vector %d has length %d, want %d", i, len(row), k)
			}
			column[i] = row[j]
		}

		clf := svm.NewLinearSVC(p.cfg.C, p.cfg.Seed)
		if p.cfg.Tol > 0 {
			clf.Tol = p.cfg.Tol
		}
		if p.cfg.MaxIter > 0 {
			clf.MaxIter = p.cfg.MaxIter
		}

		err := clf.Fit(x.Rows, x.Cols, column)
		if errors.Is(err, svm.ErrSingleClass) {
			p.logger.Warn("Category has a single class, using constant predictor",
				zap.String("category", name),
				zap.Int("fold", fold),
				zap.Uint8("class", column[0]))
			p.classifiers[j] = &svm.Constant{Class: column[0]}
			p.constant = append(p.constant, name)
			continue
		}
		if err != nil {
			return &models.TrainingError{Category: name, Fold: fold, Err: err}
		}

		if !clf.Converged() {
			p.logger.Debug("Classifier hit iteration cap",
				zap.String("category", name),
				zap.Int("fold", fold),
				zap.Int("iterations", clf.Iterations()))
		}
		p.classifiers[j] = clf
	}

	return nil
}

// Predict returns one K-wide label vector per document
func (p *Pipeline) Predict(docs []string) ([][]uint8, error) {
	if p.classifiers == nil {
		return nil, fmt.Errorf("pipeline has not been fitted")
	}

	counts, err := p.vectorizer.Transform(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to vectorize: %w", err)
	}
	x, err := p.tfidf.Transform(counts)
	if err != nil {
		return nil, fmt.Errorf("failed to weight terms: %w", err)
	}

	out := make([][]uint8, x.Len())
	for i, row := range x.Rows {
		pred := make([]uint8, len(p.classifiers))
		for j, clf := range p.classifiers {
			pred[j] = clf.Predict(row)
		}
		out[i] = pred
	}
	return out, nil
}

// Config returns the hyperparameters the pipeline was built with
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Categories returns the label space the classifiers are aligned to
func (p *Pipeline) Categories() models.LabelSpace {
	return p.categories
}

// Vectorizer returns the fitted count vectorizer
func (p *Pipeline) Vectorizer() *features.CountVectorizer {
	return p.vectorizer
}

// Tfidf returns the fitted tf-idf transformer
func (p *Pipeline) Tfidf() *features.TfidfTransformer {
	return p.tfidf
}

// Classifiers returns the per-category classifiers in label space order
func (p *Pipeline) Classifiers() []svm.BinaryClassifier {
	out := make([]svm.BinaryClassifier, len(p.classifiers))
	copy(out, p.classifiers)
	return out
}

// ConstantCategories lists categories that were fit with a constant predictor
func (p *Pipeline) ConstantCategories() []string {
	out := make([]string, len(p.constant))
	copy(out, p.constant)
	return out
}
