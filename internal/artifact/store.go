// Package artifact persists fitted models as gzip-compressed JSON documents.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"disaster-classifier/internal/features"
	"disaster-classifier/internal/models"
	"disaster-classifier/internal/pipeline"
	"disaster-classifier/internal/svm"
	"disaster-classifier/internal/text"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// FormatVersion is bumped whenever the stored layout changes
const FormatVersion = 1

// FileStore writes and reads model artifacts on the local filesystem
type FileStore struct {
	normalizer text.Normalizer
	logger     *zap.Logger
}

// NewFileStore creates a store; normalizer is attached to loaded models so they can tokenize input
func NewFileStore(normalizer text.Normalizer, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{normalizer: normalizer, logger: logger}
}

type document struct {
	FormatVersion int                  `json:"format_version"`
	RunID         string               `json:"run_id"`
	CreatedAt     time.Time            `json:"created_at"`
	Scoring       string               `json:"scoring"`
	CVScore       float64              `json:"cv_score"`
	Params        params               `json:"params"`
	Categories    []string             `json:"categories"`
	Vocabulary    []string             `json:"vocabulary"`
	IDF           []float64            `json:"idf"`
	Classifiers   []classifierDocument `json:"classifiers"`
}

type params struct {
	SmoothIDF bool    `json:"smooth_idf"`
	C         float64 `json:"C"`
	Lowercase bool    `json:"lowercase"`
	Tol       float64 `json:"tol"`
	MaxIter   int     `json:"max_iter"`
	Seed      uint64  `json:"seed"`
}

type classifierDocument struct {
	Category string    `json:"category"`
	Weights  []float64 `json:"weights,omitempty"`
	Bias     float64   `json:"bias"`
	Constant *uint8    `json:"constant,omitempty"`
}

// Save writes model to path, replacing any existing file only once the new one is complete
func (s *FileStore) Save(model *pipeline.Model, path string) error {
	doc, err := encode(model)
	if err != nil {
		return &models.SerializationError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return &models.SerializationError{Path: path, Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(doc); err != nil {
		return &models.SerializationError{Path: path, Err: fmt.Errorf("failed to encode model: %w", err)}
	}
	if err := gz.Close(); err != nil {
		return &models.SerializationError{Path: path, Err: fmt.Errorf("failed to compress model: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &models.SerializationError{Path: path, Err: fmt.Errorf("failed to write model: %w", err)}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &models.SerializationError{Path: path, Err: fmt.Errorf("failed to commit model: %w", err)}
	}
	committed = true

	s.logger.Info("Model artifact written",
		zap.String("path", path),
		zap.String("run_id", doc.RunID),
		zap.Int("categories", len(doc.Categories)),
		zap.Int("vocabulary", len(doc.Vocabulary)))
	return nil
}

// Load reads a model written by Save. The result predicts without retraining.
func (s *FileStore) Load(path string) (*pipeline.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.SerializationError{Path: path, Err: err}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, &models.SerializationError{Path: path, Err: fmt.Errorf("failed to decompress model: %w", err)}
	}
	defer gz.Close()

	var doc document
	if err := json.NewDecoder(gz).Decode(&doc); err != nil {
		return nil, &models.SerializationError{Path: path, Err: fmt.Errorf("failed to decode model: %w", err)}
	}

	model, err := s.decode(&doc)
	if err != nil {
		return nil, &models.SerializationError{Path: path, Err: err}
	}
	return model, nil
}

func encode(model *pipeline.Model) (*document, error) {
	if model == nil || model.Pipeline == nil {
		return nil, errors.New("no fitted model to save")
	}

	cfg := model.Config()
	doc := &document{
		FormatVersion: FormatVersion,
		RunID:         model.RunID,
		CreatedAt:     model.CreatedAt.UTC(),
		Scoring:       model.Scoring,
		CVScore:       model.CVScore,
		Params: params{
			SmoothIDF: cfg.SmoothIDF,
			C:         cfg.C,
			Lowercase: cfg.Lowercase,
			Tol:       cfg.Tol,
			MaxIter:   cfg.MaxIter,
			Seed:      cfg.Seed,
		},
		Categories: model.Categories().Names(),
		Vocabulary: model.Vectorizer().Vocabulary(),
		IDF:        model.Tfidf().IDF(),
	}

	classifiers := model.Classifiers()
	if len(classifiers) == 0 {
		return nil, errors.New("model has not been fitted")
	}
	for k, clf := range classifiers {
		entry := classifierDocument{Category: doc.Categories[k]}
		switch c := clf.(type) {
		case *svm.LinearSVC:
			entry.Weights = c.Weights
			entry.Bias = c.Bias
		case *svm.Constant:
			class := c.Class
			entry.Constant = &class
		default:
			return nil, fmt.Errorf("category %q has unsupported classifier %T", entry.Category, clf)
		}
		doc.Classifiers = append(doc.Classifiers, entry)
	}
	return doc, nil
}

func (s *FileStore) decode(doc *document) (*pipeline.Model, error) {
	if doc.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d, want %d", doc.FormatVersion, FormatVersion)
	}

	categories, err := models.NewLabelSpace(doc.Categories)
	if err != nil {
		return nil, fmt.Errorf("invalid categories: %w", err)
	}
	if len(doc.IDF) != len(doc.Vocabulary) {
		return nil, fmt.Errorf("idf has %d entries for %d terms", len(doc.IDF), len(doc.Vocabulary))
	}
	if len(doc.Classifiers) != categories.Len() {
		return nil, fmt.Errorf("got %d classifiers for %d categories", len(doc.Classifiers), categories.Len())
	}

	vectorizer, err := features.NewFittedCountVectorizer(s.normalizer, doc.Params.Lowercase, doc.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}
	tfidf := features.NewFittedTfidfTransformer(doc.Params.SmoothIDF, doc.IDF)

	cfg := pipeline.Config{
		SmoothIDF: doc.Params.SmoothIDF,
		C:         doc.Params.C,
		Lowercase: doc.Params.Lowercase,
		Tol:       doc.Params.Tol,
		MaxIter:   doc.Params.MaxIter,
		Seed:      doc.Params.Seed,
	}

	classifiers := make([]svm.BinaryClassifier, len(doc.Classifiers))
	for k, entry := range doc.Classifiers {
		if entry.Category != categories.Name(k) {
			return nil, fmt.Errorf("classifier %d is for %q, want %q", k, entry.Category, categories.Name(k))
		}
		if entry.Constant != nil {
			classifiers[k] = &svm.Constant{Class: *entry.Constant}
			continue
		}
		if len(entry.Weights) != len(doc.Vocabulary) {
			return nil, fmt.Errorf("category %q has %d weights for %d terms", entry.Category, len(entry.Weights), len(doc.Vocabulary))
		}
		clf := svm.NewLinearSVC(cfg.C, cfg.Seed)
		clf.Weights = entry.Weights
		clf.Bias = entry.Bias
		classifiers[k] = clf
	}

	p, err := pipeline.Restore(categories, cfg, vectorizer, tfidf, classifiers)
	if err != nil {
		return nil, err
	}

	return &pipeline.Model{
		Pipeline:  p,
		RunID:     doc.RunID,
		CreatedAt: doc.CreatedAt,
		Scoring:   doc.Scoring,
		CVScore:   doc.CVScore,
	}, nil
}
