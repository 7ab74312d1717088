package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"disaster-classifier/internal/config"
	"disaster-classifier/internal/evaluation"
	"disaster-classifier/internal/models"
	"disaster-classifier/internal/pipeline"
	"disaster-classifier/internal/repository"
	"disaster-classifier/internal/search"
	"disaster-classifier/internal/text"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stages of a training run, used to label failures
const (
	StageLoad     = "load"
	StageSplit    = "split"
	StageSearch   = "search"
	StageEvaluate = "evaluate"
	StageSave     = "save"
)

// StageError names the stage a training run failed in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CorpusSource provides the labelled messages of one run
type CorpusSource interface {
	LoadCorpus(ctx context.Context) (*models.Corpus, error)
	Close() error
}

// SourceOpener opens the message store behind a locator
type SourceOpener func(locator string) (CorpusSource, error)

// ModelStore persists the selected model
type ModelStore interface {
	Save(model *pipeline.Model, path string) error
}

// OpenRepository returns an opener backed by the SQL message repository
func OpenRepository(table string, logger *zap.Logger) SourceOpener {
	return func(locator string) (CorpusSource, error) {
		db, err := repository.NewDatabase(locator, logger)
		if err != nil {
			return nil, err
		}
		repo, err := repository.NewMessageRepository(db, locator, table, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil
	}
}

// Summary describes a finished run
type Summary struct {
	RunID              string
	Best               search.Params
	CVScore            float64
	Report             *evaluation.Report
	ConstantCategories []string
}

// Trainer runs load, split, search, evaluate and save in order
type Trainer struct {
	open       SourceOpener
	store      ModelStore
	normalizer text.Normalizer
	cfg        *config.Config
	out        io.Writer
	logger     *zap.Logger
}

// NewTrainer creates a new trainer; progress and the report are written to out
func NewTrainer(
	open SourceOpener,
	store ModelStore,
	normalizer text.Normalizer,
	cfg *config.Config,
	out io.Writer,
	logger *zap.Logger,
) *Trainer {
	return &Trainer{
		open:       open,
		store:      store,
		normalizer: normalizer,
		cfg:        cfg,
		out:        out,
		logger:     logger,
	}
}

// Run trains on the messages at dbPath and writes the selected model to modelPath
func (t *Trainer) Run(ctx context.Context, dbPath, modelPath string) (*Summary, error) {
	runID := uuid.NewString()
	logger := t.logger.With(zap.String("run_id", runID))

	fmt.Fprintf(t.out, "Loading data...\n    DATABASE: %s\n", dbPath)
	corpus, err := t.load(ctx, dbPath)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}
	if name := t.cfg.Evaluation.ExcludeCategory; name != "" && corpus.Categories.Index(name) < 0 {
		return nil, &StageError{Stage: StageLoad, Err: fmt.Errorf("excluded category %q is not a column of the corpus", name)}
	}

	trainIdx, testIdx, err := search.TrainTestSplit(corpus.Len(), t.cfg.Split.TestSize, t.cfg.SplitSeed())
	if err != nil {
		return nil, &StageError{Stage: StageSplit, Err: err}
	}
	train := corpus.Subset(trainIdx)
	test := corpus.Subset(testIdx)
	logger.Info("Corpus split", zap.Int("train", train.Len()), zap.Int("test", test.Len()))

	fmt.Fprintln(t.out, "Building model...")
	gs, err := t.buildSearch(corpus.Categories, logger)
	if err != nil {
		return nil, &StageError{Stage: StageSearch, Err: err}
	}

	fmt.Fprintln(t.out, "Training model...")
	started := time.Now()
	result, err := gs.Run(ctx, train.Messages, train.Matrix())
	if err != nil {
		return nil, &StageError{Stage: StageSearch, Err: err}
	}
	logger.Info("Model trained",
		zap.String("params", result.Best.String()),
		zap.Float64("cv_score", result.BestScore),
		zap.Duration("elapsed", time.Since(started)),
		zap.Strings("constant_categories", result.Pipeline.ConstantCategories()))

	fmt.Fprintln(t.out, "Evaluating model...")
	report, err := t.evaluate(result.Pipeline, test)
	if err != nil {
		return nil, &StageError{Stage: StageEvaluate, Err: err}
	}
	if err := report.Format(t.out); err != nil {
		return nil, &StageError{Stage: StageEvaluate, Err: err}
	}

	fmt.Fprintf(t.out, "Saving model...\n    MODEL: %s\n", modelPath)
	model := &pipeline.Model{
		Pipeline:  result.Pipeline,
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Scoring:   gs.Scoring(),
		CVScore:   result.BestScore,
	}
	if err := t.store.Save(model, modelPath); err != nil {
		return nil, &StageError{Stage: StageSave, Err: err}
	}
	fmt.Fprintln(t.out, "Trained model saved!")

	return &Summary{
		RunID:              runID,
		Best:               result.Best,
		CVScore:            result.BestScore,
		Report:             report,
		ConstantCategories: result.Pipeline.ConstantCategories(),
	}, nil
}

func (t *Trainer) load(ctx context.Context, dbPath string) (*models.Corpus, error) {
	src, err := t.open(dbPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return src.LoadCorpus(ctx)
}

func (t *Trainer) buildSearch(categories models.LabelSpace, logger *zap.Logger) (*search.GridSearch, error) {
	cs := make([]search.Regularization, 0, len(t.cfg.Search.Grid.Regularization))
	for _, v := range t.cfg.Search.Grid.Regularization {
		c, err := search.ParseRegularization(v)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	grid, err := search.NewGrid(cs, t.cfg.Search.Grid.Smoothing)
	if err != nil {
		return nil, fmt.Errorf("failed to build grid: %w", err)
	}

	return search.NewGridSearch(t.normalizer, categories, search.Options{
		Grid:    grid,
		Folds:   t.cfg.Search.Folds,
		Workers: t.cfg.Search.Workers,
		Scoring: t.cfg.Search.Scoring,
		Base: pipeline.Config{
			Lowercase: t.cfg.Lowercase(),
			Tol:       t.cfg.SVM.Tol,
			MaxIter:   t.cfg.SVM.MaxIter,
			Seed:      t.cfg.SearchSeed(),
		},
	}, logger)
}

func (t *Trainer) evaluate(p *pipeline.Pipeline, test *models.Corpus) (*evaluation.Report, error) {
	pred, err := p.Predict(test.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to predict test split: %w", err)
	}
	return evaluation.Evaluate(test.Matrix(), pred, test.Categories, evaluation.Options{
		ExcludeCategory: t.cfg.Evaluation.ExcludeCategory,
	})
}
