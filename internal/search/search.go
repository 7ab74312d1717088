// Package search selects pipeline hyperparameters by cross-validated grid search.
package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"disaster-classifier/internal/features"
	"disaster-classifier/internal/models"
	"disaster-classifier/internal/pipeline"
	"disaster-classifier/internal/text"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFolds is the number of cross-validation folds
const DefaultFolds = 5

// GridSearch evaluates every grid point on every fold and refits the best one
type GridSearch struct {
	normalizer text.Normalizer
	categories models.LabelSpace
	grid       []Params
	folds      int
	workers    int
	scoring    string
	scorer     Scorer
	base       pipeline.Config
	logger     *zap.Logger
}

// Options configures a GridSearch
type Options struct {
	Grid    []Params
	Folds   int
	Workers int
	Scoring string
	Base    pipeline.Config
}

// PointScore holds the fold scores of one grid point
type PointScore struct {
	Params     Params
	FoldScores []float64
	Mean       float64
}

// Result is the outcome of a search
type Result struct {
	Best      Params
	BestScore float64
	Scores    []PointScore
	Pipeline  *pipeline.Pipeline
}

// NewGridSearch validates options and fills defaults
func NewGridSearch(normalizer text.Normalizer, categories models.LabelSpace, opts Options, logger *zap.Logger) (*GridSearch, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	grid := opts.Grid
	if len(grid) == 0 {
		grid = DefaultGrid()
	}
	folds := opts.Folds
	if folds == 0 {
		folds = DefaultFolds
	}
	if folds < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", folds)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scoring := opts.Scoring
	if scoring == "" {
		scoring = ScoringSubsetAccuracy
	}
	scorer, err := ScorerFor(scoring)
	if err != nil {
		return nil, err
	}

	return &GridSearch{
		normalizer: normalizer,
		categories: categories,
		grid:       grid,
		folds:      folds,
		workers:    workers,
		scoring:    scoring,
		scorer:     scorer,
		base:       opts.Base,
		logger:     logger,
	}, nil
}

// Scoring returns the name of the scorer in use
func (g *GridSearch) Scoring() string {
	return g.scoring
}

// Run cross-validates the grid on docs/labels and refits the best point on all of them.
// Ties keep the earliest grid point.
func (g *GridSearch) Run(ctx context.Context, docs []string, labels [][]uint8) (*Result, error) {
	if len(docs) != len(labels) {
		return nil, fmt.Errorf("got %d documents but %d label vectors", len(docs), len(labels))
	}

	folds, err := KFold(len(docs), g.folds)
	if err != nil {
		return nil, fmt.Errorf("failed to build folds: %w", err)
	}

	g.logger.Info("Starting grid search",
		zap.Int("grid_points", len(g.grid)),
		zap.Int("folds", len(folds)),
		zap.Int("workers", g.workers),
		zap.String("scoring", g.scoring))

	scores := make([][]float64, len(g.grid))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.workers)
	for gi, params := range g.grid {
		for fi, fold := range folds {
			group.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				score, err := g.score(params, fold, fi, docs, labels)
				if err != nil {
					return fmt.Errorf("grid point %s fold %d: %w", params, fi, err)
				}
				scores[gi][fi] = score
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Scores: make([]PointScore, len(g.grid))}
	best := -1
	for gi, params := range g.grid {
		var sum float64
		for _, s := range scores[gi] {
			sum += s
		}
		mean := sum / float64(len(folds))
		result.Scores[gi] = PointScore{Params: params, FoldScores: scores[gi], Mean: mean}

		g.logger.Info("Grid point scored",
			zap.Bool("smooth_idf", params.SmoothIDF),
			zap.Float64("C", float64(params.C)),
			zap.Float64("mean_score", mean))

		if best < 0 || mean > result.Scores[best].Mean {
			best = gi
		}
	}
	result.Best = g.grid[best]
	result.BestScore = result.Scores[best].Mean

	g.logger.Info("Best grid point selected",
		zap.String("params", result.Best.String()),
		zap.Float64("mean_score", result.BestScore))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := pipeline.New(g.normalizer, g.categories, result.Best.Apply(g.base), g.logger)
	if err := final.Fit(docs, labels); err != nil {
		return nil, fmt.Errorf("failed to refit best pipeline: %w", err)
	}
	result.Pipeline = final

	return result, nil
}

// score fits one pipeline on the fold's training rows and rates it on the held-out rows
func (g *GridSearch) score(params Params, fold Fold, fi int, docs []string, labels [][]uint8) (float64, error) {
	trainDocs, trainLabels := pick(docs, labels, fold.Train)
	testDocs, testLabels := pick(docs, labels, fold.Test)

	p := pipeline.New(g.normalizer, g.categories, params.Apply(g.base), g.logger)
	if err := p.FitFold(trainDocs, trainLabels, fi); err != nil {
		if errors.Is(err, features.ErrEmptyVocabulary) {
			g.logger.Warn("Fold has no terms to train on, scoring it 0",
				zap.String("params", params.String()),
				zap.Int("fold", fi))
			return 0, nil
		}
		return 0, err
	}

	pred, err := p.Predict(testDocs)
	if err != nil {
		return 0, err
	}

	score := g.scorer(testLabels, pred)
	g.logger.Debug("Fold scored",
		zap.String("params", params.String()),
		zap.Int("fold", fi),
		zap.Float64("score", score))
	return score, nil
}

func pick(docs []string, labels [][]uint8, idx []int) ([]string, [][]uint8) {
	d := make([]string, len(idx))
	l := make([][]uint8, len(idx))
	for i, j := range idx {
		d[i] = docs[j]
		l[i] = labels[j]
	}
	return d, l
}
