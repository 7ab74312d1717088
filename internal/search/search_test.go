package search

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"disaster-classifier/internal/features"
	"disaster-classifier/internal/models"
	"disaster-classifier/internal/pipeline"
	"disaster-classifier/internal/text"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testNormalizer() text.Normalizer {
	return text.NewNormalizer(text.NewResourceBundle(text.LemmaTable{}))
}

func twoCategories(t *testing.T) models.LabelSpace {
	t.Helper()
	s, err := models.NewLabelSpace([]string{"water", "food"})
	require.NoError(t, err)
	return s
}

func baseConfig() pipeline.Config {
	return pipeline.Config{Lowercase: true, Seed: 42}
}

func TestKFold(t *testing.T) {
	t.Run("Should build contiguous blocks with remainder first", func(t *testing.T) {
		folds, err := KFold(10, 3)
		require.NoError(t, err)
		require.Len(t, folds, 3)

		assert.Equal(t, []int{0, 1, 2, 3}, folds[0].Test)
		assert.Equal(t, []int{4, 5, 6}, folds[1].Test)
		assert.Equal(t, []int{7, 8, 9}, folds[2].Test)

		for _, f := range folds {
			all := append(append([]int{}, f.Train...), f.Test...)
			sort.Ints(all)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)
		}
	})

	t.Run("Should reject impossible fold counts", func(t *testing.T) {
		_, err := KFold(10, 1)
		require.Error(t, err)
		_, err = KFold(3, 5)
		require.Error(t, err)
	})
}

func TestTrainTestSplit(t *testing.T) {
	t.Run("Should hold out the ceiling of the test share", func(t *testing.T) {
		train, test, err := TrainTestSplit(10, 0.2, 1)
		require.NoError(t, err)
		assert.Len(t, test, 2)
		assert.Len(t, train, 8)

		all := append(append([]int{}, train...), test...)
		sort.Ints(all)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

		train, test, err = TrainTestSplit(4, 0.2, 1)
		require.NoError(t, err)
		assert.Len(t, test, 1)
		assert.Len(t, train, 3)
	})

	t.Run("Should be deterministic for a seed", func(t *testing.T) {
		a1, b1, err := TrainTestSplit(50, 0.2, 99)
		require.NoError(t, err)
		a2, b2, err := TrainTestSplit(50, 0.2, 99)
		require.NoError(t, err)
		assert.Equal(t, a1, a2)
		assert.Equal(t, b1, b2)
	})

	t.Run("Should reject bad sizes", func(t *testing.T) {
		_, _, err := TrainTestSplit(10, 0, 1)
		require.Error(t, err)
		_, _, err = TrainTestSplit(10, 1, 1)
		require.Error(t, err)
		_, _, err = TrainTestSplit(1, 0.5, 1)
		require.Error(t, err)
	})
}

func TestGrid(t *testing.T) {
	t.Run("Should enumerate C outer and smoothing inner", func(t *testing.T) {
		assert.Equal(t, []Params{
			{SmoothIDF: true, C: 1},
			{SmoothIDF: false, C: 1},
			{SmoothIDF: true, C: 2},
			{SmoothIDF: false, C: 2},
			{SmoothIDF: true, C: 5},
			{SmoothIDF: false, C: 5},
		}, DefaultGrid())
	})

	t.Run("Should reject values outside the allowed set", func(t *testing.T) {
		_, err := ParseRegularization(3)
		require.Error(t, err)
		_, err = NewGrid([]Regularization{1, 10}, []bool{true})
		require.Error(t, err)
	})

	t.Run("Should reject duplicate points", func(t *testing.T) {
		_, err := NewGrid([]Regularization{1, 1}, []bool{true})
		require.Error(t, err)
	})

	t.Run("Should apply params onto a base config", func(t *testing.T) {
		cfg := Params{SmoothIDF: false, C: RegularizationC5}.Apply(baseConfig())
		assert.False(t, cfg.SmoothIDF)
		assert.Equal(t, 5.0, cfg.C)
		assert.True(t, cfg.Lowercase)
	})

	t.Run("Should resolve scorers by name", func(t *testing.T) {
		for _, name := range []string{"", ScoringSubsetAccuracy, ScoringF1Micro, ScoringF1Macro} {
			_, err := ScorerFor(name)
			require.NoError(t, err, name)
		}
		_, err := ScorerFor("roc_auc")
		require.Error(t, err)
	})
}

func syntheticCorpus() ([]string, [][]uint8) {
	water := []string{"clean water", "drinking water", "water tank", "water supply", "thirsty no water", "bottled water"}
	food := []string{"need food", "food rations", "hungry food", "rice food", "food parcels", "baby food"}

	var docs []string
	var labels [][]uint8
	for i := range water {
		docs = append(docs, water[i], food[i])
		labels = append(labels, []uint8{1, 0}, []uint8{0, 1})
	}
	return docs, labels
}

func TestGridSearchRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Should survive degenerate folds and break ties by grid order", func(t *testing.T) {
		docs := []string{"we need water", "water please", "we need food", "food please"}
		labels := [][]uint8{{1, 0}, {1, 0}, {0, 1}, {0, 1}}

		gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Folds: 2, Base: baseConfig()}, nil)
		require.NoError(t, err)

		res, err := gs.Run(ctx, docs, labels)
		require.NoError(t, err)
		require.Len(t, res.Scores, 6)
		for _, s := range res.Scores {
			assert.Equal(t, 0.0, s.Mean, s.Params.String())
		}
		assert.Equal(t, Params{SmoothIDF: true, C: 1}, res.Best)

		pred, err := res.Pipeline.Predict(docs)
		require.NoError(t, err)
		assert.Equal(t, labels, pred)
	})

	t.Run("Should pick the same configuration on repeated runs", func(t *testing.T) {
		docs, labels := syntheticCorpus()
		run := func(workers int) *Result {
			gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{
				Folds:   3,
				Workers: workers,
				Scoring: ScoringF1Macro,
				Base:    baseConfig(),
			}, nil)
			require.NoError(t, err)
			res, err := gs.Run(ctx, docs, labels)
			require.NoError(t, err)
			return res
		}

		first := run(1)
		second := run(4)
		assert.Equal(t, first.Best, second.Best)
		assert.Equal(t, first.BestScore, second.BestScore)
		for i := range first.Scores {
			assert.Equal(t, first.Scores[i].FoldScores, second.Scores[i].FoldScores)
		}
		assert.Equal(t, 2, first.Pipeline.Categories().Len())
	})

	t.Run("Should restrict the search to a configured grid", func(t *testing.T) {
		docs, labels := syntheticCorpus()
		grid, err := NewGrid([]Regularization{RegularizationC5}, []bool{false})
		require.NoError(t, err)

		gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Grid: grid, Folds: 2, Base: baseConfig()}, nil)
		require.NoError(t, err)
		res, err := gs.Run(ctx, docs, labels)
		require.NoError(t, err)
		assert.Equal(t, Params{SmoothIDF: false, C: 5}, res.Best)
		assert.Equal(t, 5.0, res.Pipeline.Config().C)
	})

	t.Run("Should score a fold without any terms as zero", func(t *testing.T) {
		docs := []string{"!!!", "...", "water", "food"}
		labels := [][]uint8{{0, 0}, {0, 0}, {1, 0}, {0, 1}}

		core, logs := observer.New(zapcore.WarnLevel)
		gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Folds: 2, Base: baseConfig()}, zap.New(core))
		require.NoError(t, err)

		res, err := gs.Run(ctx, docs, labels)
		require.NoError(t, err)
		for _, s := range res.Scores {
			assert.Equal(t, 0.0, s.FoldScores[1], s.Params.String())
		}
		assert.Len(t, logs.FilterMessage("Fold has no terms to train on, scoring it 0").All(), len(res.Scores))
		assert.Equal(t, []string{"food", "water"}, res.Pipeline.Vectorizer().Vocabulary())
	})

	t.Run("Should propagate fold failures", func(t *testing.T) {
		docs := []string{"water", "more water", "food", "more food"}
		labels := [][]uint8{{1, 0}, {1}, {0, 1}, {0, 1}}

		gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Folds: 2, Base: baseConfig()}, nil)
		require.NoError(t, err)
		_, err = gs.Run(ctx, docs, labels)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "label vector")
	})

	t.Run("Should fail when the whole training split has no terms", func(t *testing.T) {
		docs := []string{"!!!", "...", "???", "---"}
		labels := [][]uint8{{1, 0}, {0, 1}, {1, 0}, {0, 1}}

		gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Folds: 2, Base: baseConfig()}, nil)
		require.NoError(t, err)
		_, err = gs.Run(ctx, docs, labels)
		assert.ErrorIs(t, err, features.ErrEmptyVocabulary)
	})

	t.Run("Should stop on a cancelled context", func(t *testing.T) {
		docs, labels := syntheticCorpus()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Folds: 2, Base: baseConfig()}, nil)
		require.NoError(t, err)
		_, err = gs.Run(cctx, docs, labels)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Should reject invalid options", func(t *testing.T) {
		_, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Folds: 1}, nil)
		require.Error(t, err)
		_, err = NewGridSearch(testNormalizer(), twoCategories(t), Options{Scoring: "nope"}, nil)
		require.Error(t, err)
	})

	t.Run("Should reject more folds than rows", func(t *testing.T) {
		gs, err := NewGridSearch(testNormalizer(), twoCategories(t), Options{Folds: 5, Base: baseConfig()}, nil)
		require.NoError(t, err)
		_, err = gs.Run(ctx, []string{"a", "b"}, [][]uint8{{1, 0}, {0, 1}})
		require.Error(t, err)
		assert.Contains(t, fmt.Sprint(err), "folds")
	})
}
