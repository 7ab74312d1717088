package evaluation

import (
	"math"
	"strings"
	"testing"

	"disaster-classifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelSpace(t *testing.T, names ...string) models.LabelSpace {
	t.Helper()
	s, err := models.NewLabelSpace(names)
	require.NoError(t, err)
	return s
}

func TestCounts(t *testing.T) {
	t.Run("Should compute precision recall and f1", func(t *testing.T) {
		c := Counts{TP: 2, FP: 1, FN: 1}
		assert.InDelta(t, 2.0/3.0, c.Precision(), 1e-12)
		assert.InDelta(t, 2.0/3.0, c.Recall(), 1e-12)
		assert.InDelta(t, 2.0/3.0, c.F1(), 1e-12)
		assert.Equal(t, 3, c.Support())
	})

	t.Run("Should report zero instead of NaN on empty denominators", func(t *testing.T) {
		c := Counts{TN: 5}
		for _, v := range []float64{c.Precision(), c.Recall(), c.F1()} {
			assert.False(t, math.IsNaN(v))
			assert.Equal(t, 0.0, v)
		}
	})
}

func TestEvaluate(t *testing.T) {
	space := labelSpace(t, "related", "water", "food")
	truth := [][]uint8{
		{1, 1, 0},
		{1, 0, 1},
		{0, 0, 0},
		{1, 1, 1},
	}
	pred := [][]uint8{
		{1, 1, 0},
		{1, 0, 0},
		{1, 0, 0},
		{1, 1, 1},
	}

	t.Run("Should score every category by default", func(t *testing.T) {
		r, err := Evaluate(truth, pred, space, Options{})
		require.NoError(t, err)
		require.Len(t, r.Scores(), 3)

		related := r.Categories[0]
		assert.Equal(t, "related", related.Category)
		assert.InDelta(t, 0.75, related.Precision, 1e-12)
		assert.InDelta(t, 1.0, related.Recall, 1e-12)
		assert.Equal(t, 3, related.Support)

		food := r.Categories[2]
		assert.InDelta(t, 1.0, food.Precision, 1e-12)
		assert.InDelta(t, 0.5, food.Recall, 1e-12)
		assert.InDelta(t, 2.0/3.0, food.F1, 1e-12)

		// pooled: TP=6 FP=1 FN=1
		assert.InDelta(t, 6.0/7.0, r.Micro.F1, 1e-12)
		assert.Equal(t, 7, r.Micro.Support)
		assert.Empty(t, r.Excluded)
	})

	t.Run("Should exclude a named category from truth prediction and names", func(t *testing.T) {
		r, err := Evaluate(truth, pred, space, Options{ExcludeCategory: "related"})
		require.NoError(t, err)
		require.Len(t, r.Categories, 2)
		assert.Equal(t, "water", r.Categories[0].Category)
		assert.Equal(t, "food", r.Categories[1].Category)
		assert.InDelta(t, 1.0, r.Categories[0].F1, 1e-12)
		assert.Equal(t, 4, r.Micro.Support)
		assert.Equal(t, "related", r.Excluded)
	})

	t.Run("Should reject an unknown excluded category", func(t *testing.T) {
		_, err := Evaluate(truth, pred, space, Options{ExcludeCategory: "shelter"})
		require.Error(t, err)
	})

	t.Run("Should reject mismatched shapes", func(t *testing.T) {
		_, err := Evaluate(truth, pred[:2], space, Options{})
		require.Error(t, err)

		_, err = Evaluate([][]uint8{{1, 0}}, [][]uint8{{1, 0}}, space, Options{})
		require.Error(t, err)
	})

	t.Run("Should keep every value inside the unit interval", func(t *testing.T) {
		r, err := Evaluate(truth, pred, space, Options{})
		require.NoError(t, err)
		for _, s := range append(r.Scores(), r.Averages()...) {
			for _, v := range []float64{s.Precision, s.Recall, s.F1} {
				assert.GreaterOrEqual(t, v, 0.0, s.Category)
				assert.LessOrEqual(t, v, 1.0, s.Category)
			}
		}
	})

	t.Run("Should define scores for a category never seen nor predicted", func(t *testing.T) {
		r, err := Evaluate([][]uint8{{1, 0}, {1, 0}}, [][]uint8{{1, 0}, {0, 0}}, labelSpace(t, "water", "food"), Options{})
		require.NoError(t, err)
		food := r.Categories[1]
		assert.Equal(t, Score{Category: "food"}, food)
		assert.False(t, math.IsNaN(r.Macro.F1))
		assert.False(t, math.IsNaN(r.Samples.F1))
	})

	t.Run("Should format a readable table", func(t *testing.T) {
		r, err := Evaluate(truth, pred, space, Options{ExcludeCategory: "related"})
		require.NoError(t, err)

		out := r.String()
		lines := strings.Split(out, "\n")
		assert.Contains(t, lines[0], "precision")
		assert.Contains(t, lines[0], "f1-score")
		assert.Contains(t, out, "       water       1.00      1.00      1.00         2")
		assert.Contains(t, out, "weighted avg")
		assert.Contains(t, out, " samples avg")
		assert.Contains(t, out, "excluded from scoring: related")
	})
}

func TestScorers(t *testing.T) {
	truth := [][]uint8{{1, 0}, {0, 1}, {1, 1}}
	pred := [][]uint8{{1, 0}, {0, 0}, {1, 1}}

	assert.InDelta(t, 2.0/3.0, SubsetAccuracy(truth, pred), 1e-12)
	// pooled: TP=3 FP=0 FN=1
	assert.InDelta(t, 6.0/7.0, MicroF1(truth, pred), 1e-12)
	// water F1 = 1, food F1 = 2/3
	assert.InDelta(t, (1+2.0/3.0)/2, MacroF1(truth, pred), 1e-12)

	t.Run("Should give zero contribution for a fold without positives", func(t *testing.T) {
		empty := [][]uint8{{0, 0}, {0, 0}}
		assert.Equal(t, 1.0, SubsetAccuracy(empty, empty))
		assert.Equal(t, 0.0, MicroF1(empty, empty))
		assert.Equal(t, 0.0, MacroF1(empty, empty))
	})
}
