package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"disaster-classifier/internal/models"
	"disaster-classifier/internal/pipeline"
	"disaster-classifier/internal/text"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	docs = []string{
		"we need clean drinking water",
		"no water left in the village",
		"please send food and rice",
		"families are hungry without food",
	}
	labels = [][]uint8{{1, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 1, 0}}
)

func fittedModel(t *testing.T, normalizer text.Normalizer) *pipeline.Model {
	t.Helper()
	space, err := models.NewLabelSpace([]string{"water", "food", "child_alone"})
	require.NoError(t, err)

	p := pipeline.New(normalizer, space, pipeline.Config{SmoothIDF: true, C: 2, Lowercase: true, Seed: 7}, nil)
	require.NoError(t, p.Fit(docs, labels))

	return &pipeline.Model{
		Pipeline:  p,
		RunID:     uuid.NewString(),
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Scoring:   "subset_accuracy",
		CVScore:   0.5,
	}
}

func asSerializationError(t *testing.T, err error) *models.SerializationError {
	t.Helper()
	var se *models.SerializationError
	require.True(t, errors.As(err, &se), "got %v", err)
	return se
}

func TestFileStore(t *testing.T) {
	normalizer := text.NewNormalizer(text.NewResourceBundle(text.LemmaTable{}))
	store := NewFileStore(normalizer, nil)

	t.Run("Should load a model that predicts like the saved one", func(t *testing.T) {
		model := fittedModel(t, normalizer)
		path := filepath.Join(t.TempDir(), "classifier.model.gz")
		require.NoError(t, store.Save(model, path))

		loaded, err := store.Load(path)
		require.NoError(t, err)

		assert.Equal(t, model.RunID, loaded.RunID)
		assert.True(t, model.CreatedAt.Equal(loaded.CreatedAt))
		assert.Equal(t, model.Config(), loaded.Config())
		assert.Equal(t, model.Categories().Names(), loaded.Categories().Names())
		assert.Equal(t, []string{"child_alone"}, loaded.ConstantCategories())

		probe := append([]string{"water and food for the children", "[unknown] tokens only"}, docs...)
		want, err := model.Predict(probe)
		require.NoError(t, err)
		got, err := loaded.Predict(probe)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Should not leave temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, store.Save(fittedModel(t, normalizer), filepath.Join(dir, "m.gz")))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "m.gz", entries[0].Name())
	})

	t.Run("Should fail with the path when the directory is missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "m.gz")
		err := store.Save(fittedModel(t, normalizer), path)
		assert.Equal(t, path, asSerializationError(t, err).Path)
	})

	t.Run("Should refuse an unfitted model", func(t *testing.T) {
		err := store.Save(&pipeline.Model{}, filepath.Join(t.TempDir(), "m.gz"))
		asSerializationError(t, err)
	})

	t.Run("Should reject files that are not artifacts", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "m.gz")
		require.NoError(t, os.WriteFile(path, []byte("not compressed"), 0o644))

		_, err := store.Load(path)
		asSerializationError(t, err)

		_, err = store.Load(filepath.Join(t.TempDir(), "absent.gz"))
		asSerializationError(t, err)
	})

	t.Run("Should reject an unknown format version", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "m.gz")
		f, err := os.Create(path)
		require.NoError(t, err)
		gz := gzip.NewWriter(f)
		require.NoError(t, json.NewEncoder(gz).Encode(document{FormatVersion: FormatVersion + 1}))
		require.NoError(t, gz.Close())
		require.NoError(t, f.Close())

		_, err = store.Load(path)
		se := asSerializationError(t, err)
		assert.Contains(t, se.Error(), "format version")
	})
}
