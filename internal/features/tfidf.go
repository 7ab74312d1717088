package features

import (
	"fmt"
	"math"
)

// TfidfTransformer re-weights term counts by inverse document frequency and L2 normalizes rows
type TfidfTransformer struct {
	SmoothIDF bool
	idf       []float64
}

// NewTfidfTransformer creates an unfitted transformer
func NewTfidfTransformer(smoothIDF bool) *TfidfTransformer {
	return &TfidfTransformer{SmoothIDF: smoothIDF}
}

// NewFittedTfidfTransformer restores a transformer from stored idf weights
func NewFittedTfidfTransformer(smoothIDF bool, idf []float64) *TfidfTransformer {
	copied := make([]float64, len(idf))
	copy(copied, idf)
	return &TfidfTransformer{SmoothIDF: smoothIDF, idf: copied}
}

// Fit computes idf weights from a count matrix.
// Smoothed: ln((1+n)/(1+df)) + 1. Unsmoothed: ln(n/df) + 1.
func (t *TfidfTransformer) Fit(counts *Matrix) {
	df := make([]float64, counts.Cols)
	for _, row := range counts.Rows {
		for k, idx := range row.Indices {
			if row.Values[k] != 0 {
				df[idx]++
			}
		}
	}

	n := float64(counts.Len())
	t.idf = make([]float64, counts.Cols)
	for j, d := range df {
		switch {
		case t.SmoothIDF:
			t.idf[j] = math.Log((1+n)/(1+d)) + 1
		case d == 0:
			t.idf[j] = 1
		default:
			t.idf[j] = math.Log(n/d) + 1
		}
	}
}

// Transform returns a new matrix of L2 normalized tf-idf rows
func (t *TfidfTransformer) Transform(counts *Matrix) (*Matrix, error) {
	if t.idf == nil {
		return nil, fmt.Errorf("tfidf transformer has not been fitted")
	}
	if counts.Cols != len(t.idf) {
		return nil, fmt.Errorf("count matrix has %d columns, idf has %d", counts.Cols, len(t.idf))
	}

	out := &Matrix{Rows: make([]Vector, counts.Len()), Cols: counts.Cols}
	for i, row := range counts.Rows {
		weighted := Vector{
			Indices: make([]int, len(row.Indices)),
			Values:  make([]float64, len(row.Values)),
		}
		copy(weighted.Indices, row.Indices)
		for k, idx := range row.Indices {
			weighted.Values[k] = row.Values[k] * t.idf[idx]
		}
		out.Rows[i] = l2normalize(weighted)
	}
	return out, nil
}

// FitTransform fits on counts and transforms them
func (t *TfidfTransformer) FitTransform(counts *Matrix) (*Matrix, error) {
	t.Fit(counts)
	return t.Transform(counts)
}

// IDF returns a copy of the fitted idf weights
func (t *TfidfTransformer) IDF() []float64 {
	out := make([]float64, len(t.idf))
	copy(out, t.idf)
	return out
}
