// Package features converts token sequences into weighted sparse document vectors.
package features

import "math"

// Vector is a sparse row. Indices are strictly ascending.
type Vector struct {
	Indices []int
	Values  []float64
}

// NNZ returns the number of stored entries
func (v Vector) NNZ() int {
	return len(v.Indices)
}

// Dot returns the inner product with a dense weight vector
func (v Vector) Dot(w []float64) float64 {
	var sum float64
	for k, idx := range v.Indices {
		sum += v.Values[k] * w[idx]
	}
	return sum
}

// SquaredNorm returns the sum of squared values
func (v Vector) SquaredNorm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return sum
}

// Dense expands the vector to a dense slice of the given width
func (v Vector) Dense(width int) []float64 {
	out := make([]float64, width)
	for k, idx := range v.Indices {
		out[idx] = v.Values[k]
	}
	return out
}

// Matrix is a list of sparse rows sharing a column space
type Matrix struct {
	Rows []Vector
	Cols int
}

// Len returns the number of rows
func (m *Matrix) Len() int {
	return len(m.Rows)
}

func l2normalize(v Vector) Vector {
	norm := math.Sqrt(v.SquaredNorm())
	if norm == 0 {
		return v
	}
	for k := range v.Values {
		v.Values[k] /= norm
	}
	return v
}
