// Package svm provides binary linear classifiers over sparse feature rows.
package svm

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"disaster-classifier/internal/features"
)

const (
	// DefaultTol is the stopping tolerance on the projected gradient spread
	DefaultTol = 1e-4

	// DefaultMaxIter bounds the number of passes over the data
	DefaultMaxIter = 1000
)

// ErrSingleClass is returned when the training labels hold only one class
var ErrSingleClass = errors.New("training labels contain a single class")

// BinaryClassifier decides membership of one category
type BinaryClassifier interface {
	Decision(x features.Vector) float64
	Predict(x features.Vector) uint8
}

// LinearSVC is an L2-regularised linear classifier with squared hinge loss.
// The intercept is learned as the weight of a constant feature equal to 1.
type LinearSVC struct {
	C       float64
	Tol     float64
	MaxIter int
	Seed    uint64

	Weights []float64
	Bias    float64

	iterations int
	converged  bool
}

// NewLinearSVC creates an unfitted classifier with default tolerance and iteration cap
func NewLinearSVC(c float64, seed uint64) *LinearSVC {
	return &LinearSVC{
		C:       c,
		Tol:     DefaultTol,
		MaxIter: DefaultMaxIter,
		Seed:    seed,
	}
}

// Fit solves the dual problem by coordinate descent over a seeded random order.
// labels holds 0/1 per row; cols is the width of the feature space.
func (s *LinearSVC) Fit(rows []features.Vector, cols int, labels []uint8) error {
	if len(rows) != len(labels) {
		return fmt.Errorf("got %d rows but %d labels", len(rows), len(labels))
	}
	if s.C <= 0 {
		return fmt.Errorf("regularization C must be positive, got %v", s.C)
	}

	n := len(rows)
	y := make([]float64, n)
	positives := 0
	for i, l := range labels {
		if l != 0 {
			y[i] = 1
			positives++
		} else {
			y[i] = -1
		}
	}
	if positives == 0 || positives == n {
		return ErrSingleClass
	}

	tol := s.Tol
	if tol <= 0 {
		tol = DefaultTol
	}
	maxIter := s.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}

	diag := 0.5 / s.C
	qd := make([]float64, n)
	for i, row := range rows {
		qd[i] = row.SquaredNorm() + 1 + diag
	}

	w := make([]float64, cols)
	var b float64
	alpha := make([]float64, n)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	s.converged = false
	iter := 0
	for ; iter < maxIter; iter++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		maxPG := math.Inf(-1)
		minPG := math.Inf(1)
		for _, i := range order {
			row := rows[i]
			g := y[i]*(row.Dot(w)+b) - 1 + diag*alpha[i]

			pg := g
			if alpha[i] == 0 {
				pg = math.Min(g, 0)
			}
			maxPG = math.Max(maxPG, pg)
			minPG = math.Min(minPG, pg)

			if math.Abs(pg) > 1e-12 {
				old := alpha[i]
				alpha[i] = math.Max(alpha[i]-g/qd[i], 0)
				d := (alpha[i] - old) * y[i]
				for k, idx := range row.Indices {
					w[idx] += d * row.Values[k]
				}
				b += d
			}
		}

		if maxPG-minPG <= tol {
			s.converged = true
			iter++
			break
		}
	}

	s.Weights = w
	s.Bias = b
	s.iterations = iter
	return nil
}

// Decision returns the signed distance proxy w·x + b
func (s *LinearSVC) Decision(x features.Vector) float64 {
	return x.Dot(s.Weights) + s.Bias
}

// Predict returns 1 when the decision value is positive
func (s *LinearSVC) Predict(x features.Vector) uint8 {
	if s.Decision(x) > 0 {
		return 1
	}
	return 0
}

// Converged reports whether the last Fit met the tolerance before the iteration cap
func (s *LinearSVC) Converged() bool {
	return s.converged
}

// Iterations returns the number of passes made by the last Fit
func (s *LinearSVC) Iterations() int {
	return s.iterations
}

// Constant always predicts the single class seen during training
type Constant struct {
	Class uint8
}

// Decision returns +1 for the positive class and -1 otherwise
func (c *Constant) Decision(features.Vector) float64 {
	if c.Class != 0 {
		return 1
	}
	return -1
}

// Predict returns the stored class
func (c *Constant) Predict(features.Vector) uint8 {
	return c.Class
}
