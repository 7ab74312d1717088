package search

import (
	"fmt"

	"disaster-classifier/internal/evaluation"
	"disaster-classifier/internal/pipeline"
)

// Regularization is the shared C of every per-category classifier
type Regularization float64

const (
	RegularizationC1 Regularization = 1
	RegularizationC2 Regularization = 2
	RegularizationC5 Regularization = 5
)

// Regularizations lists the allowed values in grid order
var Regularizations = []Regularization{RegularizationC1, RegularizationC2, RegularizationC5}

// ParseRegularization accepts one of the allowed C values
func ParseRegularization(v float64) (Regularization, error) {
	for _, r := range Regularizations {
		if float64(r) == v {
			return r, nil
		}
	}
	return 0, fmt.Errorf("regularization %v is not one of %v", v, Regularizations)
}

// Params is one point of the hyperparameter grid
type Params struct {
	SmoothIDF bool
	C         Regularization
}

func (p Params) String() string {
	return fmt.Sprintf("smooth_idf=%t C=%g", p.SmoothIDF, float64(p.C))
}

// Apply sets the grid hyperparameters on a base pipeline configuration
func (p Params) Apply(base pipeline.Config) pipeline.Config {
	base.SmoothIDF = p.SmoothIDF
	base.C = float64(p.C)
	return base
}

// DefaultGrid returns every allowed C crossed with smoothing on and off
func DefaultGrid() []Params {
	grid, _ := NewGrid(Regularizations, []bool{true, false})
	return grid
}

// NewGrid enumerates C in the outer loop and smoothing in the inner loop.
// This order is the tie-break order of the search.
func NewGrid(cs []Regularization, smoothing []bool) ([]Params, error) {
	if len(cs) == 0 || len(smoothing) == 0 {
		return nil, fmt.Errorf("grid needs at least one C value and one smoothing value")
	}

	seen := make(map[Params]struct{}, len(cs)*len(smoothing))
	grid := make([]Params, 0, len(cs)*len(smoothing))
	for _, c := range cs {
		if _, err := ParseRegularization(float64(c)); err != nil {
			return nil, err
		}
		for _, s := range smoothing {
			p := Params{SmoothIDF: s, C: c}
			if _, dup := seen[p]; dup {
				return nil, fmt.Errorf("duplicate grid point %s", p)
			}
			seen[p] = struct{}{}
			grid = append(grid, p)
		}
	}
	return grid, nil
}

// Scorer rates predictions against truth, higher is better
type Scorer func(truth, pred [][]uint8) float64

const (
	ScoringSubsetAccuracy = "subset_accuracy"
	ScoringF1Micro        = "f1_micro"
	ScoringF1Macro        = "f1_macro"
)

// ScorerFor returns the named scorer. Empty selects subset accuracy.
func ScorerFor(name string) (Scorer, error) {
	switch name {
	case "", ScoringSubsetAccuracy:
		return evaluation.SubsetAccuracy, nil
	case ScoringF1Micro:
		return evaluation.MicroF1, nil
	case ScoringF1Macro:
		return evaluation.MacroF1, nil
	default:
		return nil, fmt.Errorf("unknown scoring %q", name)
	}
}
