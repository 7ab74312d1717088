package search

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Fold is one train/validation partition of row indices
type Fold struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles 0..n-1 with a seeded generator and holds out ceil(testSize*n) rows
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	return perm[nTest:], perm[:nTest], nil
}

// KFold partitions 0..n-1 into k contiguous validation blocks without shuffling.
// The first n%k blocks hold one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, n)
	}

	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size

		fold := Fold{
			Train: make([]int, 0, n-size),
			Test:  make([]int, 0, size),
		}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Test = append(fold.Test, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds[f] = fold
		start = end
	}

	return folds, nil
}
