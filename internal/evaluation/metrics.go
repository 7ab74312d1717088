// Package evaluation scores predicted label matrices against the truth.
package evaluation

// Counts is the confusion table of one category column
type Counts struct {
	TP, FP, FN, TN int
}

// Support is the number of true positives plus false negatives
func (c Counts) Support() int {
	return c.TP + c.FN
}

// Precision returns TP/(TP+FP), or 0 when nothing was predicted positive
func (c Counts) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// Recall returns TP/(TP+FN), or 0 when there are no true positives to find
func (c Counts) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// F1 returns 2TP/(2TP+FP+FN), or 0 when the category never occurs in truth or prediction
func (c Counts) F1() float64 {
	return ratio(2*c.TP, 2*c.TP+c.FP+c.FN)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Confusion counts outcomes for one column of row-major label matrices
func Confusion(truth, pred [][]uint8, col int) Counts {
	var c Counts
	for i := range truth {
		t, p := truth[i][col] != 0, pred[i][col] != 0
		switch {
		case t && p:
			c.TP++
		case !t && p:
			c.FP++
		case t && !p:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

func width(truth [][]uint8) int {
	if len(truth) == 0 {
		return 0
	}
	return len(truth[0])
}

// SubsetAccuracy is the fraction of rows whose whole label vector is predicted exactly
func SubsetAccuracy(truth, pred [][]uint8) float64 {
	exact := 0
	for i := range truth {
		match := true
		for j := range truth[i] {
			if (truth[i][j] != 0) != (pred[i][j] != 0) {
				match = false
				break
			}
		}
		if match {
			exact++
		}
	}
	return ratio(exact, len(truth))
}

// MicroF1 pools counts over all categories before computing F1
func MicroF1(truth, pred [][]uint8) float64 {
	var total Counts
	for j := 0; j < width(truth); j++ {
		c := Confusion(truth, pred, j)
		total.TP += c.TP
		total.FP += c.FP
		total.FN += c.FN
	}
	return total.F1()
}

// MacroF1 averages per-category F1. Categories absent from truth and prediction contribute 0.
func MacroF1(truth, pred [][]uint8) float64 {
	k := width(truth)
	if k == 0 {
		return 0
	}
	var sum float64
	for j := 0; j < k; j++ {
		sum += Confusion(truth, pred, j).F1()
	}
	return sum / float64(k)
}
