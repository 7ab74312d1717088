package evaluation

import (
	"fmt"
	"io"
	"strings"

	"disaster-classifier/internal/models"
)

// Score is the quality of one category, or one aggregate row
type Score struct {
	Category  string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Options controls which categories are scored
type Options struct {
	// ExcludeCategory removes one named category from truth, prediction and names alike
	ExcludeCategory string
}

// Report holds per-category scores and the averaged rows
type Report struct {
	Categories []Score
	Micro      Score
	Macro      Score
	Weighted   Score
	Samples    Score
	Excluded   string
}

// Evaluate compares predicted and true label matrices column by column
func Evaluate(truth, pred [][]uint8, space models.LabelSpace, opts Options) (*Report, error) {
	if len(truth) != len(pred) {
		return nil, fmt.Errorf("got %d true rows but %d predicted rows", len(truth), len(pred))
	}
	for i := range truth {
		if len(truth[i]) != space.Len() || len(pred[i]) != space.Len() {
			return nil, fmt.Errorf("row %d: want %d columns, got %d true and %d predicted",
				i, space.Len(), len(truth[i]), len(pred[i]))
		}
	}

	if opts.ExcludeCategory != "" {
		rest, pos, err := space.Without(opts.ExcludeCategory)
		if err != nil {
			return nil, fmt.Errorf("failed to exclude category: %w", err)
		}
		truth = dropColumn(truth, pos)
		pred = dropColumn(pred, pos)
		space = rest
	}

	report := &Report{
		Categories: make([]Score, space.Len()),
		Excluded:   opts.ExcludeCategory,
	}

	var pooled Counts
	var sumP, sumR, sumF, wP, wR, wF float64
	totalSupport := 0
	for j := 0; j < space.Len(); j++ {
		c := Confusion(truth, pred, j)
		s := Score{
			Category:  space.Name(j),
			Precision: c.Precision(),
			Recall:    c.Recall(),
			F1:        c.F1(),
			Support:   c.Support(),
		}
		report.Categories[j] = s

		pooled.TP += c.TP
		pooled.FP += c.FP
		pooled.FN += c.FN
		sumP += s.Precision
		sumR += s.Recall
		sumF += s.F1
		wP += s.Precision * float64(s.Support)
		wR += s.Recall * float64(s.Support)
		wF += s.F1 * float64(s.Support)
		totalSupport += s.Support
	}

	k := float64(space.Len())
	report.Micro = Score{
		Category:  "micro avg",
		Precision: pooled.Precision(),
		Recall:    pooled.Recall(),
		F1:        pooled.F1(),
		Support:   totalSupport,
	}
	report.Macro = Score{
		Category:  "macro avg",
		Precision: sumP / k,
		Recall:    sumR / k,
		F1:        sumF / k,
		Support:   totalSupport,
	}
	report.Weighted = Score{Category: "weighted avg", Support: totalSupport}
	if totalSupport > 0 {
		n := float64(totalSupport)
		report.Weighted.Precision = wP / n
		report.Weighted.Recall = wR / n
		report.Weighted.F1 = wF / n
	}
	report.Samples = samplesAverage(truth, pred)
	report.Samples.Support = totalSupport

	return report, nil
}

// samplesAverage scores each row as a set and averages over rows
func samplesAverage(truth, pred [][]uint8) Score {
	s := Score{Category: "samples avg"}
	if len(truth) == 0 {
		return s
	}

	for i := range truth {
		var both, t, p int
		for j := range truth[i] {
			ti, pi := truth[i][j] != 0, pred[i][j] != 0
			if ti {
				t++
			}
			if pi {
				p++
			}
			if ti && pi {
				both++
			}
		}
		s.Precision += ratio(both, p)
		s.Recall += ratio(both, t)
		s.F1 += ratio(2*both, t+p)
	}

	n := float64(len(truth))
	s.Precision /= n
	s.Recall /= n
	s.F1 /= n
	return s
}

func dropColumn(m [][]uint8, col int) [][]uint8 {
	out := make([][]uint8, len(m))
	for i, row := range m {
		r := make([]uint8, 0, len(row)-1)
		r = append(r, row[:col]...)
		r = append(r, row[col+1:]...)
		out[i] = r
	}
	return out
}

// Scores returns the raw per-category rows
func (r *Report) Scores() []Score {
	out := make([]Score, len(r.Categories))
	copy(out, r.Categories)
	return out
}

// Averages returns the micro, macro, weighted and samples rows
func (r *Report) Averages() []Score {
	return []Score{r.Micro, r.Macro, r.Weighted, r.Samples}
}

// Format writes the report as a fixed-width table
func (r *Report) Format(w io.Writer) error {
	nameWidth := len("weighted avg")
	for _, s := range r.Categories {
		if len(s.Category) > nameWidth {
			nameWidth = len(s.Category)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", nameWidth, "", "precision", "recall", "f1-score", "support")
	for _, s := range r.Categories {
		writeRow(&b, nameWidth, s)
	}
	b.WriteString("\n")
	for _, s := range r.Averages() {
		writeRow(&b, nameWidth, s)
	}
	if r.Excluded != "" {
		fmt.Fprintf(&b, "\nexcluded from scoring: %s\n", r.Excluded)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, nameWidth int, s Score) {
	fmt.Fprintf(b, "%*s  %9.2f %9.2f %9.2f %9d\n", nameWidth, s.Category, s.Precision, s.Recall, s.F1, s.Support)
}

// String returns the formatted report
func (r *Report) String() string {
	var b strings.Builder
	_ = r.Format(&b)
	return b.String()
}
