package pipeline

import "time"

// Model is the selected, fully refit pipeline of a training run
type Model struct {
	*Pipeline

	RunID     string
	CreatedAt time.Time
	Scoring   string
	CVScore   float64
}
