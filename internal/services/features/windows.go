package features

import (
	"fmt"

	"StockRank/internal/domain/models"
)

// BuildWindows slides a window of windowSize vectors over the series.
// Window i covers vectors[i:i+windowSize] and targets vectors[i+windowSize+predDays].
func BuildWindows(vectors []models.DayVector, windowSize, predDays int) ([]models.Window, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if predDays < 0 {
		return nil, fmt.Errorf("pred days must not be negative, got %d", predDays)
	}
	need := windowSize + predDays + 1
	if len(vectors) < need {
		return nil, &InsufficientDataError{Have: len(vectors), Need: need}
	}

	n := len(vectors) - windowSize - predDays
	out := make([]models.Window, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Window{
			Start:   i,
			Horizon: i + windowSize + predDays,
			Days:    vectors[i : i+windowSize],
		})
	}
	return out, nil
}
