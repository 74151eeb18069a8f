package features

import (
	"fmt"

	"StockRank/internal/domain/models"
)

// ComputeTarget returns one high/open ratio per ticker at the horizon,
// min-max normalized across tickers for that day.
// A zero open yields ratio 0. When every ratio is equal the raw ratios are returned.
func ComputeTarget(vectors []models.DayVector, horizon, tickerCount int) ([]float64, error) {
	if horizon < 0 || horizon >= len(vectors) {
		return nil, fmt.Errorf("horizon %d out of range [0,%d)", horizon, len(vectors))
	}
	day := vectors[horizon].Values
	if len(day) < tickerCount*models.FeaturesPerTicker {
		return nil, fmt.Errorf("day vector width %d too small for %d tickers", len(day), tickerCount)
	}

	ratios := make([]float64, tickerCount)
	for j := 0; j < tickerCount; j++ {
		open := day[j*models.FeaturesPerTicker]
		high := day[j*models.FeaturesPerTicker+1]
		if open != 0 {
			ratios[j] = high / open
		}
	}
	return minMax(ratios), nil
}

func minMax(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if hi == lo {
		return v
	}
	out := make([]float64, len(v))
	span := hi - lo
	for i, x := range v {
		out[i] = (x - lo) / span
	}
	return out
}

// ComputeTargets computes the target for every window.
func ComputeTargets(vectors []models.DayVector, windows []models.Window, tickerCount int) ([][]float64, error) {
	out := make([][]float64, len(windows))
	for i, w := range windows {
		t, err := ComputeTarget(vectors, w.Horizon, tickerCount)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// VerifyLabels rejects target sets with at most one distinct value.
func VerifyLabels(targets [][]float64) error {
	seen := make(map[float64]struct{})
	for _, row := range targets {
		for _, v := range row {
			seen[v] = struct{}{}
			if len(seen) > 1 {
				return nil
			}
		}
	}
	return &DegenerateLabelError{Unique: len(seen)}
}
