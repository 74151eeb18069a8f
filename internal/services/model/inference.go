package model

import (
	"fmt"
	"sort"

	"StockRank/internal/domain/models"
)

// DefaultTopK is the number of tickers reported per window.
const DefaultTopK = 5

func (m *AttentionModel) checkInputs(inputs [][][]float64) error {
	for i, w := range inputs {
		if len(w) == 0 {
			return fmt.Errorf("window %d is empty", i)
		}
		for t, step := range w {
			if len(step) != m.Dims.InputSize {
				return fmt.Errorf("window %d step %d has %d features, model expects %d", i, t, len(step), m.Dims.InputSize)
			}
		}
	}
	return nil
}

// Predict returns the raw model output of every window.
func (m *AttentionModel) Predict(inputs [][][]float64) ([][]float64, error) {
	if err := m.checkParams(); err != nil {
		return nil, err
	}
	if err := m.checkInputs(inputs); err != nil {
		return nil, err
	}
	out := make([][]float64, len(inputs))
	for i, w := range inputs {
		out[i] = m.forward(m.Scaler.Transform(w)).y
	}
	return out, nil
}

// TopK turns one output row into softmax scores and returns the k best tickers.
// Equal scores keep ticker order.
func TopK(output []float64, tickers []string, k int) ([]models.TickerScore, error) {
	if len(output) != len(tickers) {
		return nil, fmt.Errorf("have %d outputs for %d tickers", len(output), len(tickers))
	}
	if k <= 0 {
		k = DefaultTopK
	}
	probs := Softmax(output)
	scores := make([]models.TickerScore, len(tickers))
	for i, t := range tickers {
		scores[i] = models.TickerScore{Ticker: t, Score: probs[i]}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k < len(scores) {
		scores = scores[:k]
	}
	return scores, nil
}
