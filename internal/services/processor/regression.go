package processor

import (
	"fmt"

	"StockRank/internal/domain/models"
	"StockRank/internal/domain/repository"
	"StockRank/internal/services/features"
	"StockRank/pkg/logger"
)

// RegressionProcessor pairs open and high sequences per ticker for several window lengths.
type RegressionProcessor struct {
	base
	windows []int
}

func NewRegressionProcessor(windows []int, policy features.DuplicatePolicy, metrics repository.Metrics, log *logger.Logger) *RegressionProcessor {
	if len(windows) == 0 {
		windows = DefaultRegressionWindows
	}
	return &RegressionProcessor{base: newBase(policy, metrics, log), windows: windows}
}

func (p *RegressionProcessor) Name() string { return "regression" }

func (p *RegressionProcessor) Preprocess(bars []models.Bar, tickers []string) (*models.Dataset, error) {
	vecs, err := p.align(p.Name(), bars, tickers)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	out := make(map[string]map[int]models.RegressionSeries, len(tickers))
	total := 0
	for j, ticker := range tickers {
		opens := column(vecs, j, 0)
		highs := column(vecs, j, 1)

		perWindow := make(map[int]models.RegressionSeries)
		for _, w := range p.windows {
			if w < 1 || len(opens) <= w {
				continue
			}
			n := len(opens) - w
			s := models.RegressionSeries{X: make([][]float64, n), Y: make([][]float64, n)}
			for i := 0; i < n; i++ {
				s.X[i] = opens[i : i+w]
				s.Y[i] = highs[i : i+w]
			}
			perWindow[w] = s
			total += n
		}
		if len(perWindow) > 0 {
			out[ticker] = perWindow
		}
	}
	if total == 0 {
		return nil, features.ErrNoSequences
	}

	p.metrics.RecordWindows(p.Name(), total)
	return &models.Dataset{
		Tickers:    append([]string(nil), tickers...),
		Regression: out,
	}, nil
}

// column extracts feature f of ticker j from every vector.
func column(vecs []models.DayVector, j, f int) []float64 {
	out := make([]float64, len(vecs))
	idx := j*models.FeaturesPerTicker + f
	for i, v := range vecs {
		out[i] = v.Values[idx]
	}
	return out
}
