package processor

import (
	"StockRank/internal/domain/models"
	"StockRank/internal/domain/repository"
	"StockRank/internal/services/features"
	"StockRank/pkg/logger"
)

// Processor turns raw bars for a ticker universe into a model-ready dataset.
type Processor interface {
	Preprocess(bars []models.Bar, tickers []string) (*models.Dataset, error)
	Name() string
}

// DefaultRegressionWindows are the sequence lengths fitted per ticker.
var DefaultRegressionWindows = []int{5, 15, 30, 90}

type base struct {
	aligner *features.Aligner
	metrics repository.Metrics
	logger  *logger.Logger
}

func newBase(policy features.DuplicatePolicy, metrics repository.Metrics, log *logger.Logger) base {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return base{aligner: features.NewAligner(policy), metrics: metrics, logger: log}
}

func (b base) align(kind string, bars []models.Bar, tickers []string) ([]models.DayVector, error) {
	vecs, stats, err := b.aligner.Align(bars, tickers)
	if err != nil {
		return nil, err
	}
	b.metrics.RecordDuplicates(stats.Duplicates)
	b.metrics.RecordWindows(kind+"_vectors", len(vecs))
	if stats.Duplicates > 0 || stats.Missing > 0 {
		b.logger.Debug("aligned bars with gaps",
			logger.String("processor", kind),
			logger.Int("groups", stats.Groups),
			logger.Int("duplicates", stats.Duplicates),
			logger.Int("zero_filled", stats.Missing),
		)
	}
	return vecs, nil
}
