package metrics

import (
	"StockRank/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsFetched    *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	tickersSkipped *prometheus.CounterVec
	windows        *prometheus.GaugeVec
	duplicates     prometheus.Counter
	trainingLoss   *prometheus.GaugeVec
	cacheResults   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
}

var _ repository.Metrics = (*Recorder)(nil)

// New registers the collectors on reg. A nil reg means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		barsFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockrank_bars_fetched_total",
				Help: "Bars returned by a bar source",
			},
			[]string{"source"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockrank_fetch_duration_seconds",
				Help:    "Duration of bar fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		tickersSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockrank_tickers_skipped_total",
				Help: "Tickers skipped by batch runs",
			},
			[]string{"reason"},
		),
		windows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockrank_windows",
				Help: "Vectors or windows produced by the last preprocessing run",
			},
			[]string{"kind"},
		),
		duplicates: f.NewCounter(
			prometheus.CounterOpts{
				Name: "stockrank_duplicate_bars_total",
				Help: "Bars replaced because a ticker had two rows at one timestamp",
			},
		),
		trainingLoss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockrank_training_loss",
				Help: "Mean loss of the latest training epoch",
			},
			[]string{"model"},
		),
		cacheResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockrank_bar_cache_requests_total",
				Help: "Bar cache lookups by result",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockrank_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordBarsFetched(source string, n int) {
	r.barsFetched.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) RecordFetchLatency(source string, seconds float64) {
	r.fetchLatency.WithLabelValues(source).Observe(seconds)
}

func (r *Recorder) RecordTickerSkipped(reason string) {
	r.tickersSkipped.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordWindows(kind string, n int) {
	r.windows.WithLabelValues(kind).Set(float64(n))
}

func (r *Recorder) RecordDuplicates(n int) {
	if n > 0 {
		r.duplicates.Add(float64(n))
	}
}

func (r *Recorder) RecordTrainingLoss(model string, loss float64) {
	r.trainingLoss.WithLabelValues(model).Set(loss)
}

func (r *Recorder) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheResults.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
