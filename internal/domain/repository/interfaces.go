package repository

import (
	"context"
	"time"

	"StockRank/internal/domain/models"
)

// BarSource returns bars for a set of tickers over [start, end].
type BarSource interface {
	FetchBars(ctx context.Context, tickers []string, start, end time.Time, tf Timeframe) ([]models.Bar, error)
}

// BarStore archives bars and serves them back as a BarSource.
type BarStore interface {
	BarSource
	SaveBars(ctx context.Context, bars []models.Bar, tf Timeframe) error
	Close() error
}

// Broker exposes the account side of the brokerage.
type Broker interface {
	Account(ctx context.Context) (*models.Account, error)
	ActiveAssets(ctx context.Context) ([]models.Asset, error)
}

// RankingPublisher ships ranking rows to downstream consumers.
type RankingPublisher interface {
	PublishRankings(ctx context.Context, rows []models.RankingRow) error
	Close() error
}

// RankingWriter persists a ranking table to a file.
type RankingWriter interface {
	Save(rows []models.RankingRow, path string) error
	Extension() string
}

type Metrics interface {
	RecordBarsFetched(source string, n int)
	RecordFetchLatency(source string, seconds float64)
	RecordTickerSkipped(reason string)
	RecordWindows(kind string, n int)
	RecordDuplicates(n int)
	RecordTrainingLoss(model string, loss float64)
	RecordCacheResult(hit bool)
	RecordError(kind string)
}

// NopMetrics drops every observation.
type NopMetrics struct{}

func (NopMetrics) RecordBarsFetched(string, int) {}
func (NopMetrics) RecordFetchLatency(string, float64) {}
func (NopMetrics) RecordTickerSkipped(string) {}
func (NopMetrics) RecordWindows(string, int) {}
func (NopMetrics) RecordDuplicates(int) {}
func (NopMetrics) RecordTrainingLoss(string, float64) {}
func (NopMetrics) RecordCacheResult(bool) {}
func (NopMetrics) RecordError(string) {}
