package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/pkg/cache"
	applogger "StockRank/pkg/logger"
)

// CachedBarSource serves repeated identical fetches from a cache.
type CachedBarSource struct {
	next    domrepo.BarSource
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewCachedBarSource(next domrepo.BarSource, c cache.Service, ttl time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *CachedBarSource {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedBarSource{next: next, cache: c, ttl: ttl, metrics: metrics, l: l}
}

// BarCacheKey identifies one fetch by timeframe, range and ticker list.
func BarCacheKey(tickers []string, from, to time.Time, tf domrepo.Timeframe) string {
	return cache.GenerateKeyWithParams("bars", tf.String(),
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
		cache.HashKey(strings.Join(tickers, ",")))
}

func (s *CachedBarSource) FetchBars(ctx context.Context, tickers []string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	key := BarCacheKey(tickers, from, to, tf)

	var bars []models.Bar
	err := s.cache.Get(ctx, key, &bars)
	if err == nil {
		s.metrics.RecordCacheResult(true)
		return bars, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("bar cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	s.metrics.RecordCacheResult(false)

	bars, err = s.next.FetchBars(ctx, tickers, from, to, tf)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 {
		if err := s.cache.Set(ctx, key, bars, s.ttl); err != nil {
			s.l.Warn("bar cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return bars, nil
}

// ArchivingBarSource copies every successful fetch into a BarStore.
// Archive failures are logged and never fail the fetch.
type ArchivingBarSource struct {
	next  domrepo.BarSource
	store domrepo.BarStore
	l     *applogger.Logger
}

func NewArchivingBarSource(next domrepo.BarSource, store domrepo.BarStore, l *applogger.Logger) *ArchivingBarSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &ArchivingBarSource{next: next, store: store, l: l}
}

func (s *ArchivingBarSource) FetchBars(ctx context.Context, tickers []string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	bars, err := s.next.FetchBars(ctx, tickers, from, to, tf)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveBars(ctx, bars, tf); err != nil {
		s.l.Warn("bar archive failed", applogger.Int("rows", len(bars)), applogger.Error(err))
	}
	return bars, nil
}
