package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	pkgch "StockRank/pkg/clickhouse"
	applogger "StockRank/pkg/logger"
)

const barsTable = "bars"

// BarSchema creates the archive table. Re-fetched bars replace older copies on merge.
func BarSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            timeframe   LowCardinality(String),
            symbol      LowCardinality(String),
            ts          DateTime64(3, 'UTC'),
            open        Float64,
            high        Float64,
            low         Float64,
            close       Float64,
            volume      Float64,
            trade_count Float64,
            vwap        Float64,
            inserted_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted_at)
        ORDER BY (timeframe, symbol, ts)`, database, barsTable),
	}
}

// CHBarStore archives bars in ClickHouse and serves them back as a BarSource.
type CHBarStore struct {
	client  *pkgch.Client
	db      *sql.DB
	table   string
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewCHBarStore(ctx context.Context, ch *pkgch.Client, metrics domrepo.Metrics, l *applogger.Logger) (*CHBarStore, error) {
	if err := ch.InitSchema(ctx, BarSchema(ch.Database())); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{
		client:  ch,
		db:      ch.DB(),
		table:   ch.Database() + "." + barsTable,
		metrics: metrics,
		l:       l,
	}, nil
}

func (s *CHBarStore) SaveBars(ctx context.Context, bars []models.Bar, tf domrepo.Timeframe) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bar batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (timeframe, symbol, ts, open, high, low, close, volume, trade_count, vwap)", s.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare bar batch: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, tf.String(), b.Symbol, b.Timestamp.UTC(),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.TradeCount, b.VWAP); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append bar %s: %w", b.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.metrics.RecordError("clickhouse_save")
		return fmt.Errorf("commit bar batch: %w", err)
	}

	s.l.Info("clickhouse archived bars",
		applogger.String("timeframe", tf.String()),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// FetchBars returns archived bars grouped in requested ticker order, time ascending.
func (s *CHBarStore) FetchBars(ctx context.Context, tickers []string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT symbol, ts, open, high, low, close, volume, trade_count, vwap
        FROM %s FINAL
        WHERE timeframe = ? AND has(?, symbol) AND ts >= ? AND ts <= ?
        ORDER BY symbol, ts`, s.table)

	rows, err := s.db.QueryContext(ctx, q, tf.String(), tickers, from.UTC(), to.UTC())
	if err != nil {
		s.metrics.RecordError("clickhouse_fetch")
		s.l.Error("clickhouse fetch_bars query error",
			applogger.String("timeframe", tf.String()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	bySymbol := make(map[string][]models.Bar, len(tickers))
	n := 0
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.TradeCount, &b.VWAP); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	out := orderBySymbols(bySymbol, tickers, n)
	s.metrics.RecordBarsFetched("clickhouse", len(out))
	s.metrics.RecordFetchLatency("clickhouse", time.Since(start).Seconds())
	s.l.Debug("clickhouse fetch_bars ok",
		applogger.String("timeframe", tf.String()),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarStore) Close() error {
	return s.client.Close()
}

func orderBySymbols(bySymbol map[string][]models.Bar, tickers []string, n int) []models.Bar {
	out := make([]models.Bar, 0, n)
	for _, t := range tickers {
		out = append(out, bySymbol[t]...)
	}
	return out
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
