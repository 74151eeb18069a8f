package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/internal/repository"
	"StockRank/internal/service/calendar"
	"StockRank/internal/services/features"
	"StockRank/internal/services/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)

// memSource serves synthetic daily bars for the tickers it knows.
type memSource struct {
	mu    sync.Mutex
	bars  map[string][]models.Bar
	err   map[string]error
	calls int
}

func newMemSource(days int, tickers ...string) *memSource {
	s := &memSource{bars: map[string][]models.Bar{}, err: map[string]error{}}
	for i, t := range tickers {
		for d := 0; d < days; d++ {
			open := 40 + float64(i)*20 + float64(d)
			s.bars[t] = append(s.bars[t], models.Bar{
				Symbol:    t,
				Timestamp: day0.AddDate(0, 0, d),
				Open:      open,
				High:      open * (1 + 0.01*float64(1+(i+d)%3)),
				Low:       open * 0.99,
				Close:     open * 1.004,
				Volume:    1e5 + float64(d),
			})
		}
	}
	return s
}

func (s *memSource) FetchBars(_ context.Context, tickers []string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var out []models.Bar
	for _, t := range tickers {
		if err := s.err[t]; err != nil {
			return nil, err
		}
		for _, b := range s.bars[t] {
			if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

type fakeBroker struct {
	assets []models.Asset
}

func (b *fakeBroker) Account(context.Context) (*models.Account, error) {
	return &models.Account{ID: "acc-1", Status: "ACTIVE", Currency: "USD", Cash: "1000"}, nil
}

func (b *fakeBroker) ActiveAssets(context.Context) ([]models.Asset, error) { return b.assets, nil }

type skipCounter struct {
	domrepo.NopMetrics
	mu      sync.Mutex
	skipped map[string]int
}

func (m *skipCounter) RecordTickerSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipped == nil {
		m.skipped = map[string]int{}
	}
	m.skipped[reason]++
}

type memPublisher struct {
	rows []models.RankingRow
}

func (p *memPublisher) PublishRankings(_ context.Context, rows []models.RankingRow) error {
	p.rows = append(p.rows, rows...)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func testConfig(t *testing.T, tickers ...string) PipelineConfig {
	return PipelineConfig{
		Tickers:       tickers,
		WindowSize:    5,
		PredDays:      1,
		FallbackHeads: 2,
		NumLayers:     1,
		ModelDir:      t.TempDir(),
		Train:         model.TrainConfig{LearningRate: 0.005, BatchSize: 8, Epochs: 3, Seed: 7},
	}
}

const (
	rangeStart = "2024-01-01"
	rangeEnd   = "2024-02-09" // 40 daily bars from day0
)

func TestPipeline_FetchAndPreprocess(t *testing.T) {
	src := newMemSource(40, "AAPL", "MSFT", "NVDA")
	p := NewPipeline(src, nil, testConfig(t, "nvda", "aapl", "msft"), nil, nil)

	ds, err := p.FetchAndPreprocess(context.Background(), FetchRequest{Start: rangeStart, End: rangeEnd}, p.transformer(5, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AAPL", "MSFT"}, ds.Tickers, "configured order is the layout")
	assert.Len(t, ds.Windows, 34)
	// Slot 0 is NVDA's day-0 open, slot 7 AAPL's.
	first := ds.Windows[0].Days[0].Values
	assert.Equal(t, 80.0, first[0])
	assert.Equal(t, 40.0, first[models.FeaturesPerTicker])
	for _, tg := range ds.Targets {
		require.Len(t, tg, 3)
		for _, v := range tg {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestPipeline_EmptyFetch(t *testing.T) {
	src := newMemSource(40, "AAPL")
	p := NewPipeline(src, nil, testConfig(t, "AAPL"), nil, nil)

	_, err := p.FetchAndPreprocess(context.Background(), FetchRequest{Start: "2020-01-01", End: "2020-02-01"}, p.transformer(5, 1, 1))
	assert.ErrorIs(t, err, features.ErrEmptyFetch)
	assert.Equal(t, "empty_fetch", SkipReason(err))

	_, err = p.FetchAndPreprocess(context.Background(), FetchRequest{Start: "2024-02-01", End: "2024-01-01"}, p.transformer(5, 1, 1))
	assert.Error(t, err)
}

func TestPipeline_TradableOnly(t *testing.T) {
	broker := &fakeBroker{assets: []models.Asset{
		{Symbol: "AAPL", Status: "active", Tradable: true},
		{Symbol: "MSFT", Status: "active", Tradable: false},
	}}
	cfg := testConfig(t, "AAPL", "MSFT", "ZZZZ")
	cfg.TradableOnly = true
	m := &skipCounter{}
	p := NewPipeline(newMemSource(1), broker, cfg, m, nil)

	got, err := p.Universe(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, got)
	assert.Equal(t, 2, m.skipped["not_tradable"])

	broker.assets = nil
	_, err = p.Universe(context.Background(), nil)
	assert.ErrorIs(t, err, features.ErrNoTickers)
}

func TestPipeline_TrainThenPredict(t *testing.T) {
	src := newMemSource(40, "AAPL", "MSFT", "NVDA")
	cfg := testConfig(t, "AAPL", "MSFT", "NVDA")
	p := NewPipeline(src, nil, cfg, nil, nil)
	ctx := context.Background()
	req := FetchRequest{Start: rangeStart, End: rangeEnd}

	res, err := p.Train(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ModelDir, UniverseModelFile), res.ModelPath)
	assert.Equal(t, 34, res.Windows)
	assert.Len(t, res.Losses, 3)
	assert.Equal(t, 21, res.Dimensions.NumHeads)
	assert.Equal(t, 21, res.Dimensions.InputSize)

	pred, err := p.Predict(ctx, req, "")
	require.NoError(t, err)
	require.Len(t, pred.Predictions, 34)
	first := pred.Predictions[0]
	assert.Len(t, first.Values, 3)
	assert.Len(t, first.Top, 3)
	assert.Equal(t, day0.AddDate(0, 0, 6), first.Timestamp)

	var sum float64
	for _, s := range first.Top {
		sum += s.Score
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	_, err = p.Predict(ctx, FetchRequest{Tickers: []string{"AAPL"}, Start: rangeStart, End: rangeEnd}, res.ModelPath)
	assert.Error(t, err)
}

func TestPipeline_PredictSingleTicker(t *testing.T) {
	src := newMemSource(40, "AAPL")
	cfg := testConfig(t, "AAPL")
	p := NewPipeline(src, nil, cfg, nil, nil)
	ctx := context.Background()

	res, err := p.Train(ctx, FetchRequest{Tickers: []string{"aapl"}, Start: rangeStart, End: rangeEnd}, "")
	require.NoError(t, err)
	assert.Equal(t, model.ArtifactPath(cfg.ModelDir, "AAPL"), res.ModelPath)

	pred, err := p.PredictSingleTicker(ctx, "aapl", rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", pred.Ticker)
	assert.Len(t, pred.Values, 34)
	assert.Len(t, pred.Timestamps, 34)

	_, err = p.PredictSingleTicker(ctx, "MSFT", rangeStart, rangeEnd)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "missing_model", SkipReason(err))
}

func TestPipeline_TrainRejectsDegenerateLabels(t *testing.T) {
	src := newMemSource(0)
	for d := 0; d < 20; d++ {
		src.bars["FLAT"] = append(src.bars["FLAT"], models.Bar{Symbol: "FLAT", Timestamp: day0.AddDate(0, 0, d), Open: 10, High: 11})
	}
	p := NewPipeline(src, nil, testConfig(t, "FLAT"), nil, nil)

	_, err := p.Train(context.Background(), FetchRequest{Start: rangeStart, End: rangeEnd}, "")
	var degenerate *features.DegenerateLabelError
	assert.True(t, errors.As(err, &degenerate))
	assert.Equal(t, "degenerate_labels", SkipReason(err))
}

func TestRankByDay(t *testing.T) {
	rows := RankByDay([]*TickerPrediction{
		{Ticker: "AAPL", Values: []float64{0.2, 0.9}},
		{Ticker: "MSFT", Values: []float64{0.5, 0.9}},
		{Ticker: "NVDA", Values: []float64{0.2}},
	})
	want := []models.RankingRow{
		{Day: 1, Ticker: "MSFT", PredictedValue: 0.5, Rank: 1},
		{Day: 1, Ticker: "AAPL", PredictedValue: 0.2, Rank: 2},
		{Day: 1, Ticker: "NVDA", PredictedValue: 0.2, Rank: 3},
		{Day: 2, Ticker: "AAPL", PredictedValue: 0.9, Rank: 1},
		{Day: 2, Ticker: "MSFT", PredictedValue: 0.9, Rank: 2},
	}
	assert.Equal(t, want, rows)
}

func TestRanker_TrainEachAndRun(t *testing.T) {
	src := newMemSource(40, "AAPL", "MSFT")
	src.bars["SHORT"] = src.bars["AAPL"][:4]
	cfg := testConfig(t, "AAPL", "MSFT", "SHORT", "GONE")
	m := &skipCounter{}
	p := NewPipeline(src, nil, cfg, m, nil)

	exportDir := t.TempDir()
	pub := &memPublisher{}
	r := NewRanker(p, repository.CSVRankingWriter{}, pub, exportDir, m, nil)
	ctx := context.Background()

	trained, err := r.TrainEach(ctx, nil, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, trained.Success)
	assert.Len(t, trained.Failed, 2)

	res, err := r.Run(ctx, nil, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, res.Report.Success)
	require.Len(t, res.Report.Failed, 2)
	assert.Equal(t, "SHORT", res.Report.Failed[0].Ticker)
	assert.Equal(t, "GONE", res.Report.Failed[1].Ticker)
	assert.Equal(t, "2024-01-01..2024-02-09", res.Report.Failed[0].DateRange)

	require.Len(t, res.Rows, 68)
	assert.Equal(t, 1, res.Rows[0].Day)
	assert.Equal(t, 34, res.Rows[67].Day)
	assert.Equal(t, 1, res.Rows[0].Rank)
	assert.Equal(t, 2, res.Rows[1].Rank)
	assert.Equal(t, res.Rows, pub.rows)

	assert.FileExists(t, res.Path)
	assert.FileExists(t, filepath.Join(exportDir, repository.FailedReportFile))
	assert.FileExists(t, filepath.Join(exportDir, repository.SuccessReportFile))
	assert.Equal(t, 2, m.skipped["missing_model"])
}

func TestRanker_TiesFollowUniverseOrder(t *testing.T) {
	// Identical histories under the same seed give identical models and predictions.
	src := newMemSource(40, "MSFT")
	for _, b := range src.bars["MSFT"] {
		b.Symbol = "AAPL"
		src.bars["AAPL"] = append(src.bars["AAPL"], b)
	}
	p := NewPipeline(src, nil, testConfig(t, "MSFT", "AAPL"), nil, nil)
	r := NewRanker(p, nil, nil, "", nil, nil)
	ctx := context.Background()

	_, err := r.TrainEach(ctx, nil, rangeStart, rangeEnd)
	require.NoError(t, err)

	rows, report, err := r.BatchPredict(ctx, nil, rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "AAPL"}, report.Success)
	require.Len(t, rows, 68)
	for i := 0; i < len(rows); i += 2 {
		require.Equal(t, rows[i].PredictedValue, rows[i+1].PredictedValue)
		assert.Equal(t, "MSFT", rows[i].Ticker)
		assert.Equal(t, "AAPL", rows[i+1].Ticker)
		assert.Equal(t, 1, rows[i].Rank)
		assert.Equal(t, 2, rows[i+1].Rank)
	}
}

func TestRanker_NothingRanked(t *testing.T) {
	p := NewPipeline(newMemSource(40, "AAPL"), nil, testConfig(t, "AAPL"), nil, nil)
	r := NewRanker(p, nil, nil, "", nil, nil)

	_, report, err := r.BatchPredict(context.Background(), nil, rangeStart, rangeEnd)
	assert.ErrorIs(t, err, ErrNothingRanked)
	assert.Len(t, report.Failed, 1)
}

func TestRegression_Run(t *testing.T) {
	src := newMemSource(40, "AAPL", "MSFT")
	p := NewPipeline(src, nil, testConfig(t, "AAPL", "MSFT"), nil, nil)
	uc := NewRegressionUseCase(p, []int{5, 15, 30, 90}, nil, nil)

	fits, report, err := uc.Run(context.Background(), FetchRequest{Start: rangeStart, End: rangeEnd})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, report.Success)
	require.Len(t, fits, 6)
	assert.Equal(t, "AAPL", fits[0].Ticker)
	assert.Equal(t, 5, fits[0].Window)
	assert.Equal(t, 35, fits[0].Samples)
	assert.Len(t, fits[0].Coefficients, 5)
	assert.Len(t, fits[0].Coefficients[0], 5)
	assert.Equal(t, 30, fits[2].Window)
}

func TestRegression_ShortHistoryFails(t *testing.T) {
	src := newMemSource(4, "AAPL")
	p := NewPipeline(src, nil, testConfig(t, "AAPL"), nil, nil)
	uc := NewRegressionUseCase(p, nil, nil, nil)

	_, report, err := uc.Run(context.Background(), FetchRequest{Start: rangeStart, End: rangeEnd})
	assert.ErrorIs(t, err, features.ErrNoSequences)
	assert.Equal(t, "insufficient_data", SkipReason(err))
	assert.Empty(t, report.Success)
}

func TestPortfolio(t *testing.T) {
	p := NewPortfolio(newMemSource(10, "AAPL", "MSFT"), []string{"msft"}, nil)

	added, err := p.Add(" aapl ")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = p.Add("AAPL")
	require.NoError(t, err)
	assert.False(t, added)
	_, err = p.Add("  ")
	assert.Error(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, p.List())
	s, ok := p.Get("msft")
	assert.True(t, ok)
	assert.Equal(t, "MSFT", s)

	_, err = p.Add("ZZZZ")
	require.NoError(t, err)
	all, err := p.FetchAll(context.Background(), "2024-01-01", "2024-01-05", domrepo.TF1Day)
	require.NoError(t, err)
	assert.Len(t, all["AAPL"], 5)
	assert.Empty(t, all["ZZZZ"])

	assert.True(t, p.Remove("aapl"))
	assert.False(t, p.Remove("aapl"))
	assert.Equal(t, []string{"MSFT", "ZZZZ"}, p.List())
}

func TestPortfolio_Concurrent(t *testing.T) {
	p := NewPortfolio(nil, nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = p.Add(string(rune('A' + i%26)))
			_ = p.List()
		}(i)
	}
	wg.Wait()
	assert.Len(t, p.List(), 26)
}

func TestBuildSeries_Segments(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	session := calendar.NewSession("xnys")

	at := func(h, m int) models.Bar {
		return models.Bar{Symbol: "AAPL", Timestamp: time.Date(2024, 3, 5, h, m, 0, 0, ny).UTC(), Close: float64(h)}
	}
	bars := []models.Bar{at(9, 0), at(9, 29), at(9, 30), at(12, 0), at(16, 0), at(16, 1)}

	s := BuildSeries("AAPL", domrepo.TF1Min, bars, session)
	assert.Equal(t, 6, s.Count)
	require.Len(t, s.Segments, 3)
	assert.False(t, s.Segments[0].Trading)
	assert.Len(t, s.Segments[0].Points, 2)
	assert.True(t, s.Segments[1].Trading)
	assert.Len(t, s.Segments[1].Points, 3)
	assert.Equal(t, 16, s.Segments[1].End.Hour())
	assert.False(t, s.Segments[2].Trading)
	assert.Equal(t, session.Location(), s.Segments[0].Start.Location())
}

func TestSeriesUseCase_GetSeries(t *testing.T) {
	uc := NewSeriesUseCase(newMemSource(3, "AAPL"), nil, nil)
	s, err := uc.GetSeries(context.Background(), SeriesParams{Ticker: "aapl", Start: "2024-01-01", End: "2024-01-03", Timeframe: domrepo.TF1Day})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", s.Ticker)
	assert.Equal(t, 3, s.Count)

	_, err = uc.GetSeries(context.Background(), SeriesParams{Ticker: "MSFT", Start: "2024-01-01", End: "2024-01-03"})
	assert.ErrorIs(t, err, features.ErrEmptyFetch)
}

func TestAccountUseCase_Summary(t *testing.T) {
	uc := NewAccountUseCase(&fakeBroker{assets: []models.Asset{
		{Symbol: "AAPL", Status: "active", Tradable: true},
		{Symbol: "OTC", Status: "active"},
	}})
	sum, err := uc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acc-1", sum.Account.ID)
	assert.Equal(t, 2, sum.ActiveAssets)
	assert.Equal(t, 1, sum.Tradable)
}
