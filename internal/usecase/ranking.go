package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/internal/repository"
	"StockRank/pkg/logger"
	"StockRank/pkg/util"
)

var (
	ErrNothingRanked = errors.New("no ticker produced predictions")
	ErrNothingFitted = errors.New("no ticker produced a fit")
)

// Ranker runs single-ticker models over a universe and ranks their outputs per day.
type Ranker struct {
	pipeline  *Pipeline
	writer    domrepo.RankingWriter
	publisher domrepo.RankingPublisher
	exportDir string
	metrics   domrepo.Metrics
	logger    *logger.Logger
}

// NewRanker wires the optional sinks. A nil writer or an empty exportDir disables file
// output, and a nil publisher disables publication.
func NewRanker(p *Pipeline, writer domrepo.RankingWriter, publisher domrepo.RankingPublisher, exportDir string, metrics domrepo.Metrics, l *logger.Logger) *Ranker {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Ranker{pipeline: p, writer: writer, publisher: publisher, exportDir: exportDir, metrics: metrics, logger: l}
}

type RankResult struct {
	Rows   []models.RankingRow
	Report models.RunReport
	Path   string
}

// TrainEach trains one single-ticker model per ticker, skipping failures.
func (r *Ranker) TrainEach(ctx context.Context, tickers []string, start, end string) (models.RunReport, error) {
	var report models.RunReport
	universe, err := r.pipeline.Universe(ctx, tickers)
	if err != nil {
		return report, err
	}
	dateRange := r.dateRange(start, end)
	for _, t := range universe {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := r.pipeline.Train(ctx, FetchRequest{Tickers: []string{t}, Start: start, End: end}, "")
		if err != nil {
			r.fail(&report, t, dateRange, err)
			continue
		}
		r.logger.Info("ticker model trained", logger.String("ticker", t), logger.String("path", res.ModelPath))
		report.Success = append(report.Success, t)
	}
	if len(report.Success) == 0 {
		return report, ErrNothingRanked
	}
	return report, nil
}

// BatchPredict predicts every ticker with its own model and ranks the results by day.
// Failing tickers are logged, counted and reported, then skipped.
func (r *Ranker) BatchPredict(ctx context.Context, tickers []string, start, end string) ([]models.RankingRow, models.RunReport, error) {
	var report models.RunReport
	universe, err := r.pipeline.Universe(ctx, tickers)
	if err != nil {
		return nil, report, err
	}
	dateRange := r.dateRange(start, end)

	preds := make([]*TickerPrediction, 0, len(universe))
	for _, t := range universe {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		pred, err := r.pipeline.PredictSingleTicker(ctx, t, start, end)
		if err != nil {
			r.fail(&report, t, dateRange, err)
			continue
		}
		preds = append(preds, pred)
		report.Success = append(report.Success, t)
	}
	if len(preds) == 0 {
		return nil, report, ErrNothingRanked
	}
	return RankByDay(preds), report, nil
}

// Run ranks the universe, then writes and publishes the table when sinks are configured.
func (r *Ranker) Run(ctx context.Context, tickers []string, start, end string) (*RankResult, error) {
	rows, report, err := r.BatchPredict(ctx, tickers, start, end)
	res := &RankResult{Rows: rows, Report: report}

	if r.writer != nil && r.exportDir != "" {
		if rerr := repository.WriteRunReport(r.exportDir, report); rerr != nil {
			r.logger.Warn("run report not written", logger.Error(rerr))
		}
	}
	if err != nil {
		return res, err
	}

	if r.writer != nil && r.exportDir != "" {
		res.Path = filepath.Join(r.exportDir, fmt.Sprintf("ranking_%s_%s.%s", start, end, r.writer.Extension()))
		if err := r.writer.Save(rows, res.Path); err != nil {
			return res, fmt.Errorf("save ranking: %w", err)
		}
		r.logger.Info("ranking saved", logger.String("path", res.Path), logger.Int("rows", len(rows)))
	}
	if r.publisher != nil {
		if err := r.publisher.PublishRankings(ctx, rows); err != nil {
			r.metrics.RecordError("publish")
			return res, fmt.Errorf("publish ranking: %w", err)
		}
	}
	return res, nil
}

// RankByDay ranks tickers per day, highest value first. Days are numbered from 1.
// Equal values keep the order the predictions were given in.
func RankByDay(preds []*TickerPrediction) []models.RankingRow {
	days := 0
	for _, p := range preds {
		if len(p.Values) > days {
			days = len(p.Values)
		}
	}

	rows := make([]models.RankingRow, 0, days*len(preds))
	for d := 0; d < days; d++ {
		day := make([]models.RankingRow, 0, len(preds))
		for _, p := range preds {
			if d < len(p.Values) {
				day = append(day, models.RankingRow{Day: d + 1, Ticker: p.Ticker, PredictedValue: p.Values[d]})
			}
		}
		sort.SliceStable(day, func(i, j int) bool { return day[i].PredictedValue > day[j].PredictedValue })
		for i := range day {
			day[i].Rank = i + 1
		}
		rows = append(rows, day...)
	}
	return rows
}

func (r *Ranker) dateRange(start, end string) string {
	if from, to, err := util.ParseRange(start, end); err == nil {
		return util.FormatRange(from, to)
	}
	return start + ".." + end
}

func (r *Ranker) fail(report *models.RunReport, ticker, dateRange string, err error) {
	r.metrics.RecordTickerSkipped(SkipReason(err))
	r.logger.Warn("skipping ticker", logger.String("ticker", ticker), logger.Error(err))
	report.Failed = append(report.Failed, models.FailedTicker{Ticker: ticker, DateRange: dateRange, Reason: err.Error()})
}
