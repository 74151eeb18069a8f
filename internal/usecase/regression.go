package usecase

import (
	"context"
	"fmt"
	"sort"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/internal/services/model"
	"StockRank/internal/services/processor"
	"StockRank/pkg/logger"
	"StockRank/pkg/util"
)

// RegressionUseCase fits open->high linear regressions per ticker and window length.
type RegressionUseCase struct {
	pipeline *Pipeline
	windows  []int
	metrics  domrepo.Metrics
	logger   *logger.Logger
}

func NewRegressionUseCase(p *Pipeline, windows []int, metrics domrepo.Metrics, l *logger.Logger) *RegressionUseCase {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &RegressionUseCase{pipeline: p, windows: windows, metrics: metrics, logger: l}
}

// Run fetches the universe once and fits every (ticker, window) pair.
// A ticker with no usable window is reported as failed; the rest still fit.
func (uc *RegressionUseCase) Run(ctx context.Context, req FetchRequest) ([]models.RegressionFit, models.RunReport, error) {
	var report models.RunReport
	proc := processor.NewRegressionProcessor(uc.windows, uc.pipeline.cfg.DuplicatePolicy, uc.metrics, uc.logger)
	ds, err := uc.pipeline.FetchAndPreprocess(ctx, req, proc)
	if err != nil {
		return nil, report, err
	}
	dateRange := req.Start + ".." + req.End
	if from, to, err := util.ParseRange(req.Start, req.End); err == nil {
		dateRange = util.FormatRange(from, to)
	}

	var fits []models.RegressionFit
	for _, ticker := range ds.Tickers {
		series := ds.Regression[ticker]
		if len(series) == 0 {
			uc.fail(&report, ticker, dateRange, "insufficient_data", "no window has enough trading days")
			continue
		}

		windows := make([]int, 0, len(series))
		for w := range series {
			windows = append(windows, w)
		}
		sort.Ints(windows)

		fitted := 0
		for _, w := range windows {
			s := series[w]
			lr, err := model.FitLinear(s.X, s.Y, uc.logger.With(logger.String("ticker", ticker), logger.Int("window", w)))
			if err != nil {
				uc.logger.Warn("regression fit failed",
					logger.String("ticker", ticker),
					logger.Int("window", w),
					logger.Error(err),
				)
				continue
			}
			fits = append(fits, models.RegressionFit{
				Ticker:       ticker,
				Window:       w,
				Samples:      lr.Samples,
				Coefficients: lr.Coefficients(),
				Intercept:    lr.Intercept,
			})
			fitted++
		}
		if fitted == 0 {
			uc.fail(&report, ticker, dateRange, "error", "every window failed to fit")
			continue
		}
		report.Success = append(report.Success, ticker)
	}

	uc.logger.Info("regression run finished",
		logger.Int("fits", len(fits)),
		logger.Int("succeeded", len(report.Success)),
		logger.Int("failed", len(report.Failed)),
	)
	if len(fits) == 0 {
		return nil, report, fmt.Errorf("regression: %w", ErrNothingFitted)
	}
	return fits, report, nil
}

func (uc *RegressionUseCase) fail(report *models.RunReport, ticker, dateRange, reason, msg string) {
	uc.metrics.RecordTickerSkipped(reason)
	uc.logger.Warn("skipping ticker", logger.String("ticker", ticker), logger.String("reason", msg))
	report.Failed = append(report.Failed, models.FailedTicker{Ticker: ticker, DateRange: dateRange, Reason: msg})
}
