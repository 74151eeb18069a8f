package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"StockRank/internal/usecase"
	"StockRank/pkg/config"
	xhttp "StockRank/pkg/http"
	applogger "StockRank/pkg/logger"
)

const (
	ModeTrain   = "train"
	ModePredict = "predict"
	ModeRegress = "regress"
	ModeRank    = "rank"
	ModeServe   = "serve"
	ModeAccount = "account"
)

var ErrUnknownMode = errors.New("unknown mode")

// RunOptions selects what a single invocation does.
type RunOptions struct {
	Mode   string
	Ticker string
	Start  string
	End    string
	// All trains one model per ticker of the universe instead of one universe model.
	All bool
}

// App encapsulates the application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	pipeline   *usecase.Pipeline
	ranker     *usecase.Ranker
	regression *usecase.RegressionUseCase
	account    *usecase.AccountUseCase
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. account may be nil when no broker is configured.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	ranker *usecase.Ranker,
	regression *usecase.RegressionUseCase,
	account *usecase.AccountUseCase,
	httpServer *xhttp.Server,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		logger:     l,
		pipeline:   pipeline,
		ranker:     ranker,
		regression: regression,
		account:    account,
		httpServer: httpServer,
	}
}

func (a *App) Logger() *applogger.Logger { return a.logger }

// Run executes one mode. Serve blocks until SIGINT or SIGTERM; the others return when done.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if opts.Start == "" {
		opts.Start = a.cfg.Pipeline.StartDate
	}
	if opts.End == "" {
		opts.End = a.cfg.Pipeline.EndDate
	}
	a.logger.Info("run",
		applogger.String("mode", opts.Mode),
		applogger.String("start", opts.Start),
		applogger.String("end", opts.End),
	)

	switch strings.ToLower(opts.Mode) {
	case ModeTrain:
		return a.Train(ctx, opts)
	case ModePredict:
		return a.Predict(ctx, opts)
	case ModeRegress:
		return a.Regress(ctx, opts)
	case ModeRank:
		return a.Rank(ctx, opts)
	case ModeServe:
		return a.Serve(ctx)
	case ModeAccount:
		return a.Account(ctx)
	}
	return fmt.Errorf("%w %q", ErrUnknownMode, opts.Mode)
}

func tickers(opts RunOptions) []string {
	if opts.Ticker == "" {
		return nil
	}
	return strings.Split(opts.Ticker, ",")
}

// Train fits the universe model, one model per ticker with opts.All, or a single ticker's model.
func (a *App) Train(ctx context.Context, opts RunOptions) error {
	if opts.All {
		report, err := a.ranker.TrainEach(ctx, tickers(opts), opts.Start, opts.End)
		if err != nil {
			return err
		}
		a.logger.Info("training finished",
			applogger.Int("trained", len(report.Success)),
			applogger.Int("failed", len(report.Failed)),
		)
		return nil
	}

	res, err := a.pipeline.Train(ctx, usecase.FetchRequest{Tickers: tickers(opts), Start: opts.Start, End: opts.End}, "")
	if err != nil {
		return err
	}
	a.logger.Info("training finished",
		applogger.Strings("tickers", res.Tickers),
		applogger.Int("windows", res.Windows),
		applogger.Int("input_size", res.Dimensions.InputSize),
		applogger.Int("heads", res.Dimensions.NumHeads),
		applogger.String("model", res.ModelPath),
	)
	return nil
}

// Predict logs the per-window outputs. A single ticker uses its own model.
func (a *App) Predict(ctx context.Context, opts RunOptions) error {
	ts := tickers(opts)
	if len(ts) == 1 {
		res, err := a.pipeline.PredictSingleTicker(ctx, ts[0], opts.Start, opts.End)
		if err != nil {
			return err
		}
		for i, v := range res.Values {
			a.logger.Info("prediction",
				applogger.String("ticker", res.Ticker),
				applogger.Time("timestamp", res.Timestamps[i]),
				applogger.Float64("value", v),
			)
		}
		return nil
	}

	res, err := a.pipeline.Predict(ctx, usecase.FetchRequest{Tickers: ts, Start: opts.Start, End: opts.End}, "")
	if err != nil {
		return err
	}
	for _, p := range res.Predictions {
		a.logger.Info("prediction",
			applogger.Time("timestamp", p.Timestamp),
			applogger.Any("top", p.Top),
		)
	}
	return nil
}

func (a *App) Regress(ctx context.Context, opts RunOptions) error {
	fits, report, err := a.regression.Run(ctx, usecase.FetchRequest{Tickers: tickers(opts), Start: opts.Start, End: opts.End})
	if err != nil {
		return err
	}
	for _, f := range fits {
		a.logger.Info("regression fit",
			applogger.String("ticker", f.Ticker),
			applogger.Int("window", f.Window),
			applogger.Int("samples", f.Samples),
			applogger.Any("intercept", f.Intercept),
		)
	}
	a.logger.Info("regression finished",
		applogger.Int("fits", len(fits)),
		applogger.Int("failed", len(report.Failed)),
	)
	return nil
}

// Rank runs every single-ticker model over the range and writes the ranking table.
func (a *App) Rank(ctx context.Context, opts RunOptions) error {
	res, err := a.ranker.Run(ctx, tickers(opts), opts.Start, opts.End)
	if err != nil {
		return err
	}
	a.logger.Info("ranking finished",
		applogger.Int("rows", len(res.Rows)),
		applogger.Int("ranked", len(res.Report.Success)),
		applogger.Int("failed", len(res.Report.Failed)),
		applogger.String("path", res.Path),
	)
	return nil
}

func (a *App) Account(ctx context.Context) error {
	if a.account == nil {
		return fmt.Errorf("account: alpaca credentials are not configured")
	}
	s, err := a.account.Summary(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("account",
		applogger.String("status", s.Account.Status),
		applogger.String("currency", s.Account.Currency),
		applogger.String("cash", s.Account.Cash),
		applogger.String("buying_power", s.Account.BuyingPower),
		applogger.Int("active_assets", s.ActiveAssets),
		applogger.Int("tradable", s.Tradable),
	)
	return nil
}

// Serve starts the dashboard API and blocks until interrupted or ctx ends.
func (a *App) Serve(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	a.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
