package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/internal/repository"
	"StockRank/internal/service/alpaca"
	"StockRank/internal/services/features"
	"StockRank/internal/services/model"
	"StockRank/internal/services/processor"
	"StockRank/pkg/logger"
	"StockRank/pkg/util"
)

// UniverseModelFile is the artifact name used when a model covers several tickers.
const UniverseModelFile = "universe.model.json"

type PipelineConfig struct {
	Tickers         []string
	Timeframe       domrepo.Timeframe
	WindowSize      int
	PredDays        int
	FallbackHeads   int
	NumLayers       int
	DuplicatePolicy features.DuplicatePolicy
	TradableOnly    bool

	ModelDir string
	TopK     int
	Train    model.TrainConfig

	// DumpDir, when set, receives a parquet copy of every fetch.
	DumpDir string
}

// Pipeline runs fetch, preprocess, train and predict for one ticker universe.
type Pipeline struct {
	source  domrepo.BarSource
	broker  domrepo.Broker
	cfg     PipelineConfig
	trainer *model.Trainer
	metrics domrepo.Metrics
	logger  *logger.Logger
}

func NewPipeline(source domrepo.BarSource, broker domrepo.Broker, cfg PipelineConfig, metrics domrepo.Metrics, l *logger.Logger) *Pipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = domrepo.TF1Day
	}
	if cfg.TopK <= 0 {
		cfg.TopK = model.DefaultTopK
	}
	return &Pipeline{
		source:  source,
		broker:  broker,
		cfg:     cfg,
		trainer: model.NewTrainer(cfg.Train, metrics, l),
		metrics: metrics,
		logger:  l,
	}
}

// FetchRequest names a universe and a date range. Empty Tickers means the configured universe.
type FetchRequest struct {
	Tickers []string
	Start   string
	End     string
}

type TrainResult struct {
	Tickers    []string
	Dimensions models.ModelDimensions
	Windows    int
	Losses     []float64
	ModelPath  string
}

type PredictResult struct {
	Tickers     []string
	Predictions []models.Prediction
}

// TickerPrediction is the first model output per window for a single-ticker model.
type TickerPrediction struct {
	Ticker     string
	Timestamps []time.Time
	Values     []float64
}

func (p *Pipeline) Config() PipelineConfig { return p.cfg }

func (p *Pipeline) transformer(windowSize, predDays, numLayers int) processor.Processor {
	return processor.NewTransformerProcessor(processor.TransformerConfig{
		WindowSize:      windowSize,
		PredDays:        predDays,
		FallbackHeads:   p.cfg.FallbackHeads,
		NumLayers:       numLayers,
		DuplicatePolicy: p.cfg.DuplicatePolicy,
	}, p.metrics, p.logger)
}

// Universe normalizes the requested tickers and, when configured, keeps only tradable ones.
func (p *Pipeline) Universe(ctx context.Context, tickers []string) ([]string, error) {
	if len(tickers) == 0 {
		tickers = p.cfg.Tickers
	}
	tickers = util.NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, features.ErrNoTickers
	}
	if !p.cfg.TradableOnly || p.broker == nil {
		return tickers, nil
	}

	assets, err := p.broker.ActiveAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	kept, dropped := alpaca.FilterTradable(tickers, assets)
	for range dropped {
		p.metrics.RecordTickerSkipped("not_tradable")
	}
	if len(dropped) > 0 {
		p.logger.Warn("dropped untradable tickers", logger.Strings("tickers", dropped))
	}
	if len(kept) == 0 {
		return nil, features.ErrNoTickers
	}
	return kept, nil
}

// FetchAndPreprocess widens the dates, fetches bars and hands them to proc.
func (p *Pipeline) FetchAndPreprocess(ctx context.Context, req FetchRequest, proc processor.Processor) (*models.Dataset, error) {
	tickers, err := p.Universe(ctx, req.Tickers)
	if err != nil {
		return nil, err
	}
	return p.preprocess(ctx, tickers, req.Start, req.End, proc)
}

func (p *Pipeline) preprocess(ctx context.Context, tickers []string, start, end string, proc processor.Processor) (*models.Dataset, error) {
	from, to, err := util.ParseRange(start, end)
	if err != nil {
		return nil, err
	}

	bars, err := p.source.FetchBars(ctx, tickers, from, to, p.cfg.Timeframe)
	if err != nil {
		p.metrics.RecordError("fetch")
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", features.ErrEmptyFetch, strings.Join(tickers, ","), util.FormatRange(from, to))
	}
	p.logger.Info("fetched bars",
		logger.Strings("tickers", tickers),
		logger.String("range", util.FormatRange(from, to)),
		logger.Int("bars", len(bars)),
	)

	if p.cfg.DumpDir != "" {
		name := strings.Join(tickers, "_") + "." + util.FormatRange(from, to)
		if path, err := repository.DumpBars(p.cfg.DumpDir, name, bars); err != nil {
			p.logger.Warn("bar dump failed", logger.Error(err))
		} else {
			p.logger.Debug("dumped bars", logger.String("path", path))
		}
	}

	return proc.Preprocess(bars, tickers)
}

// Train fits a fresh attention model and saves it.
// The artifact goes to modelPath, or to the default path for the universe when empty.
func (p *Pipeline) Train(ctx context.Context, req FetchRequest, modelPath string) (*TrainResult, error) {
	ds, err := p.FetchAndPreprocess(ctx, req, p.transformer(p.cfg.WindowSize, p.cfg.PredDays, p.cfg.NumLayers))
	if err != nil {
		return nil, err
	}
	if err := features.VerifyLabels(ds.Targets); err != nil {
		return nil, err
	}

	m, err := model.NewAttentionModel(ds.Dimensions, p.cfg.Train.Seed)
	if err != nil {
		return nil, err
	}
	losses, err := p.trainer.Train(ctx, m, ds.Inputs(), ds.Targets)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	if modelPath == "" {
		modelPath = p.defaultModelPath(ds.Tickers)
	}
	if err := model.SaveArtifact(modelPath, model.NewArtifact(m, ds.Tickers, p.cfg.WindowSize, p.cfg.PredDays)); err != nil {
		return nil, err
	}
	p.logger.Info("model saved",
		logger.String("path", modelPath),
		logger.Int("windows", len(ds.Windows)),
		logger.Float64("final_loss", losses[len(losses)-1]),
	)

	return &TrainResult{
		Tickers:    ds.Tickers,
		Dimensions: ds.Dimensions,
		Windows:    len(ds.Windows),
		Losses:     losses,
		ModelPath:  modelPath,
	}, nil
}

// Predict loads a trained model and scores every window of the requested range.
// The universe is the one stored in the artifact unless the request names the same set.
func (p *Pipeline) Predict(ctx context.Context, req FetchRequest, modelPath string) (*PredictResult, error) {
	if modelPath == "" {
		tickers, err := p.Universe(ctx, req.Tickers)
		if err != nil {
			return nil, err
		}
		modelPath = p.defaultModelPath(tickers)
	}
	art, err := model.LoadArtifact(modelPath)
	if err != nil {
		return nil, err
	}
	m, err := art.Model()
	if err != nil {
		return nil, err
	}
	if len(req.Tickers) > 0 && !sameTickers(util.NormalizeTickers(req.Tickers), util.NormalizeTickers(art.Tickers)) {
		return nil, fmt.Errorf("model %s was trained on %s", modelPath, strings.Join(art.Tickers, ","))
	}

	// The stored universe order is what the model was trained on.
	ds, err := p.preprocess(ctx, art.Tickers, req.Start, req.End,
		p.transformer(art.WindowSize, art.PredDays, art.Dimensions.NumLayers))
	if err != nil {
		return nil, err
	}
	if ds.Dimensions != art.Dimensions {
		return nil, fmt.Errorf("dimension mismatch: data %+v, model %+v", ds.Dimensions, art.Dimensions)
	}

	outputs, err := m.Predict(ds.Inputs())
	if err != nil {
		return nil, err
	}
	preds := make([]models.Prediction, len(outputs))
	for i, out := range outputs {
		top, err := model.TopK(out, art.Tickers, p.cfg.TopK)
		if err != nil {
			return nil, err
		}
		preds[i] = models.Prediction{Timestamp: ds.Timestamps[i], Values: out, Top: top}
	}
	return &PredictResult{Tickers: art.Tickers, Predictions: preds}, nil
}

// PredictSingleTicker runs the ticker's own model over the range.
func (p *Pipeline) PredictSingleTicker(ctx context.Context, ticker, start, end string) (*TickerPrediction, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, features.ErrNoTickers
	}
	res, err := p.Predict(ctx, FetchRequest{Tickers: []string{ticker}, Start: start, End: end}, model.ArtifactPath(p.cfg.ModelDir, ticker))
	if err != nil {
		return nil, err
	}
	out := &TickerPrediction{
		Ticker:     ticker,
		Timestamps: make([]time.Time, len(res.Predictions)),
		Values:     make([]float64, len(res.Predictions)),
	}
	for i, pr := range res.Predictions {
		out.Timestamps[i] = pr.Timestamp
		out.Values[i] = pr.Values[0]
	}
	return out, nil
}

func (p *Pipeline) defaultModelPath(tickers []string) string {
	if len(tickers) == 1 {
		return model.ArtifactPath(p.cfg.ModelDir, tickers[0])
	}
	return filepath.Join(p.cfg.ModelDir, UniverseModelFile)
}

// sameTickers compares two normalized universes as sets.
func sameTickers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, t := range a {
		seen[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := seen[t]; !ok {
			return false
		}
	}
	return true
}

// SkipReason maps a per-ticker failure to the metrics label used for it.
func SkipReason(err error) string {
	var insufficient *features.InsufficientDataError
	var degenerate *features.DegenerateLabelError
	switch {
	case errors.Is(err, features.ErrEmptyFetch):
		return "empty_fetch"
	case errors.As(err, &insufficient), errors.Is(err, features.ErrNoSequences):
		return "insufficient_data"
	case errors.As(err, &degenerate):
		return "degenerate_labels"
	case errors.Is(err, os.ErrNotExist):
		return "missing_model"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "error"
}
