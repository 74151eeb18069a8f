package processor

import (
	"fmt"
	"time"

	"StockRank/internal/domain/models"
	"StockRank/internal/domain/repository"
	"StockRank/internal/services/features"
	"StockRank/pkg/logger"
)

type TransformerConfig struct {
	WindowSize      int
	PredDays        int
	FallbackHeads   int
	NumLayers       int
	DuplicatePolicy features.DuplicatePolicy
}

// TransformerProcessor builds sliding windows with per-day normalized targets.
type TransformerProcessor struct {
	base
	cfg TransformerConfig
}

func NewTransformerProcessor(cfg TransformerConfig, metrics repository.Metrics, log *logger.Logger) *TransformerProcessor {
	return &TransformerProcessor{base: newBase(cfg.DuplicatePolicy, metrics, log), cfg: cfg}
}

func (p *TransformerProcessor) Name() string { return "transformer" }

func (p *TransformerProcessor) Preprocess(bars []models.Bar, tickers []string) (*models.Dataset, error) {
	vecs, err := p.align(p.Name(), bars, tickers)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	windows, err := features.BuildWindows(vecs, p.cfg.WindowSize, p.cfg.PredDays)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, features.ErrNoSequences
	}

	targets, err := features.ComputeTargets(vecs, windows, len(tickers))
	if err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}

	dims, err := features.FitDimensions(vecs[0].Len(),
		features.WithFallbackHeads(p.cfg.FallbackHeads),
		features.WithNumLayers(p.cfg.NumLayers),
		features.WithOutputSize(len(tickers)),
	)
	if err != nil {
		return nil, fmt.Errorf("dimensions: %w", err)
	}
	windows = features.PadVectors(windows, dims.Padding)

	stamps := make([]time.Time, len(windows))
	for i, w := range windows {
		stamps[i] = vecs[w.Horizon].Timestamp
	}

	p.metrics.RecordWindows(p.Name(), len(windows))
	p.logger.Info("preprocessed transformer dataset",
		logger.Int("vectors", len(vecs)),
		logger.Int("windows", len(windows)),
		logger.Int("input_size", dims.InputSize),
		logger.Int("heads", dims.NumHeads),
		logger.Int("padding", dims.Padding),
	)

	return &models.Dataset{
		Tickers:    append([]string(nil), tickers...),
		Windows:    windows,
		Targets:    targets,
		Timestamps: stamps,
		Dimensions: dims,
	}, nil
}
