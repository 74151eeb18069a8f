package features

import (
	"fmt"

	"StockRank/internal/domain/models"
)

const (
	maxHeads         = 64
	defaultFallback  = 1
	defaultNumLayers = 4
)

type dimensionConfig struct {
	fallbackHeads int
	numLayers     int
	outputSize    int
}

// DimensionOption configures FitDimensions.
type DimensionOption func(*dimensionConfig)

// WithFallbackHeads sets the head count used when no divisor in [2,64] divides the input.
// The default of 1 never pads; larger values pad the input up to a multiple.
func WithFallbackHeads(n int) DimensionOption {
	return func(c *dimensionConfig) {
		if n > 0 {
			c.fallbackHeads = n
		}
	}
}

// WithNumLayers sets the layer count recorded in the dimensions.
func WithNumLayers(n int) DimensionOption {
	return func(c *dimensionConfig) {
		if n > 0 {
			c.numLayers = n
		}
	}
}

// WithOutputSize sets the model output width (one per ticker).
func WithOutputSize(n int) DimensionOption {
	return func(c *dimensionConfig) {
		if n > 0 {
			c.outputSize = n
		}
	}
}

// BestHeadCount returns the largest d in [2,64] dividing inputSize, or 0 when there is none.
func BestHeadCount(inputSize int) int {
	for d := maxHeads; d >= 2; d-- {
		if inputSize%d == 0 {
			return d
		}
	}
	return 0
}

// FitDimensions picks a head count and hidden width for a DayVector width.
// Heads always divide the padded input, so they also divide hidden = 2 * padded input.
func FitDimensions(inputSize int, opts ...DimensionOption) (models.ModelDimensions, error) {
	if inputSize < 1 {
		return models.ModelDimensions{}, fmt.Errorf("input size must be positive, got %d", inputSize)
	}
	cfg := dimensionConfig{fallbackHeads: defaultFallback, numLayers: defaultNumLayers, outputSize: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	heads := BestHeadCount(inputSize)
	if heads == 0 {
		heads = cfg.fallbackHeads
	}

	padding := 0
	if r := inputSize % heads; r != 0 {
		padding = heads - r
	}
	padded := inputSize + padding

	dims := models.ModelDimensions{
		InputSize:  padded,
		NumHeads:   heads,
		HiddenDim:  padded * 2,
		Padding:    padding,
		NumLayers:  cfg.numLayers,
		OutputSize: cfg.outputSize,
	}
	if dims.HiddenDim%dims.NumHeads != 0 {
		return models.ModelDimensions{}, fmt.Errorf("hidden dim %d not divisible by %d heads", dims.HiddenDim, dims.NumHeads)
	}
	return dims, nil
}

// PadVectors appends padding zeros to every day of every window.
// Windows share day vectors, so each distinct day is padded once.
func PadVectors(windows []models.Window, padding int) []models.Window {
	if padding <= 0 {
		return windows
	}
	padded := make(map[int][]float64)
	out := make([]models.Window, len(windows))
	for i, w := range windows {
		days := make([]models.DayVector, len(w.Days))
		for t, d := range w.Days {
			idx := w.Start + t
			vals, ok := padded[idx]
			if !ok {
				vals = make([]float64, len(d.Values)+padding)
				copy(vals, d.Values)
				padded[idx] = vals
			}
			days[t] = models.DayVector{Timestamp: d.Timestamp, Values: vals}
		}
		out[i] = models.Window{Start: w.Start, Horizon: w.Horizon, Days: days}
	}
	return out
}
