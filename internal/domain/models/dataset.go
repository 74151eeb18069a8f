package models

import "time"

// Window is a contiguous run of DayVectors used as one model input.
// Horizon is the index of the DayVector the target is computed from.
type Window struct {
	Start   int
	Horizon int
	Days    []DayVector
}

// ModelDimensions describes the shape a model is built with.
type ModelDimensions struct {
	InputSize  int `json:"input_size"`
	NumHeads   int `json:"num_heads"`
	HiddenDim  int `json:"hidden_dim"`
	Padding    int `json:"padding"`
	NumLayers  int `json:"num_layers"`
	OutputSize int `json:"output_size"`
}

// RawInputSize is the DayVector width before padding.
func (d ModelDimensions) RawInputSize() int { return d.InputSize - d.Padding }

// RegressionSeries holds paired open/high sequences for one ticker and one window length.
type RegressionSeries struct {
	X [][]float64
	Y [][]float64
}

// Dataset is the model-ready output of a processor.
type Dataset struct {
	Tickers    []string
	Windows    []Window
	Targets    [][]float64
	Timestamps []time.Time
	Dimensions ModelDimensions

	// Regression is keyed by ticker, then by window length.
	Regression map[string]map[int]RegressionSeries
}

// Inputs flattens windows into [sample][timestep][feature].
func (d *Dataset) Inputs() [][][]float64 {
	out := make([][][]float64, len(d.Windows))
	for i, w := range d.Windows {
		steps := make([][]float64, len(w.Days))
		for t, day := range w.Days {
			steps[t] = day.Values
		}
		out[i] = steps
	}
	return out
}
