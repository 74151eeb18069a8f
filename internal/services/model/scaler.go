package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each feature to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-feature statistics over every timestep of every window.
// Constant features get a unit std so they pass through centered.
func FitScaler(inputs [][][]float64) (Scaler, error) {
	if len(inputs) == 0 || len(inputs[0]) == 0 {
		return Scaler{}, fmt.Errorf("cannot fit scaler on empty input")
	}
	width := len(inputs[0][0])
	cols := make([][]float64, width)
	for _, w := range inputs {
		for _, step := range w {
			if len(step) != width {
				return Scaler{}, fmt.Errorf("feature width %d, expected %d", len(step), width)
			}
			for j, x := range step {
				cols[j] = append(cols[j], x)
			}
		}
	}

	s := Scaler{Mean: make([]float64, width), Std: make([]float64, width)}
	for j, col := range cols {
		mean, std := stat.MeanStdDev(col, nil)
		s.Mean[j] = mean
		s.Std[j] = 1
		if len(col) > 1 && !math.IsNaN(std) && std > 1e-9 {
			s.Std[j] = std
		}
	}
	return s, nil
}

// Transform returns a standardized copy of one window.
func (s Scaler) Transform(window [][]float64) [][]float64 {
	if len(s.Mean) == 0 {
		return window
	}
	out := make([][]float64, len(window))
	for t, step := range window {
		row := make([]float64, len(step))
		for j, x := range step {
			row[j] = (x - s.Mean[j]) / s.Std[j]
		}
		out[t] = row
	}
	return out
}
