package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StockRank/internal/domain/models"
)

// ArtifactVersion is bumped whenever the serialized layout changes.
const ArtifactVersion = 1

// Artifact is the on-disk form of a trained AttentionModel.
type Artifact struct {
	Version    int                    `json:"version"`
	Dimensions models.ModelDimensions `json:"dimensions"`
	Scaler     Scaler                 `json:"scaler"`
	Tickers    []string               `json:"tickers"`
	WindowSize int                    `json:"window_size"`
	PredDays   int                    `json:"pred_days"`
	Params     *Params                `json:"params"`
}

// ArtifactPath is where a model trained for a single ticker lives.
func ArtifactPath(dir, ticker string) string {
	return filepath.Join(dir, strings.ToUpper(ticker)+".model.json")
}

// NewArtifact packages a trained model with the context it was trained in.
func NewArtifact(m *AttentionModel, tickers []string, windowSize, predDays int) *Artifact {
	return &Artifact{
		Version:    ArtifactVersion,
		Dimensions: m.Dims,
		Scaler:     m.Scaler,
		Tickers:    append([]string(nil), tickers...),
		WindowSize: windowSize,
		PredDays:   predDays,
		Params:     m.Params,
	}
}

// Model rebuilds the AttentionModel and checks it against the recorded dimensions.
func (a *Artifact) Model() (*AttentionModel, error) {
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if err := validateDims(a.Dimensions); err != nil {
		return nil, err
	}
	m := &AttentionModel{Dims: a.Dimensions, Params: a.Params, Scaler: a.Scaler}
	if err := m.checkParams(); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	return m, nil
}

// SaveArtifact writes the artifact atomically, replacing any previous file.
func SaveArtifact(path string, a *Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(a); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var a Artifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return &a, nil
}
