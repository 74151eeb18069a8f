package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"StockRank/internal/domain/repository"
	"StockRank/pkg/logger"
)

type TrainConfig struct {
	LearningRate float64
	BatchSize    int
	Epochs       int
	Seed         int64
}

// DefaultTrainConfig mirrors the reference training setup.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{LearningRate: 0.001, BatchSize: 32, Epochs: 50, Seed: 42}
}

func (c TrainConfig) withDefaults() TrainConfig {
	d := DefaultTrainConfig()
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	return c
}

// adam is the Adam optimizer over a fixed list of tensors.
type adam struct {
	lr, beta1, beta2, eps float64
	step                  int
	m, v                  [][]float64
}

func newAdam(lr float64, tensors [][]float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	for _, t := range tensors {
		a.m = append(a.m, make([]float64, len(t)))
		a.v = append(a.v, make([]float64, len(t)))
	}
	return a
}

func (a *adam) update(params, grads [][]float64) {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, p := range params {
		g, m, v := grads[i], a.m[i], a.v[i]
		for j := range p {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]
			p[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.eps)
		}
	}
}

type Trainer struct {
	cfg     TrainConfig
	metrics repository.Metrics
	logger  *logger.Logger
}

func NewTrainer(cfg TrainConfig, metrics repository.Metrics, log *logger.Logger) *Trainer {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Trainer{cfg: cfg.withDefaults(), metrics: metrics, logger: log}
}

// Train fits the scaler on inputs, then minimizes MSE with mini-batch Adam.
// It returns the mean loss of every epoch.
func (tr *Trainer) Train(ctx context.Context, m *AttentionModel, inputs [][][]float64, targets [][]float64) ([]float64, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no training samples")
	}
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("have %d inputs and %d targets", len(inputs), len(targets))
	}
	if err := m.checkParams(); err != nil {
		return nil, err
	}
	if err := m.checkInputs(inputs); err != nil {
		return nil, err
	}
	for i, t := range targets {
		if len(t) != m.Dims.OutputSize {
			return nil, fmt.Errorf("target %d width %d, expected %d", i, len(t), m.Dims.OutputSize)
		}
	}

	scaler, err := FitScaler(inputs)
	if err != nil {
		return nil, err
	}
	m.Scaler = scaler
	scaled := make([][][]float64, len(inputs))
	for i, w := range inputs {
		scaled[i] = scaler.Transform(w)
	}

	rng := rand.New(rand.NewSource(tr.cfg.Seed))
	grads := m.Params.zeroLike()
	params := m.Params.tensors()
	gradTensors := grads.tensors()
	opt := newAdam(tr.cfg.LearningRate, params)
	outputs := float64(m.Dims.OutputSize)

	history := make([]float64, 0, tr.cfg.Epochs)
	order := make([]int, len(scaled))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= tr.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return history, err
		}
		began := time.Now()
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		for start := 0; start < len(order); start += tr.cfg.BatchSize {
			end := start + tr.cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]
			norm := 2 / (float64(len(batch)) * outputs)

			grads.reset()
			for _, idx := range batch {
				trc := m.forward(scaled[idx])
				dy := make([]float64, len(trc.y))
				for j, y := range trc.y {
					diff := y - targets[idx][j]
					total += diff * diff
					dy[j] = diff * norm
				}
				m.backward(trc, dy, grads)
			}
			opt.update(params, gradTensors)
		}

		loss := total / (float64(len(order)) * outputs)
		history = append(history, loss)
		tr.metrics.RecordTrainingLoss("attention", loss)
		tr.logger.Info("epoch finished",
			logger.Int("epoch", epoch),
			logger.Int("epochs", tr.cfg.Epochs),
			logger.Float64("loss", loss),
			logger.Duration("took_ms", time.Since(began)),
		)
	}
	return history, nil
}
