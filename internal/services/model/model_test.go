package model

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"StockRank/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallDims() models.ModelDimensions {
	return models.ModelDimensions{InputSize: 4, NumHeads: 2, HiddenDim: 6, NumLayers: 2, OutputSize: 3}
}

func randomWindow(rng *rand.Rand, steps, width int) [][]float64 {
	w := make([][]float64, steps)
	for t := range w {
		w[t] = make([]float64, width)
		for j := range w[t] {
			w[t][j] = rng.NormFloat64()
		}
	}
	return w
}

func weightedOutput(m *AttentionModel, x [][]float64, c []float64) float64 {
	y := m.forward(x).y
	var s float64
	for j := range y {
		s += c[j] * y[j]
	}
	return s
}

func TestAttentionModel_GradientCheck(t *testing.T) {
	m, err := NewAttentionModel(smallDims(), 7)
	require.NoError(t, err)
	for i := range m.Params.Blocks {
		for j := range m.Params.Blocks[i].B {
			m.Params.Blocks[i].B[j] = 0.05 * float64(j+1)
		}
	}

	rng := rand.New(rand.NewSource(3))
	x := randomWindow(rng, 5, 4)
	c := []float64{0.7, -1.3, 0.4}

	grads := m.Params.zeroLike()
	m.backward(m.forward(x), c, grads)

	const h = 1e-6
	params := m.Params.tensors()
	analytic := grads.tensors()
	for ti, tensor := range params {
		for j := range tensor {
			orig := tensor[j]
			tensor[j] = orig + h
			up := weightedOutput(m, x, c)
			tensor[j] = orig - h
			down := weightedOutput(m, x, c)
			tensor[j] = orig

			numeric := (up - down) / (2 * h)
			assert.InDelta(t, numeric, analytic[ti][j], 1e-5+1e-4*math.Abs(numeric), "tensor %d index %d", ti, j)
		}
	}
}

func TestNewAttentionModel_RejectsBadDims(t *testing.T) {
	d := smallDims()
	d.HiddenDim = 7
	_, err := NewAttentionModel(d, 1)
	assert.Error(t, err)

	d = smallDims()
	d.OutputSize = 0
	_, err = NewAttentionModel(d, 1)
	assert.Error(t, err)
}

func trainingSet(n int) ([][][]float64, [][]float64) {
	rng := rand.New(rand.NewSource(11))
	inputs := make([][][]float64, n)
	targets := make([][]float64, n)
	for i := range inputs {
		inputs[i] = randomWindow(rng, 3, 4)
		last := inputs[i][2]
		targets[i] = []float64{
			1 / (1 + math.Exp(-last[0])),
			1 / (1 + math.Exp(-last[1]-last[2])),
			0.5,
		}
	}
	return inputs, targets
}

func TestTrainer_LossDecreases(t *testing.T) {
	inputs, targets := trainingSet(48)
	m, err := NewAttentionModel(smallDims(), 5)
	require.NoError(t, err)

	tr := NewTrainer(TrainConfig{LearningRate: 0.01, BatchSize: 8, Epochs: 40, Seed: 1}, nil, nil)
	history, err := tr.Train(context.Background(), m, inputs, targets)
	require.NoError(t, err)
	require.Len(t, history, 40)
	assert.Less(t, history[len(history)-1], history[0])
	assert.Len(t, m.Scaler.Mean, 4)
}

func TestTrainer_Deterministic(t *testing.T) {
	inputs, targets := trainingSet(16)
	run := func() []float64 {
		m, err := NewAttentionModel(smallDims(), 9)
		require.NoError(t, err)
		h, err := NewTrainer(TrainConfig{Epochs: 3, BatchSize: 4, Seed: 2}, nil, nil).Train(context.Background(), m, inputs, targets)
		require.NoError(t, err)
		return h
	}
	assert.Equal(t, run(), run())
}

func TestTrainer_Validation(t *testing.T) {
	m, err := NewAttentionModel(smallDims(), 5)
	require.NoError(t, err)
	tr := NewTrainer(TrainConfig{}, nil, nil)

	_, err = tr.Train(context.Background(), m, nil, nil)
	assert.Error(t, err)

	inputs, targets := trainingSet(4)
	_, err = tr.Train(context.Background(), m, inputs, targets[:3])
	assert.Error(t, err)

	targets[0] = []float64{1}
	_, err = tr.Train(context.Background(), m, inputs, targets)
	assert.Error(t, err)
}

func TestTrainer_Cancelled(t *testing.T) {
	inputs, targets := trainingSet(8)
	m, err := NewAttentionModel(smallDims(), 5)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewTrainer(TrainConfig{Epochs: 5}, nil, nil).Train(ctx, m, inputs, targets)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredict_ShapeChecks(t *testing.T) {
	m, err := NewAttentionModel(smallDims(), 5)
	require.NoError(t, err)

	out, err := m.Predict([][][]float64{randomWindow(rand.New(rand.NewSource(1)), 3, 4)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0], 3)

	_, err = m.Predict([][][]float64{randomWindow(rand.New(rand.NewSource(1)), 3, 5)})
	assert.Error(t, err)
}

func TestTopK(t *testing.T) {
	tickers := []string{"AAPL", "MSFT", "NVDA", "TSLA"}
	top, err := TopK([]float64{1, 3, 3, 0}, tickers, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "MSFT", top[0].Ticker)
	assert.Equal(t, "NVDA", top[1].Ticker)
	assert.InDelta(t, top[0].Score, top[1].Score, 1e-15)

	all, err := TopK([]float64{1, 3, 3, 0}, tickers, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	var sum float64
	for _, s := range all {
		sum += s.Score
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	_, err = TopK([]float64{1}, tickers, 2)
	assert.Error(t, err)
}

func TestSoftmax_Stable(t *testing.T) {
	p := Softmax([]float64{1000, 1000})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, p, 1e-12)
	assert.Nil(t, Softmax(nil))
}

func TestFitScaler(t *testing.T) {
	inputs := [][][]float64{{{1, 5}, {3, 5}}, {{5, 5}}}
	s, err := FitScaler(inputs)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, s.Mean[0], 1e-12)
	assert.InDelta(t, 2.0, s.Std[0], 1e-12)
	assert.Equal(t, 1.0, s.Std[1], "constant feature keeps unit std")

	out := s.Transform(inputs[0])
	assert.InDeltaSlice(t, []float64{-1, 0}, out[0], 1e-12)
	assert.Equal(t, 1.0, inputs[0][0][0], "transform does not mutate input")
}

func TestFitLinear_Exact(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	var x, y [][]float64
	for i := 0; i < 20; i++ {
		r := []float64{rng.Float64() * 10, rng.Float64() * 10, rng.Float64() * 10}
		x = append(x, r)
		y = append(y, []float64{2*r[0] - r[1] + 0.5*r[2] + 3, r[1] + 1})
	}

	fit, err := FitLinear(x, y, nil)
	require.NoError(t, err)
	coef := fit.Coefficients()
	require.Len(t, coef, 2)
	assert.InDeltaSlice(t, []float64{2, -1, 0.5}, coef[0], 1e-8)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, coef[1], 1e-8)
	assert.InDeltaSlice(t, []float64{3, 1}, fit.Intercept, 1e-8)
	assert.Equal(t, 20, fit.Samples)

	pred, err := fit.Predict([]float64{1, 2, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, 3}, pred, 1e-8)

	_, err = fit.Predict([]float64{1})
	assert.Error(t, err)
}

func TestFitLinear_RankDeficient(t *testing.T) {
	var x, y [][]float64
	for i := 0; i < 10; i++ {
		v := float64(i)
		x = append(x, []float64{v, v})
		y = append(y, []float64{2*v + 1})
	}

	fit, err := FitLinear(x, y, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, fit.Coefficients()[0], 1e-8)

	pred, err := fit.Predict([]float64{4, 4})
	require.NoError(t, err)
	assert.InDelta(t, 9.0, pred[0], 1e-8)
}

func TestFitLinear_ConstantInputs(t *testing.T) {
	fit, err := FitLinear([][]float64{{1}, {1}, {1}}, [][]float64{{2}, {4}, {6}}, nil)
	require.NoError(t, err)
	pred, err := fit.Predict([]float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, pred[0], 1e-12)

	_, err = FitLinear(nil, nil, nil)
	assert.Error(t, err)
}

func TestArtifact_RoundTrip(t *testing.T) {
	inputs, targets := trainingSet(8)
	m, err := NewAttentionModel(smallDims(), 5)
	require.NoError(t, err)
	_, err = NewTrainer(TrainConfig{Epochs: 2}, nil, nil).Train(context.Background(), m, inputs, targets)
	require.NoError(t, err)

	path := ArtifactPath(filepath.Join(t.TempDir(), "models"), "aapl")
	assert.Equal(t, "AAPL.model.json", filepath.Base(path))

	require.NoError(t, SaveArtifact(path, NewArtifact(m, []string{"AAPL", "MSFT", "NVDA"}, 3, 1)))
	// overwrite in place
	require.NoError(t, SaveArtifact(path, NewArtifact(m, []string{"AAPL", "MSFT", "NVDA"}, 3, 1)))

	art, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, 3, art.WindowSize)
	assert.Equal(t, 1, art.PredDays)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, art.Tickers)

	loaded, err := art.Model()
	require.NoError(t, err)

	want, err := m.Predict(inputs[:2])
	require.NoError(t, err)
	got, err := loaded.Predict(inputs[:2])
	require.NoError(t, err)
	for i := range want {
		assert.InDeltaSlice(t, want[i], got[i], 1e-12)
	}
}

func TestArtifact_DimensionMismatch(t *testing.T) {
	m, err := NewAttentionModel(smallDims(), 5)
	require.NoError(t, err)
	art := NewArtifact(m, nil, 3, 1)
	art.Dimensions.NumLayers = 3
	_, err = art.Model()
	assert.Error(t, err)

	art = NewArtifact(m, nil, 3, 1)
	art.Version = 99
	_, err = art.Model()
	assert.Error(t, err)

	_, err = LoadArtifact(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
