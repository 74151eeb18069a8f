package model

import (
	"fmt"
	"math"
	"math/rand"

	"StockRank/internal/domain/models"

	"gonum.org/v1/gonum/floats"
)

// Params holds every trainable tensor of an AttentionModel.
type Params struct {
	Embed  Linear   `json:"embed"`
	Blocks []Linear `json:"blocks"`
	Output Linear   `json:"output"`
}

// tensors lists parameter slices in a fixed order shared by params, grads and optimizer state.
func (p *Params) tensors() [][]float64 {
	out := [][]float64{p.Embed.W, p.Embed.B}
	for i := range p.Blocks {
		out = append(out, p.Blocks[i].W, p.Blocks[i].B)
	}
	return append(out, p.Output.W, p.Output.B)
}

func (p *Params) zeroLike() *Params {
	z := &Params{Embed: p.Embed.zeroLike(), Output: p.Output.zeroLike(), Blocks: make([]Linear, len(p.Blocks))}
	for i := range p.Blocks {
		z.Blocks[i] = p.Blocks[i].zeroLike()
	}
	return z
}

func (p *Params) reset() {
	for _, t := range p.tensors() {
		for i := range t {
			t[i] = 0
		}
	}
}

// AttentionModel embeds each timestep, pools the sequence with multi-head dot-product
// attention queried by the last timestep, refines the pooled vector with residual
// feed-forward blocks and projects it to one score per ticker.
type AttentionModel struct {
	Dims   models.ModelDimensions
	Params *Params
	Scaler Scaler
}

func validateDims(d models.ModelDimensions) error {
	switch {
	case d.InputSize < 1:
		return fmt.Errorf("input size must be positive, got %d", d.InputSize)
	case d.OutputSize < 1:
		return fmt.Errorf("output size must be positive, got %d", d.OutputSize)
	case d.NumHeads < 1 || d.HiddenDim < 1 || d.HiddenDim%d.NumHeads != 0:
		return fmt.Errorf("hidden dim %d not divisible by %d heads", d.HiddenDim, d.NumHeads)
	case d.NumLayers < 0:
		return fmt.Errorf("num layers must not be negative, got %d", d.NumLayers)
	}
	return nil
}

// NewAttentionModel initializes weights with a seeded Glorot uniform draw.
func NewAttentionModel(dims models.ModelDimensions, seed int64) (*AttentionModel, error) {
	if err := validateDims(dims); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	p := &Params{
		Embed:  newLinear(dims.InputSize, dims.HiddenDim, rng),
		Blocks: make([]Linear, dims.NumLayers),
	}
	for i := range p.Blocks {
		p.Blocks[i] = newLinear(dims.HiddenDim, dims.HiddenDim, rng)
	}
	p.Output = newLinear(dims.HiddenDim, dims.OutputSize, rng)
	return &AttentionModel{Dims: dims, Params: p}, nil
}

func (m *AttentionModel) checkParams() error {
	if m.Params == nil {
		return fmt.Errorf("model has no parameters")
	}
	if err := m.Params.Embed.validate("embed"); err != nil {
		return err
	}
	if m.Params.Embed.In != m.Dims.InputSize || m.Params.Embed.Out != m.Dims.HiddenDim {
		return fmt.Errorf("embed shape %dx%d does not match dimensions", m.Params.Embed.Out, m.Params.Embed.In)
	}
	if len(m.Params.Blocks) != m.Dims.NumLayers {
		return fmt.Errorf("have %d blocks, dimensions say %d", len(m.Params.Blocks), m.Dims.NumLayers)
	}
	for i := range m.Params.Blocks {
		b := &m.Params.Blocks[i]
		if err := b.validate(fmt.Sprintf("block %d", i)); err != nil {
			return err
		}
		if b.In != m.Dims.HiddenDim || b.Out != m.Dims.HiddenDim {
			return fmt.Errorf("block %d shape %dx%d does not match hidden dim %d", i, b.Out, b.In, m.Dims.HiddenDim)
		}
	}
	if err := m.Params.Output.validate("output"); err != nil {
		return err
	}
	if m.Params.Output.In != m.Dims.HiddenDim || m.Params.Output.Out != m.Dims.OutputSize {
		return fmt.Errorf("output shape %dx%d does not match dimensions", m.Params.Output.Out, m.Params.Output.In)
	}
	if n := len(m.Scaler.Mean); n != 0 && (n != m.Dims.InputSize || len(m.Scaler.Std) != n) {
		return fmt.Errorf("scaler width %d does not match input size %d", n, m.Dims.InputSize)
	}
	return nil
}

// trace keeps the intermediate values of one forward pass for backprop.
type trace struct {
	x      [][]float64 // T x input
	pre    [][]float64 // T x hidden, embedding pre-activation
	emb    [][]float64 // T x hidden
	attn   [][]float64 // heads x T
	pooled []float64
	hs     [][]float64 // block inputs, len NumLayers+1; hs[L] feeds the output layer
	us     [][]float64 // block pre-activations
	y      []float64
}

func (m *AttentionModel) headWidth() int { return m.Dims.HiddenDim / m.Dims.NumHeads }

// forward runs one already-scaled window of shape T x InputSize.
func (m *AttentionModel) forward(x [][]float64) *trace {
	T := len(x)
	tr := &trace{x: x, pre: make([][]float64, T), emb: make([][]float64, T)}
	for t, step := range x {
		tr.pre[t] = m.Params.Embed.forward(step)
		tr.emb[t] = relu(tr.pre[t])
	}

	dh := m.headWidth()
	scale := 1 / math.Sqrt(float64(dh))
	q := tr.emb[T-1]
	tr.pooled = make([]float64, m.Dims.HiddenDim)
	tr.attn = make([][]float64, m.Dims.NumHeads)
	for h := 0; h < m.Dims.NumHeads; h++ {
		lo, hi := h*dh, (h+1)*dh
		scores := make([]float64, T)
		for t := range tr.emb {
			scores[t] = floats.Dot(q[lo:hi], tr.emb[t][lo:hi]) * scale
		}
		a := Softmax(scores)
		tr.attn[h] = a
		for t := range tr.emb {
			floats.AddScaled(tr.pooled[lo:hi], a[t], tr.emb[t][lo:hi])
		}
	}

	h := tr.pooled
	tr.hs = append(tr.hs, h)
	for i := range m.Params.Blocks {
		u := m.Params.Blocks[i].forward(h)
		next := relu(u)
		floats.Add(next, h)
		tr.us = append(tr.us, u)
		tr.hs = append(tr.hs, next)
		h = next
	}
	tr.y = m.Params.Output.forward(h)
	return tr
}

// backward accumulates parameter gradients for dL/dy into g.
func (m *AttentionModel) backward(tr *trace, dy []float64, g *Params) {
	L := len(m.Params.Blocks)
	dh := m.Params.Output.backward(&g.Output, tr.hs[L], dy)

	for i := L - 1; i >= 0; i-- {
		du := reluMask(dh, tr.us[i])
		dx := m.Params.Blocks[i].backward(&g.Blocks[i], tr.hs[i], du)
		floats.Add(dh, dx)
	}

	T := len(tr.emb)
	de := make([][]float64, T)
	for t := range de {
		de[t] = make([]float64, m.Dims.HiddenDim)
	}

	width := m.headWidth()
	scale := 1 / math.Sqrt(float64(width))
	q := tr.emb[T-1]
	dq := make([]float64, m.Dims.HiddenDim)
	for h := 0; h < m.Dims.NumHeads; h++ {
		lo, hi := h*width, (h+1)*width
		gh := dh[lo:hi]
		a := tr.attn[h]
		gp := floats.Dot(gh, tr.pooled[lo:hi])
		for t := range tr.emb {
			k := tr.emb[t][lo:hi]
			// value path
			floats.AddScaled(de[t][lo:hi], a[t], gh)
			// score path through the softmax
			ds := a[t] * (floats.Dot(gh, k) - gp) * scale
			floats.AddScaled(de[t][lo:hi], ds, q[lo:hi])
			floats.AddScaled(dq[lo:hi], ds, k)
		}
	}
	floats.Add(de[T-1], dq)

	for t := range tr.x {
		dz := reluMask(de[t], tr.pre[t])
		m.Params.Embed.backward(&g.Embed, tr.x[t], dz)
	}
}
