package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear is a dense affine layer y = W x + b. W is stored row-major, Out x In.
type Linear struct {
	In  int       `json:"in"`
	Out int       `json:"out"`
	W   []float64 `json:"w"`
	B   []float64 `json:"b"`
}

func newLinear(in, out int, rng *rand.Rand) Linear {
	l := Linear{In: in, Out: out, W: make([]float64, in*out), B: make([]float64, out)}
	if rng != nil {
		limit := math.Sqrt(6 / float64(in+out))
		for i := range l.W {
			l.W[i] = (rng.Float64()*2 - 1) * limit
		}
	}
	return l
}

func (l *Linear) zeroLike() Linear {
	return newLinear(l.In, l.Out, nil)
}

func (l *Linear) validate(name string) error {
	if l.In < 1 || l.Out < 1 {
		return fmt.Errorf("%s: invalid shape %dx%d", name, l.Out, l.In)
	}
	if len(l.W) != l.In*l.Out || len(l.B) != l.Out {
		return fmt.Errorf("%s: parameter length mismatch for shape %dx%d", name, l.Out, l.In)
	}
	return nil
}

func (l *Linear) weights() *mat.Dense {
	return mat.NewDense(l.Out, l.In, l.W)
}

func (l *Linear) forward(x []float64) []float64 {
	y := make([]float64, l.Out)
	mat.NewVecDense(l.Out, y).MulVec(l.weights(), mat.NewVecDense(l.In, x))
	floats.Add(y, l.B)
	return y
}

// backward accumulates dW and db into g and returns dL/dx.
func (l *Linear) backward(g *Linear, x, dy []float64) []float64 {
	gw := g.weights()
	gw.RankOne(gw, 1, mat.NewVecDense(l.Out, dy), mat.NewVecDense(l.In, x))
	floats.Add(g.B, dy)

	dx := make([]float64, l.In)
	mat.NewVecDense(l.In, dx).MulVec(l.weights().T(), mat.NewVecDense(l.Out, dy))
	return dx
}

func relu(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = x
		}
	}
	return out
}

// reluMask zeroes g wherever the pre-activation was not positive.
func reluMask(g, pre []float64) []float64 {
	out := make([]float64, len(g))
	for i := range g {
		if pre[i] > 0 {
			out[i] = g[i]
		}
	}
	return out
}

// Softmax returns a numerically stable softmax of v.
func Softmax(v []float64) []float64 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	hi := floats.Max(v)
	for i, x := range v {
		out[i] = math.Exp(x - hi)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
