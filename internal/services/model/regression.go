package model

import (
	"fmt"

	"StockRank/pkg/logger"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// rcond is the relative singular-value cutoff used to pick the solve rank.
const rcond = 1e-12

// LinearRegression is multi-output ordinary least squares with an intercept.
// Coef is Outputs x Inputs.
type LinearRegression struct {
	Coef      *mat.Dense
	Intercept []float64
	Samples   int
}

// FitLinear solves min ||Y - X B - 1 c|| by centering and a thin SVD. Rank-deficient
// systems get the minimum-norm solution and a warning.
func FitLinear(x, y [][]float64, log *logger.Logger) (*LinearRegression, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("need matching non-empty samples, have %d inputs and %d targets", len(x), len(y))
	}
	if log == nil {
		log = logger.Nop()
	}
	in, out := len(x[0]), len(y[0])
	if in == 0 || out == 0 {
		return nil, fmt.Errorf("empty feature rows")
	}

	X := mat.NewDense(n, in, nil)
	Y := mat.NewDense(n, out, nil)
	for i := 0; i < n; i++ {
		if len(x[i]) != in || len(y[i]) != out {
			return nil, fmt.Errorf("sample %d has ragged width", i)
		}
		X.SetRow(i, x[i])
		Y.SetRow(i, y[i])
	}

	xMean := columnMeans(X)
	yMean := columnMeans(Y)
	center(X, xMean)
	center(Y, yMean)

	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization failed")
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		// Constant inputs: the best fit is the target mean.
		return &LinearRegression{Coef: mat.NewDense(out, in, nil), Intercept: yMean, Samples: n}, nil
	}
	if rank < in {
		log.Warn("least squares system is rank deficient",
			logger.Int("rank", rank),
			logger.Int("columns", in),
			logger.Float64("condition", svd.Cond()),
		)
	}

	var beta mat.Dense // in x out
	svd.SolveTo(&beta, Y, rank)

	coef := mat.DenseCopyOf(beta.T())
	intercept := make([]float64, out)
	for j := 0; j < out; j++ {
		intercept[j] = yMean[j] - mat.Dot(coef.RowView(j), mat.NewVecDense(in, xMean))
	}
	return &LinearRegression{Coef: coef, Intercept: intercept, Samples: n}, nil
}

// Predict evaluates the fitted model on one input row.
func (r *LinearRegression) Predict(x []float64) ([]float64, error) {
	out, in := r.Coef.Dims()
	if len(x) != in {
		return nil, fmt.Errorf("input width %d, model expects %d", len(x), in)
	}
	y := make([]float64, out)
	mat.NewVecDense(out, y).MulVec(r.Coef, mat.NewVecDense(in, x))
	for j := range y {
		y[j] += r.Intercept[j]
	}
	return y, nil
}

// Coefficients returns Coef as nested rows, one per output.
func (r *LinearRegression) Coefficients() [][]float64 {
	out, _ := r.Coef.Dims()
	rows := make([][]float64, out)
	for j := range rows {
		rows[j] = mat.Row(nil, j, r.Coef)
	}
	return rows
}

func columnMeans(m *mat.Dense) []float64 {
	_, c := m.Dims()
	means := make([]float64, c)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, m), nil)
	}
	return means
}

func center(m *mat.Dense, means []float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)-means[j])
		}
	}
}
