// Package regression provides gonum-backed linear models that implement
// the prediction capability consumed by the assemblers: ordinary least
// squares with analytic confidence intervals, plus a grouped-intercept
// variant whose group offsets behave as random effects at prediction
// time.
package regression

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"gomediate/domain/core"
	"gomediate/domain/table"
	"gomediate/ports"
)

// LinearModel is an ordinary least squares fit. Covariates absent from
// a prediction grid are held at their training mean (the model's
// reference level).
type LinearModel struct {
	response  string
	terms     []ports.Term
	variables []string
	coef      *mat.VecDense
	covBeta   *mat.Dense
	sigma2    float64
	dof       float64
	refs      map[string]float64
}

// FitLinear estimates the model by solving the normal equations. The
// coefficient covariance kept for interval prediction is s^2 (X'X)^-1.
func FitLinear(data *table.Table, spec ports.ModelSpec) (*LinearModel, error) {
	if data == nil || data.NumRows() == 0 {
		return nil, core.ErrEmptyData
	}
	y, err := data.Column(spec.Response)
	if err != nil {
		return nil, err
	}

	terms := expandTerms(spec.Terms)
	if len(terms) == 0 {
		return nil, core.NewConfigError("terms", "must not be empty")
	}
	variables := termVariables(terms)

	columns := make(map[string][]float64, len(variables))
	refs := make(map[string]float64, len(variables))
	for _, v := range variables {
		col, err := data.Column(v)
		if err != nil {
			return nil, err
		}
		columns[v] = col
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, err
		}
		refs[v] = mean
	}

	n := data.NumRows()
	p := len(terms) + 1
	if n <= p {
		return nil, fmt.Errorf("underdetermined design: %d observations for %d coefficients", n, p)
	}

	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j, term := range terms {
			x.Set(i, j+1, termProduct(term, columns, i))
		}
	}
	yVec := mat.NewVecDense(n, y)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("singular design matrix for %s: %w", spec.Response, err)
	}

	xty := mat.NewVecDense(p, nil)
	xty.MulVec(x.T(), yVec)
	coef := mat.NewVecDense(p, nil)
	coef.MulVec(&xtxInv, xty)

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(x, coef)
	rss := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
	}
	dof := float64(n - p)
	sigma2 := rss / dof

	var covBeta mat.Dense
	covBeta.Scale(sigma2, &xtxInv)

	return &LinearModel{
		response:  spec.Response,
		terms:     terms,
		variables: variables,
		coef:      coef,
		covBeta:   &covBeta,
		sigma2:    sigma2,
		dof:       dof,
		refs:      refs,
	}, nil
}

// Predict evaluates the fit over a covariate grid. Interval bounds use
// the t distribution on the residual degrees of freedom; with intervals
// off they are NaN. Grid columns the model does not know are echoed into
// the result untouched.
func (m *LinearModel) Predict(ctx context.Context, grid *table.Table, opts ports.PredictOptions) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if grid == nil || grid.NumCols() == 0 {
		return nil, core.ErrEmptyData
	}

	rows := grid.NumRows()
	gridCols := make(map[string][]float64, grid.NumCols())
	for _, name := range grid.Names() {
		col, err := grid.Column(name)
		if err != nil {
			return nil, err
		}
		gridCols[name] = col
	}

	quantile := 0.0
	if opts.ConfidenceIntervals {
		level := opts.ConfidenceLevel
		if level <= 0 || level >= 1 {
			level = 0.95
		}
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: m.dof}
		quantile = tDist.Quantile(1 - (1-level)/2)
	}

	p := m.coef.Len()
	est := make([]float64, rows)
	low := make([]float64, rows)
	high := make([]float64, rows)
	design := make([]float64, p)
	for i := 0; i < rows; i++ {
		design[0] = 1
		for j, term := range m.terms {
			design[j+1] = m.termValue(term, gridCols, i)
		}
		xVec := mat.NewVecDense(p, design)
		est[i] = mat.Dot(xVec, m.coef)

		if opts.ConfidenceIntervals {
			var scaled mat.VecDense
			scaled.MulVec(m.covBeta, xVec)
			se := math.Sqrt(mat.Dot(xVec, &scaled))
			low[i] = est[i] - quantile*se
			high[i] = est[i] + quantile*se
		} else {
			low[i] = math.NaN()
			high[i] = math.NaN()
		}
	}

	out := table.New()
	if err := out.AddColumn(table.ColEstimate, est); err != nil {
		return nil, err
	}
	if err := out.AddColumn(table.ColConfLow, low); err != nil {
		return nil, err
	}
	if err := out.AddColumn(table.ColConfHigh, high); err != nil {
		return nil, err
	}
	for _, name := range grid.Names() {
		if err := out.AddColumn(name, gridCols[name]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Coefficients returns the fitted coefficients keyed by term
// ("(intercept)", variable names, "a:b" for interactions).
func (m *LinearModel) Coefficients() map[string]float64 {
	out := make(map[string]float64, m.coef.Len())
	out["(intercept)"] = m.coef.AtVec(0)
	for j, term := range m.terms {
		out[termKey(term)] = m.coef.AtVec(j + 1)
	}
	return out
}

// Response returns the modeled column name.
func (m *LinearModel) Response() string { return m.response }

// termValue computes one design entry, falling back to the training
// mean for covariates the grid omits.
func (m *LinearModel) termValue(term ports.Term, gridCols map[string][]float64, row int) float64 {
	v := 1.0
	for _, name := range term.Variables {
		if col, ok := gridCols[name]; ok {
			v *= col[row]
			continue
		}
		v *= m.refs[name]
	}
	return v
}

// termProduct computes one design entry from training columns.
func termProduct(term ports.Term, columns map[string][]float64, row int) float64 {
	v := 1.0
	for _, name := range term.Variables {
		v *= columns[name][row]
	}
	return v
}

// expandTerms returns main effects for every participating variable in
// first-appearance order, then the product terms themselves.
func expandTerms(terms []ports.Term) []ports.Term {
	var out []ports.Term
	seen := make(map[string]bool)
	add := func(t ports.Term) {
		key := termKey(t)
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	for _, t := range terms {
		for _, v := range t.Variables {
			add(ports.Main(v))
		}
	}
	for _, t := range terms {
		if len(t.Variables) > 1 {
			add(t)
		}
	}
	return out
}

// termVariables returns the distinct variables in appearance order.
func termVariables(terms []ports.Term) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range terms {
		for _, v := range t.Variables {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func termKey(t ports.Term) string {
	return strings.Join(t.Variables, ":")
}
