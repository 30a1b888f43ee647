package regression

import (
	"context"
	"fmt"
	"math"

	"gomediate/domain/core"
	"gomediate/domain/table"
	"gomediate/ports"
)

// GroupedModel layers per-group intercept offsets over a linear fit.
// The offsets play the role of random intercepts: prediction adds the
// offset of the grid's group value unless IgnoreRandomEffects asks for
// the population level. Offset uncertainty is not propagated into the
// interval bounds.
type GroupedModel struct {
	base    *LinearModel
	group   string
	offsets map[float64]float64
}

// FitGrouped fits the fixed-effect terms and then estimates one
// intercept offset per distinct value of the grouping column as the
// mean residual within that group.
func FitGrouped(data *table.Table, spec ports.ModelSpec) (*GroupedModel, error) {
	if spec.GroupBy == "" {
		return nil, core.NewConfigError("group_by", "must name a column")
	}
	groups, err := data.Column(spec.GroupBy)
	if err != nil {
		return nil, err
	}

	fixed := spec
	fixed.GroupBy = ""
	base, err := FitLinear(data, fixed)
	if err != nil {
		return nil, err
	}

	// population-level predictions over the training rows
	preds, err := base.Predict(context.Background(), trainingGrid(data, base.variables), ports.PredictOptions{})
	if err != nil {
		return nil, fmt.Errorf("grouped fit residual pass: %w", err)
	}
	fittedCol, err := preds.Column(table.ColEstimate)
	if err != nil {
		return nil, err
	}
	response, err := data.Column(spec.Response)
	if err != nil {
		return nil, err
	}

	sums := make(map[float64]float64)
	counts := make(map[float64]float64)
	for i := range response {
		sums[groups[i]] += response[i] - fittedCol[i]
		counts[groups[i]]++
	}
	offsets := make(map[float64]float64, len(sums))
	for g, sum := range sums {
		offsets[g] = sum / counts[g]
	}

	return &GroupedModel{base: base, group: spec.GroupBy, offsets: offsets}, nil
}

// Predict evaluates the base fit and shifts each row by its group
// offset when the grid carries the grouping column and random effects
// are not ignored. Unknown group values predict at the population level.
func (m *GroupedModel) Predict(ctx context.Context, grid *table.Table, opts ports.PredictOptions) (*table.Table, error) {
	pred, err := m.base.Predict(ctx, grid, opts)
	if err != nil {
		return nil, err
	}
	if opts.IgnoreRandomEffects || !grid.HasColumn(m.group) {
		return pred, nil
	}

	groups, err := grid.Column(m.group)
	if err != nil {
		return nil, err
	}
	shifted := table.New()
	for _, name := range pred.Names() {
		col, err := pred.Column(name)
		if err != nil {
			return nil, err
		}
		if name == table.ColEstimate || name == table.ColConfLow || name == table.ColConfHigh {
			out := make([]float64, len(col))
			for i := range col {
				offset := m.offsets[groups[i]]
				if math.IsNaN(col[i]) {
					out[i] = col[i]
					continue
				}
				out[i] = col[i] + offset
			}
			col = out
		}
		if err := shifted.AddColumn(name, col); err != nil {
			return nil, err
		}
	}
	return shifted, nil
}

// Offsets exposes the estimated per-group intercept offsets.
func (m *GroupedModel) Offsets() map[float64]float64 {
	out := make(map[float64]float64, len(m.offsets))
	for g, v := range m.offsets {
		out[g] = v
	}
	return out
}

// trainingGrid projects the training covariate columns into a grid.
func trainingGrid(data *table.Table, variables []string) *table.Table {
	out := table.New()
	for _, v := range variables {
		col, err := data.Column(v)
		if err != nil {
			continue
		}
		_ = out.AddColumn(v, col)
	}
	return out
}
