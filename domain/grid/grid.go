// Package grid builds the covariate grids submitted to prediction
// capabilities: even sweeps over observed ranges, observed quantile
// levels, and Cartesian products with a fixed block ordering.
package grid

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"

	"gomediate/domain/core"
	"gomediate/domain/table"
)

// Span returns the observed minimum and maximum of a column.
func Span(values []float64) (min, max float64, err error) {
	if len(values) == 0 {
		return 0, 0, core.ErrEmptyData
	}
	min, err = stats.Min(values)
	if err != nil {
		return 0, 0, err
	}
	max, err = stats.Max(values)
	if err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

// Sequence returns n evenly spaced points from min to max. The first
// point is exactly min and the last exactly max; no step accumulation.
// n must be at least 2 (enforced by config validation upstream).
func Sequence(min, max float64, n int) []float64 {
	return floats.Span(make([]float64, n), min, max)
}

// Quantiles maps fraction levels in (0,1] to observed quantile values.
// Levels are evaluated in caller order, unsorted and undeduplicated.
func Quantiles(values []float64, levels []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, core.ErrEmptyData
	}
	out := make([]float64, len(levels))
	for i, level := range levels {
		q, err := stats.Percentile(values, level*100)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// Sweep is a named sequence of covariate values.
type Sweep struct {
	Name   string
	Values []float64
}

// NewSweep pairs a variable name with the values to predict at.
func NewSweep(name string, values []float64) Sweep {
	return Sweep{Name: name, Values: values}
}

// Single builds a one-column grid from a sweep.
func Single(s Sweep) *table.Table {
	t := table.New()
	// fresh table, unique name: cannot fail
	_ = t.AddColumn(s.Name, s.Values)
	return t
}

// Cross builds the Cartesian product of two sweeps. Ordering is fixed:
// one block per outer value, the full inner sweep repeated within each
// block. Downstream label re-attachment depends on this ordering.
func Cross(outer, inner Sweep) (*table.Table, error) {
	n := len(outer.Values) * len(inner.Values)
	outerCol := make([]float64, 0, n)
	innerCol := make([]float64, 0, n)
	for _, ov := range outer.Values {
		for _, iv := range inner.Values {
			outerCol = append(outerCol, ov)
			innerCol = append(innerCol, iv)
		}
	}

	t := table.New()
	if err := t.AddColumn(outer.Name, outerCol); err != nil {
		return nil, err
	}
	if err := t.AddColumn(inner.Name, innerCol); err != nil {
		return nil, err
	}
	return t, nil
}
