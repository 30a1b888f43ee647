package ports

import (
	"context"

	"gomediate/domain/table"
)

// PredictOptions controls one prediction call. Both toggles are passed
// through to the backend untouched.
type PredictOptions struct {
	// ConfidenceIntervals requests conf.low/conf.high computation. When
	// false the bound columns are still present, filled with NaN.
	ConfidenceIntervals bool `json:"confidence_intervals"`
	// ConfidenceLevel in (0,1), e.g. 0.95.
	ConfidenceLevel float64 `json:"confidence_level"`
	// IgnoreRandomEffects requests population-level predictions from
	// backends carrying group terms; pure fixed-effect backends ignore it.
	IgnoreRandomEffects bool `json:"ignore_random_effects"`
}

// FittedModel is the opaque handle to a previously fit regression
// model. Assemblers never introspect it; any backend able to evaluate a
// covariate grid can stand behind it.
//
// Predict returns a table with columns estimate, conf.low and conf.high
// plus one column per grid variable, one row per grid row, in grid row
// order. Covariates the model knows but the grid omits are held at the
// backend's reference level. The grid is read-only for the backend.
type FittedModel interface {
	Predict(ctx context.Context, grid *table.Table, opts PredictOptions) (*table.Table, error)
}
