package ports

import (
	"context"

	"gomediate/domain/table"
)

// Term is one design term: a single variable for a main effect, several
// for their product (interaction).
type Term struct {
	Variables []string `json:"variables"`
}

// Main builds a main-effect term.
func Main(variable string) Term {
	return Term{Variables: []string{variable}}
}

// Interaction builds a product term. Fitters expand the participating
// main effects themselves.
func Interaction(variables ...string) Term {
	return Term{Variables: variables}
}

// ModelSpec names a response column and the design terms to regress it
// on. GroupBy optionally names a grouping column whose per-group
// intercept offsets behave as random effects at prediction time.
type ModelSpec struct {
	Response string `json:"response"`
	Terms    []Term `json:"terms"`
	GroupBy  string `json:"group_by,omitempty"`
}

// ModelFitter fits regression models that can then serve as prediction
// capabilities for the assemblers.
type ModelFitter interface {
	Fit(ctx context.Context, data *table.Table, spec ModelSpec) (FittedModel, error)
}
