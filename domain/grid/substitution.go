package grid

import (
	"gomediate/domain/core"
	"gomediate/domain/table"
)

// Substitution pairs an indirect-path query grid with the label columns
// it was derived from. Query and Labels are produced by one constructor
// from the same source rows, so their correspondence is structural
// rather than an accident of two grids being built the same way.
type Substitution struct {
	// Query is submitted to the outcome model.
	Query *table.Table
	// Labels are re-attached to the prediction rows afterwards.
	Labels *table.Table
}

// NewSubstitution builds the query grid for an indirect path: column
// takes the predicted estimates verbatim, and every column of the source
// grid becomes a label for the row it produced. Fails with a
// shape-mismatch error when the estimates do not cover the source rows.
func NewSubstitution(source *table.Table, column string, estimates []float64) (*Substitution, error) {
	if len(estimates) != source.NumRows() {
		return nil, core.NewShapeMismatchError("substitution for "+column, source.NumRows(), len(estimates))
	}

	query := table.New()
	if err := query.AddColumn(column, estimates); err != nil {
		return nil, err
	}
	return &Substitution{Query: query, Labels: source.Clone()}, nil
}

// NewCrossedSubstitution crosses the predicted estimates with a discrete
// sweep (one block per sweep value, estimates repeated within each
// block) and replicates the source labels in the same pass. Used when
// the indirect path interacts the predicted mediator with a second,
// quantile-fixed mediator.
func NewCrossedSubstitution(source *table.Table, column string, estimates []float64, with Sweep) (*Substitution, error) {
	if len(estimates) != source.NumRows() {
		return nil, core.NewShapeMismatchError("crossed substitution for "+column, source.NumRows(), len(estimates))
	}

	rows := len(with.Values) * len(estimates)
	queryCol := make([]float64, 0, rows)
	withCol := make([]float64, 0, rows)

	names := source.Names()
	labelCols := make(map[string][]float64, len(names))
	sourceCols := make(map[string][]float64, len(names))
	for _, name := range names {
		col, err := source.Column(name)
		if err != nil {
			return nil, err
		}
		sourceCols[name] = col
		labelCols[name] = make([]float64, 0, rows)
	}

	for _, level := range with.Values {
		for i, est := range estimates {
			queryCol = append(queryCol, est)
			withCol = append(withCol, level)
			for _, name := range names {
				labelCols[name] = append(labelCols[name], sourceCols[name][i])
			}
		}
	}

	query := table.New()
	if err := query.AddColumn(column, queryCol); err != nil {
		return nil, err
	}
	if err := query.AddColumn(with.Name, withCol); err != nil {
		return nil, err
	}

	labels, err := table.FromColumns(names, labelCols)
	if err != nil {
		return nil, err
	}
	return &Substitution{Query: query, Labels: labels}, nil
}

// AttachLabels copies every label column onto a prediction table after
// asserting the row counts agree. Returns a new table; the prediction
// input is left untouched.
func AttachLabels(pred *table.Table, labels *table.Table) (*table.Table, error) {
	if pred.NumRows() != labels.NumRows() {
		return nil, core.NewShapeMismatchError("label attachment", labels.NumRows(), pred.NumRows())
	}

	out := pred.Clone()
	for _, name := range labels.Names() {
		col, err := labels.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.AddColumn(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}
