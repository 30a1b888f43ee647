package regression

import (
	"context"

	"gomediate/domain/table"
	"gomediate/internal"
	"gomediate/ports"
)

// Fitter implements ports.ModelFitter over the in-tree least squares
// backends.
type Fitter struct {
	logger *internal.Logger
}

// NewFitter creates the fitter.
func NewFitter(logger *internal.Logger) *Fitter {
	if logger == nil {
		logger = internal.DefaultLogger.Named("fitter")
	}
	return &Fitter{logger: logger}
}

// Fit dispatches on GroupBy: plain least squares without it, grouped
// intercept offsets with it.
func (f *Fitter) Fit(ctx context.Context, data *table.Table, spec ports.ModelSpec) (ports.FittedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if spec.GroupBy != "" {
		model, err := FitGrouped(data, spec)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("fitted grouped model: response=%s groups=%d", spec.Response, len(model.offsets))
		return model, nil
	}

	model, err := FitLinear(data, spec)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("fitted linear model: response=%s terms=%d", spec.Response, len(model.terms))
	return model, nil
}
