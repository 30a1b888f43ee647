package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gomediate/domain/core"
	"gomediate/domain/grid"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	"gomediate/internal"
	apperrors "gomediate/internal/errors"
	"gomediate/ports"
)

// EffectsService runs the three prediction-grid assemblers. It is
// stateless; every call is independent and side-effect-free given the
// same model handles and dataset.
type EffectsService struct {
	logger *internal.Logger
}

// NewEffectsService creates the assembler service.
func NewEffectsService(logger *internal.Logger) *EffectsService {
	if logger == nil {
		logger = internal.DefaultLogger.Named("effects")
	}
	return &EffectsService{logger: logger}
}

// SimpleEffectsRequest carries the inputs of the simple assembler:
// exposure -> mediator -> outcome with one model per path.
type SimpleEffectsRequest struct {
	Data          *table.Table
	MediatorModel ports.FittedModel
	OutcomeModel  ports.FittedModel
	Exposure      string
	Mediator      string
	Config        mediation.Config
}

// ExposureInteractionRequest crosses a discrete exposure-1 level set
// with a continuous exposure-2 sweep.
type ExposureInteractionRequest struct {
	Data          *table.Table
	MediatorModel ports.FittedModel
	OutcomeModel  ports.FittedModel
	Exposure1     string
	Exposure2     string
	Mediator      string
	Config        mediation.Config
}

// MediatorInteractionRequest traces one exposure through two mediators,
// the second fixed at observed quantiles.
type MediatorInteractionRequest struct {
	Data           *table.Table
	Mediator1Model ports.FittedModel
	Mediator2Model ports.FittedModel
	OutcomeModel   ports.FittedModel
	Exposure       string
	Mediator1      string
	Mediator2      string
	Config         mediation.Config
}

// AssembleSimple produces the four tables of the simple assembler. The
// indirect path queries the outcome model at the mediator values
// predicted over the exposure sweep and re-attaches the sweep as labels.
func (s *EffectsService) AssembleSimple(ctx context.Context, req SimpleEffectsRequest) (*mediation.SimpleEffects, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if req.MediatorModel == nil || req.OutcomeModel == nil {
		return nil, core.NewConfigError("models", "must not be nil")
	}
	if err := distinctNames(req.Exposure, req.Mediator); err != nil {
		return nil, err
	}

	exposure, err := observedColumn(req.Data, req.Exposure)
	if err != nil {
		return nil, err
	}
	mediator, err := observedColumn(req.Data, req.Mediator)
	if err != nil {
		return nil, err
	}

	exposureGrid, err := sweepGrid(req.Exposure, exposure, req.Config.Points)
	if err != nil {
		return nil, err
	}
	mediatorGrid, err := sweepGrid(req.Mediator, mediator, req.Config.Points)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("simple assembly: %s -> %s, %d points", req.Exposure, req.Mediator, req.Config.Points)

	opts := predictOptions(req.Config)
	direct, err := s.predictAll(ctx, opts, []predictionCall{
		{mediation.TableMediatorByExposure, req.MediatorModel, exposureGrid},
		{mediation.TableOutcomeByExposure, req.OutcomeModel, exposureGrid},
		{mediation.TableOutcomeByMediator, req.OutcomeModel, mediatorGrid},
	})
	if err != nil {
		return nil, err
	}

	estimates, err := direct[0].Column(table.ColEstimate)
	if err != nil {
		return nil, err
	}
	sub, err := grid.NewSubstitution(exposureGrid, req.Mediator, estimates)
	if err != nil {
		return nil, err
	}
	indirect, err := s.predictIndirect(ctx, req.OutcomeModel, sub, mediation.TableOutcomeByPredictedMediator, opts)
	if err != nil {
		return nil, err
	}

	return &mediation.SimpleEffects{
		MediatorByExposure:         direct[0],
		OutcomeByExposure:          direct[1],
		OutcomeByMediator:          direct[2],
		OutcomeByPredictedMediator: indirect,
	}, nil
}

// AssembleExposureInteraction produces the four tables of the
// interacting-exposures assembler over the exposure-1 x exposure-2
// product grid. Both exposure columns come back as labels on the
// indirect table.
func (s *EffectsService) AssembleExposureInteraction(ctx context.Context, req ExposureInteractionRequest) (*mediation.ExposureInteractionEffects, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if req.MediatorModel == nil || req.OutcomeModel == nil {
		return nil, core.NewConfigError("models", "must not be nil")
	}
	if err := distinctNames(req.Exposure1, req.Exposure2, req.Mediator); err != nil {
		return nil, err
	}

	// exposure 1 values come from the config, but the column must exist
	if _, err := observedColumn(req.Data, req.Exposure1); err != nil {
		return nil, err
	}
	exposure2, err := observedColumn(req.Data, req.Exposure2)
	if err != nil {
		return nil, err
	}
	mediator, err := observedColumn(req.Data, req.Mediator)
	if err != nil {
		return nil, err
	}

	e2Min, e2Max, err := grid.Span(exposure2)
	if err != nil {
		return nil, err
	}
	productGrid, err := grid.Cross(
		grid.NewSweep(req.Exposure1, req.Config.Exposure1Levels),
		grid.NewSweep(req.Exposure2, grid.Sequence(e2Min, e2Max, req.Config.Points)),
	)
	if err != nil {
		return nil, err
	}
	mediatorGrid, err := sweepGrid(req.Mediator, mediator, req.Config.Points)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("exposure-interaction assembly: %s x %s -> %s, %d rows",
		req.Exposure1, req.Exposure2, req.Mediator, productGrid.NumRows())

	opts := predictOptions(req.Config)
	direct, err := s.predictAll(ctx, opts, []predictionCall{
		{mediation.TableMediatorByExposures, req.MediatorModel, productGrid},
		{mediation.TableOutcomeByExposures, req.OutcomeModel, productGrid},
		{mediation.TableOutcomeByMediator, req.OutcomeModel, mediatorGrid},
	})
	if err != nil {
		return nil, err
	}

	estimates, err := direct[0].Column(table.ColEstimate)
	if err != nil {
		return nil, err
	}
	sub, err := grid.NewSubstitution(productGrid, req.Mediator, estimates)
	if err != nil {
		return nil, err
	}
	indirect, err := s.predictIndirect(ctx, req.OutcomeModel, sub, mediation.TableOutcomeByPredictedMediator, opts)
	if err != nil {
		return nil, err
	}

	return &mediation.ExposureInteractionEffects{
		MediatorByExposures:        direct[0],
		OutcomeByExposures:         direct[1],
		OutcomeByMediator:          direct[2],
		OutcomeByPredictedMediator: indirect,
	}, nil
}

// AssembleMediatorInteraction produces the five tables of the
// interacting-mediators assembler. Mediator 2 is fixed at observed
// quantiles; product rows come in one block per quantile with the
// continuous sweep repeated inside, and the indirect table replicates
// the exposure labels per block the same way.
func (s *EffectsService) AssembleMediatorInteraction(ctx context.Context, req MediatorInteractionRequest) (*mediation.MediatorInteractionEffects, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if req.Mediator1Model == nil || req.Mediator2Model == nil || req.OutcomeModel == nil {
		return nil, core.NewConfigError("models", "must not be nil")
	}
	if err := distinctNames(req.Exposure, req.Mediator1, req.Mediator2); err != nil {
		return nil, err
	}

	exposure, err := observedColumn(req.Data, req.Exposure)
	if err != nil {
		return nil, err
	}
	mediator1, err := observedColumn(req.Data, req.Mediator1)
	if err != nil {
		return nil, err
	}
	mediator2, err := observedColumn(req.Data, req.Mediator2)
	if err != nil {
		return nil, err
	}

	exposureGrid, err := sweepGrid(req.Exposure, exposure, req.Config.Points)
	if err != nil {
		return nil, err
	}
	m1Min, m1Max, err := grid.Span(mediator1)
	if err != nil {
		return nil, err
	}
	quantiles, err := grid.Quantiles(mediator2, req.Config.Mediator2Quantiles)
	if err != nil {
		return nil, err
	}
	quantileSweep := grid.NewSweep(req.Mediator2, quantiles)
	productGrid, err := grid.Cross(
		quantileSweep,
		grid.NewSweep(req.Mediator1, grid.Sequence(m1Min, m1Max, req.Config.Points)),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("mediator-interaction assembly: %s -> %s x %s, quantiles %v",
		req.Exposure, req.Mediator1, req.Mediator2, quantiles)

	opts := predictOptions(req.Config)
	direct, err := s.predictAll(ctx, opts, []predictionCall{
		{mediation.TableMediator1ByExposure, req.Mediator1Model, exposureGrid},
		{mediation.TableMediator2ByExposure, req.Mediator2Model, exposureGrid},
		{mediation.TableOutcomeByExposure, req.OutcomeModel, exposureGrid},
		{mediation.TableOutcomeByMediators, req.OutcomeModel, productGrid},
	})
	if err != nil {
		return nil, err
	}

	estimates, err := direct[0].Column(table.ColEstimate)
	if err != nil {
		return nil, err
	}
	sub, err := grid.NewCrossedSubstitution(exposureGrid, req.Mediator1, estimates, quantileSweep)
	if err != nil {
		return nil, err
	}
	indirect, err := s.predictIndirect(ctx, req.OutcomeModel, sub, mediation.TableOutcomeByPredictedMediators, opts)
	if err != nil {
		return nil, err
	}

	return &mediation.MediatorInteractionEffects{
		Mediator1ByExposure:         direct[0],
		Mediator2ByExposure:         direct[1],
		OutcomeByExposure:           direct[2],
		OutcomeByMediators:          direct[3],
		OutcomeByPredictedMediators: indirect,
	}, nil
}

// predictionCall pairs one grid with the model that evaluates it.
type predictionCall struct {
	name  string
	model ports.FittedModel
	grid  *table.Table
}

// predictAll fans the independent prediction calls out concurrently.
// Each result lands in its caller-assigned slot, so every table keeps
// the row order of its own grid regardless of completion order. The
// first failure cancels the rest and fails the whole assembly.
func (s *EffectsService) predictAll(ctx context.Context, opts ports.PredictOptions, calls []predictionCall) ([]*table.Table, error) {
	results := make([]*table.Table, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			pred, err := call.model.Predict(gctx, call.grid, opts)
			if err != nil {
				return apperrors.WithCode(apperrors.CodeExternalService,
					fmt.Errorf("%s prediction: %w", call.name, err))
			}
			if pred.NumRows() != call.grid.NumRows() {
				return core.NewShapeMismatchError(call.name+" prediction", call.grid.NumRows(), pred.NumRows())
			}
			results[i] = pred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// predictIndirect runs the dependent indirect-path call and re-attaches
// the paired labels after the row-count assertion.
func (s *EffectsService) predictIndirect(ctx context.Context, model ports.FittedModel, sub *grid.Substitution, name string, opts ports.PredictOptions) (*table.Table, error) {
	pred, err := model.Predict(ctx, sub.Query, opts)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeExternalService,
			fmt.Errorf("%s prediction: %w", name, err))
	}
	if pred.NumRows() != sub.Query.NumRows() {
		return nil, core.NewShapeMismatchError(name+" prediction", sub.Query.NumRows(), pred.NumRows())
	}
	return grid.AttachLabels(pred, sub.Labels)
}

// observedColumn resolves a named dataset column, failing with a lookup
// error before any prediction call can happen.
func observedColumn(data *table.Table, name string) ([]float64, error) {
	if data == nil || data.NumRows() == 0 {
		return nil, core.ErrEmptyData
	}
	return data.Column(name)
}

// sweepGrid builds an n-point grid over the observed span of a column.
func sweepGrid(name string, values []float64, points int) (*table.Table, error) {
	min, max, err := grid.Span(values)
	if err != nil {
		return nil, err
	}
	return grid.Single(grid.NewSweep(name, grid.Sequence(min, max, points))), nil
}

func predictOptions(cfg mediation.Config) ports.PredictOptions {
	return ports.PredictOptions{
		ConfidenceIntervals: cfg.ConfidenceIntervals,
		ConfidenceLevel:     cfg.ConfidenceLevel,
		IgnoreRandomEffects: cfg.IgnoreRandomEffects,
	}
}

func distinctNames(names ...string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return core.NewConfigError("variables", "must not be empty")
		}
		if seen[name] {
			return core.NewConfigError("variables", fmt.Sprintf("%q used for more than one role", name))
		}
		seen[name] = true
	}
	return nil
}
