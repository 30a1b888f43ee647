package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gomediate/domain/core"
	"gomediate/domain/figure"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	"gomediate/internal"
	"gomediate/ports"
)

// StudyRequest carries the inputs of one assembler run. A zero Style
// falls back to the default palette.
type StudyRequest struct {
	Data        *table.Table
	DatasetName string
	Variables   mediation.Variables
	Config      mediation.Config
	Style       figure.Style
}

// StudyService fits the variant's models, assembles the prediction
// tables, builds the figure spec and persists the resulting study.
type StudyService struct {
	effects *EffectsService
	fitter  ports.ModelFitter
	store   ports.StudyStore
	logger  *internal.Logger
}

// NewStudyService creates a study service
func NewStudyService(effects *EffectsService, fitter ports.ModelFitter, store ports.StudyStore, logger *internal.Logger) *StudyService {
	if logger == nil {
		logger = internal.DefaultLogger.Named("study")
	}
	return &StudyService{
		effects: effects,
		fitter:  fitter,
		store:   store,
		logger:  logger,
	}
}

// RunSimple assembles a one-exposure one-mediator study.
func (s *StudyService) RunSimple(ctx context.Context, req StudyRequest) (*mediation.Study, error) {
	vars := req.Variables
	if err := requireVariables(map[string]string{
		"exposure": vars.Exposure,
		"mediator": vars.Mediator,
		"outcome":  vars.Outcome,
	}); err != nil {
		return nil, err
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	data, err := s.prepareData(req.Data, vars, vars.Exposure, vars.Mediator, vars.Outcome)
	if err != nil {
		return nil, err
	}
	req.Data = data

	mediatorModel, err := s.fitter.Fit(ctx, req.Data, ports.ModelSpec{
		Response: vars.Mediator,
		Terms:    []ports.Term{ports.Main(vars.Exposure)},
		GroupBy:  vars.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("mediator model fit: %w", err)
	}
	outcomeModel, err := s.fitter.Fit(ctx, req.Data, ports.ModelSpec{
		Response: vars.Outcome,
		Terms:    []ports.Term{ports.Main(vars.Exposure), ports.Main(vars.Mediator)},
		GroupBy:  vars.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("outcome model fit: %w", err)
	}

	effects, err := s.effects.AssembleSimple(ctx, SimpleEffectsRequest{
		Data:          req.Data,
		MediatorModel: mediatorModel,
		OutcomeModel:  outcomeModel,
		Exposure:      vars.Exposure,
		Mediator:      vars.Mediator,
		Config:        req.Config,
	})
	if err != nil {
		return nil, err
	}

	fig, err := figure.BuildSimpleFigure(figure.SimpleMapping{
		MediatorTable:          mediation.TableMediatorByExposure,
		OutcomeByExposureTable: mediation.TableOutcomeByExposure,
		OutcomeByMediatorTable: mediation.TableOutcomeByMediator,
		IndirectTable:          mediation.TableOutcomeByPredictedMediator,
		Exposure:               vars.Exposure,
		Mediator:               vars.Mediator,
		Outcome:                vars.Outcome,
	}, s.style(req))
	if err != nil {
		return nil, err
	}

	return s.saveStudy(ctx, mediation.KindSimple, req, effects.Tables(), fig)
}

// RunExposureInteraction assembles an interacting-exposures study.
// Variables.Exposure holds the discrete-level exposure, Exposure2 the
// swept one.
func (s *StudyService) RunExposureInteraction(ctx context.Context, req StudyRequest) (*mediation.Study, error) {
	vars := req.Variables
	if err := requireVariables(map[string]string{
		"exposure":  vars.Exposure,
		"exposure2": vars.Exposure2,
		"mediator":  vars.Mediator,
		"outcome":   vars.Outcome,
	}); err != nil {
		return nil, err
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	data, err := s.prepareData(req.Data, vars, vars.Exposure, vars.Exposure2, vars.Mediator, vars.Outcome)
	if err != nil {
		return nil, err
	}
	req.Data = data

	interactionTerms := []ports.Term{
		ports.Main(vars.Exposure),
		ports.Main(vars.Exposure2),
		ports.Interaction(vars.Exposure, vars.Exposure2),
	}

	mediatorModel, err := s.fitter.Fit(ctx, req.Data, ports.ModelSpec{
		Response: vars.Mediator,
		Terms:    interactionTerms,
		GroupBy:  vars.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("mediator model fit: %w", err)
	}
	outcomeModel, err := s.fitter.Fit(ctx, req.Data, ports.ModelSpec{
		Response: vars.Outcome,
		Terms:    append(interactionTerms, ports.Main(vars.Mediator)),
		GroupBy:  vars.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("outcome model fit: %w", err)
	}

	effects, err := s.effects.AssembleExposureInteraction(ctx, ExposureInteractionRequest{
		Data:          req.Data,
		MediatorModel: mediatorModel,
		OutcomeModel:  outcomeModel,
		Exposure1:     vars.Exposure,
		Exposure2:     vars.Exposure2,
		Mediator:      vars.Mediator,
		Config:        req.Config,
	})
	if err != nil {
		return nil, err
	}

	fig, err := figure.BuildExposureInteractionFigure(figure.ExposureInteractionMapping{
		MediatorTable:           mediation.TableMediatorByExposures,
		OutcomeByExposuresTable: mediation.TableOutcomeByExposures,
		OutcomeByMediatorTable:  mediation.TableOutcomeByMediator,
		IndirectTable:           mediation.TableOutcomeByPredictedMediator,
		Exposure1:               vars.Exposure,
		Exposure2:               vars.Exposure2,
		Mediator:                vars.Mediator,
		Outcome:                 vars.Outcome,
	}, s.style(req))
	if err != nil {
		return nil, err
	}

	return s.saveStudy(ctx, mediation.KindExposureInteraction, req, effects.Tables(), fig)
}

// RunMediatorInteraction assembles an interacting-mediators study.
func (s *StudyService) RunMediatorInteraction(ctx context.Context, req StudyRequest) (*mediation.Study, error) {
	vars := req.Variables
	if err := requireVariables(map[string]string{
		"exposure":  vars.Exposure,
		"mediator":  vars.Mediator,
		"mediator2": vars.Mediator2,
		"outcome":   vars.Outcome,
	}); err != nil {
		return nil, err
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	data, err := s.prepareData(req.Data, vars, vars.Exposure, vars.Mediator, vars.Mediator2, vars.Outcome)
	if err != nil {
		return nil, err
	}
	req.Data = data

	mediator1Model, err := s.fitter.Fit(ctx, req.Data, ports.ModelSpec{
		Response: vars.Mediator,
		Terms:    []ports.Term{ports.Main(vars.Exposure)},
		GroupBy:  vars.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("first mediator model fit: %w", err)
	}
	mediator2Model, err := s.fitter.Fit(ctx, req.Data, ports.ModelSpec{
		Response: vars.Mediator2,
		Terms:    []ports.Term{ports.Main(vars.Exposure)},
		GroupBy:  vars.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("second mediator model fit: %w", err)
	}
	outcomeModel, err := s.fitter.Fit(ctx, req.Data, ports.ModelSpec{
		Response: vars.Outcome,
		Terms: []ports.Term{
			ports.Main(vars.Exposure),
			ports.Main(vars.Mediator),
			ports.Main(vars.Mediator2),
			ports.Interaction(vars.Mediator, vars.Mediator2),
		},
		GroupBy: vars.GroupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("outcome model fit: %w", err)
	}

	effects, err := s.effects.AssembleMediatorInteraction(ctx, MediatorInteractionRequest{
		Data:           req.Data,
		Mediator1Model: mediator1Model,
		Mediator2Model: mediator2Model,
		OutcomeModel:   outcomeModel,
		Exposure:       vars.Exposure,
		Mediator1:      vars.Mediator,
		Mediator2:      vars.Mediator2,
		Config:         req.Config,
	})
	if err != nil {
		return nil, err
	}

	fig, err := figure.BuildMediatorInteractionFigure(figure.MediatorInteractionMapping{
		Mediator1Table:          mediation.TableMediator1ByExposure,
		Mediator2Table:          mediation.TableMediator2ByExposure,
		OutcomeByExposureTable:  mediation.TableOutcomeByExposure,
		OutcomeByMediatorsTable: mediation.TableOutcomeByMediators,
		IndirectTable:           mediation.TableOutcomeByPredictedMediators,
		Exposure:                vars.Exposure,
		Mediator1:               vars.Mediator,
		Mediator2:               vars.Mediator2,
		Outcome:                 vars.Outcome,
	}, s.style(req))
	if err != nil {
		return nil, err
	}

	return s.saveStudy(ctx, mediation.KindMediatorInteraction, req, effects.Tables(), fig)
}

// Run dispatches on the study kind.
func (s *StudyService) Run(ctx context.Context, kind mediation.Kind, req StudyRequest) (*mediation.Study, error) {
	switch kind {
	case mediation.KindSimple:
		return s.RunSimple(ctx, req)
	case mediation.KindExposureInteraction:
		return s.RunExposureInteraction(ctx, req)
	case mediation.KindMediatorInteraction:
		return s.RunMediatorInteraction(ctx, req)
	default:
		return nil, core.NewConfigError("kind", fmt.Sprintf("unknown study kind %q", kind))
	}
}

// GetStudy loads a persisted study.
func (s *StudyService) GetStudy(ctx context.Context, id core.StudyID) (*mediation.Study, error) {
	return s.store.GetStudy(ctx, id)
}

// ListStudies lists persisted study summaries.
func (s *StudyService) ListStudies(ctx context.Context, limit, offset int) ([]ports.StudySummary, error) {
	return s.store.ListStudies(ctx, limit, offset)
}

func (s *StudyService) saveStudy(ctx context.Context, kind mediation.Kind, req StudyRequest, tables []table.Named, fig *figure.Figure) (*mediation.Study, error) {
	study := &mediation.Study{
		ID:          core.NewStudyID(),
		Kind:        kind,
		DatasetName: req.DatasetName,
		Variables:   req.Variables,
		Config:      req.Config,
		Tables:      tables,
		Figure:      fig,
		CreatedAt:   core.Now(),
	}

	if err := s.store.SaveStudy(ctx, study); err != nil {
		return nil, fmt.Errorf("study save: %w", err)
	}

	s.logger.Info("assembled %s study %s: dataset=%s tables=%d", kind, study.ID, req.DatasetName, len(tables))
	return study, nil
}

func (s *StudyService) style(req StudyRequest) figure.Style {
	if len(req.Style.Palette) == 0 {
		return figure.DefaultStyle()
	}
	return req.Style
}

// prepareData projects the study's columns out of the raw dataset and drops
// rows with missing values. Models and sweeps both assume complete cases
// over the same rows.
func (s *StudyService) prepareData(data *table.Table, vars mediation.Variables, names ...string) (*table.Table, error) {
	if data == nil || data.NumRows() == 0 {
		return nil, core.ErrEmptyData
	}
	if vars.GroupBy != "" {
		names = append(names, vars.GroupBy)
	}

	seen := make(map[string]bool, len(names))
	columns := make([][]float64, 0, len(names))
	kept := names[:0]
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		col, err := data.Column(name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
		kept = append(kept, name)
	}

	total := data.NumRows()
	rows := make([]int, 0, total)
	for i := 0; i < total; i++ {
		complete := true
		for _, col := range columns {
			if math.IsNaN(col[i]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no complete rows across %s: %w", strings.Join(kept, ", "), core.ErrEmptyData)
	}

	clean := table.New()
	for j, name := range kept {
		values := make([]float64, len(rows))
		for k, i := range rows {
			values[k] = columns[j][i]
		}
		if err := clean.AddColumn(name, values); err != nil {
			return nil, err
		}
	}

	if dropped := total - len(rows); dropped > 0 {
		s.logger.Info("dropped %d of %d rows with missing values", dropped, total)
	}
	return clean, nil
}

func requireVariables(fields map[string]string) error {
	for field, value := range fields {
		if value == "" {
			return core.NewConfigError(field, "variable is required")
		}
	}
	return nil
}
