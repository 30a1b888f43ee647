package mediation

import (
	"fmt"

	"gomediate/domain/core"
	"gomediate/domain/figure"
	"gomediate/domain/table"
)

// ============================================================================
// STUDY KINDS
// ============================================================================

// Kind identifies which assembler produced a study.
type Kind string

const (
	// KindSimple traces one exposure through one mediator.
	KindSimple Kind = "simple"
	// KindExposureInteraction crosses a discrete exposure with a swept one.
	KindExposureInteraction Kind = "exposure_interaction"
	// KindMediatorInteraction interacts a swept mediator with a quantile-fixed one.
	KindMediatorInteraction Kind = "mediator_interaction"
)

// ParseKind validates a study kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSimple, KindExposureInteraction, KindMediatorInteraction:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown study kind %q", s)
}

func (k Kind) String() string { return string(k) }

// ============================================================================
// ASSEMBLER CONFIGURATION
// ============================================================================

// Config carries the assembler knobs with their documented defaults.
// Level sets pass through unvalidated for order and uniqueness; facet
// and color ordering downstream follows the order given here.
type Config struct {
	// Points is the resolution of every continuous sweep. Default 30.
	Points int `json:"points"`
	// Exposure1Levels is the discrete set for the first exposure in the
	// exposure-interaction assembler. Default {-1, 0, 1}.
	Exposure1Levels []float64 `json:"exposure1_levels"`
	// Mediator2Quantiles are fraction levels in (0,1] at which the second
	// mediator is fixed. Default {0.1, 0.5, 0.9}.
	Mediator2Quantiles []float64 `json:"mediator2_quantiles"`
	// ConfidenceIntervals toggles interval computation, passed through to
	// the prediction backend untouched. Default true.
	ConfidenceIntervals bool `json:"confidence_intervals"`
	// ConfidenceLevel in (0,1). Default 0.95.
	ConfidenceLevel float64 `json:"confidence_level"`
	// IgnoreRandomEffects requests population-level predictions from
	// backends that carry group terms. Default false.
	IgnoreRandomEffects bool `json:"ignore_random_effects"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Points:              30,
		Exposure1Levels:     []float64{-1, 0, 1},
		Mediator2Quantiles:  []float64{0.1, 0.5, 0.9},
		ConfidenceIntervals: true,
		ConfidenceLevel:     0.95,
	}
}

// Validate checks structural validity once at the assembler entry point.
// Sortedness and uniqueness of level sets are deliberately not checked.
func (c Config) Validate() error {
	if c.Points < 2 {
		return core.NewConfigError("points", "must be at least 2")
	}
	if len(c.Exposure1Levels) == 0 {
		return core.NewConfigError("exposure1_levels", "must not be empty")
	}
	if len(c.Mediator2Quantiles) == 0 {
		return core.NewConfigError("mediator2_quantiles", "must not be empty")
	}
	for _, q := range c.Mediator2Quantiles {
		if q <= 0 || q > 1 {
			return core.NewConfigError("mediator2_quantiles", fmt.Sprintf("level %v outside (0,1]", q))
		}
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return core.NewConfigError("confidence_level", "must lie in (0,1)")
	}
	return nil
}

// ============================================================================
// EFFECTS TABLES
// ============================================================================

// Stable table names used for persistence, export sheets and figures.
const (
	TableMediatorByExposure          = "mediator_by_exposure"
	TableOutcomeByExposure           = "outcome_by_exposure"
	TableOutcomeByMediator           = "outcome_by_mediator"
	TableOutcomeByPredictedMediator  = "outcome_by_predicted_mediator"
	TableMediatorByExposures         = "mediator_by_exposures"
	TableOutcomeByExposures          = "outcome_by_exposures"
	TableMediator1ByExposure         = "mediator1_by_exposure"
	TableMediator2ByExposure         = "mediator2_by_exposure"
	TableOutcomeByMediators          = "outcome_by_mediators"
	TableOutcomeByPredictedMediators = "outcome_by_predicted_mediators"
)

// SimpleEffects holds the four tables of the simple assembler.
type SimpleEffects struct {
	MediatorByExposure         *table.Table `json:"mediator_by_exposure"`
	OutcomeByExposure          *table.Table `json:"outcome_by_exposure"`
	OutcomeByMediator          *table.Table `json:"outcome_by_mediator"`
	OutcomeByPredictedMediator *table.Table `json:"outcome_by_predicted_mediator"`
}

// Tables lists the effects in presentation order.
func (e *SimpleEffects) Tables() []table.Named {
	return []table.Named{
		{Name: TableMediatorByExposure, Table: e.MediatorByExposure},
		{Name: TableOutcomeByExposure, Table: e.OutcomeByExposure},
		{Name: TableOutcomeByMediator, Table: e.OutcomeByMediator},
		{Name: TableOutcomeByPredictedMediator, Table: e.OutcomeByPredictedMediator},
	}
}

// ExposureInteractionEffects holds the four tables of the
// interacting-exposures assembler. Product grids order rows one block
// per exposure-1 level with the exposure-2 sweep repeated inside.
type ExposureInteractionEffects struct {
	MediatorByExposures        *table.Table `json:"mediator_by_exposures"`
	OutcomeByExposures         *table.Table `json:"outcome_by_exposures"`
	OutcomeByMediator          *table.Table `json:"outcome_by_mediator"`
	OutcomeByPredictedMediator *table.Table `json:"outcome_by_predicted_mediator"`
}

func (e *ExposureInteractionEffects) Tables() []table.Named {
	return []table.Named{
		{Name: TableMediatorByExposures, Table: e.MediatorByExposures},
		{Name: TableOutcomeByExposures, Table: e.OutcomeByExposures},
		{Name: TableOutcomeByMediator, Table: e.OutcomeByMediator},
		{Name: TableOutcomeByPredictedMediator, Table: e.OutcomeByPredictedMediator},
	}
}

// MediatorInteractionEffects holds the five tables of the
// interacting-mediators assembler. Product grids order rows one block
// per mediator-2 quantile with the continuous sweep repeated inside.
type MediatorInteractionEffects struct {
	Mediator1ByExposure         *table.Table `json:"mediator1_by_exposure"`
	Mediator2ByExposure         *table.Table `json:"mediator2_by_exposure"`
	OutcomeByExposure           *table.Table `json:"outcome_by_exposure"`
	OutcomeByMediators          *table.Table `json:"outcome_by_mediators"`
	OutcomeByPredictedMediators *table.Table `json:"outcome_by_predicted_mediators"`
}

func (e *MediatorInteractionEffects) Tables() []table.Named {
	return []table.Named{
		{Name: TableMediator1ByExposure, Table: e.Mediator1ByExposure},
		{Name: TableMediator2ByExposure, Table: e.Mediator2ByExposure},
		{Name: TableOutcomeByExposure, Table: e.OutcomeByExposure},
		{Name: TableOutcomeByMediators, Table: e.OutcomeByMediators},
		{Name: TableOutcomeByPredictedMediators, Table: e.OutcomeByPredictedMediators},
	}
}

// ============================================================================
// STUDY AGGREGATE
// ============================================================================

// Variables names the dataset columns playing each causal role. For the
// exposure-interaction kind, Exposure is the discrete-level exposure and
// Exposure2 the continuously swept one.
type Variables struct {
	Exposure  string `json:"exposure"`
	Exposure2 string `json:"exposure2,omitempty"`
	Mediator  string `json:"mediator"`
	Mediator2 string `json:"mediator2,omitempty"`
	Outcome   string `json:"outcome"`
	GroupBy   string `json:"group_by,omitempty"`
}

// Study is one persisted assembler run: its inputs, the assembled
// prediction tables and the figure built from them.
type Study struct {
	ID          core.StudyID   `json:"id"`
	Kind        Kind           `json:"kind"`
	DatasetName string         `json:"dataset_name"`
	Variables   Variables      `json:"variables"`
	Config      Config         `json:"config"`
	Tables      []table.Named  `json:"tables"`
	Figure      *figure.Figure `json:"figure,omitempty"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// TableByName returns a study table, or a lookup error if absent.
func (s *Study) TableByName(name string) (*table.Table, error) {
	for _, nt := range s.Tables {
		if nt.Name == name {
			return nt.Table, nil
		}
	}
	return nil, core.NewVariableLookupError(name)
}
