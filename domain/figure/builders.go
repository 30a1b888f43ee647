package figure

import (
	"fmt"

	"gomediate/domain/core"
	"gomediate/domain/table"
)

// SimpleMapping names the tables and columns feeding the four-panel
// simple mediation layout.
type SimpleMapping struct {
	MediatorTable          string
	OutcomeByExposureTable string
	OutcomeByMediatorTable string
	IndirectTable          string
	Exposure               string
	Mediator               string
	Outcome                string
}

// ExposureInteractionMapping feeds the interacting-exposures layout.
// Exposure1 is the discrete-level exposure, Exposure2 the swept one.
type ExposureInteractionMapping struct {
	MediatorTable           string
	OutcomeByExposuresTable string
	OutcomeByMediatorTable  string
	IndirectTable           string
	Exposure1               string
	Exposure2               string
	Mediator                string
	Outcome                 string
}

// MediatorInteractionMapping feeds the interacting-mediators layout.
// Mediator1 is swept continuously, Mediator2 fixed at quantiles.
type MediatorInteractionMapping struct {
	Mediator1Table          string
	Mediator2Table          string
	OutcomeByExposureTable  string
	OutcomeByMediatorsTable string
	IndirectTable           string
	Exposure                string
	Mediator1               string
	Mediator2               string
	Outcome                 string
}

// BuildSimpleFigure lays out the three direct paths and the indirect
// path of a simple mediation study.
func BuildSimpleFigure(m SimpleMapping, style Style) (*Figure, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	err := requireNames(map[string]string{
		"mediator_table":            m.MediatorTable,
		"outcome_by_exposure_table": m.OutcomeByExposureTable,
		"outcome_by_mediator_table": m.OutcomeByMediatorTable,
		"indirect_table":            m.IndirectTable,
		"exposure":                  m.Exposure,
		"mediator":                  m.Mediator,
		"outcome":                   m.Outcome,
	})
	if err != nil {
		return nil, err
	}

	indirect := Panel{
		Title:  fmt.Sprintf("%s via predicted %s", m.Outcome, m.Mediator),
		XLabel: m.Mediator,
		YLabel: m.Outcome,
		Layers: []Layer{
			{Kind: LayerPoints, TableName: m.IndirectTable, X: m.Mediator, Y: table.ColEstimate, ColorBy: m.Exposure},
			{Kind: LayerLine, TableName: m.IndirectTable, X: m.Mediator, Y: table.ColEstimate},
		},
	}
	if style.Arrows {
		indirect.Layers = append(indirect.Layers, Layer{
			Kind: LayerArrows, TableName: m.IndirectTable, X: m.Mediator, Y: table.ColEstimate,
		})
	}

	return &Figure{
		Title: fmt.Sprintf("%s → %s → %s", m.Exposure, m.Mediator, m.Outcome),
		Style: style,
		Panels: []Panel{
			directPanel(m.MediatorTable, m.Exposure, m.Mediator, ""),
			directPanel(m.OutcomeByExposureTable, m.Exposure, m.Outcome, ""),
			directPanel(m.OutcomeByMediatorTable, m.Mediator, m.Outcome, ""),
			indirect,
		},
	}, nil
}

// BuildExposureInteractionFigure lays out the interacting-exposures
// study: direct panels split by the discrete exposure, the indirect
// panel colored by the swept exposure.
func BuildExposureInteractionFigure(m ExposureInteractionMapping, style Style) (*Figure, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	err := requireNames(map[string]string{
		"mediator_table":             m.MediatorTable,
		"outcome_by_exposures_table": m.OutcomeByExposuresTable,
		"outcome_by_mediator_table":  m.OutcomeByMediatorTable,
		"indirect_table":             m.IndirectTable,
		"exposure1":                  m.Exposure1,
		"exposure2":                  m.Exposure2,
		"mediator":                   m.Mediator,
		"outcome":                    m.Outcome,
	})
	if err != nil {
		return nil, err
	}

	indirect := Panel{
		Title:  fmt.Sprintf("%s via predicted %s", m.Outcome, m.Mediator),
		XLabel: m.Mediator,
		YLabel: m.Outcome,
		Layers: []Layer{
			{Kind: LayerPoints, TableName: m.IndirectTable, X: m.Mediator, Y: table.ColEstimate, ColorBy: m.Exposure2, GroupBy: m.Exposure1},
			{Kind: LayerLine, TableName: m.IndirectTable, X: m.Mediator, Y: table.ColEstimate, GroupBy: m.Exposure1},
		},
	}
	if style.Arrows {
		indirect.Layers = append(indirect.Layers, Layer{
			Kind: LayerArrows, TableName: m.IndirectTable, X: m.Mediator, Y: table.ColEstimate, GroupBy: m.Exposure1,
		})
	}

	return &Figure{
		Title: fmt.Sprintf("%s × %s → %s → %s", m.Exposure1, m.Exposure2, m.Mediator, m.Outcome),
		Style: style,
		Panels: []Panel{
			groupedPanel(m.MediatorTable, m.Exposure2, m.Mediator, m.Exposure1),
			groupedPanel(m.OutcomeByExposuresTable, m.Exposure2, m.Outcome, m.Exposure1),
			directPanel(m.OutcomeByMediatorTable, m.Mediator, m.Outcome, ""),
			indirect,
		},
	}, nil
}

// BuildMediatorInteractionFigure lays out the interacting-mediators
// study: product panels faceted by the quantile-fixed mediator.
func BuildMediatorInteractionFigure(m MediatorInteractionMapping, style Style) (*Figure, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	err := requireNames(map[string]string{
		"mediator1_table":            m.Mediator1Table,
		"mediator2_table":            m.Mediator2Table,
		"outcome_by_exposure_table":  m.OutcomeByExposureTable,
		"outcome_by_mediators_table": m.OutcomeByMediatorsTable,
		"indirect_table":             m.IndirectTable,
		"exposure":                   m.Exposure,
		"mediator1":                  m.Mediator1,
		"mediator2":                  m.Mediator2,
		"outcome":                    m.Outcome,
	})
	if err != nil {
		return nil, err
	}

	indirect := Panel{
		Title:   fmt.Sprintf("%s via predicted %s at %s quantiles", m.Outcome, m.Mediator1, m.Mediator2),
		XLabel:  m.Mediator1,
		YLabel:  m.Outcome,
		FacetBy: m.Mediator2,
		Layers: []Layer{
			{Kind: LayerPoints, TableName: m.IndirectTable, X: m.Mediator1, Y: table.ColEstimate, ColorBy: m.Exposure},
			{Kind: LayerLine, TableName: m.IndirectTable, X: m.Mediator1, Y: table.ColEstimate},
		},
	}
	if style.Arrows {
		indirect.Layers = append(indirect.Layers, Layer{
			Kind: LayerArrows, TableName: m.IndirectTable, X: m.Mediator1, Y: table.ColEstimate,
		})
	}

	product := directPanel(m.OutcomeByMediatorsTable, m.Mediator1, m.Outcome, m.Mediator2)
	product.FacetBy = m.Mediator2

	return &Figure{
		Title: fmt.Sprintf("%s → %s × %s → %s", m.Exposure, m.Mediator1, m.Mediator2, m.Outcome),
		Style: style,
		Panels: []Panel{
			directPanel(m.Mediator1Table, m.Exposure, m.Mediator1, ""),
			directPanel(m.Mediator2Table, m.Exposure, m.Mediator2, ""),
			directPanel(m.OutcomeByExposureTable, m.Exposure, m.Outcome, ""),
			product,
			indirect,
		},
	}, nil
}

// directPanel draws one estimate line with its confidence ribbon.
func directPanel(tableName, x, y, groupBy string) Panel {
	return Panel{
		Title:  fmt.Sprintf("%s by %s", y, x),
		XLabel: x,
		YLabel: y,
		Layers: []Layer{
			{Kind: LayerRibbon, TableName: tableName, X: x, YMin: table.ColConfLow, YMax: table.ColConfHigh, GroupBy: groupBy},
			{Kind: LayerLine, TableName: tableName, X: x, Y: table.ColEstimate, GroupBy: groupBy},
		},
	}
}

// groupedPanel splits the estimate line per discrete level.
func groupedPanel(tableName, x, y, level string) Panel {
	p := directPanel(tableName, x, y, level)
	for i := range p.Layers {
		p.Layers[i].GroupBy = level
	}
	p.Layers[1].ColorBy = level
	return p
}

func requireNames(fields map[string]string) error {
	for field, value := range fields {
		if value == "" {
			return core.NewConfigError(field, "must not be empty")
		}
	}
	return nil
}
