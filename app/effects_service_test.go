package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"gomediate/domain/core"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	apperrors "gomediate/internal/errors"
	"gomediate/ports"
)

// fakeModel is a deterministic prediction capability: the estimate is an
// affine function of the grid row, so repeated calls agree exactly.
type fakeModel struct {
	mu       sync.Mutex
	calls    int
	lastOpts ports.PredictOptions
	err      error
	extraRow bool
}

func (f *fakeModel) Predict(ctx context.Context, g *table.Table, opts ports.PredictOptions) (*table.Table, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	rows := g.NumRows()
	if f.extraRow {
		rows++
	}
	est := make([]float64, rows)
	low := make([]float64, rows)
	high := make([]float64, rows)
	names := g.Names()
	for i := 0; i < rows; i++ {
		v := 1.0
		for _, name := range names {
			col, _ := g.Column(name)
			if i < len(col) {
				v += 2 * col[i]
			}
		}
		est[i] = v
		if opts.ConfidenceIntervals {
			low[i], high[i] = v-0.5, v+0.5
		} else {
			low[i], high[i] = math.NaN(), math.NaN()
		}
	}

	out := table.New()
	_ = out.AddColumn(table.ColEstimate, est)
	_ = out.AddColumn(table.ColConfLow, low)
	_ = out.AddColumn(table.ColConfHigh, high)
	if !f.extraRow {
		// echo the grid columns per the prediction contract
		for _, name := range names {
			col, _ := g.Column(name)
			_ = out.AddColumn(name, col)
		}
	}
	return out, nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// normSource is a deterministic standard-normal generator
// (linear congruential state with a Box-Muller transform).
func normSource(seed float64) func() float64 {
	state := seed
	next := func() float64 {
		state = math.Mod(state*1103515245+12345, 2147483648)
		return (state + 1) / 2147483649
	}
	return func() float64 {
		u1 := next()
		u2 := next()
		return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	}
}

// mediationDataset builds rows of E, M, O (plus E2, M2) with a known
// causal structure so spans and quantiles are nondegenerate.
func mediationDataset(t *testing.T, rows int) *table.Table {
	t.Helper()
	norm := normSource(12345)

	e := make([]float64, rows)
	e2 := make([]float64, rows)
	m := make([]float64, rows)
	m2 := make([]float64, rows)
	o := make([]float64, rows)
	for i := 0; i < rows; i++ {
		e[i] = norm()
		e2[i] = norm()
		m[i] = 0.8*e[i] + 0.1*norm()
		m2[i] = -0.5*e[i] + 0.1*norm()
		o[i] = 0.3*e[i] + 0.6*m[i] + 0.2*m2[i] + 0.1*norm()
	}

	data := table.New()
	if err := data.AddColumn("E", e); err != nil {
		t.Fatalf("dataset build failed: %v", err)
	}
	_ = data.AddColumn("E2", e2)
	_ = data.AddColumn("M", m)
	_ = data.AddColumn("M2", m2)
	_ = data.AddColumn("O", o)
	return data
}

func testConfig(points int) mediation.Config {
	cfg := mediation.DefaultConfig()
	cfg.Points = points
	return cfg
}

func TestAssembleSimpleScenario(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 500)

	effects, err := svc.AssembleSimple(context.Background(), SimpleEffectsRequest{
		Data:          data,
		MediatorModel: &fakeModel{},
		OutcomeModel:  &fakeModel{},
		Exposure:      "E",
		Mediator:      "M",
		Config:        testConfig(10),
	})
	if err != nil {
		t.Fatalf("AssembleSimple failed: %v", err)
	}

	for _, nt := range effects.Tables() {
		if nt.Table.NumRows() != 10 {
			t.Errorf("%s: expected 10 rows, got %d", nt.Name, nt.Table.NumRows())
		}
	}
	for _, col := range []string{table.ColEstimate, table.ColConfLow, table.ColConfHigh, "E"} {
		if !effects.MediatorByExposure.HasColumn(col) {
			t.Errorf("mediator table missing column %s", col)
		}
	}

	// boundary: sweep endpoints equal the observed span exactly
	eObs, _ := data.Column("E")
	var min, max = eObs[0], eObs[0]
	for _, v := range eObs {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	sweep, _ := effects.MediatorByExposure.Column("E")
	if sweep[0] != min || sweep[len(sweep)-1] != max {
		t.Errorf("Sweep endpoints [%v,%v] must equal observed span [%v,%v]",
			sweep[0], sweep[len(sweep)-1], min, max)
	}

	// round-trip: re-attached labels equal the mediator-call sweep
	attached, err := effects.OutcomeByPredictedMediator.Column("E")
	if err != nil {
		t.Fatalf("Indirect table missing exposure labels: %v", err)
	}
	for i := range sweep {
		if attached[i] != sweep[i] {
			t.Errorf("Row %d: attached E %v differs from sweep %v", i, attached[i], sweep[i])
		}
	}

	// the indirect query used the predicted mediator values verbatim
	predicted, _ := effects.MediatorByExposure.Column(table.ColEstimate)
	queried, err := effects.OutcomeByPredictedMediator.Column("M")
	if err != nil {
		t.Fatalf("Indirect table missing mediator column: %v", err)
	}
	for i := range predicted {
		if queried[i] != predicted[i] {
			t.Errorf("Row %d: indirect mediator %v differs from predicted %v", i, queried[i], predicted[i])
		}
	}
}

func TestAssembleSimpleIdempotent(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 200)
	req := SimpleEffectsRequest{
		Data:          data,
		MediatorModel: &fakeModel{},
		OutcomeModel:  &fakeModel{},
		Exposure:      "E",
		Mediator:      "M",
		Config:        testConfig(10),
	}

	first, err := svc.AssembleSimple(context.Background(), req)
	if err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	second, err := svc.AssembleSimple(context.Background(), req)
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}

	firstTables := first.Tables()
	secondTables := second.Tables()
	for i := range firstTables {
		if !firstTables[i].Table.Equal(secondTables[i].Table) {
			t.Errorf("%s differs between identical calls", firstTables[i].Name)
		}
	}
}

func TestAssembleSimpleLookupFailureBeforePredict(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 50)
	mediatorModel := &fakeModel{}
	outcomeModel := &fakeModel{}

	_, err := svc.AssembleSimple(context.Background(), SimpleEffectsRequest{
		Data:          data,
		MediatorModel: mediatorModel,
		OutcomeModel:  outcomeModel,
		Exposure:      "E",
		Mediator:      "missing",
		Config:        testConfig(10),
	})
	if !core.IsLookupError(err) {
		t.Fatalf("Expected lookup error, got %v", err)
	}
	if mediatorModel.callCount() != 0 || outcomeModel.callCount() != 0 {
		t.Errorf("Lookup failure must precede any prediction call, got %d and %d calls",
			mediatorModel.callCount(), outcomeModel.callCount())
	}
}

func TestAssembleSimpleBackendFailurePropagates(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 50)
	backendErr := errors.New("singular variance-covariance matrix")

	_, err := svc.AssembleSimple(context.Background(), SimpleEffectsRequest{
		Data:          data,
		MediatorModel: &fakeModel{err: backendErr},
		OutcomeModel:  &fakeModel{},
		Exposure:      "E",
		Mediator:      "M",
		Config:        testConfig(10),
	})
	if err == nil || !errors.Is(err, backendErr) {
		t.Fatalf("Expected backend error to propagate, got %v", err)
	}
	if apperrors.GetCode(err) != apperrors.CodeExternalService {
		t.Errorf("Expected external-service classification, got %v", err)
	}
}

func TestAssembleSimpleShapeMismatch(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 50)

	_, err := svc.AssembleSimple(context.Background(), SimpleEffectsRequest{
		Data:          data,
		MediatorModel: &fakeModel{extraRow: true},
		OutcomeModel:  &fakeModel{},
		Exposure:      "E",
		Mediator:      "M",
		Config:        testConfig(10),
	})
	if !core.IsShapeMismatchError(err) {
		t.Fatalf("Expected shape mismatch error, got %v", err)
	}
}

func TestAssembleSimpleRejectsDuplicateRoles(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 50)

	_, err := svc.AssembleSimple(context.Background(), SimpleEffectsRequest{
		Data:          data,
		MediatorModel: &fakeModel{},
		OutcomeModel:  &fakeModel{},
		Exposure:      "E",
		Mediator:      "E",
		Config:        testConfig(10),
	})
	if !core.IsValidationError(err) {
		t.Fatalf("Expected validation error for duplicate roles, got %v", err)
	}
}

func TestAssembleSimpleCITogglePassesThrough(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 50)
	mediatorModel := &fakeModel{}

	cfg := testConfig(10)
	cfg.ConfidenceIntervals = false

	effects, err := svc.AssembleSimple(context.Background(), SimpleEffectsRequest{
		Data:          data,
		MediatorModel: mediatorModel,
		OutcomeModel:  &fakeModel{},
		Exposure:      "E",
		Mediator:      "M",
		Config:        cfg,
	})
	if err != nil {
		t.Fatalf("AssembleSimple failed: %v", err)
	}
	if mediatorModel.lastOpts.ConfidenceIntervals {
		t.Error("CI toggle must reach the backend untouched")
	}

	low, _ := effects.MediatorByExposure.Column(table.ColConfLow)
	if !math.IsNaN(low[0]) {
		t.Errorf("Expected NaN bounds with CI off, got %v", low[0])
	}
}

func TestAssembleExposureInteractionScenario(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 500)

	effects, err := svc.AssembleExposureInteraction(context.Background(), ExposureInteractionRequest{
		Data:          data,
		MediatorModel: &fakeModel{},
		OutcomeModel:  &fakeModel{},
		Exposure1:     "E",
		Exposure2:     "E2",
		Mediator:      "M",
		Config:        testConfig(10),
	})
	if err != nil {
		t.Fatalf("AssembleExposureInteraction failed: %v", err)
	}

	if got := effects.MediatorByExposures.NumRows(); got != 30 {
		t.Errorf("Product table: expected 30 rows (3 x 10), got %d", got)
	}
	if got := effects.OutcomeByPredictedMediator.NumRows(); got != 30 {
		t.Errorf("Indirect table: expected 30 rows, got %d", got)
	}
	if got := effects.OutcomeByMediator.NumRows(); got != 10 {
		t.Errorf("Mediator sweep table: expected 10 rows, got %d", got)
	}

	// round-trip: both label columns match the product grid pairs
	gridE1, _ := effects.MediatorByExposures.Column("E")
	gridE2, _ := effects.MediatorByExposures.Column("E2")
	labelE1, err := effects.OutcomeByPredictedMediator.Column("E")
	if err != nil {
		t.Fatalf("Indirect table missing E labels: %v", err)
	}
	labelE2, err := effects.OutcomeByPredictedMediator.Column("E2")
	if err != nil {
		t.Fatalf("Indirect table missing E2 labels: %v", err)
	}
	for i := range gridE1 {
		if labelE1[i] != gridE1[i] || labelE2[i] != gridE2[i] {
			t.Errorf("Row %d: label pair (%v,%v) differs from grid pair (%v,%v)",
				i, labelE1[i], labelE2[i], gridE1[i], gridE2[i])
		}
	}

	// block ordering: one block per exposure-1 level
	levels := []float64{-1, 0, 1}
	for i := 0; i < 30; i++ {
		if gridE1[i] != levels[i/10] {
			t.Fatalf("Row %d: expected E1 level %v, got %v", i, levels[i/10], gridE1[i])
		}
	}
}

func TestAssembleExposureInteractionChecksLevelColumn(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 50)
	mediatorModel := &fakeModel{}

	_, err := svc.AssembleExposureInteraction(context.Background(), ExposureInteractionRequest{
		Data:          data,
		MediatorModel: mediatorModel,
		OutcomeModel:  &fakeModel{},
		Exposure1:     "absent",
		Exposure2:     "E2",
		Mediator:      "M",
		Config:        testConfig(10),
	})
	if !core.IsLookupError(err) {
		t.Fatalf("Expected lookup error for absent exposure 1, got %v", err)
	}
	if mediatorModel.callCount() != 0 {
		t.Error("Lookup failure must precede prediction calls")
	}
}

func TestAssembleMediatorInteractionScenario(t *testing.T) {
	svc := NewEffectsService(nil)
	data := mediationDataset(t, 500)

	effects, err := svc.AssembleMediatorInteraction(context.Background(), MediatorInteractionRequest{
		Data:           data,
		Mediator1Model: &fakeModel{},
		Mediator2Model: &fakeModel{},
		OutcomeModel:   &fakeModel{},
		Exposure:       "E",
		Mediator1:      "M",
		Mediator2:      "M2",
		Config:         testConfig(10),
	})
	if err != nil {
		t.Fatalf("AssembleMediatorInteraction failed: %v", err)
	}

	counts := map[string]int{
		mediation.TableMediator1ByExposure:         10,
		mediation.TableMediator2ByExposure:         10,
		mediation.TableOutcomeByExposure:           10,
		mediation.TableOutcomeByMediators:          30,
		mediation.TableOutcomeByPredictedMediators: 30,
	}
	for _, nt := range effects.Tables() {
		if nt.Table.NumRows() != counts[nt.Name] {
			t.Errorf("%s: expected %d rows, got %d", nt.Name, counts[nt.Name], nt.Table.NumRows())
		}
	}

	// exposure labels repeat the 10-point sweep once per quantile block
	sweep, _ := effects.Mediator1ByExposure.Column("E")
	labels, err := effects.OutcomeByPredictedMediators.Column("E")
	if err != nil {
		t.Fatalf("Indirect table missing exposure labels: %v", err)
	}
	for i := 0; i < 30; i++ {
		if labels[i] != sweep[i%10] {
			t.Errorf("Row %d: expected sweep value %v, got %v", i, sweep[i%10], labels[i])
		}
	}

	// quantile blocks in the indirect table mirror the product table
	productM2, _ := effects.OutcomeByMediators.Column("M2")
	indirectM2, err := effects.OutcomeByPredictedMediators.Column("M2")
	if err != nil {
		t.Fatalf("Indirect table missing mediator-2 column: %v", err)
	}
	for i := 0; i < 30; i++ {
		if indirectM2[i] != productM2[i] {
			t.Errorf("Row %d: indirect M2 %v differs from product M2 %v", i, indirectM2[i], productM2[i])
		}
		if i > 0 && i%10 != 0 && indirectM2[i] != indirectM2[i-1] {
			t.Errorf("Row %d: quantile changed inside a block", i)
		}
	}

	// the indirect mediator-1 values are the predicted estimates, tiled
	predicted, _ := effects.Mediator1ByExposure.Column(table.ColEstimate)
	indirectM1, _ := effects.OutcomeByPredictedMediators.Column("M")
	for i := 0; i < 30; i++ {
		if indirectM1[i] != predicted[i%10] {
			t.Errorf("Row %d: indirect M %v differs from predicted %v", i, indirectM1[i], predicted[i%10])
		}
	}
}

func TestAssembleMediatorInteractionEmptyData(t *testing.T) {
	svc := NewEffectsService(nil)

	_, err := svc.AssembleMediatorInteraction(context.Background(), MediatorInteractionRequest{
		Data:           table.New(),
		Mediator1Model: &fakeModel{},
		Mediator2Model: &fakeModel{},
		OutcomeModel:   &fakeModel{},
		Exposure:       "E",
		Mediator1:      "M",
		Mediator2:      "M2",
		Config:         testConfig(10),
	})
	if !errors.Is(err, core.ErrEmptyData) {
		t.Fatalf("Expected empty-data error, got %v", err)
	}
}
