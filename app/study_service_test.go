package app

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gomediate/domain/core"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	"gomediate/ports"
)

// Mock implementations for testing
type MockFitter struct {
	mock.Mock
}

func (m *MockFitter) Fit(ctx context.Context, data *table.Table, spec ports.ModelSpec) (ports.FittedModel, error) {
	args := m.Called(ctx, data, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.FittedModel), args.Error(1)
}

type MockStudyStore struct {
	mock.Mock
	saved []*mediation.Study
}

func (m *MockStudyStore) SaveStudy(ctx context.Context, study *mediation.Study) error {
	args := m.Called(ctx, study)
	m.saved = append(m.saved, study)
	return args.Error(0)
}

func (m *MockStudyStore) GetStudy(ctx context.Context, id core.StudyID) (*mediation.Study, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mediation.Study), args.Error(1)
}

func (m *MockStudyStore) ListStudies(ctx context.Context, limit, offset int) ([]ports.StudySummary, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]ports.StudySummary), args.Error(1)
}

func newStudyService(fitter *MockFitter, store *MockStudyStore) *StudyService {
	return NewStudyService(NewEffectsService(nil), fitter, store, nil)
}

func TestStudyServiceRunSimple(t *testing.T) {
	data := mediationDataset(t, 300)
	fitter := &MockFitter{}
	store := &MockStudyStore{}

	fitter.On("Fit", mock.Anything, mock.AnythingOfType("*table.Table"), mock.AnythingOfType("ports.ModelSpec")).Return(&fakeModel{}, nil)
	store.On("SaveStudy", mock.Anything, mock.AnythingOfType("*mediation.Study")).Return(nil)

	svc := newStudyService(fitter, store)
	cfg := testConfig(10)

	study, err := svc.RunSimple(context.Background(), StudyRequest{
		Data:        data,
		DatasetName: "trial",
		Variables:   mediation.Variables{Exposure: "E", Mediator: "M", Outcome: "O"},
		Config:      cfg,
	})

	assert.NoError(t, err)
	assert.Equal(t, mediation.KindSimple, study.Kind)
	assert.Equal(t, "trial", study.DatasetName)
	assert.Len(t, study.Tables, 4)
	assert.Equal(t, mediation.TableMediatorByExposure, study.Tables[0].Name)
	assert.Equal(t, mediation.TableOutcomeByPredictedMediator, study.Tables[3].Name)
	for _, named := range study.Tables {
		assert.Equal(t, 10, named.Table.NumRows(), "table %s", named.Name)
	}

	assert.NotNil(t, study.Figure)
	assert.Len(t, study.Figure.Panels, 4)
	assert.NotEmpty(t, study.Figure.Style.Palette)

	fitter.AssertNumberOfCalls(t, "Fit", 2)
	store.AssertExpectations(t)
}

func TestStudyServiceRunSimpleMissingVariable(t *testing.T) {
	fitter := &MockFitter{}
	store := &MockStudyStore{}
	svc := newStudyService(fitter, store)

	_, err := svc.RunSimple(context.Background(), StudyRequest{
		Data:      mediationDataset(t, 50),
		Variables: mediation.Variables{Exposure: "E", Outcome: "O"},
		Config:    mediation.DefaultConfig(),
	})

	assert.Error(t, err)
	assert.True(t, core.IsValidationError(err))
	fitter.AssertNotCalled(t, "Fit")
	store.AssertNotCalled(t, "SaveStudy")
}

func TestStudyServiceUnknownVariable(t *testing.T) {
	fitter := &MockFitter{}
	store := &MockStudyStore{}
	svc := newStudyService(fitter, store)

	_, err := svc.RunSimple(context.Background(), StudyRequest{
		Data:      mediationDataset(t, 50),
		Variables: mediation.Variables{Exposure: "E", Mediator: "absent", Outcome: "O"},
		Config:    mediation.DefaultConfig(),
	})

	assert.True(t, core.IsLookupError(err))
	fitter.AssertNotCalled(t, "Fit")
}

func TestStudyServiceDropsIncompleteRows(t *testing.T) {
	data := table.New()
	_ = data.AddColumn("E", []float64{0, 1, 2, 3, 4, 5})
	_ = data.AddColumn("M", []float64{1, math.NaN(), 2, 3, math.NaN(), 4})
	_ = data.AddColumn("O", []float64{2, 3, 4, 5, 6, 7})
	_ = data.AddColumn("site", []float64{1, 1, 2, 2, 3, 3})

	fitter := &MockFitter{}
	store := &MockStudyStore{}
	fitter.On("Fit", mock.Anything, mock.AnythingOfType("*table.Table"), mock.AnythingOfType("ports.ModelSpec")).Return(&fakeModel{}, nil)
	store.On("SaveStudy", mock.Anything, mock.AnythingOfType("*mediation.Study")).Return(nil)

	svc := newStudyService(fitter, store)
	_, err := svc.RunSimple(context.Background(), StudyRequest{
		Data:      data,
		Variables: mediation.Variables{Exposure: "E", Mediator: "M", Outcome: "O", GroupBy: "site"},
		Config:    testConfig(10),
	})
	assert.NoError(t, err)

	fitted := fitter.Calls[0].Arguments.Get(1).(*table.Table)
	assert.Equal(t, 4, fitted.NumRows())
	assert.Equal(t, []string{"E", "M", "O", "site"}, fitted.Names())
	site, _ := fitted.Column("site")
	assert.Equal(t, []float64{1, 2, 2, 3}, site)
}

func TestStudyServiceRejectsAllMissingRows(t *testing.T) {
	data := table.New()
	_ = data.AddColumn("E", []float64{math.NaN(), 1})
	_ = data.AddColumn("M", []float64{2, math.NaN()})
	_ = data.AddColumn("O", []float64{3, 4})

	fitter := &MockFitter{}
	store := &MockStudyStore{}
	svc := newStudyService(fitter, store)

	_, err := svc.RunSimple(context.Background(), StudyRequest{
		Data:      data,
		Variables: mediation.Variables{Exposure: "E", Mediator: "M", Outcome: "O"},
		Config:    mediation.DefaultConfig(),
	})

	assert.ErrorIs(t, err, core.ErrEmptyData)
	fitter.AssertNotCalled(t, "Fit")
}

func TestStudyServiceRunExposureInteraction(t *testing.T) {
	data := mediationDataset(t, 300)
	fitter := &MockFitter{}
	store := &MockStudyStore{}

	fitter.On("Fit", mock.Anything, mock.AnythingOfType("*table.Table"), mock.AnythingOfType("ports.ModelSpec")).Return(&fakeModel{}, nil)
	store.On("SaveStudy", mock.Anything, mock.AnythingOfType("*mediation.Study")).Return(nil)

	svc := newStudyService(fitter, store)
	cfg := testConfig(10)

	study, err := svc.RunExposureInteraction(context.Background(), StudyRequest{
		Data:      data,
		Variables: mediation.Variables{Exposure: "E", Exposure2: "E2", Mediator: "M", Outcome: "O"},
		Config:    cfg,
	})

	assert.NoError(t, err)
	assert.Equal(t, mediation.KindExposureInteraction, study.Kind)
	assert.Len(t, study.Tables, 4)
	assert.Equal(t, mediation.TableMediatorByExposures, study.Tables[0].Name)
	// product tables carry one sweep block per exposure level
	assert.Equal(t, 30, study.Tables[0].Table.NumRows())
	fitter.AssertNumberOfCalls(t, "Fit", 2)
}

func TestStudyServiceRunMediatorInteraction(t *testing.T) {
	data := mediationDataset(t, 300)
	fitter := &MockFitter{}
	store := &MockStudyStore{}

	fitter.On("Fit", mock.Anything, mock.AnythingOfType("*table.Table"), mock.AnythingOfType("ports.ModelSpec")).Return(&fakeModel{}, nil)
	store.On("SaveStudy", mock.Anything, mock.AnythingOfType("*mediation.Study")).Return(nil)

	svc := newStudyService(fitter, store)
	cfg := testConfig(10)

	study, err := svc.RunMediatorInteraction(context.Background(), StudyRequest{
		Data:      data,
		Variables: mediation.Variables{Exposure: "E", Mediator: "M", Mediator2: "M2", Outcome: "O"},
		Config:    cfg,
	})

	assert.NoError(t, err)
	assert.Equal(t, mediation.KindMediatorInteraction, study.Kind)
	assert.Len(t, study.Tables, 5)
	assert.NotNil(t, study.Figure)
	assert.Len(t, study.Figure.Panels, 5)
	fitter.AssertNumberOfCalls(t, "Fit", 3)
}

func TestStudyServiceRunDispatch(t *testing.T) {
	data := mediationDataset(t, 300)
	fitter := &MockFitter{}
	store := &MockStudyStore{}

	fitter.On("Fit", mock.Anything, mock.AnythingOfType("*table.Table"), mock.AnythingOfType("ports.ModelSpec")).Return(&fakeModel{}, nil)
	store.On("SaveStudy", mock.Anything, mock.AnythingOfType("*mediation.Study")).Return(nil)

	svc := newStudyService(fitter, store)
	cfg := testConfig(10)

	study, err := svc.Run(context.Background(), mediation.KindSimple, StudyRequest{
		Data:      data,
		Variables: mediation.Variables{Exposure: "E", Mediator: "M", Outcome: "O"},
		Config:    cfg,
	})
	assert.NoError(t, err)
	assert.Equal(t, mediation.KindSimple, study.Kind)

	_, err = svc.Run(context.Background(), mediation.Kind("bogus"), StudyRequest{Data: data})
	assert.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}

func TestStudyServiceSaveFailure(t *testing.T) {
	data := mediationDataset(t, 300)
	fitter := &MockFitter{}
	store := &MockStudyStore{}

	fitter.On("Fit", mock.Anything, mock.AnythingOfType("*table.Table"), mock.AnythingOfType("ports.ModelSpec")).Return(&fakeModel{}, nil)
	saveErr := errors.New("connection lost")
	store.On("SaveStudy", mock.Anything, mock.AnythingOfType("*mediation.Study")).Return(saveErr)

	svc := newStudyService(fitter, store)
	cfg := testConfig(10)

	_, err := svc.RunSimple(context.Background(), StudyRequest{
		Data:      data,
		Variables: mediation.Variables{Exposure: "E", Mediator: "M", Outcome: "O"},
		Config:    cfg,
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, saveErr)
}

func TestStudyServiceFitFailure(t *testing.T) {
	data := mediationDataset(t, 300)
	fitter := &MockFitter{}
	store := &MockStudyStore{}

	fitErr := errors.New("singular design")
	fitter.On("Fit", mock.Anything, mock.AnythingOfType("*table.Table"), mock.AnythingOfType("ports.ModelSpec")).Return(nil, fitErr)

	svc := newStudyService(fitter, store)

	_, err := svc.RunSimple(context.Background(), StudyRequest{
		Data:      data,
		Variables: mediation.Variables{Exposure: "E", Mediator: "M", Outcome: "O"},
		Config:    mediation.DefaultConfig(),
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, fitErr)
	store.AssertNotCalled(t, "SaveStudy")
}

func TestStudyServiceGetAndList(t *testing.T) {
	fitter := &MockFitter{}
	store := &MockStudyStore{}
	svc := newStudyService(fitter, store)

	id := core.NewStudyID()
	want := &mediation.Study{ID: id, Kind: mediation.KindSimple}
	store.On("GetStudy", mock.Anything, id).Return(want, nil)
	store.On("ListStudies", mock.Anything, 10, 0).Return([]ports.StudySummary{{ID: id}}, nil)

	got, err := svc.GetStudy(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, want, got)

	summaries, err := svc.ListStudies(context.Background(), 10, 0)
	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	store.AssertExpectations(t)
}
