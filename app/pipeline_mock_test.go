package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocre/adapters/rng"
	"gocre/domain/params"
	"gocre/domain/run"
	"gocre/domain/sample"
	"gocre/internal/synthetic"
	"gocre/ports"
)

// Mock implementations for testing

type MockRuleLearner struct {
	mock.Mock
}

func (m *MockRuleLearner) FitBagged(ctx context.Context, cov *sample.Covariates, target []float64, spec ports.EnsembleSpec, seed int64) ([]*ports.TreeNode, error) {
	args := m.Called(ctx, cov, target, spec, seed)
	trees, _ := args.Get(0).([]*ports.TreeNode)
	return trees, args.Error(1)
}

func (m *MockRuleLearner) FitBoosted(ctx context.Context, cov *sample.Covariates, target []float64, spec ports.EnsembleSpec, seed int64) ([]*ports.TreeNode, error) {
	args := m.Called(ctx, cov, target, spec, seed)
	trees, _ := args.Get(0).([]*ports.TreeNode)
	return trees, args.Error(1)
}

type MockRunLedger struct {
	mock.Mock
	statuses []run.Status
}

func (m *MockRunLedger) SaveRun(ctx context.Context, record *run.Record) error {
	args := m.Called(ctx, record)
	m.statuses = append(m.statuses, record.Status)
	return args.Error(0)
}

type MockEstimatorRegistry struct {
	mock.Mock
}

func (m *MockEstimatorRegistry) Estimator(method string) (ports.ITEEstimatorPort, error) {
	args := m.Called(method)
	est, _ := args.Get(0).(ports.ITEEstimatorPort)
	return est, args.Error(1)
}

func (m *MockEstimatorRegistry) Methods() []string {
	args := m.Called()
	methods, _ := args.Get(0).([]string)
	return methods
}

// effectRequest builds a request whose observations carry precomputed unit
// effects, so no estimator is consulted.
func effectRequest(t *testing.T) Request {
	t.Helper()
	ds, err := synthetic.Generate(synthetic.Config{
		Rows: 60, Covariates: 6, Seed: 11, EffectSize: 3, Noise: 0.1,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ds.Observations.ITE = ds.TrueITE

	hyper := params.DefaultHyper()
	hyper.NodeSize = 5
	return Request{Observations: ds.Observations, Method: params.DefaultMethod(), Hyper: hyper}
}

func TestPipelineMarksRunFailedWhenLearnerFails(t *testing.T) {
	learner := new(MockRuleLearner)
	ledger := new(MockRunLedger)
	registry := new(MockEstimatorRegistry)

	ledger.On("SaveRun", mock.Anything, mock.Anything).Return(nil)
	learner.On("FitBagged", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("fit exploded"))

	pipeline := NewPipeline(learner, registry, rng.New(), ledger)
	record, err := pipeline.Execute(context.Background(), effectRequest(t))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stage discover")
	assert.NotNil(t, record)
	assert.Equal(t, run.StatusFailed, record.Status)
	assert.Contains(t, record.Error, "fit exploded")

	// The failed state must reach the ledger, not just the returned record.
	assert.Equal(t, run.StatusFailed, ledger.statuses[len(ledger.statuses)-1])

	learner.AssertExpectations(t)
	learner.AssertNotCalled(t, "FitBoosted",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	registry.AssertNotCalled(t, "Estimator", mock.Anything)
}

func TestPipelineStopsWhenInitialSaveFails(t *testing.T) {
	learner := new(MockRuleLearner)
	ledger := new(MockRunLedger)
	registry := new(MockEstimatorRegistry)

	ledger.On("SaveRun", mock.Anything, mock.Anything).Return(errors.New("ledger unavailable"))

	pipeline := NewPipeline(learner, registry, rng.New(), ledger)
	record, err := pipeline.Execute(context.Background(), effectRequest(t))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "persisting run")
	assert.Nil(t, record)
	learner.AssertNotCalled(t, "FitBagged",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipelineSurfacesStageSaveFailure(t *testing.T) {
	learner := new(MockRuleLearner)
	ledger := new(MockRunLedger)
	registry := new(MockEstimatorRegistry)

	// The initial save succeeds, the save after the split stage does not.
	ledger.On("SaveRun", mock.Anything, mock.Anything).Return(nil).Once()
	ledger.On("SaveRun", mock.Anything, mock.Anything).Return(errors.New("write refused")).Once()

	pipeline := NewPipeline(learner, registry, rng.New(), ledger)
	record, err := pipeline.Execute(context.Background(), effectRequest(t))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stage split: persisting run")
	assert.NotNil(t, record)

	// A ledger outage is not a pipeline failure. The run is not marked
	// failed; the write error is surfaced as-is.
	assert.Equal(t, run.StatusRunning, record.Status)
	ledger.AssertExpectations(t)
}
