package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"meridian/internal/domain/models"
	"meridian/internal/domain/services/flowengine"
)

func newTestFlowRuntime() *FlowRuntime {
	return NewFlowRuntime(nil, nil, nil, nil, nil)
}

// fakeFlowRunRepo is an in-memory repositories.FlowRunRepository.
type fakeFlowRunRepo struct {
	byID map[string]*models.FlowRun
}

func newFakeFlowRunRepo() *fakeFlowRunRepo { return &fakeFlowRunRepo{byID: map[string]*models.FlowRun{}} }

func (f *fakeFlowRunRepo) Create(ctx context.Context, run *models.FlowRun) error {
	f.byID[run.ID] = run
	return nil
}
func (f *fakeFlowRunRepo) GetByID(ctx context.Context, id string) (*models.FlowRun, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}
func (f *fakeFlowRunRepo) Update(ctx context.Context, run *models.FlowRun) error {
	f.byID[run.ID] = run
	return nil
}
func (f *fakeFlowRunRepo) List(ctx context.Context, page, pageSize int) ([]*models.FlowRun, int, error) {
	return nil, 0, nil
}
func (f *fakeFlowRunRepo) ListStalled(ctx context.Context, olderThanSeconds int) ([]*models.FlowRun, error) {
	return nil, nil
}

// fakeFlowStepRunRepo is an in-memory repositories.FlowStepRunRepository
// whose ListByFlowRun ignores flowRunID and returns every row created,
// sufficient for a single-flow rollup test.
type fakeFlowStepRunRepo struct {
	rows []*models.FlowStepRun
}

func (f *fakeFlowStepRunRepo) Create(ctx context.Context, step *models.FlowStepRun) error {
	f.rows = append(f.rows, step)
	return nil
}
func (f *fakeFlowStepRunRepo) Update(ctx context.Context, step *models.FlowStepRun) error { return nil }
func (f *fakeFlowStepRunRepo) GetByID(ctx context.Context, id string) (*models.FlowStepRun, error) {
	return nil, errors.New("not found")
}
func (f *fakeFlowStepRunRepo) ListByFlowRun(ctx context.Context, flowRunID string) ([]*models.FlowStepRun, error) {
	return f.rows, nil
}

// fakeLLMRequestUsageRepo is an in-memory repositories.LLMRequestRepository
// whose SumUsageForStep returns a fixed (tokens, cost) pair per step id.
type fakeLLMRequestUsageRepo struct {
	usageByStep map[string][2]float64 // [tokens, cost]
}

func (f *fakeLLMRequestUsageRepo) Create(ctx context.Context, req *models.LLMRequest) error { return nil }
func (f *fakeLLMRequestUsageRepo) Update(ctx context.Context, req *models.LLMRequest) error { return nil }
func (f *fakeLLMRequestUsageRepo) GetByID(ctx context.Context, id string) (*models.LLMRequest, error) {
	return nil, errors.New("not found")
}
func (f *fakeLLMRequestUsageRepo) ListByStepRun(ctx context.Context, stepRunID string) ([]*models.LLMRequest, error) {
	return nil, nil
}
func (f *fakeLLMRequestUsageRepo) SumUsageForStep(ctx context.Context, stepRunID string) (int, float64, error) {
	u, ok := f.usageByStep[stepRunID]
	if !ok {
		return 0, 0, nil
	}
	return int(u[0]), u[1], nil
}

func TestFanOut_PreservesInputOrder(t *testing.T) {
	f := newTestFlowRuntime()

	inputs := make([]flowengine.FlowContext, 20)
	for i := range inputs {
		inputs[i] = flowengine.FlowContext{"n": i}
	}

	spec := flowengine.FanOutSpec{
		SubFlowName: "test-subflow",
		Inputs:      inputs,
		MaxParallel: 4,
		Run: func(ctx context.Context, index int, input flowengine.FlowContext) (flowengine.FlowContext, string, error) {
			// Deliberately no artificial delay skew needed: results must be
			// placed at their input index regardless of goroutine finish order.
			return flowengine.FlowContext{"doubled": input["n"].(int) * 2}, "", nil
		},
	}

	results, err := f.FanOut(context.Background(), "flow-1", spec)
	if err != nil {
		t.Fatalf("FanOut returned error: %v", err)
	}
	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has Index=%d, want %d", i, r.Index, i)
		}
		if r.Err != nil {
			t.Errorf("result %d: unexpected error: %v", i, r.Err)
		}
		want := i * 2
		if got := r.Outputs["doubled"].(int); got != want {
			t.Errorf("result %d: doubled = %d, want %d", i, got, want)
		}
	}
}

func TestFanOut_ToleratesPartialFailure(t *testing.T) {
	f := newTestFlowRuntime()

	inputs := []flowengine.FlowContext{{"n": 0}, {"n": 1}, {"n": 2}}
	spec := flowengine.FanOutSpec{
		SubFlowName: "test-subflow",
		Inputs:      inputs,
		MaxParallel: 2,
		Run: func(ctx context.Context, index int, input flowengine.FlowContext) (flowengine.FlowContext, string, error) {
			if index == 1 {
				return nil, "", errors.New("child 1 blew up")
			}
			return flowengine.FlowContext{"ok": true}, "", nil
		},
	}

	results, err := f.FanOut(context.Background(), "flow-1", spec)
	if err != nil {
		t.Fatalf("expected FanOut to tolerate one of three children failing, got: %v", err)
	}
	if results[1].Err == nil {
		t.Error("expected result[1] to carry the child's error")
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("expected the two succeeding children to carry no error")
	}
}

func TestFanOut_FailsWhenAllChildrenFail(t *testing.T) {
	f := newTestFlowRuntime()

	inputs := []flowengine.FlowContext{{"n": 0}, {"n": 1}}
	spec := flowengine.FanOutSpec{
		SubFlowName: "test-subflow",
		Inputs:      inputs,
		MaxParallel: 2,
		Run: func(ctx context.Context, index int, input flowengine.FlowContext) (flowengine.FlowContext, string, error) {
			return nil, "", fmt.Errorf("child %d failed", index)
		},
	}

	results, err := f.FanOut(context.Background(), "flow-1", spec)
	if err == nil {
		t.Fatal("expected FanOut to fail when every child fails")
	}
	if len(results) != len(inputs) {
		t.Fatalf("expected results still populated for all %d inputs, got %d", len(inputs), len(results))
	}
	for i, r := range results {
		if r.Err == nil {
			t.Errorf("result %d: expected error to be carried even though FanOut failed overall", i)
		}
	}
}

func TestFanOut_EmptyInputsSucceeds(t *testing.T) {
	f := newTestFlowRuntime()

	spec := flowengine.FanOutSpec{
		SubFlowName: "test-subflow",
		Inputs:      nil,
		Run: func(ctx context.Context, index int, input flowengine.FlowContext) (flowengine.FlowContext, string, error) {
			t.Fatal("Run should never be called with no inputs")
			return nil, "", nil
		},
	}

	results, err := f.FanOut(context.Background(), "flow-1", spec)
	if err != nil {
		t.Fatalf("expected no error for empty inputs, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestComplete_RollsUpTokensAndCostFromLLMRequests(t *testing.T) {
	runs := newFakeFlowRunRepo()
	run := &models.FlowRun{ID: "flow-1", Status: models.FlowRunRunning}
	runs.byID["flow-1"] = run

	steps := &fakeFlowStepRunRepo{rows: []*models.FlowStepRun{
		{ID: "step-1", FlowRunID: "flow-1"},
		{ID: "step-2", FlowRunID: "flow-1"},
	}}
	requests := &fakeLLMRequestUsageRepo{usageByStep: map[string][2]float64{
		"step-1": {100, 0.50},
		"step-2": {250, 1.25},
	}}

	f := NewFlowRuntime(runs, steps, requests, nil, nil)

	if err := f.Complete(context.Background(), "flow-1", "completed", nil); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	if run.TotalTokens != 350 {
		t.Errorf("TotalTokens = %d, want 350", run.TotalTokens)
	}
	if run.TotalCost != 1.75 {
		t.Errorf("TotalCost = %v, want 1.75", run.TotalCost)
	}
	if run.Status != models.FlowRunCompleted {
		t.Errorf("Status = %v, want %v", run.Status, models.FlowRunCompleted)
	}
	if run.CompletedAt == nil {
		t.Error("expected CompletedAt to be stamped")
	}
}
