package job

import (
	"context"
	"testing"

	"meridian/internal/domain/models"
	"meridian/internal/domain/services/flowengine"
)

// fakeFlowRuns is an in-memory repositories.FlowRunRepository; only the
// methods the reconciler exercises are meaningfully implemented.
type fakeFlowRuns struct {
	stalled []*models.FlowRun
}

func (f *fakeFlowRuns) Create(ctx context.Context, run *models.FlowRun) error { return nil }
func (f *fakeFlowRuns) GetByID(ctx context.Context, id string) (*models.FlowRun, error) {
	for _, r := range f.stalled {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}
func (f *fakeFlowRuns) Update(ctx context.Context, run *models.FlowRun) error { return nil }
func (f *fakeFlowRuns) List(ctx context.Context, page, pageSize int) ([]*models.FlowRun, int, error) {
	return nil, 0, nil
}
func (f *fakeFlowRuns) ListStalled(ctx context.Context, olderThanSeconds int) ([]*models.FlowRun, error) {
	return f.stalled, nil
}

// fakeReconcilerRuntime implements flowengine.FlowRuntime, recording every
// Complete/Cancel call the reconciler makes.
type fakeReconcilerRuntime struct {
	completed []string
	cancelled []string
	completeErr error
}

func (r *fakeReconcilerRuntime) StartFlow(ctx context.Context, flowName, mode string, userID *string, inputs flowengine.FlowContext, totalSteps int) (string, error) {
	return "", nil
}
func (r *fakeReconcilerRuntime) RunStep(ctx context.Context, flowRunID string, step flowengine.Step, flowCtx flowengine.FlowContext) (flowengine.FlowContext, error) {
	return nil, nil
}
func (r *fakeReconcilerRuntime) FanOut(ctx context.Context, flowRunID string, spec flowengine.FanOutSpec) ([]flowengine.FanOutResult, error) {
	return nil, nil
}
func (r *fakeReconcilerRuntime) Complete(ctx context.Context, flowRunID string, status string, errMessage *string) error {
	r.completed = append(r.completed, flowRunID)
	return r.completeErr
}
func (r *fakeReconcilerRuntime) Cancel(ctx context.Context, flowRunID string) error {
	r.cancelled = append(r.cancelled, flowRunID)
	return nil
}

func TestReconciler_Tick_MarksStalledRunAndOwningUnitFailed(t *testing.T) {
	runs := &fakeFlowRuns{stalled: []*models.FlowRun{
		{ID: "run-1", Status: models.FlowRunRunning},
	}}
	units := newFakeUnits()
	unit := &models.Unit{ID: "unit-1", Status: models.UnitInProgress, FlowRunID: strPtr("run-1")}
	units.byID[unit.ID] = unit

	runtime := &fakeReconcilerRuntime{}
	rec := &Reconciler{Runs: runs, Units: units, Runtime: runtime}

	count, err := rec.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reconciled unit, got %d", count)
	}
	if unit.Status != models.UnitFailed {
		t.Errorf("unit.Status = %v, want %v", unit.Status, models.UnitFailed)
	}
	if len(runtime.completed) != 1 || runtime.completed[0] != "run-1" {
		t.Errorf("expected Runtime.Complete to be called for run-1, got %v", runtime.completed)
	}
	if len(runtime.cancelled) != 1 || runtime.cancelled[0] != "run-1" {
		t.Errorf("expected Runtime.Cancel to be called for run-1, got %v", runtime.cancelled)
	}
}

func TestReconciler_Tick_SkipsAlreadyTerminalRuns(t *testing.T) {
	runs := &fakeFlowRuns{stalled: []*models.FlowRun{
		{ID: "run-1", Status: models.FlowRunCompleted},
	}}
	units := newFakeUnits()
	runtime := &fakeReconcilerRuntime{}
	rec := &Reconciler{Runs: runs, Units: units, Runtime: runtime}

	count, err := rec.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 reconciled runs for an already-terminal flow, got %d", count)
	}
	if len(runtime.completed) != 0 {
		t.Error("expected Runtime.Complete to never be called for an already-terminal run")
	}
}

func TestReconciler_Tick_LeavesAlreadyTerminalUnitAlone(t *testing.T) {
	runs := &fakeFlowRuns{stalled: []*models.FlowRun{
		{ID: "run-1", Status: models.FlowRunRunning},
	}}
	units := newFakeUnits()
	unit := &models.Unit{ID: "unit-1", Status: models.UnitCompleted, FlowRunID: strPtr("run-1")}
	units.byID[unit.ID] = unit

	runtime := &fakeReconcilerRuntime{}
	rec := &Reconciler{Runs: runs, Units: units, Runtime: runtime}

	count, err := rec.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 reconciled units when the owning unit is already completed, got %d", count)
	}
	if unit.Status != models.UnitCompleted {
		t.Errorf("expected completed unit status to be left alone, got %v", unit.Status)
	}
}

func strPtr(s string) *string { return &s }
