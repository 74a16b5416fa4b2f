package flow

import (
	"context"
	"errors"
	"testing"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/services/flowengine"
)

// fakeStepRunRepo is an in-memory repositories.FlowStepRunRepository for
// exercising StepRuntime without a database.
type fakeStepRunRepo struct {
	rows []*models.FlowStepRun
}

func (f *fakeStepRunRepo) Create(ctx context.Context, step *models.FlowStepRun) error {
	f.rows = append(f.rows, step)
	return nil
}

func (f *fakeStepRunRepo) Update(ctx context.Context, step *models.FlowStepRun) error {
	return nil
}

func (f *fakeStepRunRepo) GetByID(ctx context.Context, id string) (*models.FlowStepRun, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStepRunRepo) ListByFlowRun(ctx context.Context, flowRunID string) ([]*models.FlowStepRun, error) {
	return f.rows, nil
}

// fakeStep is a flowengine.Step whose behavior is entirely controlled by
// its fields, so tests can assert the runtime never calls Execute when
// validation should short-circuit it.
type fakeStep struct {
	name           string
	inputKeys      []string
	outputKeys     []string
	validateErr    error
	executeCalled  bool
	executeResult  flowengine.StepResult
	executeErr     error
	validateOutErr error
}

func (s *fakeStep) Name() string             { return s.name }
func (s *fakeStep) InputKeys() []string      { return s.inputKeys }
func (s *fakeStep) OutputKeys() []string     { return s.outputKeys }
func (s *fakeStep) ValidateInputs(ctx flowengine.FlowContext) error {
	return s.validateErr
}
func (s *fakeStep) Execute(ctx context.Context, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.StepResult, error) {
	s.executeCalled = true
	return s.executeResult, s.executeErr
}
func (s *fakeStep) ValidateOutputs(result flowengine.StepResult) error {
	return s.validateOutErr
}

func TestStepRuntime_MissingRequiredInputShortCircuitsExecute(t *testing.T) {
	repo := &fakeStepRunRepo{}
	rt := NewStepRuntime(repo, nil)

	step := &fakeStep{name: "extract_metadata", inputKeys: []string{"source_material"}}
	flowCtx := flowengine.FlowContext{} // source_material deliberately absent

	_, err := rt.RunStep(context.Background(), "flow-1", 1, step, flowCtx, &flowengine.RunContext{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if step.executeCalled {
		t.Error("expected Execute to never be called when a required input is missing")
	}
	if len(repo.rows) != 1 || repo.rows[0].Status != models.StepFailed {
		t.Fatalf("expected exactly one persisted row in status=failed, got %+v", repo.rows)
	}
}

func TestStepRuntime_CustomValidationFailureShortCircuitsExecute(t *testing.T) {
	repo := &fakeStepRunRepo{}
	rt := NewStepRuntime(repo, nil)

	step := &fakeStep{
		name:        "generate_mcqs",
		inputKeys:   []string{"topic"},
		validateErr: errors.New("topic must not be empty"),
	}
	flowCtx := flowengine.FlowContext{"topic": ""}

	_, err := rt.RunStep(context.Background(), "flow-1", 1, step, flowCtx, &flowengine.RunContext{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if step.executeCalled {
		t.Error("expected Execute to never be called when ValidateInputs fails")
	}
}

func TestStepRuntime_SuccessMergesOutputsIntoContext(t *testing.T) {
	repo := &fakeStepRunRepo{}
	rt := NewStepRuntime(repo, nil)

	step := &fakeStep{
		name:      "generate_glossary",
		inputKeys: []string{"topic"},
		executeResult: flowengine.StepResult{
			Outputs:    flowengine.FlowContext{"glossary": []string{"term1", "term2"}},
			TokensUsed: 42,
		},
	}
	flowCtx := flowengine.FlowContext{"topic": "photosynthesis"}

	merged, err := rt.RunStep(context.Background(), "flow-1", 1, step, flowCtx, &flowengine.RunContext{})
	if err != nil {
		t.Fatalf("RunStep returned error: %v", err)
	}
	if !step.executeCalled {
		t.Error("expected Execute to be called when validation passes")
	}
	if _, ok := merged["topic"]; !ok {
		t.Error("expected merged context to retain the original input key")
	}
	if _, ok := merged["glossary"]; !ok {
		t.Error("expected merged context to include the step's declared output")
	}

	var completed *models.FlowStepRun
	for _, r := range repo.rows {
		if r.Status == models.StepCompleted {
			completed = r
		}
	}
	if completed == nil {
		t.Fatal("expected a persisted row in status=completed")
	}
	if completed.TokensUsed != 42 {
		t.Errorf("TokensUsed = %d, want 42", completed.TokensUsed)
	}
}

func TestStepRuntime_ExecuteFailurePersistsErrorKind(t *testing.T) {
	repo := &fakeStepRunRepo{}
	rt := NewStepRuntime(repo, nil)

	step := &fakeStep{
		name:       "generate_image",
		inputKeys:  []string{"prompt"},
		executeErr: domain.ErrRateLimited,
	}
	flowCtx := flowengine.FlowContext{"prompt": "a diagram"}

	_, err := rt.RunStep(context.Background(), "flow-1", 1, step, flowCtx, &flowengine.RunContext{})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited to propagate, got %v", err)
	}

	var failed *models.FlowStepRun
	for _, r := range repo.rows {
		if r.Status == models.StepFailed {
			failed = r
		}
	}
	if failed == nil {
		t.Fatal("expected a persisted row in status=failed")
	}
	if failed.ErrorType == nil || *failed.ErrorType != string(domain.KindRateLimited) {
		t.Errorf("ErrorType = %v, want %q", failed.ErrorType, domain.KindRateLimited)
	}
}
