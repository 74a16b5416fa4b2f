// Package flow implements the flow/step execution engine of spec.md
// §4.2-§4.3: a StepRuntime that runs a single Step against a FlowRun,
// validating inputs/outputs and persisting a FlowStepRun audit row, and a
// FlowRuntime that drives a sequence of steps (or a bounded-concurrency
// fan-out of sub-flows) as one FlowRun.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
	"meridian/internal/domain/services/flowengine"
)

// StepRuntime implements flowengine.StepRuntime against the FlowStepRun
// repository.
type StepRuntime struct {
	steps  repositories.FlowStepRunRepository
	logger *slog.Logger
}

// NewStepRuntime creates a StepRuntime.
func NewStepRuntime(steps repositories.FlowStepRunRepository, logger *slog.Logger) *StepRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepRuntime{steps: steps, logger: logger}
}

// RunStep validates step's declared inputs against flowCtx, executes it,
// validates its outputs, and persists the FlowStepRun row end to end
// (spec.md §4.2). A validation failure transitions pending -> failed
// without ever calling Execute, per the spec's invariant that no LLM call
// happens for an input that fails validation.
func (r *StepRuntime) RunStep(ctx context.Context, flowRunID string, stepOrder int, step flowengine.Step, flowCtx flowengine.FlowContext, runCtx *flowengine.RunContext) (flowengine.FlowContext, error) {
	row := &models.FlowStepRun{
		ID:        uuid.NewString(),
		FlowRunID: flowRunID,
		StepName:  step.Name(),
		StepOrder: stepOrder,
		Status:    models.StepPending,
		Inputs:    snapshotInputs(step, flowCtx),
		CreatedAt: time.Now(),
	}

	if missing, ok := flowCtx.RequireKeys(step.InputKeys()...); !ok {
		errMsg := fmt.Sprintf("missing required input %q", missing)
		row.ErrorMessage = &errMsg
		kindStr := string(domain.KindValidationError)
		row.ErrorType = &kindStr
		row.Status = models.StepFailed
		if err := r.steps.Create(ctx, row); err != nil {
			r.logger.Error("step runtime: persist validation failure", "error", err, "step", step.Name())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, errMsg)
	}

	if err := step.ValidateInputs(flowCtx); err != nil {
		errMsg := err.Error()
		row.ErrorMessage = &errMsg
		kindStr := string(domain.KindValidationError)
		row.ErrorType = &kindStr
		row.Status = models.StepFailed
		if cErr := r.steps.Create(ctx, row); cErr != nil {
			r.logger.Error("step runtime: persist validation failure", "error", cErr, "step", step.Name())
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	row.Status = models.StepRunning
	now := time.Now()
	row.StartedAt = &now
	if err := r.steps.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("%w: persist running step row: %v", domain.ErrInternal, err)
	}

	start := time.Now()
	result, execErr := step.Execute(ctx, flowCtx, runCtx)
	execMs := time.Since(start).Milliseconds()

	if execErr != nil {
		return nil, r.finishFailed(ctx, row, execErr, execMs)
	}

	if err := step.ValidateOutputs(result); err != nil {
		return nil, r.finishFailed(ctx, row, fmt.Errorf("%w: %v", domain.ErrValidation, err), execMs)
	}

	completed := time.Now()
	row.Status = models.StepCompleted
	row.Outputs = result.Outputs
	row.StepMetadata = result.Metadata
	row.TokensUsed = result.TokensUsed
	row.CostEstimate = result.CostEstimate
	row.CompletedAt = &completed
	row.ExecutionTimeMs = &execMs
	if len(result.LLMRequestIDs) == 1 {
		row.LLMRequestID = &result.LLMRequestIDs[0]
	}
	if err := r.steps.Update(ctx, row); err != nil {
		r.logger.Error("step runtime: persist completed step", "error", err, "step", step.Name())
	}

	merged := flowCtx.Clone()
	for k, v := range result.Outputs {
		merged[k] = v
	}
	return merged, nil
}

func (r *StepRuntime) finishFailed(ctx context.Context, row *models.FlowStepRun, execErr error, execMs int64) error {
	completed := time.Now()
	kind := domain.ClassifyErr(execErr)
	kindStr := string(kind)
	errMsg := execErr.Error()
	row.Status = models.StepFailed
	row.ErrorType = &kindStr
	row.ErrorMessage = &errMsg
	row.CompletedAt = &completed
	row.ExecutionTimeMs = &execMs
	if err := r.steps.Update(ctx, row); err != nil {
		r.logger.Error("step runtime: persist failed step", "error", err, "step", row.StepName)
	}
	return execErr
}

// snapshotInputs records the subset of flowCtx a step declared as its
// inputs, so the FlowStepRun row's inputs column reflects only what the
// step actually read rather than the whole ambient context.
func snapshotInputs(step flowengine.Step, flowCtx flowengine.FlowContext) map[string]interface{} {
	out := make(map[string]interface{}, len(step.InputKeys()))
	for _, k := range step.InputKeys() {
		if v, ok := flowCtx.Get(k); ok {
			out[k] = v
		}
	}
	return out
}
