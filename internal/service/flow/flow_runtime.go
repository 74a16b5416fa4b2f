package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
	"meridian/internal/domain/services/flowengine"
)

const (
	defaultMaxParallel    = 3
	defaultHeartbeatEvery = 10 * time.Second
)

// FlowRuntime implements flowengine.FlowRuntime. It owns the FlowRun row's
// lifecycle: allocation, sequential-step progress/heartbeat tracking,
// bounded-concurrency fan-out, and terminal completion with a cost/token
// roll-up from the LLMRequest audit log (spec.md §4.3, §9).
type FlowRuntime struct {
	runs     repositories.FlowRunRepository
	steps    repositories.FlowStepRunRepository
	requests repositories.LLMRequestRepository
	stepRT   flowengine.StepRuntime
	logger   *slog.Logger

	mu        sync.Mutex
	cancelled map[string]chan struct{}
}

// NewFlowRuntime wires a FlowRuntime from its repositories and the
// StepRuntime used to drive each sequential step.
func NewFlowRuntime(
	runs repositories.FlowRunRepository,
	steps repositories.FlowStepRunRepository,
	requests repositories.LLMRequestRepository,
	stepRT flowengine.StepRuntime,
	logger *slog.Logger,
) *FlowRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowRuntime{
		runs:      runs,
		steps:     steps,
		requests:  requests,
		stepRT:    stepRT,
		logger:    logger,
		cancelled: make(map[string]chan struct{}),
	}
}

// StartFlow allocates a FlowRun row in status=running and returns its id.
func (f *FlowRuntime) StartFlow(ctx context.Context, flowName string, mode string, userID *string, inputs flowengine.FlowContext, totalSteps int) (string, error) {
	now := time.Now()
	run := &models.FlowRun{
		ID:            uuid.NewString(),
		FlowName:      flowName,
		ExecutionMode: models.ExecutionMode(mode),
		UserID:        userID,
		Status:        models.FlowRunRunning,
		Inputs:        map[string]interface{}(inputs),
		TotalSteps:    totalSteps,
		StartedAt:     &now,
		LastHeartbeat: &now,
		CreatedAt:     now,
	}
	if err := f.runs.Create(ctx, run); err != nil {
		return "", fmt.Errorf("%w: create flow run: %v", domain.ErrInternal, err)
	}

	f.mu.Lock()
	f.cancelled[run.ID] = make(chan struct{})
	f.mu.Unlock()

	return run.ID, nil
}

// RunStep runs one sequential step, bumping step_progress/current_step and
// refreshing the heartbeat on success (spec.md §4.3 "Heartbeat").
func (f *FlowRuntime) RunStep(ctx context.Context, flowRunID string, step flowengine.Step, flowCtx flowengine.FlowContext) (flowengine.FlowContext, error) {
	run, err := f.runs.GetByID(ctx, flowRunID)
	if err != nil {
		return nil, fmt.Errorf("%w: load flow run: %v", domain.ErrInternal, err)
	}

	runCtx := &flowengine.RunContext{
		FlowRunID: flowRunID,
		UserID:    run.UserID,
		Cancel:    f.cancelChan(flowRunID),
	}

	stepOrder := run.StepProgress + 1

	// A background ticker refreshes last_heartbeat while the step runs, so a
	// stalled step is observable from the outside even before it completes
	// (spec.md §4.3 "Progress and heartbeats").
	heartbeatDone := make(chan struct{})
	go f.heartbeatLoop(flowRunID, heartbeatDone)

	merged, err := f.stepRT.RunStep(ctx, flowRunID, stepOrder, step, flowCtx, runCtx)
	close(heartbeatDone)

	if err != nil {
		errMsg := err.Error()
		run.Status = models.FlowRunFailed
		run.ErrorMessage = &errMsg
		if uErr := f.runs.Update(ctx, run); uErr != nil {
			f.logger.Error("flow runtime: persist failed flow run", "error", uErr, "flow_run_id", flowRunID)
		}
		return nil, err
	}

	now := time.Now()
	stepName := step.Name()
	run.CurrentStep = &stepName
	run.StepProgress = stepOrder
	run.RecomputeProgress()
	run.LastHeartbeat = &now
	run.Outputs = map[string]interface{}(merged)
	if err := f.runs.Update(ctx, run); err != nil {
		f.logger.Error("flow runtime: persist step progress", "error", err, "flow_run_id", flowRunID)
	}

	return merged, nil
}

// FanOut runs spec.Run for every input under a semaphore-bounded
// concurrency cap, collecting results in input order regardless of
// completion order (spec.md §4.3 "Ordering guarantee"), grounded in the
// teacher's ExecuteParallel pattern but bounded rather than unbounded.
func (f *FlowRuntime) FanOut(ctx context.Context, flowRunID string, spec flowengine.FanOutSpec) ([]flowengine.FanOutResult, error) {
	maxParallel := spec.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}

	results := make([]flowengine.FanOutResult, len(spec.Inputs))
	sem := semaphore.NewWeighted(int64(maxParallel))
	var wg sync.WaitGroup

	for i, input := range spec.Inputs {
		i, input := i, input
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = flowengine.FanOutResult{Index: i, Err: fmt.Errorf("%w: %v", domain.ErrCancelled, err)}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			outputs, childID, err := spec.Run(ctx, i, input)
			results[i] = flowengine.FanOutResult{
				Index:          i,
				Outputs:        outputs,
				ChildFlowRunID: childID,
				Err:            err,
			}
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		}
	}
	if succeeded == 0 && len(results) > 0 {
		return results, fmt.Errorf("%w: all %d fan-out children of %q failed", domain.ErrInternal, len(results), spec.SubFlowName)
	}

	childIDs := make([]string, 0, len(results))
	for _, r := range results {
		if r.ChildFlowRunID != "" {
			childIDs = append(childIDs, r.ChildFlowRunID)
		}
	}
	if len(childIDs) > 0 {
		if run, err := f.runs.GetByID(ctx, flowRunID); err == nil {
			if run.FlowMetadata == nil {
				run.FlowMetadata = map[string]interface{}{}
			}
			run.FlowMetadata["child_flow_runs"] = childIDs
			if err := f.runs.Update(ctx, run); err != nil {
				f.logger.Error("flow runtime: persist child flow run ids", "error", err, "flow_run_id", flowRunID)
			}
		}
	}

	return results, nil
}

// Complete transitions flowRunID to a terminal status, rolling up total
// tokens/cost from every LLMRequest its steps produced (spec.md §9
// "durable audit as the source of truth for cost").
func (f *FlowRuntime) Complete(ctx context.Context, flowRunID string, status string, errMessage *string) error {
	run, err := f.runs.GetByID(ctx, flowRunID)
	if err != nil {
		return fmt.Errorf("%w: load flow run: %v", domain.ErrInternal, err)
	}

	tokens, cost, err := f.rollupUsage(ctx, flowRunID)
	if err != nil {
		f.logger.Error("flow runtime: rollup usage", "error", err, "flow_run_id", flowRunID)
	}

	now := time.Now()
	run.Status = models.FlowRunStatus(status)
	run.ErrorMessage = errMessage
	run.CompletedAt = &now
	run.TotalTokens = tokens
	run.TotalCost = cost
	if run.StartedAt != nil {
		ms := now.Sub(*run.StartedAt).Milliseconds()
		run.ExecutionTimeMs = &ms
	}
	if err := f.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("%w: persist terminal flow run: %v", domain.ErrInternal, err)
	}

	f.mu.Lock()
	delete(f.cancelled, flowRunID)
	f.mu.Unlock()

	return nil
}

// rollupUsage sums tokens/cost across every LLMRequest produced by every
// step of flowRunID.
func (f *FlowRuntime) rollupUsage(ctx context.Context, flowRunID string) (int, float64, error) {
	steps, err := f.steps.ListByFlowRun(ctx, flowRunID)
	if err != nil {
		return 0, 0, err
	}
	var tokens int
	var cost float64
	for _, s := range steps {
		t, c, err := f.requests.SumUsageForStep(ctx, s.ID)
		if err != nil {
			return tokens, cost, err
		}
		tokens += t
		cost += c
	}
	return tokens, cost, nil
}

// Cancel signals cancellation of an in-flight flow. Steps observe it
// between LLM calls via RunContext.Cancelled.
func (f *FlowRuntime) Cancel(ctx context.Context, flowRunID string) error {
	ch := f.cancelChan(flowRunID)
	select {
	case <-ch:
	default:
		close(ch)
	}
	return nil
}

// heartbeatLoop refreshes flowRunID's last_heartbeat on a fixed interval
// until done fires. Best-effort: a failed update is logged, not fatal,
// since the next tick (or the step's own completion update) will catch up.
func (f *FlowRuntime) heartbeatLoop(flowRunID string, done <-chan struct{}) {
	ticker := time.NewTicker(defaultHeartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			run, err := f.runs.GetByID(context.Background(), flowRunID)
			if err != nil {
				f.logger.Error("flow runtime: heartbeat load", "error", err, "flow_run_id", flowRunID)
				continue
			}
			now := time.Now()
			run.LastHeartbeat = &now
			if err := f.runs.Update(context.Background(), run); err != nil {
				f.logger.Error("flow runtime: heartbeat update", "error", err, "flow_run_id", flowRunID)
			}
		}
	}
}

func (f *FlowRuntime) cancelChan(flowRunID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.cancelled[flowRunID]
	if !ok {
		ch = make(chan struct{})
		f.cancelled[flowRunID] = ch
	}
	return ch
}
