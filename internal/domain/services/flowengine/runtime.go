package flowengine

import "context"

// StepRuntime executes a single step against a flow run: validates
// Inputs, runs Execute, validates Outputs, and persists the FlowStepRun
// audit row (spec.md §4.2).
type StepRuntime interface {
	// RunStep executes step as the next step of flowRunID at the given
	// 1-based step_order, against flowCtx. It returns the step's outputs
	// (nil on failure) merged into the caller's flow context by the caller.
	RunStep(ctx context.Context, flowRunID string, stepOrder int, step Step, flowCtx FlowContext, runCtx *RunContext) (FlowContext, error)
}

// FanOutSpec describes one bounded-concurrency fan-out invocation: a
// sub-flow run per entry in Inputs, gated by MaxParallel.
type FanOutSpec struct {
	// SubFlowName is the flow_name recorded on each child FlowRun.
	SubFlowName string
	// Inputs is the ordered list of per-child flow contexts. Results are
	// collected in this same index order regardless of completion order
	// (spec.md §4.3 "Ordering guarantee").
	Inputs []FlowContext
	// MaxParallel bounds concurrent children (spec.md §5, default 3).
	MaxParallel int
	// Run executes one child sub-flow end to end and returns its outputs.
	Run func(ctx context.Context, index int, input FlowContext) (FlowContext, string, error)
}

// FanOutResult is the outcome of one fan-out child, always present at its
// input index regardless of success.
type FanOutResult struct {
	Index      int
	Outputs    FlowContext
	ChildFlowRunID string
	Err        error
}

// FlowRuntime executes a named sequence of steps as one FlowRun, including
// progress/heartbeat tracking and bounded-concurrency fan-out (spec.md §4.3).
type FlowRuntime interface {
	// StartFlow allocates a FlowRun row in status=pending/running and
	// returns its id.
	StartFlow(ctx context.Context, flowName string, mode string, userID *string, inputs FlowContext, totalSteps int) (flowRunID string, err error)

	// RunStep runs one sequential step of the flow, updating progress and
	// heartbeat. A step failure leaves the flow in status=failed; callers
	// must stop driving further steps.
	RunStep(ctx context.Context, flowRunID string, step Step, flowCtx FlowContext) (FlowContext, error)

	// FanOut runs spec.Run for every input under a bounded concurrency cap,
	// tolerating partial failure: it succeeds iff at least one child
	// succeeds (spec.md §4.3 "Fan-out failure"). Results are ordered by
	// input index.
	FanOut(ctx context.Context, flowRunID string, spec FanOutSpec) ([]FanOutResult, error)

	// Complete transitions the flow to a terminal status, rolling up
	// tokens/cost from the audit log and stamping completed_at.
	Complete(ctx context.Context, flowRunID string, status string, errMessage *string) error

	// Cancel signals cancellation of an in-flight flow by id.
	Cancel(ctx context.Context, flowRunID string) error
}
