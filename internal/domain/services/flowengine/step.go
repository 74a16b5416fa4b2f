// Package flowengine declares the capability-based Step/Flow contracts of
// spec.md §4.2-§4.3: a step is anything that can validate inputs, execute,
// validate outputs, and summarize usage — no nominal inheritance, per
// spec.md §9 "Typed step contracts without nominal inheritance".
package flowengine

import "context"

// FlowContext is the in-memory, named-value store threaded between steps
// of a single flow (spec.md §4.3). Keys are the names steps declare as
// their Inputs/Outputs.
type FlowContext map[string]interface{}

// Clone returns a shallow copy, used when handing a context to a fan-out
// child so sibling branches don't observe each other's writes.
func (c FlowContext) Clone() FlowContext {
	out := make(FlowContext, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Get returns the value at key and whether it was present.
func (c FlowContext) Get(key string) (interface{}, bool) {
	v, ok := c[key]
	return v, ok
}

// RequireKeys reports the first declared input key missing from the
// context, implementing "the runtime enforces that a step's declared
// Inputs are present in the context before execution" (spec.md §4.3).
func (c FlowContext) RequireKeys(keys ...string) (missing string, ok bool) {
	for _, k := range keys {
		if _, present := c[k]; !present {
			return k, false
		}
	}
	return "", true
}

// StepResult is what Execute returns on success: the step's declared
// Outputs plus any step_metadata to persist alongside the FlowStepRun row.
type StepResult struct {
	Outputs  FlowContext
	Metadata map[string]interface{}
	// LLMRequestIDs lists every LLMRequest produced by this execution, in
	// call order. When exactly one is present it becomes the step row's
	// primary llm_request_id (spec.md §4.2).
	LLMRequestIDs []string
	TokensUsed    int
	CostEstimate  float64
}

// Step is a single typed unit of work inside a flow. Implementations live
// under internal/service/content/steps.
type Step interface {
	// Name is the stable step_name persisted on FlowStepRun.
	Name() string

	// InputKeys lists the FlowContext keys this step reads.
	InputKeys() []string

	// OutputKeys lists the FlowContext keys this step writes on success.
	OutputKeys() []string

	// ValidateInputs checks the step's declared inputs against ctx, beyond
	// mere presence (spec.md §4.2: "Inputs that fail validation cause the
	// step to transition pending -> failed without any LLM call").
	ValidateInputs(ctx FlowContext) error

	// Execute runs the step body: zero or more LLM Gateway calls, producing
	// StepResult.Outputs. The runtime calls ValidateOutputs afterward.
	Execute(ctx context.Context, flowCtx FlowContext, runCtx *RunContext) (StepResult, error)

	// ValidateOutputs checks a successful Execute's outputs against the
	// step's declared Outputs schema.
	ValidateOutputs(result StepResult) error
}

// RunContext carries the ambient identifiers and cancellation/heartbeat
// plumbing a step needs but does not own: the owning flow_run_id, a
// cancellation signal, and the acting user id for LLM request attribution.
type RunContext struct {
	FlowRunID string
	UserID    *string
	Cancel    <-chan struct{}
}

// Cancelled reports whether the run's cancellation signal has fired. Steps
// that make multiple LLM calls check this between calls (spec.md §4.2
// "Cancellation").
func (r *RunContext) Cancelled() bool {
	select {
	case <-r.Cancel:
		return true
	default:
		return false
	}
}
