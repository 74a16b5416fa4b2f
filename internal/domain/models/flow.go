package models

import "time"

// FlowRunStatus is the lifecycle state of a FlowRun.
type FlowRunStatus string

const (
	FlowRunPending   FlowRunStatus = "pending"
	FlowRunRunning   FlowRunStatus = "running"
	FlowRunCompleted FlowRunStatus = "completed"
	FlowRunFailed    FlowRunStatus = "failed"
	FlowRunCancelled FlowRunStatus = "cancelled"
)

// ExecutionMode distinguishes a synchronous (blocking-caller) flow from a
// background job.
type ExecutionMode string

const (
	ExecutionModeSync       ExecutionMode = "sync"
	ExecutionModeBackground ExecutionMode = "background"
)

// FlowRun is one top-level orchestration (e.g. a unit_creation flow, or a
// lesson_creation flow spawned as a fan-out child).
type FlowRun struct {
	ID            string        `json:"id" db:"id"`
	FlowName      string        `json:"flow_name" db:"flow_name"`
	ExecutionMode ExecutionMode `json:"execution_mode" db:"execution_mode"`
	UserID        *string       `json:"user_id,omitempty" db:"user_id"`

	Status FlowRunStatus `json:"status" db:"status"`

	Inputs       map[string]interface{} `json:"inputs" db:"inputs"`
	Outputs      map[string]interface{} `json:"outputs,omitempty" db:"outputs"`
	FlowMetadata map[string]interface{} `json:"flow_metadata,omitempty" db:"flow_metadata"`

	CurrentStep        *string `json:"current_step,omitempty" db:"current_step"`
	StepProgress       int     `json:"step_progress" db:"step_progress"`
	TotalSteps         int     `json:"total_steps" db:"total_steps"`
	ProgressPercentage float64 `json:"progress_percentage" db:"progress_percentage"`

	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty" db:"last_heartbeat"`
	ExecutionTimeMs *int64     `json:"execution_time_ms,omitempty" db:"execution_time_ms"`

	TotalTokens int     `json:"total_tokens" db:"total_tokens"`
	TotalCost   float64 `json:"total_cost" db:"total_cost"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RecomputeProgress recomputes ProgressPercentage from StepProgress/TotalSteps,
// per the invariant in spec.md §3: progress_percentage = 100*step_progress/total_steps.
func (f *FlowRun) RecomputeProgress() {
	if f.TotalSteps <= 0 {
		f.ProgressPercentage = 0
		return
	}
	f.ProgressPercentage = 100 * float64(f.StepProgress) / float64(f.TotalSteps)
}

// IsTerminal reports whether the flow has reached a status from which it
// never transitions again.
func (f *FlowRun) IsTerminal() bool {
	switch f.Status {
	case FlowRunCompleted, FlowRunFailed, FlowRunCancelled:
		return true
	default:
		return false
	}
}

// ChildFlowRuns returns the child flow-run ids recorded under
// flow_metadata.child_flow_runs by a fan-out step, if any.
func (f *FlowRun) ChildFlowRuns() []string {
	raw, ok := f.FlowMetadata["child_flow_runs"]
	if !ok {
		return nil
	}
	list, ok := raw.([]string)
	if ok {
		return list
	}
	if ifaceList, ok := raw.([]interface{}); ok {
		out := make([]string, 0, len(ifaceList))
		for _, v := range ifaceList {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// FlowStepStatus is the lifecycle state of a single FlowStepRun.
type FlowStepStatus string

const (
	StepPending   FlowStepStatus = "pending"
	StepRunning   FlowStepStatus = "running"
	StepCompleted FlowStepStatus = "completed"
	StepFailed    FlowStepStatus = "failed"
	StepSkipped   FlowStepStatus = "skipped"
)

// FlowStepRun is one step execution within a FlowRun.
type FlowStepRun struct {
	ID         string `json:"id" db:"id"`
	FlowRunID  string `json:"flow_run_id" db:"flow_run_id"`
	StepName   string `json:"step_name" db:"step_name"`
	StepOrder  int    `json:"step_order" db:"step_order"`

	Status FlowStepStatus `json:"status" db:"status"`

	Inputs       map[string]interface{} `json:"inputs" db:"inputs"`
	Outputs      map[string]interface{} `json:"outputs,omitempty" db:"outputs"`
	StepMetadata map[string]interface{} `json:"step_metadata,omitempty" db:"step_metadata"`

	TokensUsed      int     `json:"tokens_used" db:"tokens_used"`
	CostEstimate    float64 `json:"cost_estimate" db:"cost_estimate"`
	ExecutionTimeMs *int64  `json:"execution_time_ms,omitempty" db:"execution_time_ms"`
	ErrorMessage    *string `json:"error_message,omitempty" db:"error_message"`
	ErrorType       *string `json:"error_type,omitempty" db:"error_type"`

	// LLMRequestID stores the *primary* call when the step made exactly one.
	// Multi-call steps leave this null; readers resolve the full set via the
	// request log's step association.
	LLMRequestID *string `json:"llm_request_id,omitempty" db:"llm_request_id"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
