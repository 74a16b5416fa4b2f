// Package admin declares the read-only Admin Read Model contract of
// spec.md §4.6.
package admin

import (
	"context"

	"meridian/internal/domain/models"
)

// FlowSummary is one row of the paginated flow list, carrying roll-up
// totals cheaply alongside the FlowRun so a renderer never has to join
// across modules at request time.
type FlowSummary struct {
	Run       *models.FlowRun
	StepCount int
}

// FlowDetail is a single flow-run with its ordered step rows.
type FlowDetail struct {
	Run   *models.FlowRun
	Steps []*models.FlowStepRun
}

// ReadModel exposes read-only projections over flow-runs, step-runs, and
// llm-requests for an operator UI.
type ReadModel interface {
	// ListFlows returns recent flow-runs, newest first.
	ListFlows(ctx context.Context, page, pageSize int) ([]FlowSummary, int, error)

	// GetFlow returns one flow-run with all of its steps, ordered by
	// step_order.
	GetFlow(ctx context.Context, flowRunID string) (*FlowDetail, error)

	// GetStep returns a single step-run.
	GetStep(ctx context.Context, flowRunID, stepRunID string) (*models.FlowStepRun, error)

	// GetLLMRequest returns a single LLM request.
	GetLLMRequest(ctx context.Context, requestID string) (*models.LLMRequest, error)
}
