// Package admin implements admindomain.ReadModel as a thin, repository-
// backed projection — every method is a direct read with no caching or
// aggregation beyond what the repositories already provide (spec.md §4.6
// "the core must produce the data shape so an implementer can render it
// without joining across modules at request time").
package admin

import (
	"context"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
	admindomain "meridian/internal/domain/services/admin"
)

// ReadModel implements admindomain.ReadModel over the flow/step/request
// repositories.
type ReadModel struct {
	Runs     repositories.FlowRunRepository
	Steps    repositories.FlowStepRunRepository
	Requests repositories.LLMRequestRepository
}

var _ admindomain.ReadModel = (*ReadModel)(nil)

func (r *ReadModel) ListFlows(ctx context.Context, page, pageSize int) ([]admindomain.FlowSummary, int, error) {
	runs, total, err := r.Runs.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]admindomain.FlowSummary, 0, len(runs))
	for _, run := range runs {
		steps, err := r.Steps.ListByFlowRun(ctx, run.ID)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, admindomain.FlowSummary{Run: run, StepCount: len(steps)})
	}
	return summaries, total, nil
}

func (r *ReadModel) GetFlow(ctx context.Context, flowRunID string) (*admindomain.FlowDetail, error) {
	run, err := r.Runs.GetByID(ctx, flowRunID)
	if err != nil {
		return nil, err
	}
	steps, err := r.Steps.ListByFlowRun(ctx, flowRunID)
	if err != nil {
		return nil, err
	}
	return &admindomain.FlowDetail{Run: run, Steps: steps}, nil
}

func (r *ReadModel) GetStep(ctx context.Context, flowRunID, stepRunID string) (*models.FlowStepRun, error) {
	step, err := r.Steps.GetByID(ctx, stepRunID)
	if err != nil {
		return nil, err
	}
	if step.FlowRunID != flowRunID {
		return nil, domain.ErrNotFound
	}
	return step, nil
}

func (r *ReadModel) GetLLMRequest(ctx context.Context, requestID string) (*models.LLMRequest, error) {
	return r.Requests.GetByID(ctx, requestID)
}
