package repositories

import (
	"context"

	"meridian/internal/domain/models"
)

// FlowRunRepository persists FlowRun rows.
type FlowRunRepository interface {
	Create(ctx context.Context, run *models.FlowRun) error
	GetByID(ctx context.Context, id string) (*models.FlowRun, error)
	Update(ctx context.Context, run *models.FlowRun) error
	// List returns the most recent flow-runs, newest first, for the admin
	// read model (spec.md §4.6).
	List(ctx context.Context, page, pageSize int) ([]*models.FlowRun, int, error)
	// ListStalled returns running flows whose last_heartbeat is older than
	// olderThanSeconds, for the stall reconciler (spec.md §4.5).
	ListStalled(ctx context.Context, olderThanSeconds int) ([]*models.FlowRun, error)
}

// FlowStepRunRepository persists FlowStepRun rows.
type FlowStepRunRepository interface {
	Create(ctx context.Context, step *models.FlowStepRun) error
	Update(ctx context.Context, step *models.FlowStepRun) error
	GetByID(ctx context.Context, id string) (*models.FlowStepRun, error)
	// ListByFlowRun returns every step of a flow, ordered by step_order.
	ListByFlowRun(ctx context.Context, flowRunID string) ([]*models.FlowStepRun, error)
}
