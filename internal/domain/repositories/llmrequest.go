package repositories

import (
	"context"

	"meridian/internal/domain/models"
)

// LLMRequestRepository persists LLMRequest rows. Creation and completion
// are the only two writes a row ever receives (spec.md §4.1): the gateway
// inserts a pending row, then updates it in place.
type LLMRequestRepository interface {
	Create(ctx context.Context, req *models.LLMRequest) error
	Update(ctx context.Context, req *models.LLMRequest) error
	GetByID(ctx context.Context, id string) (*models.LLMRequest, error)
	// ListByStepRun returns every LLMRequest a step produced, in call order.
	ListByStepRun(ctx context.Context, stepRunID string) ([]*models.LLMRequest, error)
	// SumUsageForStep returns the total tokens and cost across every
	// LLMRequest a step produced, used to roll up FlowStepRun.tokens_used
	// and cost_estimate from the audit log rather than in-memory counters
	// (spec.md §9 "Durable audit as the source of truth for cost").
	SumUsageForStep(ctx context.Context, stepRunID string) (tokens int, cost float64, err error)
}
