package repositories

import (
	"context"

	"meridian/internal/domain/models"
)

// UnitRepository persists Unit aggregates.
type UnitRepository interface {
	Create(ctx context.Context, unit *models.Unit) error
	GetByID(ctx context.Context, id string) (*models.Unit, error)
	// GetByFlowRunID looks up the unit that owns a top-level flow run, used
	// by the stall reconciler to mark a unit failed after its flow stalls.
	GetByFlowRunID(ctx context.Context, flowRunID string) (*models.Unit, error)
	Update(ctx context.Context, unit *models.Unit) error
	Delete(ctx context.Context, id string) error
}

// LessonRepository persists Lesson aggregates, owned exclusively by a Unit.
type LessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	GetByID(ctx context.Context, id, unitID string) (*models.Lesson, error)
	// Get looks up a lesson by id alone, for callers (media flows, admin
	// reads) that only have the lesson id on hand.
	Get(ctx context.Context, id string) (*models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	// DeleteByUnit deletes every lesson owned by a unit, used when the unit
	// itself is deleted (spec.md §3 "A Unit exclusively owns its Lessons").
	DeleteByUnit(ctx context.Context, unitID string) error
}
