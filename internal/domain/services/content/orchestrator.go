// Package content declares the Content Orchestrator contract of
// spec.md §4.4: the domain-aware composition of flows that turns a unit
// request into a persisted Unit + Lessons.
package content

import (
	"context"

	"meridian/internal/domain/models"
)

// UnitRequest is the input to CreateUnit, mirroring the HTTP request body
// of spec.md §6 (POST /api/v1/units).
type UnitRequest struct {
	Topic               *string
	SourceMaterial       *string
	CoachLearningObjectives []string
	TargetLessonCount     int
	LearnerLevel          models.LearnerLevel
	FlowType              models.FlowType
	UserID                *string
}

// Orchestrator runs the unit assembly algorithm of spec.md §4.4.5 and the
// standalone media flows of §4.4.4.
type Orchestrator interface {
	// CreateUnit runs the full unit assembly algorithm against an
	// already-allocated unit row (status=pending), driving it through
	// in_progress to a terminal status. unitID must reference an existing
	// Unit row.
	CreateUnit(ctx context.Context, unitID string, req UnitRequest) error

	// CreateUnitArt runs UnitArtCreationFlow against a completed unit,
	// best-effort (spec.md §4.4.4).
	CreateUnitArt(ctx context.Context, unitID string) error

	// CreateUnitPodcast runs UnitPodcastFlow against a completed unit,
	// best-effort.
	CreateUnitPodcast(ctx context.Context, unitID string) error

	// CreateLessonPodcast runs LessonPodcastFlow against one lesson,
	// best-effort.
	CreateLessonPodcast(ctx context.Context, lessonID string) error
}
