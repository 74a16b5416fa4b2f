// Package job declares the Job Lifecycle contract of spec.md §4.5: wrapping
// an orchestrator invocation as a job addressable over HTTP.
package job

import (
	"context"

	"meridian/internal/domain/models"
	"meridian/internal/domain/services/content"
)

// SubmitResult is returned from Submit: the allocated unit id and its
// initial status.
type SubmitResult struct {
	UnitID string
	Status models.UnitStatus
}

// Service wraps unit-creation orchestration as a job: submission,
// synchronous or background execution, and a read model (spec.md §4.5).
type Service interface {
	// Submit allocates a Unit row and starts its creation flow. If
	// background is false, Submit blocks until the unit reaches a terminal
	// status and returns once it does; if true, it returns immediately
	// after starting the flow in a separate goroutine.
	Submit(ctx context.Context, req content.UnitRequest, background bool) (SubmitResult, error)

	// Get reads back a unit's current status/progress/lesson_order.
	Get(ctx context.Context, unitID string) (*models.Unit, error)

	// GetLesson reads back one lesson's package.
	GetLesson(ctx context.Context, unitID, lessonID string) (*models.Lesson, error)

	// Cancel requests cancellation of an in-flight unit's flow. Returns
	// domain.ErrConflict if the unit is already terminal.
	Cancel(ctx context.Context, unitID string) error
}

// Reconciler is the stall-detection background routine of spec.md §4.5.
type Reconciler interface {
	// Tick runs one reconciliation pass: finds flows whose heartbeat has
	// lapsed beyond the stall window and transitions their units to
	// failed/stalled.
	Tick(ctx context.Context) (stalledCount int, err error)

	// Run starts a timer-driven loop calling Tick until ctx is cancelled.
	Run(ctx context.Context)
}
