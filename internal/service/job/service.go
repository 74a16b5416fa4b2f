// Package job implements the Job Lifecycle contract of spec.md §4.5:
// wrapping a content.Orchestrator invocation as a job addressable over
// HTTP, either blocking the caller or running in the background.
package job

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"meridian/internal/config"
	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
	contentdomain "meridian/internal/domain/services/content"
	"meridian/internal/domain/services/flowengine"
	jobdomain "meridian/internal/domain/services/job"
)

// Service implements jobdomain.Service over a content.Orchestrator.
type Service struct {
	Orchestrator contentdomain.Orchestrator
	Units        repositories.UnitRepository
	Lessons      repositories.LessonRepository
	Runtime      flowengine.FlowRuntime
	Logger       *slog.Logger
}

var _ jobdomain.Service = (*Service)(nil)

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// validateUnitRequest validates a unit creation request, mirroring
// document.go's validateCreateRequest: either topic or source_material
// must be present, and every field stays within its configured bound.
func validateUnitRequest(req contentdomain.UnitRequest) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Topic,
			validation.When(req.SourceMaterial == nil, validation.Required),
			validation.Length(0, config.MaxTopicLength),
		),
		validation.Field(&req.SourceMaterial, validation.Length(0, config.MaxSourceMaterialLength)),
		validation.Field(&req.CoachLearningObjectives, validation.Length(0, config.MaxCoachLearningObjectives)),
		validation.Field(&req.TargetLessonCount,
			validation.Min(config.MinTargetLessonCount),
			validation.Max(config.MaxTargetLessonCount),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// Submit allocates a Unit row and starts its creation flow, per spec.md
// §4.5's pending→in_progress→(completed|failed) state machine.
func (s *Service) Submit(ctx context.Context, req contentdomain.UnitRequest, background bool) (jobdomain.SubmitResult, error) {
	unit := &models.Unit{
		LearnerLevel:       req.LearnerLevel,
		LessonOrder:        []string{},
		TargetLessonCount:  req.TargetLessonCount,
		GeneratedFromTopic: req.Topic != nil,
		SourceMaterial:     req.SourceMaterial,
		FlowType:           req.FlowType,
		Status:             models.UnitPending,
		OwnerUserID:        req.UserID,
	}

	if err := validateUnitRequest(req); err != nil {
		unit.Status = models.UnitFailed
		msg := err.Error()
		unit.ErrorMessage = &msg
		if cerr := s.Units.Create(ctx, unit); cerr != nil {
			return jobdomain.SubmitResult{}, cerr
		}
		return jobdomain.SubmitResult{UnitID: unit.ID, Status: unit.Status}, err
	}

	if err := s.Units.Create(ctx, unit); err != nil {
		return jobdomain.SubmitResult{}, err
	}

	if background {
		go func() {
			bgCtx := context.Background()
			if err := s.Orchestrator.CreateUnit(bgCtx, unit.ID, req); err != nil {
				s.logger().Error("job service: background unit creation", "error", err, "unit_id", unit.ID)
			}
		}()
		return jobdomain.SubmitResult{UnitID: unit.ID, Status: models.UnitPending}, nil
	}

	if err := s.Orchestrator.CreateUnit(ctx, unit.ID, req); err != nil {
		s.logger().Error("job service: synchronous unit creation", "error", err, "unit_id", unit.ID)
	}
	final, err := s.Units.GetByID(ctx, unit.ID)
	if err != nil {
		return jobdomain.SubmitResult{}, err
	}
	return jobdomain.SubmitResult{UnitID: final.ID, Status: final.Status}, nil
}

func (s *Service) Get(ctx context.Context, unitID string) (*models.Unit, error) {
	return s.Units.GetByID(ctx, unitID)
}

func (s *Service) GetLesson(ctx context.Context, unitID, lessonID string) (*models.Lesson, error) {
	return s.Lessons.GetByID(ctx, lessonID, unitID)
}

// Cancel signals cancellation of an in-flight unit's flow. Terminal units
// (completed/failed) cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, unitID string) error {
	unit, err := s.Units.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	if unit.Status == models.UnitCompleted || unit.Status == models.UnitFailed {
		return fmt.Errorf("%w: unit %s is already %s", domain.ErrConflict, unitID, unit.Status)
	}
	if unit.FlowRunID == nil {
		return fmt.Errorf("%w: unit %s has not started a flow yet", domain.ErrConflict, unitID)
	}
	if err := s.Runtime.Cancel(ctx, *unit.FlowRunID); err != nil {
		return err
	}

	msg := "cancelled by request"
	unit.Status = models.UnitFailed
	unit.ErrorMessage = &msg
	return s.Units.Update(ctx, unit)
}
