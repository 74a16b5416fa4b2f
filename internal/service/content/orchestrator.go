package content

import (
	"context"
	"fmt"
	"log/slog"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	"meridian/internal/domain/repositories"
	contentdomain "meridian/internal/domain/services/content"
	"meridian/internal/domain/services/flowengine"
	"meridian/internal/service/content/sourcematerial"
	"meridian/internal/service/content/steps"
)

// Orchestrator implements contentdomain.Orchestrator, running the unit
// assembly algorithm of spec.md §4.4.5 over the Flow Runtime.
type Orchestrator struct {
	Runtime flowengine.FlowRuntime
	Units   repositories.UnitRepository

	// Normalizer sanitizes and markdown-converts coach-supplied
	// source_material before it ever reaches a step prompt. Nil disables
	// normalization (e.g. in tests that feed already-plain text).
	Normalizer *sourcematerial.Normalizer
	Lessons repositories.LessonRepository

	UnitFlow      *UnitCreationFlow
	LessonFlow    *LessonCreationFlow
	UnitArt       *UnitArtCreationFlow
	UnitPodcast   *UnitPodcastFlow
	LessonPodcast *LessonPodcastFlow

	MaxFanOutConcurrency int
	Logger               *slog.Logger
}

var _ contentdomain.Orchestrator = (*Orchestrator)(nil)

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) maxParallel() int {
	if o.MaxFanOutConcurrency > 0 {
		return o.MaxFanOutConcurrency
	}
	return 3
}

// CreateUnit runs steps 2-7 of the unit assembly algorithm against an
// already-allocated Unit row (step 1, allocation with status=pending, is
// the caller's responsibility — typically job.Service.Submit).
func (o *Orchestrator) CreateUnit(ctx context.Context, unitID string, req contentdomain.UnitRequest) error {
	unit, err := o.Units.GetByID(ctx, unitID)
	if err != nil {
		return err
	}

	unit.Status = models.UnitInProgress
	unit.CreationProgress = &models.CreationProgress{Phase: "unit_plan"}
	if err := o.Units.Update(ctx, unit); err != nil {
		return err
	}

	if req.SourceMaterial != nil && o.Normalizer != nil {
		normalized, nErr := o.Normalizer.Normalize(*req.SourceMaterial)
		if nErr != nil {
			msg := nErr.Error()
			unit.Status = models.UnitFailed
			unit.ErrorMessage = &msg
			if uerr := o.Units.Update(ctx, unit); uerr != nil {
				return uerr
			}
			return nErr
		}
		req.SourceMaterial = &normalized
	}

	input := unitPlanInput(req)
	flowRunID, err := o.Runtime.StartFlow(ctx, "UnitCreationFlow", string(req.FlowType), req.UserID, input, 3)
	if err != nil {
		return err
	}
	unit.FlowRunID = &flowRunID
	if err := o.Units.Update(ctx, unit); err != nil {
		return err
	}

	planCtx, err := o.UnitFlow.Run(ctx, o.Runtime, flowRunID, input)
	if err != nil {
		msg := err.Error()
		unit.Status = models.UnitFailed
		unit.ErrorMessage = &msg
		_ = o.Runtime.Complete(ctx, flowRunID, "failed", &msg)
		if uerr := o.Units.Update(ctx, unit); uerr != nil {
			o.logger().Error("content orchestrator: persist unit-plan failure", "error", uerr, "unit_id", unitID)
		}
		return err
	}

	unitTitle, _ := planCtx.Get(steps.KeyUnitTitle)
	if title, ok := unitTitle.(string); ok {
		unit.Title = title
	}
	unit.LearningObjectives = toLearningObjectives(planCtx[steps.KeyUnitLearningObjs])
	if material, ok := planCtx.Get(steps.KeySourceMaterial); ok {
		if s, ok := material.(string); ok {
			unit.SourceMaterial = &s
		}
	}
	if summary, ok := planCtx.Get(steps.KeyUnitSummary); ok {
		if s, ok := summary.(string); ok {
			unit.Description = &s
		}
	}
	unit.CreationProgress = &models.CreationProgress{Phase: "lessons"}
	if err := o.Units.Update(ctx, unit); err != nil {
		return err
	}

	unitLOIDs := unit.LearningObjectiveIDs()
	loIDList := make([]string, 0, len(unitLOIDs))
	for id := range unitLOIDs {
		loIDList = append(loIDList, id)
	}

	plan, _ := planCtx[steps.KeyLessonPlan].([]interface{})
	lessonErrors, commonKind := o.runLessonFanOut(ctx, flowRunID, plan, planCtx, req, unit, loIDList)

	unit.CreationProgress = &models.CreationProgress{Phase: "done", LessonErrors: lessonErrors}

	completeErr := o.Runtime.Complete(ctx, flowRunID, "completed", nil)
	if completeErr != nil {
		o.logger().Error("content orchestrator: complete unit flow", "error", completeErr, "flow_run_id", flowRunID)
	}

	if unit.ReadyForCompletion() {
		unit.Status = models.UnitCompleted
	} else {
		unit.Status = models.UnitFailed
		msg := fmt.Sprintf("no lessons completed successfully: most common error was %s", commonKind)
		unit.ErrorMessage = &msg
	}
	if err := o.Units.Update(ctx, unit); err != nil {
		return err
	}

	o.runMediaBestEffort(ctx, unit.ID)
	return nil
}

// runLessonFanOut fans out one LessonCreationFlow per plan entry under the
// configured concurrency cap. Only after every child has finished does it
// persist each successful Lesson and append its id to lesson_order, in plan
// order; no Lesson is persisted while other children are still running.
// It also returns the taxonomy kind that recurred most often among the
// failing children, so a fully-failed unit's error_message can name it
// (spec.md §8 boundary behaviors).
func (o *Orchestrator) runLessonFanOut(ctx context.Context, parentFlowRunID string, plan []interface{}, planCtx flowengine.FlowContext, req contentdomain.UnitRequest, unit *models.Unit, unitLOIDs []string) ([]models.LessonError, domain.ErrorKind) {
	sourceMaterial, _ := planCtx.Get(steps.KeySourceMaterial)

	inputs := make([]flowengine.FlowContext, 0, len(plan))
	titles := make([]string, 0, len(plan))
	for _, raw := range plan {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		title, _ := entry["title"].(string)
		objective, _ := entry["lesson_objective"].(string)
		loIDs, _ := entry["learning_objective_ids"].([]interface{})

		titles = append(titles, title)
		inputs = append(inputs, flowengine.FlowContext{
			steps.KeyLessonTitle:     title,
			steps.KeyLessonObjective: objective,
			steps.KeyLessonLOIDs:     loIDs,
			steps.KeySourceMaterial:  sourceMaterial,
		})
	}

	spec := flowengine.FanOutSpec{
		SubFlowName: "LessonCreationFlow",
		Inputs:      inputs,
		MaxParallel: o.maxParallel(),
		Run: func(ctx context.Context, index int, input flowengine.FlowContext) (flowengine.FlowContext, string, error) {
			childFlowRunID, err := o.Runtime.StartFlow(ctx, "LessonCreationFlow", string(req.FlowType), req.UserID, input, 6)
			if err != nil {
				return nil, "", err
			}
			result, err := o.LessonFlow.Run(ctx, o.Runtime, childFlowRunID, req.FlowType, input)
			if err != nil {
				msg := err.Error()
				_ = o.Runtime.Complete(ctx, childFlowRunID, "failed", &msg)
				return nil, childFlowRunID, err
			}
			if err := o.Runtime.Complete(ctx, childFlowRunID, "completed", nil); err != nil {
				o.logger().Error("content orchestrator: complete lesson flow", "error", err, "flow_run_id", childFlowRunID)
			}
			return result, childFlowRunID, nil
		},
	}

	results, err := o.Runtime.FanOut(ctx, parentFlowRunID, spec)
	if err != nil {
		o.logger().Error("content orchestrator: lesson fan-out", "error", err, "flow_run_id", parentFlowRunID)
	}

	var lessonErrors []models.LessonError
	kindTally := map[domain.ErrorKind]int{}
	recordErr := func(index int, title string, err error) {
		lessonErrors = append(lessonErrors, models.LessonError{Index: index, Title: title, Error: err.Error()})
		kindTally[domain.ClassifyErr(err)]++
	}
	for _, res := range results {
		title := ""
		if res.Index < len(titles) {
			title = titles[res.Index]
		}
		if res.Err != nil {
			recordErr(res.Index, title, res.Err)
			continue
		}

		lesson, err := assembleLesson(res.Outputs, unit.ID, title, req.LearnerLevel, unitLOIDs)
		if err != nil {
			recordErr(res.Index, title, err)
			continue
		}
		flowRunID := res.ChildFlowRunID
		lesson.FlowRunID = &flowRunID
		if err := lesson.Validate(unit.LearningObjectiveIDs()); err != nil {
			recordErr(res.Index, title, err)
			continue
		}
		if err := o.Lessons.Create(ctx, lesson); err != nil {
			recordErr(res.Index, title, err)
			continue
		}
		unit.LessonOrder = append(unit.LessonOrder, lesson.ID)
	}
	return lessonErrors, mostCommonErrorKind(kindTally)
}

// mostCommonErrorKind returns the tally's highest-count ErrorKind, breaking
// ties by the taxonomy's declaration order so the same set of failures
// always yields the same message.
func mostCommonErrorKind(tally map[domain.ErrorKind]int) domain.ErrorKind {
	order := []domain.ErrorKind{
		domain.KindValidationError, domain.KindProviderError, domain.KindRateLimited,
		domain.KindTimeout, domain.KindTransportError, domain.KindInvalidResponse,
		domain.KindCancelled, domain.KindStalled, domain.KindInternalError,
	}
	best := domain.KindInternalError
	bestCount := 0
	for _, k := range order {
		if c := tally[k]; c > bestCount {
			best = k
			bestCount = c
		}
	}
	return best
}

// runMediaBestEffort runs the unit's media flows, logging rather than
// propagating failure (spec.md §4.4.5 step 6).
func (o *Orchestrator) runMediaBestEffort(ctx context.Context, unitID string) {
	if o.UnitArt != nil {
		if err := o.CreateUnitArt(ctx, unitID); err != nil {
			o.logger().Error("content orchestrator: unit art (best-effort)", "error", err, "unit_id", unitID)
		}
	}
	if o.UnitPodcast != nil {
		if err := o.CreateUnitPodcast(ctx, unitID); err != nil {
			o.logger().Error("content orchestrator: unit podcast (best-effort)", "error", err, "unit_id", unitID)
		}
	}
}

// CreateUnitArt runs UnitArtCreationFlow against a unit and attaches the
// resulting image's object id.
func (o *Orchestrator) CreateUnitArt(ctx context.Context, unitID string) error {
	unit, err := o.Units.GetByID(ctx, unitID)
	if err != nil {
		return err
	}

	input := flowengine.FlowContext{steps.KeyUnitTitle: unit.Title}
	if unit.Description != nil {
		input[steps.KeyUnitSummary] = *unit.Description
	}

	flowRunID, err := o.Runtime.StartFlow(ctx, "UnitArtCreationFlow", "media", unit.OwnerUserID, input, 2)
	if err != nil {
		return err
	}

	result, err := o.UnitArt.Run(ctx, o.Runtime, flowRunID, input)
	if err != nil {
		msg := err.Error()
		_ = o.Runtime.Complete(ctx, flowRunID, "failed", &msg)
		return err
	}
	if err := o.Runtime.Complete(ctx, flowRunID, "completed", nil); err != nil {
		o.logger().Error("content orchestrator: complete unit art flow", "error", err, "flow_run_id", flowRunID)
	}

	unit.ArtImageID = &result.ImageObjectID
	return o.Units.Update(ctx, unit)
}

// CreateUnitPodcast runs UnitPodcastFlow against a unit and attaches the
// resulting audio's object id and transcript. The unit does not record the
// audio's duration.
func (o *Orchestrator) CreateUnitPodcast(ctx context.Context, unitID string) error {
	unit, err := o.Units.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	if unit.Description == nil {
		return fmt.Errorf("%w: unit %s has no summary to narrate", domain.ErrValidation, unitID)
	}

	input := flowengine.FlowContext{steps.KeyUnitSummary: *unit.Description}
	flowRunID, err := o.Runtime.StartFlow(ctx, "UnitPodcastFlow", "media", unit.OwnerUserID, input, 2)
	if err != nil {
		return err
	}

	result, err := o.UnitPodcast.Run(ctx, o.Runtime, flowRunID, input)
	if err != nil {
		msg := err.Error()
		_ = o.Runtime.Complete(ctx, flowRunID, "failed", &msg)
		return err
	}
	if err := o.Runtime.Complete(ctx, flowRunID, "completed", nil); err != nil {
		o.logger().Error("content orchestrator: complete unit podcast flow", "error", err, "flow_run_id", flowRunID)
	}

	unit.PodcastTranscript = &result.Transcript
	unit.PodcastAudioID = &result.AudioObjectID
	return o.Units.Update(ctx, unit)
}

// CreateLessonPodcast runs LessonPodcastFlow against a lesson's didactic
// snippet (mini_lesson) and attaches the resulting audio.
func (o *Orchestrator) CreateLessonPodcast(ctx context.Context, lessonID string) error {
	lesson, err := o.Lessons.Get(ctx, lessonID)
	if err != nil {
		return err
	}
	if lesson.Package.MiniLesson == "" {
		return fmt.Errorf("%w: lesson %s has no mini_lesson to narrate", domain.ErrValidation, lessonID)
	}

	input := flowengine.FlowContext{steps.KeyUnitSummary: lesson.Package.MiniLesson}
	flowRunID, err := o.Runtime.StartFlow(ctx, "LessonPodcastFlow", "media", nil, input, 2)
	if err != nil {
		return err
	}

	result, err := o.LessonPodcast.Run(ctx, o.Runtime, flowRunID, input)
	if err != nil {
		msg := err.Error()
		_ = o.Runtime.Complete(ctx, flowRunID, "failed", &msg)
		return err
	}
	if err := o.Runtime.Complete(ctx, flowRunID, "completed", nil); err != nil {
		o.logger().Error("content orchestrator: complete lesson podcast flow", "error", err, "flow_run_id", flowRunID)
	}

	lesson.PodcastTranscript = &result.Transcript
	lesson.PodcastAudioID = &result.AudioObjectID
	durationSec := int(result.DurationSeconds)
	lesson.PodcastDurationSeconds = &durationSec
	return o.Lessons.Update(ctx, lesson)
}

func unitPlanInput(req contentdomain.UnitRequest) flowengine.FlowContext {
	ctx := flowengine.FlowContext{
		steps.KeyLearnerLevel:      req.LearnerLevel,
		steps.KeyTargetLessonCount: req.TargetLessonCount,
	}
	if req.Topic != nil {
		ctx[steps.KeyTopic] = *req.Topic
	}
	if req.SourceMaterial != nil {
		ctx[steps.KeySourceMaterial] = *req.SourceMaterial
	}
	if len(req.CoachLearningObjectives) > 0 {
		los := make([]interface{}, len(req.CoachLearningObjectives))
		for i, lo := range req.CoachLearningObjectives {
			los[i] = lo
		}
		ctx[steps.KeyCoachLearningObjectives] = los
	}
	return ctx
}

func toLearningObjectives(v interface{}) []models.LearningObjective {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.LearningObjective, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, models.LearningObjective{
			ID:          stringField(m, "id"),
			Title:       stringField(m, "title"),
			Description: stringField(m, "description"),
		})
	}
	return out
}
