package handler

import (
	"log/slog"
	"net/http"

	"meridian/internal/domain/models"
	contentdomain "meridian/internal/domain/services/content"
	jobdomain "meridian/internal/domain/services/job"
	"meridian/internal/httputil"
)

// UnitHandler handles unit-creation job HTTP requests (spec.md §6).
type UnitHandler struct {
	jobs   jobdomain.Service
	logger *slog.Logger
}

// NewUnitHandler creates a new unit handler.
func NewUnitHandler(jobs jobdomain.Service, logger *slog.Logger) *UnitHandler {
	return &UnitHandler{jobs: jobs, logger: logger}
}

// submitUnitRequest is the transport-layer request for POST /api/v1/units.
type submitUnitRequest struct {
	Topic                   *string  `json:"topic"`
	SourceMaterial          *string  `json:"source_material"`
	CoachLearningObjectives []string `json:"coach_learning_objectives"`
	TargetLessonCount       int      `json:"target_lesson_count"`
	LearnerLevel            string   `json:"learner_level"`
	Background              bool     `json:"background"`
	FlowType                string   `json:"flow_type"`
}

type submitUnitResponse struct {
	UnitID string            `json:"unit_id"`
	Status models.UnitStatus `json:"status"`
}

// CreateUnit submits a unit-creation job.
// POST /api/v1/units
func (h *UnitHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var body submitUnitRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flowType := models.FlowTypeStandard
	if body.FlowType != "" {
		flowType = models.FlowType(body.FlowType)
	}
	targetCount := body.TargetLessonCount
	if targetCount == 0 {
		targetCount = 3
	}

	req := contentdomain.UnitRequest{
		Topic:                   body.Topic,
		SourceMaterial:          body.SourceMaterial,
		CoachLearningObjectives: body.CoachLearningObjectives,
		TargetLessonCount:       targetCount,
		LearnerLevel:            models.LearnerLevel(body.LearnerLevel),
		FlowType:                flowType,
	}
	if userID := httputil.GetUserID(r); userID != "" {
		req.UserID = &userID
	}

	result, err := h.jobs.Submit(r.Context(), req, body.Background)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusOK
	if body.Background {
		status = http.StatusAccepted
	} else if result.Status == models.UnitCompleted {
		status = http.StatusCreated
	}
	httputil.RespondJSON(w, status, submitUnitResponse{UnitID: result.UnitID, Status: result.Status})
}

// GetUnit reads back a unit's status, creation progress, and lesson order.
// GET /api/v1/units/{unit_id}
func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unitID, ok := PathParam(w, r, "unit_id", "unit id")
	if !ok {
		return
	}

	unit, err := h.jobs.Get(r.Context(), unitID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, unit)
}

// GetLesson reads back one lesson's package.
// GET /api/v1/units/{unit_id}/lessons/{lesson_id}
func (h *UnitHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	unitID, ok := PathParam(w, r, "unit_id", "unit id")
	if !ok {
		return
	}
	lessonID, ok := PathParam(w, r, "lesson_id", "lesson id")
	if !ok {
		return
	}

	lesson, err := h.jobs.GetLesson(r.Context(), unitID, lessonID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, lesson)
}

// CancelUnit requests cancellation of an in-flight unit's flow.
// POST /api/v1/units/{unit_id}/cancel
func (h *UnitHandler) CancelUnit(w http.ResponseWriter, r *http.Request) {
	unitID, ok := PathParam(w, r, "unit_id", "unit id")
	if !ok {
		return
	}

	if err := h.jobs.Cancel(r.Context(), unitID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
