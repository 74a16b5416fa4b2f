package handler

import (
	"log/slog"
	"net/http"

	admindomain "meridian/internal/domain/services/admin"
	"meridian/internal/httputil"
)

// AdminHandler exposes the read-only Admin Read Model over HTTP (spec.md
// §4.6, §6).
type AdminHandler struct {
	reads  admindomain.ReadModel
	logger *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(reads admindomain.ReadModel, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{reads: reads, logger: logger}
}

type flowListResponse struct {
	Flows    []admindomain.FlowSummary `json:"flows"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

// ListFlows lists recent flow-runs, newest first.
// GET /api/v1/admin/flows?page&page_size
func (h *AdminHandler) ListFlows(w http.ResponseWriter, r *http.Request) {
	page := QueryInt(r, "page", 1, 1, 1_000_000)
	pageSize := QueryInt(r, "page_size", 20, 1, 200)

	flows, total, err := h.reads.ListFlows(r.Context(), page, pageSize)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, flowListResponse{
		Flows:    flows,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetFlow returns a flow-run with its ordered step rows.
// GET /api/v1/admin/flows/{flow_run_id}
func (h *AdminHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flowRunID, ok := PathParam(w, r, "flow_run_id", "flow run id")
	if !ok {
		return
	}

	detail, err := h.reads.GetFlow(r.Context(), flowRunID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, detail)
}

// GetStep returns a single step-run.
// GET /api/v1/admin/flows/{flow_run_id}/steps/{step_run_id}
func (h *AdminHandler) GetStep(w http.ResponseWriter, r *http.Request) {
	flowRunID, ok := PathParam(w, r, "flow_run_id", "flow run id")
	if !ok {
		return
	}
	stepRunID, ok := PathParam(w, r, "step_run_id", "step run id")
	if !ok {
		return
	}

	step, err := h.reads.GetStep(r.Context(), flowRunID, stepRunID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, step)
}

// GetLLMRequest returns a single LLM request detail.
// GET /api/v1/admin/llm-requests/{request_id}
func (h *AdminHandler) GetLLMRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := PathParam(w, r, "request_id", "request id")
	if !ok {
		return
	}

	req, err := h.reads.GetLLMRequest(r.Context(), requestID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, req)
}
