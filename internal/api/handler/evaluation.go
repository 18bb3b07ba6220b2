package handler

import (
	"net/http"

	"github.com/edvin/agentplane/internal/api/request"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
)

type Evaluation struct {
	svc *core.EvaluationService
}

func NewEvaluation(services *core.Services) *Evaluation {
	return &Evaluation{svc: services.Evaluation}
}

// Record stores an evaluator result against the version named by {id}.
func (h *Evaluation) Record(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	versionID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req request.RecordEvaluation
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.svc.Record(r.Context(), p, versionID, core.RecordEvaluationParams{
		Status:        req.Status,
		SummaryScores: request.OptionalJSON(req.SummaryScores),
		CompletedAt:   req.CompletedAt,
	})
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, run)
}

func (h *Evaluation) ListByVersion(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	versionID, ok := pathID(w, r)
	if !ok {
		return
	}

	runs, err := h.svc.ListByVersion(r.Context(), p, versionID)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"evaluations": runs})
}
