package handler

import (
	"net/http"

	"github.com/edvin/agentplane/internal/api/request"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
)

type Policy struct {
	svc *core.PolicyService
}

func NewPolicy(services *core.Services) *Policy {
	return &Policy{svc: services.Policy}
}

func (h *Policy) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req request.CreatePolicy
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	env, err := h.svc.Create(r.Context(), p, core.CreatePolicyParams{
		Name:              req.Name,
		AutonomyTier:      *req.AutonomyTier,
		AllowedTools:      req.AllowedTools,
		AllowedDataScopes: req.AllowedDataScopes,
		RateLimits:        request.OptionalJSON(req.RateLimits),
		CostLimits:        request.OptionalJSON(req.CostLimits),
		Guardrails:        request.OptionalJSON(req.Guardrails),
	})
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, env)
}

func (h *Policy) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	policies, err := h.svc.List(r.Context(), p)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (h *Policy) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	env, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, env)
}
