package handler

import (
	"net/http"

	"github.com/edvin/agentplane/internal/api/request"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
)

type Instance struct {
	svc *core.InstanceService
}

func NewInstance(services *core.Services) *Instance {
	return &Instance{svc: services.Instance}
}

func (h *Instance) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req request.CreateInstance
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.svc.Create(r.Context(), p, core.CreateInstanceParams{
		VersionID:        req.VersionID,
		PolicyEnvelopeID: req.PolicyEnvelopeID,
		Environment:      req.Environment,
		RuntimeTarget:    req.RuntimeTarget,
	})
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, inst)
}

func (h *Instance) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	instances, err := h.svc.List(r.Context(), p)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

func (h *Instance) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	inst, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inst)
}

// UpdateStatus takes the new status from ?status= when present, otherwise
// from the JSON body.
func (h *Instance) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		var req request.UpdateInstanceStatus
		if err := request.Decode(r, &req); err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = req.Status
	}

	inst, err := h.svc.UpdateStatus(r.Context(), p, id, status)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inst)
}
