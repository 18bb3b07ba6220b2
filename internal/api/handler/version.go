package handler

import (
	"context"
	"net/http"

	"github.com/edvin/agentplane/internal/api/request"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
	"github.com/edvin/agentplane/internal/model"
)

type Version struct {
	svc       *core.VersionService
	lifecycle *core.LifecycleService
}

func NewVersion(services *core.Services) *Version {
	return &Version{svc: services.Version, lifecycle: services.Lifecycle}
}

// Create adds a draft version to the template named by {id}.
func (h *Version) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	templateID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req request.CreateVersion
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.svc.Create(r.Context(), p, templateID, core.CreateVersionParams{
		VersionLabel:       req.VersionLabel,
		ArtifactHash:       req.ArtifactHash,
		ModelBundle:        req.ModelBundle,
		PromptBundle:       req.PromptBundle,
		ToolManifest:       req.ToolManifest,
		DataScopesDeclared: req.DataScopesDeclared,
		BuildProvenance:    request.OptionalJSON(req.BuildProvenance),
	})
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, v)
}

// ListByTemplate lists the versions of the template named by {id}.
func (h *Version) ListByTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	templateID, ok := pathID(w, r)
	if !ok {
		return
	}

	versions, err := h.svc.ListByTemplate(r.Context(), p, templateID)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (h *Version) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	v, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}

func (h *Version) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Submit)
}

func (h *Version) Promote(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Promote)
}

func (h *Version) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Reject)
}

func (h *Version) Retire(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Retire)
}

type transitionFunc func(ctx context.Context, p core.Principal, versionID string) (*model.AgentVersion, error)

func (h *Version) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	v, err := fn(r.Context(), p, id)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}
