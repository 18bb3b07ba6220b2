package handler

import (
	"net/http"

	"github.com/edvin/agentplane/internal/api/request"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
)

type Template struct {
	svc *core.TemplateService
}

func NewTemplate(services *core.Services) *Template {
	return &Template{svc: services.Template}
}

func (h *Template) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req request.CreateTemplate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.svc.Create(r.Context(), p, core.CreateTemplateParams{
		Name:        req.Name,
		Description: req.Description,
		OwnerOrgID:  req.OwnerOrgID,
		Tags:        req.Tags,
	})
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, t)
}

func (h *Template) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	templates, err := h.svc.List(r.Context(), p)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Template) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, t)
}
