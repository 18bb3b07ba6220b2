package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/agentplane/internal/api/middleware"
	"github.com/edvin/agentplane/internal/api/request"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
)

// principal returns the caller set by mw.Auth, writing a 401 when the route
// was mounted without it.
func principal(w http.ResponseWriter, r *http.Request) (core.Principal, bool) {
	p, ok := mw.GetPrincipal(r.Context())
	if !ok {
		response.WriteError(w, http.StatusUnauthorized, "authentication required")
	}
	return p, ok
}

// pathID reads the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}
