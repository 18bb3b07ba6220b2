package handler

import (
	"net/http"

	"github.com/edvin/agentplane/internal/api/request"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
)

type Event struct {
	svc *core.EventService
}

func NewEvent(services *core.Services) *Event {
	return &Event{svc: services.Event}
}

// List returns the tenant's audit trail, newest first, optionally filtered
// by ?event_type=.
func (h *Event) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	pg := request.ParsePagination(r)
	events, err := h.svc.List(r.Context(), p, core.EventFilter{
		EventType: r.URL.Query().Get("event_type"),
		Limit:     pg.Limit,
	})
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
