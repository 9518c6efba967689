package api

import (
	"context"
	"net/http"

	"github.com/okian/leadscore/internal/domain/model"
)

// EventDependencies defines the interface for signal ingestion.
type EventDependencies interface {
	// IngestEvent stores e once per id and reports replays as duplicates.
	IngestEvent(ctx context.Context, e model.Event) (id string, duplicate bool, err error)
}

// EventsHandler handles event requests
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	ev, err := req.toModel()
	if err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}

	id, duplicate, err := h.deps.IngestEvent(r.Context(), ev)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", EventID: id, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: id})
}
