package api

import (
	"context"
	"net/http"

	"github.com/okian/leadscore/internal/domain/model"
)

// OutreachDependencies records sent outreach.
type OutreachDependencies interface {
	RecordOutreach(ctx context.Context, a model.OutreachAttempt) error
}

// OutreachHandler handles outreach log requests.
type OutreachHandler struct {
	deps OutreachDependencies
}

// NewOutreachHandler creates a new outreach handler.
func NewOutreachHandler(deps OutreachDependencies) *OutreachHandler {
	return &OutreachHandler{deps: deps}
}

// HandleRecordOutreach handles POST /outreach.
func (h *OutreachHandler) HandleRecordOutreach(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_outreach"
	var req outreachRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	sentAt, err := parseTime(req.SentAt)
	if err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	attempt := model.OutreachAttempt{
		CompanyID: req.CompanyID,
		SentAt:    sentAt,
		Outcome:   model.ParseOutcome(req.Outcome),
	}
	if err := h.deps.RecordOutreach(r.Context(), attempt); err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, req)
}
