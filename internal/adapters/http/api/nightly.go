package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/nightly"
)

// NightlyDependencies triggers a scoring run.
type NightlyDependencies interface {
	RunNightly(ctx context.Context, asOf time.Time) (nightly.Summary, error)
}

// NightlyHandler handles manual nightly runs.
type NightlyHandler struct {
	deps NightlyDependencies
}

// NewNightlyHandler creates a new nightly handler.
func NewNightlyHandler(deps NightlyDependencies) *NightlyHandler {
	return &NightlyHandler{deps: deps}
}

// HandleRunNightly handles POST /nightly. The body is optional; without an
// as_of the run scores today.
func (h *NightlyHandler) HandleRunNightly(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_nightly"
	var req nightlyRequest
	if err := decode(w, r, op, &req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(r.Context(), w, err)
		return
	}
	var asOf time.Time
	if req.AsOf != "" {
		t, err := model.ParseDate(req.AsOf)
		if err != nil {
			writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
			return
		}
		asOf = t
	}
	sum, err := h.deps.RunNightly(r.Context(), asOf)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
