package api

import (
	"net/http"

	"github.com/okian/leadscore/internal/domain/critic"
)

// CriticDependencies checks drafts against the configured critic.
type CriticDependencies interface {
	CheckDraft(subject, message string) critic.Result
}

// CriticHandler handles draft checks.
type CriticHandler struct {
	deps CriticDependencies
}

// NewCriticHandler creates a new critic handler.
func NewCriticHandler(deps CriticDependencies) *CriticHandler {
	return &CriticHandler{deps: deps}
}

// HandleCheckDraft handles POST /critic.
func (h *CriticHandler) HandleCheckDraft(w http.ResponseWriter, r *http.Request) {
	const op = "api.check_draft"
	var req criticRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.CheckDraft(req.Subject, req.Message))
}
