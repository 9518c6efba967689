package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
)

// CompanyDependencies covers company profiles, the watchlist and the
// per-company scoring reads. A zero asOf means today.
type CompanyDependencies interface {
	UpsertCompany(ctx context.Context, c model.Company) error
	AddToWatchlist(ctx context.Context, companyID string) error
	RemoveFromWatchlist(ctx context.Context, companyID string) error
	Readiness(ctx context.Context, companyID string, asOf time.Time) (scoring.Snapshot, error)
	Engagement(ctx context.Context, companyID string, asOf time.Time) (engagement.Snapshot, error)
	Recommendation(ctx context.Context, companyID string, asOf time.Time) (outreach.Recommendation, error)
}

// CompaniesHandler handles company and watchlist requests.
type CompaniesHandler struct {
	deps CompanyDependencies
}

// NewCompaniesHandler creates a new companies handler.
func NewCompaniesHandler(deps CompanyDependencies) *CompaniesHandler {
	return &CompaniesHandler{deps: deps}
}

func companyID(r *http.Request, op string) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", NewKind(op, ErrBadRequest)
	}
	return id, nil
}

// HandleUpsertCompany handles POST /companies.
func (h *CompaniesHandler) HandleUpsertCompany(w http.ResponseWriter, r *http.Request) {
	const op = "api.upsert_company"
	var req companyRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	c := req.toModel()
	if err := h.deps.UpsertCompany(r.Context(), c); err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// HandleGetReadiness handles GET /companies/{id}/readiness?as_of=YYYY-MM-DD.
func (h *CompaniesHandler) HandleGetReadiness(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_readiness"
	id, asOf, err := companyAndDate(r, op)
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	snap, err := h.deps.Readiness(r.Context(), id, asOf)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleGetEngagement handles GET /companies/{id}/engagement?as_of=YYYY-MM-DD.
func (h *CompaniesHandler) HandleGetEngagement(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_engagement"
	id, asOf, err := companyAndDate(r, op)
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	snap, err := h.deps.Engagement(r.Context(), id, asOf)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleGetRecommendation handles GET /companies/{id}/recommendation?as_of=YYYY-MM-DD.
func (h *CompaniesHandler) HandleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_recommendation"
	id, asOf, err := companyAndDate(r, op)
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	rec, err := h.deps.Recommendation(r.Context(), id, asOf)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleAddWatchlist handles POST /watchlist/{id}.
func (h *CompaniesHandler) HandleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_watchlist"
	id, err := companyID(r, op)
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	if err := h.deps.AddToWatchlist(r.Context(), id); err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveWatchlist handles DELETE /watchlist/{id}.
func (h *CompaniesHandler) HandleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	const op = "api.remove_watchlist"
	id, err := companyID(r, op)
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	if err := h.deps.RemoveFromWatchlist(r.Context(), id); err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func companyAndDate(r *http.Request, op string) (string, time.Time, error) {
	id, err := companyID(r, op)
	if err != nil {
		return "", time.Time{}, err
	}
	asOf, err := parseAsOf(r, op)
	if err != nil {
		return "", time.Time{}, err
	}
	return id, asOf, nil
}
