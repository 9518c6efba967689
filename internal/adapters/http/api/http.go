// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/leadscore/internal/adapters/repository"
	"github.com/okian/leadscore/internal/nightly"
	"github.com/okian/leadscore/pkg/logger"
)

const (
	defaultMaxLimit = 100
	maxBodyBytes    = 1 << 20
)

// Dependencies required by HTTP handlers, one interface per handler group.
type Dependencies interface {
	EventDependencies
	CompanyDependencies
	OutreachDependencies
	LeaderboardDependencies
	RankDependencies
	NightlyDependencies
	CriticDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = repository.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	companiesHandler   *CompaniesHandler
	outreachHandler    *OutreachHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	nightlyHandler     *NightlyHandler
	criticHandler      *CriticHandler
}

// NewServer creates a new API server with all handlers. A maxLimit below one
// falls back to 100.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		companiesHandler:   NewCompaniesHandler(deps),
		outreachHandler:    NewOutreachHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		nightlyHandler:     NewNightlyHandler(deps),
		criticHandler:      NewCriticHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("POST /companies", MetricsMiddleware(s.companiesHandler.HandleUpsertCompany, "companies"))
	mux.HandleFunc("GET /companies/{id}/readiness", MetricsMiddleware(s.companiesHandler.HandleGetReadiness, "readiness"))
	mux.HandleFunc("GET /companies/{id}/engagement", MetricsMiddleware(s.companiesHandler.HandleGetEngagement, "engagement"))
	mux.HandleFunc("GET /companies/{id}/recommendation", MetricsMiddleware(s.companiesHandler.HandleGetRecommendation, "recommendation"))
	mux.HandleFunc("POST /watchlist/{id}", MetricsMiddleware(s.companiesHandler.HandleAddWatchlist, "watchlist"))
	mux.HandleFunc("DELETE /watchlist/{id}", MetricsMiddleware(s.companiesHandler.HandleRemoveWatchlist, "watchlist"))
	mux.HandleFunc("POST /outreach", MetricsMiddleware(s.outreachHandler.HandleRecordOutreach, "outreach"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /rank/{id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("POST /nightly", MetricsMiddleware(s.nightlyHandler.HandleRunNightly, "nightly"))
	mux.HandleFunc("POST /critic", MetricsMiddleware(s.criticHandler.HandleCheckDraft, "critic"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps upstream errors onto status codes.
func writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLimitExceeded):
		writeError(w, http.StatusBadRequest, "limit_exceeded", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, nightly.ErrRunning):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		logger.Get().Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
