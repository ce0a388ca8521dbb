// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/powerscan/internal/adapters/repository"
	app "github.com/okian/powerscan/internal/app"
	"github.com/okian/powerscan/internal/domain/session"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SaveResult persists a finalized result and returns the record plus the
	// saved image filename (empty when no image survived).
	SaveResult(ctx context.Context, name string, score int64, imageDataURL string) (Record, string, error)

	// Ranking returns the top-N records, score-descending.
	Ranking(ctx context.Context, n int) ([]Record, error)

	// DeleteResult removes a record and its snapshot. Unknown ids are a
	// quiet no-op.
	DeleteResult(ctx context.Context, id int64) (bool, error)

	// Session lifecycle operations.
	CreateSession(mode session.Mode) (Snapshot, error)
	RestoreSession(snap Snapshot) (Snapshot, error)
	SessionSnapshot(id string) (Snapshot, bool)
	SessionCommand(ctx context.Context, id string, cmd Command) (CommandOutcome, error)
}

// Read shapes mirrored from the service layer.
type (
	Record         = repository.Record
	Snapshot       = session.Snapshot
	Command        = app.Command
	CommandOutcome = app.CommandOutcome
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	resultsHandler *ResultsHandler
	rankingHandler *RankingHandler
	sessionHandler *SessionHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		resultsHandler: NewResultsHandler(deps),
		rankingHandler: NewRankingHandler(deps),
		sessionHandler: NewSessionHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/save_score", MetricsMiddleware(s.resultsHandler.HandleSaveScore, "save_score"))
	mux.HandleFunc("/api/delete_score", MetricsMiddleware(s.resultsHandler.HandleDeleteScore, "delete_score"))
	mux.HandleFunc("/api/get_ranking", MetricsMiddleware(s.rankingHandler.HandleGetRanking, "get_ranking"))
	mux.HandleFunc("/api/session", MetricsMiddleware(s.sessionHandler.HandleCreate, "session_create"))
	mux.HandleFunc("/api/session/", MetricsMiddleware(s.sessionHandler.HandleSessionPath, "session"))
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

// writeDomainError translates service-layer sentinel errors to HTTP status
// codes: unknown sessions are 404, phase violations and consumed results are
// 409, validation problems are 400, the rest is 500.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, session.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", WrapKind(op, ErrConflict, err))
	case errors.Is(err, session.ErrConsumed):
		writeError(w, http.StatusConflict, "already_consumed", WrapKind(op, ErrConflict, err))
	case errors.Is(err, repository.ErrValidation), errors.Is(err, app.ErrUnknownCommand):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
