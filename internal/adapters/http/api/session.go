// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/powerscan/internal/domain/session"
)

// SessionDependencies defines the interface for session lifecycle operations.
type SessionDependencies interface {
	CreateSession(mode session.Mode) (Snapshot, error)
	RestoreSession(snap Snapshot) (Snapshot, error)
	SessionSnapshot(id string) (Snapshot, bool)
	SessionCommand(ctx context.Context, id string, cmd Command) (CommandOutcome, error)
}

// SessionHandler handles session lifecycle requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type restoreSessionRequest struct {
	State Snapshot `json:"state"`
}

// commandRequest is one player-facing command against a live session.
type commandRequest struct {
	Command string `json:"command"`
	Gender  string `json:"gender,omitempty"`
	Name    string `json:"name,omitempty"`
}

// commandResponse carries the new state plus whatever the command produced:
// the finalized player for confirm_name, the full result set for
// consume_results.
type commandResponse struct {
	Success bool                   `json:"success"`
	State   Snapshot               `json:"state"`
	Result  *session.PlayerResult  `json:"result,omitempty"`
	Results []session.PlayerResult `json:"results,omitempty"`
}

// HandleCreate handles POST /api/session requests.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_create"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	snap, err := h.deps.CreateSession(session.Mode(req.Mode))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleSessionPath dispatches requests under /api/session/:
// POST /api/session/restore, GET /api/session/{id} and
// POST /api/session/{id}/command.
func (h *SessionHandler) HandleSessionPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/session/")
	if path == "" {
		http.NotFound(w, r)
		return
	}
	if path == "restore" {
		h.handleRestore(w, r)
		return
	}
	if id, ok := strings.CutSuffix(path, "/command"); ok {
		h.handleCommand(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		http.NotFound(w, r)
		return
	}
	h.handleGet(w, r, path)
}

func (h *SessionHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_restore"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req restoreSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	snap, err := h.deps.RestoreSession(req.State)
	if err != nil {
		// An inconsistent snapshot is the caller's problem, not a phase
		// conflict on a live session.
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.session_get"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, ok := h.deps.SessionSnapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) handleCommand(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.session_command"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	outcome, err := h.deps.SessionCommand(r.Context(), id, Command{
		Name:       req.Command,
		Gender:     req.Gender,
		PlayerName: req.Name,
	})
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		Success: true,
		State:   outcome.State,
		Result:  outcome.Player,
		Results: outcome.Results,
	})
}
