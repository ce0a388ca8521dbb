// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/powerscan/internal/adapters/repository"
)

// ResultDependencies defines the interface for result persistence.
type ResultDependencies interface {
	SaveResult(ctx context.Context, name string, score int64, imageDataURL string) (Record, string, error)
	DeleteResult(ctx context.Context, id int64) (bool, error)
}

// ResultsHandler handles save and delete requests.
type ResultsHandler struct {
	deps ResultDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// saveScoreRequest mirrors the kiosk page's save payload. Score rides as a
// json.Number so a fractional value is rejected instead of silently
// truncated.
type saveScoreRequest struct {
	Name  string      `json:"name"`
	Score json.Number `json:"score"`
	Image string      `json:"image,omitempty"`
}

func (s saveScoreRequest) validate() (int64, error) {
	if strings.TrimSpace(s.Name) == "" {
		return 0, errors.New("missing name")
	}
	score, err := s.Score.Int64()
	if err != nil {
		return 0, errors.New("score must be an integer")
	}
	if score < 0 {
		return 0, errors.New("score must not be negative")
	}
	return score, nil
}

type saveScoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
}

// HandleSaveScore handles POST /api/save_score requests.
func (h *ResultsHandler) HandleSaveScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req saveScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, saveScoreResponse{Success: false, Message: "malformed request body"})
		return
	}
	score, err := req.validate()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, saveScoreResponse{Success: false, Message: err.Error()})
		return
	}

	_, image, err := h.deps.SaveResult(r.Context(), req.Name, score, req.Image)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, saveScoreResponse{Success: false, Message: "save failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saveScoreResponse{Success: true, Message: "saved", Image: image})
}

type deleteScoreRequest struct {
	ID json.Number `json:"id"`
}

type deleteScoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleDeleteScore handles POST /api/delete_score requests. Deleting an id
// that is already gone still succeeds.
func (h *ResultsHandler) HandleDeleteScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req deleteScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, deleteScoreResponse{Success: false, Message: "malformed request body"})
		return
	}
	id, err := req.ID.Int64()
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, deleteScoreResponse{Success: false, Message: "id must be a positive integer"})
		return
	}

	ok, err := h.deps.DeleteResult(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, deleteScoreResponse{Success: false, Message: "delete failed: " + err.Error()})
		return
	}
	msg := "deleted"
	if !ok {
		msg = "no such record"
	}
	writeJSON(w, http.StatusOK, deleteScoreResponse{Success: true, Message: msg})
}
