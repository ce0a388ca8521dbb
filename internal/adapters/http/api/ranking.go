// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
)

// RankingDependencies defines the interface for ranking queries.
type RankingDependencies interface {
	Ranking(ctx context.Context, n int) ([]Record, error)
}

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps RankingDependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// rankingEntry is the read shape for one ranked record.
type rankingEntry struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int64  `json:"score"`
	Image string `json:"image,omitempty"`
}

// HandleGetRanking handles GET /api/get_ranking?limit=N requests. Limit is
// optional; the service caps it either way.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = parsed
	}

	records, err := h.deps.Ranking(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	entries := make([]rankingEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rankingEntry{
			ID:    rec.ID,
			Name:  rec.Name,
			Score: rec.Score,
			Image: rec.ImageFile,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}
