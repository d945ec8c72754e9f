package api

import (
	"errors"
	"net/http"
	"time"
)

// handleRanking handles GET /ranking. Without ?limit the service maximum
// applies; larger limits are clamped to it.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.Ranking"

	limit, err := queryInt(r, op, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.deps.Ranking(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	out := make([]rankingEntry, 0, len(entries))
	for i := range entries {
		out = append(out, toRankingEntry(entries[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRecompute handles POST /recompute. An empty body or no "from" runs
// a full recomputation.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.Recompute"

	var req recomputeRequest
	if err := decodeJSON(w, r, op, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.writeError(w, r, err)
		return
	}
	var from *time.Time
	if req.From != nil {
		t := req.From.UTC()
		from = &t
	}

	rep, err := s.deps.Recompute(r.Context(), from)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toRecompute(rep))
}
