package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// idempotencyHeader carries the client key when the body has none.
const idempotencyHeader = "Idempotency-Key"

// handleSubmitMatch handles POST /matches. Accepted matches are rated
// asynchronously: 202 for a new match, 200 for a repeated key with the
// id of the first submission.
func (s *Server) handleSubmitMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.SubmitMatch"

	var req matchRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Key == "" {
		req.Key = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	}

	sub, err := s.deps.SubmitMatch(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, submitResponse{Status: "duplicate", MatchID: sub.MatchID, Duplicate: true})
		return
	}
	w.Header().Set("Location", "/matches/"+sub.MatchID)
	writeJSON(w, http.StatusAccepted, submitResponse{Status: "accepted", MatchID: sub.MatchID})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Match(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap("api.GetMatch", err))
		return
	}
	writeJSON(w, http.StatusOK, toMatch(m))
}
