package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/vibo/internal/app"
	"github.com/okian/vibo/internal/domain/category"
)

// defaultMatchesLimit bounds GET /players/{id}/matches without ?limit.
const defaultMatchesLimit = 50

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.CreatePlayer"

	var req playerRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cat, err := category.Parse(strings.TrimSpace(req.Category))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}

	p, err := s.deps.CreatePlayer(r.Context(), service.PlayerInput{
		ID:               strings.TrimSpace(req.ID),
		DisplayName:      req.DisplayName,
		IsGhost:          req.IsGhost,
		StartingCategory: cat,
	})
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/players/"+p.ID)
	writeJSON(w, http.StatusCreated, toPlayer(p))
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Player(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap("api.GetPlayer", err))
		return
	}
	writeJSON(w, http.StatusOK, toPlayer(p))
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.PlayerStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap("api.PlayerStats", err))
		return
	}
	writeJSON(w, http.StatusOK, toPlayerStats(st))
}

func (s *Server) handlePartners(w http.ResponseWriter, r *http.Request) {
	ps, err := s.deps.Partners(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap("api.Partners", err))
		return
	}
	out := make([]partnerResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, partnerResponse{
			PartnerID: p.PartnerID,
			Total:     p.Total,
			Won:       p.Won,
			Lost:      p.Lost,
			WinRate:   p.WinRate,
			LastMatch: optionalTime(p.LastMatch),
			Streak:    p.Streak,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlayerMatches(w http.ResponseWriter, r *http.Request) {
	const op = "api.PlayerMatches"

	limit, err := queryInt(r, op, "limit", defaultMatchesLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ms, err := s.deps.PlayerMatches(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	out := make([]matchResponse, 0, len(ms))
	for i := range ms {
		out = append(out, toMatch(ms[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHeadToHead(w http.ResponseWriter, r *http.Request) {
	const op = "api.HeadToHead"

	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		s.writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	h, err := s.deps.HeadToHead(r.Context(), a, b)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toHeadToHead(h))
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	all := category.All()
	out := make([]categoryResponse, 0, len(all))
	for _, c := range all {
		out = append(out, categoryResponse{
			Label:         c.String(),
			Rank:          int(c),
			InitialRating: category.InitialRating(c),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
