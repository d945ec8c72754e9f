package api

import (
	"time"

	service "github.com/okian/vibo/internal/app"
	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/stats"
)

type playerRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGhost     bool   `json:"is_ghost"`
	// Category is the starting tier label, e.g. "6ta".
	Category string `json:"category"`
}

type playerResponse struct {
	ID               string            `json:"id"`
	DisplayName      string            `json:"display_name"`
	IsGhost          bool              `json:"is_ghost"`
	StartingCategory category.Category `json:"starting_category"`
	Category         category.Category `json:"category"`
	Rating           int               `json:"rating"`
	MatchesPlayed    int               `json:"matches_played"`
	MatchesWon       int               `json:"matches_won"`
	WinRate          float64           `json:"win_rate"`
	CreatedAt        time.Time         `json:"created_at"`
}

func toPlayer(p model.Player) playerResponse { //nolint:gocritic // hugeParam
	return playerResponse{
		ID:               p.ID,
		DisplayName:      p.DisplayName,
		IsGhost:          p.IsGhost,
		StartingCategory: p.StartingCategory,
		Category:         p.Category(),
		Rating:           p.Rating,
		MatchesPlayed:    p.MatchesPlayed,
		MatchesWon:       p.MatchesWon,
		WinRate:          p.WinRate(),
		CreatedAt:        p.CreatedAt,
	}
}

type playerStatsResponse struct {
	Player      playerResponse `json:"player"`
	Rank        int            `json:"rank"`
	MatchesLost int            `json:"matches_lost"`
	LastMatch   *time.Time     `json:"last_match,omitempty"`
}

func toPlayerStats(s service.PlayerStats) playerStatsResponse { //nolint:gocritic // hugeParam
	return playerStatsResponse{
		Player:      toPlayer(s.Player),
		Rank:        s.Rank,
		MatchesLost: s.MatchesLost,
		LastMatch:   optionalTime(s.LastMatch),
	}
}

type matchRequest struct {
	Key        string           `json:"key"`
	PlayedAt   time.Time        `json:"played_at"`
	Team1      [2]string        `json:"team1"`
	Team2      [2]string        `json:"team2"`
	Sets       []model.SetScore `json:"sets"`
	WinnerTeam int              `json:"winner_team"`
	Venue      string           `json:"venue"`
	Notes      string           `json:"notes"`
	CreatedBy  string           `json:"created_by"`
}

func (m *matchRequest) input() service.MatchInput {
	return service.MatchInput{
		Key:        m.Key,
		PlayedAt:   m.PlayedAt,
		Players:    [4]string{m.Team1[0], m.Team1[1], m.Team2[0], m.Team2[1]},
		Sets:       m.Sets,
		WinnerTeam: m.WinnerTeam,
		Venue:      m.Venue,
		Notes:      m.Notes,
		CreatedBy:  m.CreatedBy,
	}
}

type submitResponse struct {
	Status    string `json:"status"`
	MatchID   string `json:"match_id"`
	Duplicate bool   `json:"duplicate"`
}

type matchResponse struct {
	ID         string            `json:"id"`
	PlayedAt   time.Time         `json:"played_at"`
	Team1      [2]string         `json:"team1"`
	Team2      [2]string         `json:"team2"`
	Sets       []model.SetScore  `json:"sets"`
	WinnerTeam int               `json:"winner_team"`
	Venue      string            `json:"venue,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	CreatedBy  string            `json:"created_by,omitempty"`
	EloChanges *model.EloChanges `json:"elo_changes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func toMatch(m model.Match) matchResponse { //nolint:gocritic // hugeParam
	sets := m.Sets
	if sets == nil {
		sets = []model.SetScore{}
	}
	return matchResponse{
		ID:         m.ID,
		PlayedAt:   m.PlayedAt,
		Team1:      m.Team(model.Team1),
		Team2:      m.Team(model.Team2),
		Sets:       sets,
		WinnerTeam: m.WinnerTeam,
		Venue:      m.Venue,
		Notes:      m.Notes,
		CreatedBy:  m.CreatedBy,
		EloChanges: m.Changes,
		CreatedAt:  m.CreatedAt,
	}
}

type rankingEntry struct {
	Rank          int               `json:"rank"`
	PlayerID      string            `json:"player_id"`
	DisplayName   string            `json:"display_name"`
	Rating        int               `json:"rating"`
	Category      category.Category `json:"category"`
	MatchesPlayed int               `json:"matches_played"`
	MatchesWon    int               `json:"matches_won"`
	WinRate       float64           `json:"win_rate"`
}

func toRankingEntry(e service.RankingEntry) rankingEntry { //nolint:gocritic // hugeParam
	return rankingEntry{
		Rank:          e.Rank,
		PlayerID:      e.Player.ID,
		DisplayName:   e.Player.DisplayName,
		Rating:        e.Player.Rating,
		Category:      e.Category,
		MatchesPlayed: e.Player.MatchesPlayed,
		MatchesWon:    e.Player.MatchesWon,
		WinRate:       e.WinRate,
	}
}

type headToHeadResponse struct {
	PlayerA    string     `json:"player_a"`
	PlayerB    string     `json:"player_b"`
	Total      int        `json:"total"`
	WinsA      int        `json:"wins_a"`
	WinsB      int        `json:"wins_b"`
	FirstMatch *time.Time `json:"first_match,omitempty"`
	LastMatch  *time.Time `json:"last_match,omitempty"`
	Streak     int        `json:"streak"`
}

func toHeadToHead(h stats.HeadToHead) headToHeadResponse { //nolint:gocritic // hugeParam
	return headToHeadResponse{
		PlayerA:    h.PlayerA,
		PlayerB:    h.PlayerB,
		Total:      h.Total,
		WinsA:      h.WinsA,
		WinsB:      h.WinsB,
		FirstMatch: optionalTime(h.FirstMatch),
		LastMatch:  optionalTime(h.LastMatch),
		Streak:     h.Streak,
	}
}

type partnerResponse struct {
	PartnerID string     `json:"partner_id"`
	Total     int        `json:"total"`
	Won       int        `json:"won"`
	Lost      int        `json:"lost"`
	WinRate   float64    `json:"win_rate"`
	LastMatch *time.Time `json:"last_match,omitempty"`
	Streak    int        `json:"streak"`
}

type recomputeRequest struct {
	// From starts a partial replay; omitted means a full one.
	From *time.Time `json:"from"`
}

type failedMatch struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

type recomputeResponse struct {
	Mode           string        `json:"mode"`
	From           *time.Time    `json:"from,omitempty"`
	Replayed       int           `json:"replayed"`
	Seeded         int           `json:"seeded"`
	PlayersUpdated int           `json:"players_updated"`
	Failures       []failedMatch `json:"failures"`
	DurationMs     float64       `json:"duration_ms"`
}

func toRecompute(r service.RecomputeReport) recomputeResponse { //nolint:gocritic // hugeParam
	failures := make([]failedMatch, 0, len(r.Failures))
	for _, f := range r.Failures {
		failures = append(failures, failedMatch{MatchID: f.MatchID, Reason: f.Reason})
	}
	return recomputeResponse{
		Mode:           r.Mode,
		From:           r.From,
		Replayed:       r.Replayed,
		Seeded:         r.Seeded,
		PlayersUpdated: r.PlayersUpdated,
		Failures:       failures,
		DurationMs:     float64(r.Duration.Microseconds()) / 1000,
	}
}

type categoryResponse struct {
	Label         string `json:"label"`
	Rank          int    `json:"rank"`
	InitialRating int    `json:"initial_rating"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
