// Package loadgen drives a running rating service over HTTP: it creates
// players, submits a burst of matches concurrently and checks that the
// resulting ranking is consistent.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Players       int           // Players to create
	Matches       int           // Matches to generate
	DuplicateRate float64       // Share of submissions that repeat an earlier key
	Workers       int           // Concurrent HTTP workers
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for the queue to drain
	Seed          uint64        // Generator seed; runs with the same seed submit the same log
	OutputFile    string        // Where to save the generated matches, empty to skip
	Verbose       bool
}

// PlayerRequest is the body of POST /players.
type PlayerRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGhost     bool   `json:"is_ghost"`
	Category    string `json:"category"`
}

// SetScore is one set of a match.
type SetScore struct {
	Team1    int  `json:"team1"`
	Team2    int  `json:"team2"`
	Tiebreak bool `json:"tiebreak,omitempty"`
}

// MatchRequest is the body of POST /matches.
type MatchRequest struct {
	Key        string     `json:"key"`
	PlayedAt   time.Time  `json:"played_at"`
	Team1      [2]string  `json:"team1"`
	Team2      [2]string  `json:"team2"`
	Sets       []SetScore `json:"sets"`
	WinnerTeam int        `json:"winner_team"`
}

// AckResponse is the response of POST /matches.
type AckResponse struct {
	Status    string `json:"status"`
	MatchID   string `json:"match_id"`
	Duplicate bool   `json:"duplicate"`
}

// RankingEntry is one row of GET /ranking.
type RankingEntry struct {
	Rank          int    `json:"rank"`
	PlayerID      string `json:"player_id"`
	Rating        int    `json:"rating"`
	Category      string `json:"category"`
	MatchesPlayed int    `json:"matches_played"`
	MatchesWon    int    `json:"matches_won"`
}

// Stats holds run statistics.
type Stats struct {
	PlayersCreated   int
	MatchesGenerated int
	Submitted        int
	Accepted         int
	Duplicate        int
	Retried          int
	Failed           int
	RankingEntries   int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// PlayerProfile is the part of GET /players/{id} the checks read.
type PlayerProfile struct {
	ID            string `json:"id"`
	Rating        int    `json:"rating"`
	MatchesPlayed int    `json:"matches_played"`
	MatchesWon    int    `json:"matches_won"`
}
