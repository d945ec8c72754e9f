package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vibo/internal/adapters/repository"
	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/rating"
	"github.com/okian/vibo/internal/domain/stats"
)

// RankingEntry is one row of the global ranking.
type RankingEntry struct {
	Rank     int
	Player   model.Player
	Category category.Category
	WinRate  float64
}

// PlayerStats is a player's profile summary.
type PlayerStats struct {
	Player      model.Player
	Category    category.Category
	Rank        int
	WinRate     float64
	MatchesLost int
	// LastMatch is zero when the player has not played yet.
	LastMatch time.Time
}

// Ranking returns the best players, highest rating first. Players with equal
// ratings share a rank. limit <= 0 or above the configured maximum is
// clamped to the maximum.
func (s *Service) Ranking(ctx context.Context, limit int) ([]RankingEntry, error) {
	if !s.Started() {
		return nil, ErrNotStarted
	}
	if limit <= 0 || limit > s.maxRankingLimit {
		limit = s.maxRankingLimit
	}

	top, err := s.index.Top(limit)
	if err != nil {
		return nil, err
	}
	out := make([]RankingEntry, 0, len(top))
	for _, e := range top {
		p, err := s.store.Player(ctx, e.PlayerID)
		if err != nil {
			return nil, err
		}
		out = append(out, RankingEntry{
			Rank:     e.Rank,
			Player:   p,
			Category: p.Category(),
			WinRate:  p.WinRate(),
		})
	}
	return out, nil
}

// PlayerStats returns the profile summary of one player.
func (s *Service) PlayerStats(ctx context.Context, id string) (PlayerStats, error) {
	p, err := s.store.Player(ctx, id)
	if err != nil {
		return PlayerStats{}, err
	}
	st := PlayerStats{
		Player:      p,
		Category:    p.Category(),
		WinRate:     p.WinRate(),
		MatchesLost: p.MatchesPlayed - p.MatchesWon,
	}
	if e, err := s.index.Rank(id); err == nil {
		st.Rank = e.Rank
	}

	history, err := s.store.PlayerMatches(ctx, id)
	if err != nil {
		return PlayerStats{}, err
	}
	if len(history) > 0 {
		st.LastMatch = history[0].PlayedAt
	}
	return st, nil
}

// HeadToHead summarises the matches a and b played against each other.
func (s *Service) HeadToHead(ctx context.Context, a, b string) (stats.HeadToHead, error) {
	if a == "" || b == "" || a == b {
		return stats.HeadToHead{}, fmt.Errorf("%w: head-to-head needs two different players", rating.ErrInvalidInput)
	}
	if _, err := s.store.Player(ctx, b); err != nil {
		return stats.HeadToHead{}, err
	}
	history, err := s.store.PlayerMatches(ctx, a)
	if err != nil {
		return stats.HeadToHead{}, err
	}
	return stats.ComputeHeadToHead(a, b, history), nil
}

// Partners lists everyone the player has teamed up with, most frequent
// first.
func (s *Service) Partners(ctx context.Context, id string) ([]stats.Partner, error) {
	history, err := s.store.PlayerMatches(ctx, id)
	if err != nil {
		return nil, err
	}
	return stats.ComputePartners(id, history), nil
}

// Rank returns the ranking position of one player.
func (s *Service) Rank(ctx context.Context, id string) (repository.RankEntry, error) {
	if _, err := s.store.Player(ctx, id); err != nil {
		return repository.RankEntry{}, err
	}
	return s.index.Rank(id)
}
