package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/vibo/internal/adapters/mq/queue"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/rating"
	"github.com/okian/vibo/pkg/logger"
	"github.com/okian/vibo/pkg/metrics"
)

// maxClockSkew tolerates clients whose clocks run slightly ahead.
const maxClockSkew = 5 * time.Minute

// MatchInput is a match result submitted for rating.
type MatchInput struct {
	// Key is an optional client idempotency key. Resubmitting the same key
	// returns the match id of the first submission.
	Key        string
	PlayedAt   time.Time
	Players    [4]string
	Sets       []model.SetScore
	WinnerTeam int
	Venue      string
	Notes      string
	CreatedBy  string
}

// Submission acknowledges an accepted match.
type Submission struct {
	MatchID   string
	Duplicate bool
}

// SubmitMatch validates a match and queues it for rating. Validation and
// player lookups happen up front so a queued match is expected to succeed.
func (s *Service) SubmitMatch(ctx context.Context, in MatchInput) (Submission, error) { //nolint:gocritic // hugeParam: input is a value object
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return Submission{}, ErrNotStarted
	}

	m := model.Match{
		ID:         uuid.NewString(),
		PlayedAt:   in.PlayedAt.UTC(),
		Players:    in.Players,
		Sets:       in.Sets,
		WinnerTeam: in.WinnerTeam,
		Venue:      strings.TrimSpace(in.Venue),
		Notes:      strings.TrimSpace(in.Notes),
		CreatedBy:  in.CreatedBy,
		CreatedAt:  s.now().UTC(),
	}
	if err := rating.ValidateMatch(m); err != nil {
		metrics.RecordMatchRejected("invalid_match")
		return Submission{}, err
	}
	if err := s.checkPlayedAt(m.PlayedAt); err != nil {
		metrics.RecordMatchRejected("played_at")
		return Submission{}, err
	}
	for _, id := range m.Players {
		if _, err := s.store.Player(ctx, id); err != nil {
			metrics.RecordMatchRejected("unknown_player")
			return Submission{}, err
		}
	}

	key := strings.TrimSpace(in.Key)
	if key != "" {
		if existing, seen := s.deduper.Remember(ctx, key, m.ID); seen {
			metrics.RecordMatchDuplicate()
			s.logger.Debug(ctx, "duplicate submission",
				logger.String("key", key),
				logger.String("match_id", existing),
			)
			return Submission{MatchID: existing, Duplicate: true}, nil
		}
	}

	if err := s.queue.Enqueue(ctx, eventqueue.Item{Key: key, Match: m}); err != nil {
		if key != "" {
			s.deduper.Forget(ctx, key)
		}
		switch {
		case errors.Is(err, eventqueue.ErrFull):
			metrics.RecordMatchRejected("backpressure")
			return Submission{}, fmt.Errorf("%w: %d matches waiting", ErrBackpressure, s.queue.Cap())
		case errors.Is(err, eventqueue.ErrClosed):
			return Submission{}, ErrNotStarted
		default:
			return Submission{}, err
		}
	}

	metrics.RecordMatchSubmitted()
	return Submission{MatchID: m.ID}, nil
}

func (s *Service) checkPlayedAt(t time.Time) error {
	now := s.now()
	if t.After(now.Add(maxClockSkew)) {
		return fmt.Errorf("%w: played_at %s is in the future", rating.ErrInvalidMatch, t.Format(time.RFC3339))
	}
	if s.maxBackdate > 0 && t.Before(now.Add(-s.maxBackdate)) {
		return fmt.Errorf("%w: played_at %s is more than %d days ago",
			rating.ErrInvalidMatch, t.Format(time.RFC3339), int(s.maxBackdate/(24*time.Hour)))
	}
	return nil
}

// forgetFailed lets a client retry a key whose match could not be recorded.
func (s *Service) forgetFailed(ctx context.Context, it eventqueue.Item, err error) { //nolint:gocritic // hugeParam
	if it.Key != "" {
		s.deduper.Forget(ctx, it.Key)
	}
	metrics.RecordMatchRejected("record_failed")
}

// RecordMatch rates m against the current state of its players and persists
// the match with its changes. It is what the workers call, and the entry
// point for trusted imports that skip the queue.
//
// A match played before the latest recorded match of one of its players is
// rated live first and then, with auto recompute on, history is replayed
// from its PlayedAt and the regenerated changes are returned.
func (s *Service) RecordMatch(ctx context.Context, m model.Match) (model.EloChanges, error) { //nolint:gocritic // hugeParam
	start := time.Now()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	if err := rating.ValidateMatch(m); err != nil {
		metrics.RecordMatchRejected("invalid_match")
		return model.EloChanges{}, err
	}

	changes, backdated, err := s.applyLive(ctx, m)
	if err != nil {
		return model.EloChanges{}, err
	}
	metrics.RecordMatchRecorded(float64(time.Since(start).Milliseconds()))

	if backdated && s.autoRecompute {
		from := m.PlayedAt
		_, replay, err := s.recompute(ctx, &from)
		if err != nil {
			return changes, fmt.Errorf("match %s recorded, replay from %s: %w", m.ID, from.Format(time.RFC3339), err)
		}
		if ch, ok := replay.Changes[m.ID]; ok {
			changes = ch
		}
	}
	return changes, nil
}

// applyLive rates and stores m under the player locks. backdated reports
// whether one of the players already has a later match.
func (s *Service) applyLive(ctx context.Context, m model.Match) (changes model.EloChanges, backdated bool, err error) { //nolint:gocritic // hugeParam
	s.gate.RLock()
	defer s.gate.RUnlock()

	unlock := s.locks.lock(m.Players[:]...)
	defer unlock()

	var (
		players [4]model.Player
		states  [4]rating.PlayerState
	)
	for i, id := range m.Players {
		p, err := s.store.Player(ctx, id)
		if err != nil {
			return model.EloChanges{}, false, fmt.Errorf("match %s: %w", m.ID, err)
		}
		players[i] = p
		states[i] = rating.PlayerState{
			ID:            p.ID,
			Rating:        p.Rating,
			MatchesPlayed: p.MatchesPlayed,
			MatchesWon:    p.MatchesWon,
		}
		if s.autoRecompute && !backdated {
			if backdated, err = s.hasLaterMatch(ctx, id, m); err != nil {
				return model.EloChanges{}, false, err
			}
		}
	}

	out, err := s.engine.ApplyMatch(m, states)
	if err != nil {
		metrics.RecordMatchRejected("engine")
		return model.EloChanges{}, false, err
	}

	m.Changes = &out.Changes
	for i, st := range out.Players {
		players[i].Rating = st.Rating
		players[i].MatchesPlayed = st.MatchesPlayed
		players[i].MatchesWon = st.MatchesWon
	}
	if err := s.store.RecordMatch(ctx, m, players); err != nil {
		metrics.RecordErrorByComponent("service", "store_write")
		return model.EloChanges{}, false, err
	}

	for i, p := range players {
		s.index.Set(p.ID, p.Rating)
		metrics.RecordRatingDelta(strconv.FormatFloat(out.KFactors[i], 'f', -1, 64), out.Changes.At(i+1).Change)
		if out.Floored[i] {
			metrics.RecordRatingFloorHit()
		}
	}

	s.logger.Debug(ctx, "match recorded",
		logger.String("match_id", m.ID),
		logger.Int("winner_team", m.WinnerTeam),
		logger.Any("changes", out.Changes),
		logger.Bool("backdated", backdated),
	)
	return out.Changes, backdated, nil
}

func (s *Service) hasLaterMatch(ctx context.Context, playerID string, m model.Match) (bool, error) { //nolint:gocritic // hugeParam
	history, err := s.store.PlayerMatches(ctx, playerID)
	if err != nil {
		return false, err
	}
	if len(history) == 0 {
		return false, nil
	}
	latest := history[0]
	if c := latest.PlayedAt.Compare(m.PlayedAt); c != 0 {
		return c > 0, nil
	}
	return latest.ID > m.ID, nil
}

// Match returns one recorded match.
func (s *Service) Match(ctx context.Context, id string) (model.Match, error) {
	return s.store.Match(ctx, id)
}

// PlayerMatches returns the matches a player played, most recent first.
// limit <= 0 returns all of them.
func (s *Service) PlayerMatches(ctx context.Context, playerID string, limit int) ([]model.Match, error) {
	ms, err := s.store.PlayerMatches(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ms) > limit {
		ms = ms[:limit]
	}
	return ms, nil
}
