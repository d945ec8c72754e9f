package service

import (
	"context"
	"time"

	"github.com/okian/vibo/internal/adapters/repository"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/rating"
	"github.com/okian/vibo/pkg/logger"
	"github.com/okian/vibo/pkg/metrics"
)

// Recompute modes.
const (
	ModeFull    = "full"
	ModePartial = "partial"
)

// FailedMatch is a historical match left out of a recomputation.
type FailedMatch struct {
	MatchID string
	Reason  string
}

// RecomputeReport summarises a recomputation.
type RecomputeReport struct {
	Mode string
	// From is the replay start of a partial run, nil for a full one.
	From *time.Time
	// Replayed counts matches run through the engine, Seeded those taken
	// from their recorded changes.
	Replayed int
	Seeded   int
	// PlayersUpdated counts players whose rating or counters changed.
	PlayersUpdated int
	Failures       []FailedMatch
	Duration       time.Duration
}

// Recompute replays the match log and persists the result. With from nil
// every player is reset to their starting category and the whole log is
// replayed; otherwise the state just before from is rebuilt from recorded
// changes and only later matches are replayed. Live updates wait while it
// runs. Under the abort policy a failing match returns an error wrapping
// rating.ErrRecomputation and nothing is written.
func (s *Service) Recompute(ctx context.Context, from *time.Time) (RecomputeReport, error) {
	rep, _, err := s.recompute(ctx, from)
	return rep, err
}

func (s *Service) recompute(ctx context.Context, from *time.Time) (RecomputeReport, rating.Replay, error) {
	start := time.Now()
	rep := RecomputeReport{Mode: ModeFull}
	if from != nil {
		t := from.UTC()
		rep.Mode, rep.From = ModePartial, &t
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	roster, err := s.store.Players(ctx)
	if err != nil {
		return rep, rating.Replay{}, err
	}
	matches, err := s.store.Matches(ctx)
	if err != nil {
		return rep, rating.Replay{}, err
	}

	var replay rating.Replay
	if rep.From == nil {
		replay, err = s.engine.RecomputeAll(roster, matches)
	} else {
		replay, err = s.engine.RecomputeFrom(roster, matches, *rep.From)
	}
	if err != nil {
		metrics.RecordRecompute(rep.Mode, "aborted", msSince(start), 1)
		s.logger.Error(ctx, "recompute aborted", logger.String("mode", rep.Mode), logger.Error(err))
		return rep, rating.Replay{}, err
	}

	w := diffReplay(roster, matches, replay)
	if err := s.store.ApplyReplay(ctx, w); err != nil {
		metrics.RecordRecompute(rep.Mode, "error", msSince(start), len(replay.Failures))
		metrics.RecordErrorByComponent("service", "store_write")
		return rep, rating.Replay{}, err
	}

	ratings := make(map[string]int, len(replay.Players))
	for id, st := range replay.Players {
		ratings[id] = st.Rating
	}
	s.index.SetMany(ratings)

	rep.Replayed = len(replay.Applied)
	rep.Seeded = replay.Seeded
	rep.PlayersUpdated = len(w.Players)
	for _, f := range replay.Failures {
		rep.Failures = append(rep.Failures, FailedMatch{MatchID: f.MatchID, Reason: f.Err.Error()})
	}
	rep.Duration = time.Since(start)

	outcome := "ok"
	if len(rep.Failures) > 0 {
		outcome = "partial"
	}
	metrics.RecordRecompute(rep.Mode, outcome, msSince(start), len(rep.Failures))

	fields := []logger.Field{
		logger.String("mode", rep.Mode),
		logger.Int("replayed", rep.Replayed),
		logger.Int("seeded", rep.Seeded),
		logger.Int("players_updated", rep.PlayersUpdated),
		logger.Int("failures", len(rep.Failures)),
		logger.Duration("took", rep.Duration),
	}
	if rep.From != nil {
		fields = append(fields, logger.Time("from", *rep.From))
	}
	if len(rep.Failures) > 0 {
		s.logger.Warn(ctx, "recompute skipped matches", fields...)
	} else {
		s.logger.Info(ctx, "recompute finished", fields...)
	}
	return rep, replay, nil
}

// diffReplay keeps only what the replay actually changed.
func diffReplay(roster []model.Player, matches []model.Match, r rating.Replay) repository.ReplayWrite { //nolint:gocritic // hugeParam
	var w repository.ReplayWrite
	for _, p := range roster {
		st := r.Players[p.ID]
		if st.Rating == p.Rating && st.MatchesPlayed == p.MatchesPlayed && st.MatchesWon == p.MatchesWon {
			continue
		}
		p.Rating, p.MatchesPlayed, p.MatchesWon = st.Rating, st.MatchesPlayed, st.MatchesWon
		w.Players = append(w.Players, p)
	}

	failed := make(map[string]bool, len(r.Failures))
	for _, f := range r.Failures {
		failed[f.MatchID] = true
	}
	for _, m := range matches {
		if ch, ok := r.Changes[m.ID]; ok && (m.Changes == nil || *m.Changes != ch) {
			if w.Changes == nil {
				w.Changes = make(map[string]model.EloChanges)
			}
			w.Changes[m.ID] = ch
		}
		if failed[m.ID] && m.Changes != nil {
			w.Cleared = append(w.Cleared, m.ID)
		}
	}
	return w
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Milliseconds())
}
