package rating

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/okian/vibo/internal/domain/model"
)

// Replay is the result of a recomputation.
type Replay struct {
	// Players is the final state of every roster player.
	Players map[string]PlayerState
	// Changes holds the regenerated rating changes per replayed match id.
	Changes map[string]model.EloChanges
	// Applied lists replayed match ids in replay order.
	Applied []string
	// Seeded counts matches taken from their recorded changes instead of
	// being replayed.
	Seeded int
	// Failures lists matches left out under PolicySkip.
	Failures []*RecomputeError
}

// SortMatches returns a copy of ms in replay order: PlayedAt ascending,
// then match id.
func SortMatches(ms []model.Match) []model.Match {
	out := slices.Clone(ms)
	slices.SortStableFunc(out, func(a, b model.Match) int {
		if c := a.PlayedAt.Compare(b.PlayedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// RecomputeAll resets every roster player to the initial rating of their
// starting category and replays all matches in order.
func (e *Engine) RecomputeAll(roster []model.Player, matches []model.Match) (Replay, error) {
	r, err := e.reset(roster)
	if err != nil {
		return Replay{}, err
	}
	if err := e.fold(&r, SortMatches(matches)); err != nil {
		return Replay{}, err
	}
	return r, nil
}

// RecomputeFrom seeds state from the snapshot just before from and replays
// the matches played at or after it. For a consistent match log the result
// equals RecomputeAll.
func (e *Engine) RecomputeFrom(roster []model.Player, matches []model.Match, from time.Time) (Replay, error) {
	sorted := SortMatches(matches)
	cut := splitAt(sorted, from)

	r, err := e.snapshot(roster, sorted[:cut])
	if err != nil {
		return Replay{}, err
	}
	if err := e.fold(&r, sorted[cut:]); err != nil {
		return Replay{}, err
	}
	return r, nil
}

// SnapshotBefore returns the state immediately before from. Matches whose
// recorded changes agree with the running ratings are taken as recorded;
// the others are replayed and their changes regenerated.
func (e *Engine) SnapshotBefore(roster []model.Player, matches []model.Match, from time.Time) (Replay, error) {
	sorted := SortMatches(matches)
	return e.snapshot(roster, sorted[:splitAt(sorted, from)])
}

func (e *Engine) snapshot(roster []model.Player, before []model.Match) (Replay, error) {
	r, err := e.reset(roster)
	if err != nil {
		return Replay{}, err
	}
	for _, m := range before {
		if e.seed(r.Players, m) {
			r.Seeded++
			continue
		}
		if err := e.fold(&r, []model.Match{m}); err != nil {
			return Replay{}, err
		}
	}
	return r, nil
}

// seed applies the recorded changes of m when they are usable.
func (e *Engine) seed(states map[string]PlayerState, m model.Match) bool {
	if m.Changes == nil || ValidateMatch(m) != nil {
		return false
	}
	for i, id := range m.Players {
		s, ok := states[id]
		ch := m.Changes.At(i + 1)
		if !ok || s.Rating != ch.Before || ch.After < e.floor || ch.After-ch.Before != ch.Change {
			return false
		}
	}
	for i, id := range m.Players {
		s := states[id]
		s.Rating = m.Changes.At(i + 1).After
		s.MatchesPlayed++
		if model.TeamOfSlot(i+1) == m.WinnerTeam {
			s.MatchesWon++
		}
		states[id] = s
	}
	return true
}

func (e *Engine) reset(roster []model.Player) (Replay, error) {
	r := Replay{
		Players: make(map[string]PlayerState, len(roster)),
		Changes: make(map[string]model.EloChanges),
	}
	for _, p := range roster {
		if p.ID == "" {
			return Replay{}, fmt.Errorf("%w: %w: roster entry without id", ErrRecomputation, ErrInvalidInput)
		}
		if _, dup := r.Players[p.ID]; dup {
			return Replay{}, fmt.Errorf("%w: %w: player %s listed twice", ErrRecomputation, ErrInvalidInput, p.ID)
		}
		s, err := NewState(p.ID, p.StartingCategory)
		if err != nil {
			return Replay{}, fmt.Errorf("%w: %w", ErrRecomputation, err)
		}
		r.Players[p.ID] = s
	}
	return r, nil
}

// fold replays matches in the given order onto r.
func (e *Engine) fold(r *Replay, matches []model.Match) error {
	for _, m := range matches {
		var in [4]PlayerState
		for i, id := range m.Players {
			in[i] = r.Players[id]
		}

		out, err := e.ApplyMatch(m, in)
		if err != nil {
			rerr := &RecomputeError{MatchID: m.ID, Err: err}
			if e.policy == PolicyAbort {
				return rerr
			}
			r.Failures = append(r.Failures, rerr)
			continue
		}

		for _, s := range out.Players {
			r.Players[s.ID] = s
		}
		r.Changes[m.ID] = out.Changes
		r.Applied = append(r.Applied, m.ID)
	}
	return nil
}

// splitAt returns the index of the first match played at or after from.
func splitAt(sorted []model.Match, from time.Time) int {
	i, _ := slices.BinarySearchFunc(sorted, from, func(m model.Match, t time.Time) int {
		return m.PlayedAt.Compare(t)
	})
	return i
}
