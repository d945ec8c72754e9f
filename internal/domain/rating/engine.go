// Package rating implements the padel ELO engine: per-match rating updates
// for two teams of two and deterministic replay of the match log.
//
// The engine holds no mutable state. Callers pass the current PlayerState of
// the four participants in and persist what comes back.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
)

// PlayerState is the rating-relevant state of one player.
type PlayerState struct {
	ID            string
	Rating        int
	MatchesPlayed int
	MatchesWon    int
}

// Outcome is the result of applying one match.
type Outcome struct {
	Changes  model.EloChanges
	Players  [4]PlayerState // updated states, same slot order as the match
	KFactors [4]float64
	Floored  [4]bool // the computed rating was clamped to the floor
}

// Engine computes rating updates.
type Engine struct {
	provisionalK float64
	establishedK float64
	threshold    int
	floor        int
	policy       Policy
}

// New returns an Engine with the default constants unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		provisionalK: DefaultProvisionalK,
		establishedK: DefaultEstablishedK,
		threshold:    DefaultProvisionalThreshold,
		floor:        DefaultFloor,
		policy:       PolicySkip,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the replay failure policy.
func (e *Engine) Policy() Policy { return e.policy }

// Floor returns the minimum rating.
func (e *Engine) Floor() int { return e.floor }

// KFactor returns the K-factor for a player with the given prior match count.
func (e *Engine) KFactor(matchesPlayed int) float64 {
	if matchesPlayed < e.threshold {
		return e.provisionalK
	}
	return e.establishedK
}

// Expected returns the logistic expectation of a team averaging own against
// a team averaging opponent.
func Expected(own, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-own)/400))
}

// InitialRating returns the starting rating for c.
func InitialRating(c category.Category) int { return category.InitialRating(c) }

// CategoryForRating returns the display category for r.
func CategoryForRating(r int) category.Category { return category.ForRating(r) }

// NewState returns the reset state of a player starting in c.
func NewState(id string, c category.Category) (PlayerState, error) {
	if !c.Valid() {
		return PlayerState{}, fmt.Errorf("%w: player %s: %d", ErrInvalidCategory, id, uint8(c))
	}
	return PlayerState{ID: id, Rating: category.InitialRating(c)}, nil
}

// ApplyMatch rates one match. players must hold the current state of the
// match's four players in slot order. On error nothing is returned.
func (e *Engine) ApplyMatch(m model.Match, players [4]PlayerState) (Outcome, error) {
	if err := ValidateMatch(m); err != nil {
		return Outcome{}, err
	}
	for i, p := range players {
		if err := checkState(m.Players[i], p); err != nil {
			return Outcome{}, fmt.Errorf("%w: slot %d: %w", ErrInvalidInput, i+1, err)
		}
	}

	avg := [3]float64{
		model.Team1: float64(players[0].Rating+players[1].Rating) / 2,
		model.Team2: float64(players[2].Rating+players[3].Rating) / 2,
	}

	var out Outcome
	for i, p := range players {
		team := model.TeamOfSlot(i + 1)
		opp := model.Team1
		if team == model.Team1 {
			opp = model.Team2
		}

		k := e.KFactor(p.MatchesPlayed)
		exp := Expected(avg[team], avg[opp])
		score := 0.0
		if team == m.WinnerTeam {
			score = 1
		}

		next := int(math.Round(float64(p.Rating) + k*(score-exp)))
		if next < e.floor {
			next = e.floor
			out.Floored[i] = true
		}

		out.KFactors[i] = k
		out.Changes.Set(i+1, model.EloChange{Before: p.Rating, After: next, Change: next - p.Rating})

		p.Rating = next
		p.MatchesPlayed++
		if score == 1 {
			p.MatchesWon++
		}
		out.Players[i] = p
	}
	return out, nil
}

func checkState(id string, p PlayerState) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("missing state for player %s", id)
	case p.ID != id:
		return fmt.Errorf("state for %s given in slot of %s", p.ID, id)
	case p.Rating <= 0:
		return fmt.Errorf("player %s has no rating", id)
	case p.MatchesPlayed < 0, p.MatchesWon < 0, p.MatchesWon > p.MatchesPlayed:
		return fmt.Errorf("player %s has inconsistent counters %d/%d", id, p.MatchesWon, p.MatchesPlayed)
	}
	return nil
}
