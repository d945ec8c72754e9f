package rating

import (
	"fmt"

	"github.com/okian/vibo/internal/domain/model"
)

// MaxSets bounds the score length of a match.
const MaxSets = 5

// ValidateMatch checks the structure of a match before it is rated:
// four distinct players, a winner of 1 or 2 that agrees with the sets, and
// a timestamp. Errors wrap ErrInvalidMatch.
func ValidateMatch(m model.Match) error {
	seen := make(map[string]struct{}, len(m.Players))
	for i, id := range m.Players {
		if id == "" {
			return fmt.Errorf("%w: slot %d has no player", ErrInvalidMatch, i+1)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: player %s appears twice", ErrInvalidMatch, id)
		}
		seen[id] = struct{}{}
	}

	if m.WinnerTeam != model.Team1 && m.WinnerTeam != model.Team2 {
		return fmt.Errorf("%w: winner team %d", ErrInvalidMatch, m.WinnerTeam)
	}
	if m.PlayedAt.IsZero() {
		return fmt.Errorf("%w: missing played_at", ErrInvalidMatch)
	}

	winner, err := SetsWinner(m.Sets)
	if err != nil {
		return err
	}
	if winner != m.WinnerTeam {
		return fmt.Errorf("%w: score says team %d won, winner_team is %d", ErrInvalidMatch, winner, m.WinnerTeam)
	}
	return nil
}

// SetsWinner returns the team that won the majority of sets.
func SetsWinner(sets []model.SetScore) (int, error) {
	if len(sets) == 0 {
		return 0, fmt.Errorf("%w: missing score", ErrInvalidMatch)
	}
	if len(sets) > MaxSets {
		return 0, fmt.Errorf("%w: %d sets, at most %d", ErrInvalidMatch, len(sets), MaxSets)
	}

	var won [3]int
	for i, s := range sets {
		switch {
		case s.Team1 < 0 || s.Team2 < 0:
			return 0, fmt.Errorf("%w: set %d has a negative score", ErrInvalidMatch, i+1)
		case s.Team1 == s.Team2:
			return 0, fmt.Errorf("%w: set %d is tied %d-%d", ErrInvalidMatch, i+1, s.Team1, s.Team2)
		case s.Team1 > s.Team2:
			won[model.Team1]++
		default:
			won[model.Team2]++
		}
	}

	switch {
	case won[model.Team1] > won[model.Team2]:
		return model.Team1, nil
	case won[model.Team2] > won[model.Team1]:
		return model.Team2, nil
	default:
		return 0, fmt.Errorf("%w: sets are tied %d-%d", ErrInvalidMatch, won[model.Team1], won[model.Team2])
	}
}
