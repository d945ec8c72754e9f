package loadgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/vibo/pkg/logger"
)

// ratingFloor is the lowest rating the service hands out.
const ratingFloor = 100

// verifyRanking checks ordering and competition ranks.
func verifyRanking(ranking []RankingEntry) error {
	var errs []error
	for i := 1; i < len(ranking); i++ {
		prev, e := ranking[i-1], ranking[i]
		switch {
		case prev.Rating < e.Rating:
			errs = append(errs, fmt.Errorf("ranking out of order at %d: %d before %d", i+1, prev.Rating, e.Rating))
		case prev.Rating == e.Rating && prev.Rank != e.Rank:
			errs = append(errs, fmt.Errorf("tied players %s and %s ranked %d and %d", prev.PlayerID, e.PlayerID, prev.Rank, e.Rank))
		case prev.Rating > e.Rating && e.Rank != i+1:
			errs = append(errs, fmt.Errorf("player %s ranked %d at position %d", e.PlayerID, e.Rank, i+1))
		}
	}
	return errors.Join(errs...)
}

// verifyPlayers checks the run's players against what was submitted: every
// accepted match moved four players, two of them winners.
func verifyPlayers(profiles []PlayerProfile, accepted int) error {
	var errs []error
	var played, won int
	for _, p := range profiles {
		played += p.MatchesPlayed
		won += p.MatchesWon
		if p.Rating < ratingFloor {
			errs = append(errs, fmt.Errorf("player %s below the floor: %d", p.ID, p.Rating))
		}
		if p.MatchesWon > p.MatchesPlayed {
			errs = append(errs, fmt.Errorf("player %s won %d of %d", p.ID, p.MatchesWon, p.MatchesPlayed))
		}
	}
	if played != 4*accepted {
		errs = append(errs, fmt.Errorf("matches played sum to %d, want %d", played, 4*accepted))
	}
	if won != 2*accepted {
		errs = append(errs, fmt.Errorf("matches won sum to %d, want %d", won, 2*accepted))
	}
	return errors.Join(errs...)
}

// verifyResults runs both checks.
func verifyResults(ctx context.Context, ranking []RankingEntry, profiles []PlayerProfile, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")
	if err := errors.Join(verifyRanking(ranking), verifyPlayers(profiles, stats.Accepted)); err != nil {
		return err
	}
	logger.Get().Info(ctx, "results verified", logger.Int("players", len(profiles)))
	return nil
}
