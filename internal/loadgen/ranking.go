package loadgen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/vibo/pkg/logger"
)

// waitProcessed polls GET /stats until the workers have rated at least
// want matches.
func waitProcessed(ctx context.Context, cfg *Config, client *HTTPClient, want int) error {
	logger.Get().Info(ctx, "waiting for matches to be rated", logger.Int("accepted", want))

	ctx, cancel := context.WithTimeout(ctx, cfg.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		var st map[string]any
		if err := client.GetJSON(ctx, cfg.BaseURL+"/stats", &st); err == nil {
			processed, _ := st["processed"].(float64)
			queued, _ := st["queueLength"].(float64)
			if int(processed) >= want && queued == 0 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("matches not rated within %s: %w", cfg.SettleTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// getRanking fetches the ranking of up to limit players.
func getRanking(ctx context.Context, cfg *Config, client *HTTPClient, limit int, stats *Stats) ([]RankingEntry, error) {
	var entries []RankingEntry
	url := cfg.BaseURL + "/ranking?limit=" + strconv.Itoa(limit)
	if err := client.GetJSON(ctx, url, &entries); err != nil {
		return nil, err
	}
	stats.RankingEntries = len(entries)
	return entries, nil
}

// fetchPlayers reads the profile of every generated player.
func fetchPlayers(ctx context.Context, cfg *Config, client *HTTPClient, players []PlayerRequest) ([]PlayerProfile, error) {
	profiles := make([]PlayerProfile, len(players))
	idx := make([]int, len(players))
	for i := range idx {
		idx[i] = i
	}

	var mu sync.Mutex
	var errs []error
	forEach(ctx, cfg.Workers, idx, func(i int) {
		var p PlayerProfile
		if err := client.GetJSON(ctx, cfg.BaseURL+"/players/"+players[i].ID, &p); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return
		}
		profiles[i] = p
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return profiles, ctx.Err()
}
