package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/vibo/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// maxRankingFetch is the ranking size requested for the order check; the
// service clamps it to its own maximum.
const maxRankingFetch = 1000

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("matches", cfg.Matches),
		logger.Int("workers", cfg.Workers),
		logger.Float64("duplicateRate", cfg.DuplicateRate),
		logger.Any("seed", cfg.Seed))

	if cfg.Players < 4 {
		return stats, fmt.Errorf("need at least 4 players, got %d", cfg.Players)
	}
	client := newHTTPClient(cfg.Timeout)

	if err := checkServiceHealth(ctx, cfg, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg.Seed)
	players := gen.Players(cfg.Players)
	matches := gen.Matches(players, cfg.Matches, cfg.DuplicateRate, time.Now().Add(-time.Minute))
	stats.MatchesGenerated = len(matches)

	if err := createPlayers(ctx, cfg, client, players, stats); err != nil {
		return stats, fmt.Errorf("player creation failed: %w", err)
	}
	submitMatches(ctx, cfg, client, matches, stats)

	if err := waitProcessed(ctx, cfg, client, stats.Accepted); err != nil {
		return stats, err
	}

	ranking, err := getRanking(ctx, cfg, client, maxRankingFetch, stats)
	if err != nil {
		return stats, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	profiles, err := fetchPlayers(ctx, cfg, client, players)
	if err != nil {
		return stats, fmt.Errorf("player retrieval failed: %w", err)
	}
	if err := verifyResults(ctx, ranking, profiles, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveMatchesToFile(ctx, cfg.OutputFile, matches); err != nil {
			log.Warn(ctx, "failed to save matches to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config, client *HTTPClient) error {
	resp, err := client.Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	// any 200 is healthy; the body is Prometheus metrics
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// saveMatchesToFile writes the generated matches as a JSON array.
func saveMatchesToFile(ctx context.Context, filename string, matches []MatchRequest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	logger.Get().Info(ctx, "matches saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted+stats.Duplicate) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("playersCreated", stats.PlayersCreated),
		logger.Int("matchesGenerated", stats.MatchesGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("retried", stats.Retried),
		logger.Int("failed", stats.Failed),
		logger.Int("rankingEntries", stats.RankingEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("answeredRate", acceptRate),
		logger.Float64("matchesPerSecond", perSecond))
}
