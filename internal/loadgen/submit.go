package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/vibo/pkg/logger"
)

// submission outcomes
const (
	outcomeAccepted = iota
	outcomeDuplicate
	outcomeFailed
)

// forEach runs fn over items with the configured number of workers.
func forEach[T any](ctx context.Context, workers int, items []T, fn func(T)) {
	ch := make(chan T, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range ch {
				fn(it)
			}
		}()
	}

	defer wg.Wait()
	defer close(ch)
	for _, it := range items {
		select {
		case <-ctx.Done():
			return
		case ch <- it:
		}
	}
}

// createPlayers registers the generated players.
func createPlayers(ctx context.Context, cfg *Config, client *HTTPClient, players []PlayerRequest, stats *Stats) error {
	logger.Get().Info(ctx, "creating players", logger.Int("players", len(players)))

	var created, failed int64
	url := cfg.BaseURL + "/players"
	forEach(ctx, cfg.Workers, players, func(p PlayerRequest) {
		status, err := client.PostJSON(ctx, url, p, nil)
		if err != nil || status != http.StatusCreated {
			atomic.AddInt64(&failed, 1)
			if cfg.Verbose {
				logger.Get().Warn(ctx, "failed to create player",
					logger.String("id", p.ID), logger.Int("status", status), logger.Error(err))
			}
			return
		}
		atomic.AddInt64(&created, 1)
	})

	stats.PlayersCreated = int(created)
	if failed > 0 {
		return fmt.Errorf("%d of %d players could not be created", failed, len(players))
	}
	return ctx.Err()
}

// submitMatches posts every match, retrying on backpressure.
func submitMatches(ctx context.Context, cfg *Config, client *HTTPClient, matches []MatchRequest, stats *Stats) {
	logger.Get().Info(ctx, "submitting matches",
		logger.Int("matches", len(matches)), logger.Int("workers", cfg.Workers))

	var submitted, accepted, duplicate, retried, failed int64
	url := cfg.BaseURL + "/matches"

	var lastReport atomic.Int64
	forEach(ctx, cfg.Workers, matches, func(m MatchRequest) {
		outcome, retries := submitOne(ctx, client, url, m)
		atomic.AddInt64(&retried, int64(retries))
		n := atomic.AddInt64(&submitted, 1)
		switch outcome {
		case outcomeAccepted:
			atomic.AddInt64(&accepted, 1)
		case outcomeDuplicate:
			atomic.AddInt64(&duplicate, 1)
		default:
			atomic.AddInt64(&failed, 1)
		}

		now := time.Now().UnixNano()
		if last := lastReport.Load(); cfg.Verbose && now-last >= int64(time.Second) && lastReport.CompareAndSwap(last, now) {
			logger.Get().Debug(ctx, "progress",
				logger.Int64("submitted", n), logger.Int("total", len(matches)))
		}
	})

	stats.Submitted = int(submitted)
	stats.Accepted = int(accepted)
	stats.Duplicate = int(duplicate)
	stats.Retried = int(retried)
	stats.Failed = int(failed)

	logger.Get().Info(ctx, "match submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("retried", stats.Retried),
		logger.Int("failed", stats.Failed))
}

// submitOne posts one match and classifies the answer.
func submitOne(ctx context.Context, client *HTTPClient, url string, m MatchRequest) (outcome, retries int) { //nolint:gocritic // hugeParam
	delay := retryBaseDelay
	for attempt := 1; ; attempt++ {
		var ack AckResponse
		status, err := client.PostJSON(ctx, url, m, &ack)
		switch {
		case err != nil:
			return outcomeFailed, attempt - 1
		case status == http.StatusAccepted:
			return outcomeAccepted, attempt - 1
		case status == http.StatusOK && ack.Duplicate:
			return outcomeDuplicate, attempt - 1
		case status == http.StatusTooManyRequests && attempt < maxSubmitAttempts:
			select {
			case <-ctx.Done():
				return outcomeFailed, attempt - 1
			case <-time.After(delay):
			}
			delay *= 2
		default:
			return outcomeFailed, attempt - 1
		}
	}
}
