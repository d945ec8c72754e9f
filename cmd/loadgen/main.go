package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/vibo/internal/loadgen"
)

// Default configuration constants.
const (
	defaultPlayers       = 200
	defaultMatches       = 5000
	defaultDuplicateRate = 0.05
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultSettleTimeout = 2 * time.Minute
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players    = flag.Int("players", defaultPlayers, "Players to create")
		matches    = flag.Int("matches", defaultMatches, "Matches to submit")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Share of repeated submissions")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettleTimeout, "How long to wait for rating to finish")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		outputFile = flag.String("output", "", "Save generated matches as JSON")
		logFile    = flag.String("log", "", "Log file (default: loadgen_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:       *baseURL,
		Players:       *players,
		Matches:       *matches,
		DuplicateRate: *duplicates,
		Workers:       *workers,
		Timeout:       *timeout,
		SettleTimeout: *settle,
		Seed:          *seed,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}
	if _, err := loadgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel called above
	}
}
