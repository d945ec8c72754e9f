package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/vibo/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging sends log output to stdout and to logFile. If logFile is
// empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "loadgen_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information.
func ShowHelp() {
	os.Stdout.WriteString(`vibo load generator
===================

Creates players, submits a burst of padel matches concurrently and checks
the resulting ranking.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -players int       Players to create (default 200)
  -matches int       Matches to submit (default 5000)
  -duplicates float  Share of repeated submissions (default 0.05)
  -workers int       Concurrent workers (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 30s)
  -settle duration   How long to wait for rating to finish (default 2m)
  -seed uint         Generator seed (default: current time)
  -output string     Save generated matches as JSON
  -log string        Log file (default: loadgen_TIMESTAMP.log)
  -verbose           Enable debug logging
  -help              Show this help message

Examples:
  go run ./cmd/loadgen -matches 20000 -workers 32
  go run ./cmd/loadgen -seed 42 -output run42.json
`)
}
