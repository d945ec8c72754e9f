// Command replay rates a YAML match log offline and prints the final table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/okian/vibo/internal/domain/rating"
	"github.com/okian/vibo/internal/replaylog"
	"github.com/okian/vibo/pkg/logger"
)

func main() {
	var (
		path    = flag.String("file", "matches.yaml", "YAML match log to replay")
		policy  = flag.String("policy", "skip", "What a failing match does: skip or abort")
		verbose = flag.Bool("verbose", false, "Log skipped matches as they are reported")
	)
	flag.Parse()

	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Named("replay")
	ctx := context.Background()

	l, err := replaylog.Load(*path)
	if err != nil {
		log.Fatal(ctx, "failed to load match log", logger.String("file", *path), logger.Error(err))
	}

	res, err := replaylog.Run(rating.New(rating.WithPolicy(rating.ParsePolicy(*policy))), l)
	if err != nil {
		log.Fatal(ctx, "replay aborted", logger.Error(err))
	}
	for _, f := range res.Failures {
		log.Debug(ctx, "skipped match", logger.String("match_id", f.MatchID), logger.Error(f.Err))
	}

	if err := replaylog.WriteTable(os.Stdout, res); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
