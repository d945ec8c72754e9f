package replaylog

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteTable prints the final ranking followed by skipped matches.
func WriteTable(w io.Writer, res Result) error { //nolint:gocritic // hugeParam
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tplayer\tcategory\trating\tplayed\twon\twin %\t")
	for _, r := range res.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%.1f\t\n",
			r.Rank, r.Player.DisplayName, r.Category, r.Player.Rating, r.MatchesPlayed, r.MatchesWon, r.WinRate)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d matches replayed, %d skipped\n", res.Replayed, len(res.Failures))
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s: %v\n", f.MatchID, f.Err)
	}
	return nil
}
