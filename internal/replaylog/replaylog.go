// Package replaylog loads a YAML match log and replays it through the
// rating engine offline.
package replaylog

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/rating"
)

// ErrInvalidLog is returned for logs that cannot be turned into a roster
// and a match list.
var ErrInvalidLog = errors.New("invalid match log")

// Log is the on-disk shape of a match log.
type Log struct {
	Players []PlayerEntry `koanf:"players"`
	Matches []MatchEntry  `koanf:"matches"`
}

// PlayerEntry declares a player and their starting category label.
type PlayerEntry struct {
	ID       string `koanf:"id"`
	Name     string `koanf:"name"`
	Category string `koanf:"category"`
}

// MatchEntry is one match. Sets are "6-3" strings; a 7-6 set counts as a
// tiebreak. Matches without an id are numbered by position.
type MatchEntry struct {
	ID         string   `koanf:"id"`
	PlayedAt   string   `koanf:"played_at"`
	Team1      []string `koanf:"team1"`
	Team2      []string `koanf:"team2"`
	Sets       []string `koanf:"sets"`
	WinnerTeam int      `koanf:"winner_team"`
}

// Load reads a YAML match log from path.
func Load(path string) (*Log, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	var l Log
	if err := k.UnmarshalWithConf("", &l, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLog, path, err)
	}
	return &l, nil
}

// Build converts the log into a roster and matches. Match-level problems
// other than malformed fields are left for the engine to report.
func (l *Log) Build() ([]model.Player, []model.Match, error) {
	roster := make([]model.Player, 0, len(l.Players))
	seen := make(map[string]bool, len(l.Players))
	for i, p := range l.Players {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, nil, fmt.Errorf("%w: player %d has no id", ErrInvalidLog, i+1)
		}
		if seen[id] {
			return nil, nil, fmt.Errorf("%w: player %s declared twice", ErrInvalidLog, id)
		}
		seen[id] = true

		c, err := category.Parse(strings.TrimSpace(p.Category))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: player %s: %w", ErrInvalidLog, id, err)
		}
		name := p.Name
		if name == "" {
			name = id
		}
		roster = append(roster, model.Player{ID: id, DisplayName: name, StartingCategory: c})
	}

	matches := make([]model.Match, 0, len(l.Matches))
	for i, e := range l.Matches {
		m, err := e.match(i)
		if err != nil {
			return nil, nil, err
		}
		matches = append(matches, m)
	}
	return roster, matches, nil
}

func (e *MatchEntry) match(i int) (model.Match, error) {
	id := e.ID
	if id == "" {
		id = fmt.Sprintf("m%04d", i+1)
	}
	if len(e.Team1) != 2 || len(e.Team2) != 2 {
		return model.Match{}, fmt.Errorf("%w: match %s: teams need two players each", ErrInvalidLog, id)
	}
	at, err := time.Parse(time.RFC3339, e.PlayedAt)
	if err != nil {
		return model.Match{}, fmt.Errorf("%w: match %s: played_at: %w", ErrInvalidLog, id, err)
	}
	sets := make([]model.SetScore, 0, len(e.Sets))
	for _, raw := range e.Sets {
		s, err := parseSet(raw)
		if err != nil {
			return model.Match{}, fmt.Errorf("%w: match %s: %w", ErrInvalidLog, id, err)
		}
		sets = append(sets, s)
	}
	return model.Match{
		ID:         id,
		PlayedAt:   at.UTC(),
		Players:    [4]string{e.Team1[0], e.Team1[1], e.Team2[0], e.Team2[1]},
		Sets:       sets,
		WinnerTeam: e.WinnerTeam,
	}, nil
}

func parseSet(raw string) (model.SetScore, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return model.SetScore{}, fmt.Errorf("set %q: want games as A-B", raw)
	}
	t1, err1 := strconv.Atoi(strings.TrimSpace(a))
	t2, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil {
		return model.SetScore{}, fmt.Errorf("set %q: games must be numbers", raw)
	}
	tb := (t1 == 7 && t2 == 6) || (t1 == 6 && t2 == 7)
	return model.SetScore{Team1: t1, Team2: t2, Tiebreak: tb}, nil
}

// Row is one line of the final table.
type Row struct {
	Rank          int
	Player        model.Player
	Category      category.Category
	MatchesPlayed int
	MatchesWon    int
	WinRate       float64
}

// Result is the outcome of replaying a log.
type Result struct {
	Rows     []Row
	Replayed int
	Failures []*rating.RecomputeError
}

// Run replays the log from the starting categories. Under the abort policy
// the first failing match ends the run with its error.
func Run(e *rating.Engine, l *Log) (Result, error) {
	roster, matches, err := l.Build()
	if err != nil {
		return Result{}, err
	}
	r, err := e.RecomputeAll(roster, matches)
	if err != nil {
		return Result{}, err
	}

	rows := make([]Row, 0, len(roster))
	for _, p := range roster {
		st := r.Players[p.ID]
		p.Rating = st.Rating
		p.MatchesPlayed = st.MatchesPlayed
		p.MatchesWon = st.MatchesWon
		rows = append(rows, Row{
			Player:        p,
			Category:      p.Category(),
			MatchesPlayed: st.MatchesPlayed,
			MatchesWon:    st.MatchesWon,
			WinRate:       p.WinRate(),
		})
	}
	slices.SortFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(b.Player.Rating, a.Player.Rating); c != 0 {
			return c
		}
		return cmp.Compare(a.Player.ID, b.Player.ID)
	})
	// competition ranking: ties share a rank, the next rank skips
	for i := range rows {
		if i > 0 && rows[i].Player.Rating == rows[i-1].Player.Rating {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}
	return Result{Rows: rows, Replayed: len(r.Applied), Failures: r.Failures}, nil
}
