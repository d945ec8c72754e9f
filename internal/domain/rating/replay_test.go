package rating

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func roster(n int) []model.Player {
	out := make([]model.Player, n)
	cats := category.All()
	for i := range out {
		out[i] = model.Player{ID: fmt.Sprintf("p%02d", i), StartingCategory: cats[i%len(cats)]}
	}
	return out
}

// history builds n random matches among the roster, some sharing timestamps.
func history(rng *rand.Rand, players []model.Player, n int) []model.Match {
	out := make([]model.Match, 0, n)
	for i := 0; i < n; i++ {
		perm := rng.Perm(len(players))
		at := t0.Add(time.Duration(rng.IntN(n/2+1)) * time.Hour)
		out = append(out, match(fmt.Sprintf("m%03d", i), at, model.Team1+rng.IntN(2),
			players[perm[0]].ID, players[perm[1]].ID, players[perm[2]].ID, players[perm[3]].ID))
	}
	return out
}

// withRecorded attaches the changes of a full replay as if they had been
// stored when each match was recorded.
func withRecorded(ms []model.Match, r Replay) []model.Match {
	out := make([]model.Match, len(ms))
	for i, m := range ms {
		if ch, ok := r.Changes[m.ID]; ok {
			m.Changes = &ch
		}
		out[i] = m
	}
	return out
}

func TestSortMatches(t *testing.T) {
	Convey("Given matches out of order with a shared timestamp", t, func() {
		ms := []model.Match{
			{ID: "c", PlayedAt: t0.Add(time.Hour)},
			{ID: "b", PlayedAt: t0},
			{ID: "a", PlayedAt: t0},
		}
		sorted := SortMatches(ms)

		Convey("Then they order by time then id without touching the input", func() {
			So([]string{sorted[0].ID, sorted[1].ID, sorted[2].ID}, ShouldResemble, []string{"a", "b", "c"})
			So(ms[0].ID, ShouldEqual, "c")
		})
	})
}

func TestRecomputeAll(t *testing.T) {
	Convey("Given a roster and a match log", t, func() {
		e := New()
		rng := rand.New(rand.NewPCG(1, 2))
		players := roster(8)
		log := history(rng, players, 60)

		Convey("When recomputing twice", func() {
			r1, err1 := e.RecomputeAll(players, log)
			r2, err2 := e.RecomputeAll(players, log)

			Convey("Then the result is identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(r1.Players, ShouldResemble, r2.Players)
				So(r1.Changes, ShouldResemble, r2.Changes)
				So(len(r1.Applied), ShouldEqual, 60)
				So(r1.Failures, ShouldBeEmpty)
			})
		})

		Convey("When the log is shuffled", func() {
			shuffled := append([]model.Match(nil), log...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			r1, _ := e.RecomputeAll(players, log)
			r2, _ := e.RecomputeAll(players, shuffled)

			Convey("Then input order does not matter", func() {
				So(r2.Players, ShouldResemble, r1.Players)
				So(r2.Applied, ShouldResemble, r1.Applied)
			})
		})

		Convey("When nothing was played", func() {
			r, err := e.RecomputeAll(players, nil)
			So(err, ShouldBeNil)

			Convey("Then everyone is at their starting rating", func() {
				for _, p := range players {
					So(r.Players[p.ID], ShouldResemble, PlayerState{ID: p.ID, Rating: category.InitialRating(p.StartingCategory)})
				}
			})
		})

		Convey("When stored ratings have drifted", func() {
			drifted := append([]model.Player(nil), players...)
			for i := range drifted {
				drifted[i].Rating = 9999
				drifted[i].MatchesPlayed = 77
			}
			r1, _ := e.RecomputeAll(players, log)
			r2, _ := e.RecomputeAll(drifted, log)

			Convey("Then only the starting category matters", func() {
				So(r2.Players, ShouldResemble, r1.Players)
			})
		})
	})
}

func TestRecomputeFailures(t *testing.T) {
	Convey("Given a log with a broken match in the middle", t, func() {
		players := roster(4)
		ids := []string{players[0].ID, players[1].ID, players[2].ID, players[3].ID}
		good1 := match("m1", t0, model.Team1, ids...)
		broken := match("m2", t0.Add(time.Hour), model.Team1, ids...)
		broken.WinnerTeam = model.Team2 // disagrees with the sets
		ghost := match("m3", t0.Add(2*time.Hour), model.Team1, ids[0], ids[1], ids[2], "nobody")
		good2 := match("m4", t0.Add(3*time.Hour), model.Team2, ids...)
		log := []model.Match{good1, broken, ghost, good2}

		Convey("When the policy is skip", func() {
			r, err := New().RecomputeAll(players, log)
			clean, _ := New().RecomputeAll(players, []model.Match{good1, good2})

			Convey("Then the bad matches are reported and the rest is untouched", func() {
				So(err, ShouldBeNil)
				So(r.Applied, ShouldResemble, []string{"m1", "m4"})
				So(len(r.Failures), ShouldEqual, 2)
				So(r.Failures[0].MatchID, ShouldEqual, "m2")
				So(errors.Is(r.Failures[0], ErrRecomputation), ShouldBeTrue)
				So(errors.Is(r.Failures[0], ErrInvalidMatch), ShouldBeTrue)
				So(errors.Is(r.Failures[1], ErrInvalidInput), ShouldBeTrue)
				So(r.Players, ShouldResemble, clean.Players)
			})
		})

		Convey("When the policy is abort", func() {
			r, err := New(WithPolicy(PolicyAbort)).RecomputeAll(players, log)

			Convey("Then the first failure stops the replay", func() {
				So(errors.Is(err, ErrRecomputation), ShouldBeTrue)
				var rerr *RecomputeError
				So(errors.As(err, &rerr), ShouldBeTrue)
				So(rerr.MatchID, ShouldEqual, "m2")
				So(r.Players, ShouldBeNil)
			})
		})

		Convey("When the roster itself is bad", func() {
			dup := append(roster(4), roster(1)...)
			_, err := New().RecomputeAll(dup, log)
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			bad := roster(4)
			bad[2].StartingCategory = 0
			_, err = New().RecomputeAll(bad, log)
			So(errors.Is(err, ErrInvalidCategory), ShouldBeTrue)
			So(errors.Is(err, ErrRecomputation), ShouldBeTrue)
		})
	})
}

func TestRecomputeFrom(t *testing.T) {
	Convey("Given a roster and a match log", t, func() {
		e := New()
		rng := rand.New(rand.NewPCG(3, 4))
		players := roster(10)
		log := history(rng, players, 80)
		full, err := e.RecomputeAll(players, log)
		So(err, ShouldBeNil)

		Convey("When replaying from before the first match", func() {
			r, err := e.RecomputeFrom(players, log, t0.Add(-time.Hour))

			Convey("Then it equals a full recompute", func() {
				So(err, ShouldBeNil)
				So(r.Players, ShouldResemble, full.Players)
				So(r.Changes, ShouldResemble, full.Changes)
				So(r.Seeded, ShouldEqual, 0)
			})
		})

		Convey("When replaying from any cut with recorded changes", func() {
			recorded := withRecorded(log, full)
			for h := 0; h <= 41; h += 5 {
				from := t0.Add(time.Duration(h) * time.Hour)
				r, err := e.RecomputeFrom(players, recorded, from)
				So(err, ShouldBeNil)
				So(r.Players, ShouldResemble, full.Players)
				So(r.Seeded+len(r.Applied), ShouldEqual, len(log))
			}
		})

		Convey("When replaying from any cut without recorded changes", func() {
			from := t0.Add(20 * time.Hour)
			r, err := e.RecomputeFrom(players, log, from)

			Convey("Then the snapshot is rebuilt by replay", func() {
				So(err, ShouldBeNil)
				So(r.Players, ShouldResemble, full.Players)
				So(r.Seeded, ShouldEqual, 0)
			})
		})

		Convey("When a recorded change disagrees with the running state", func() {
			recorded := withRecorded(log, full)
			first := SortMatches(recorded)[0]
			for i := range recorded {
				if recorded[i].ID == first.ID {
					bogus := *recorded[i].Changes
					bogus.Player1.Before += 7
					recorded[i].Changes = &bogus
				}
			}
			r, err := e.RecomputeFrom(players, recorded, t0.Add(30*time.Hour))

			Convey("Then that match is replayed and regenerated", func() {
				So(err, ShouldBeNil)
				So(r.Players, ShouldResemble, full.Players)
				So(r.Changes[first.ID], ShouldResemble, full.Changes[first.ID])
			})
		})
	})
}

func TestSnapshotBefore(t *testing.T) {
	Convey("Given a short log", t, func() {
		e := New()
		players := roster(4)
		ids := []string{players[0].ID, players[1].ID, players[2].ID, players[3].ID}
		log := []model.Match{
			match("m1", t0, model.Team1, ids...),
			match("m2", t0.Add(time.Hour), model.Team1, ids...),
		}

		Convey("When snapshotting at the second match", func() {
			snap, err := e.SnapshotBefore(players, log, t0.Add(time.Hour))
			one, _ := e.RecomputeAll(players, log[:1])

			Convey("Then only the first match is included", func() {
				So(err, ShouldBeNil)
				So(snap.Players, ShouldResemble, one.Players)
				So(snap.Players[ids[0]].MatchesPlayed, ShouldEqual, 1)
			})
		})
	})
}
