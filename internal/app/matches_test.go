package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/vibo/internal/adapters/repository"
	service "github.com/okian/vibo/internal/app"
	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_RecordMatch(t *testing.T) {
	Convey("Given four provisional players at 1400", t, func() {
		ctx := context.Background()
		svc := newService()
		seed(ctx, svc, category.Sixth, "a", "b", "c", "d")

		Convey("When team 1 wins", func() {
			changes, err := svc.RecordMatch(ctx, match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d"))

			Convey("Then winners gain 32 and losers drop 32", func() {
				So(err, ShouldBeNil)
				So(changes.Player1, ShouldResemble, model.EloChange{Before: 1400, After: 1432, Change: 32})
				So(changes.Player4, ShouldResemble, model.EloChange{Before: 1400, After: 1368, Change: -32})

				a, _ := svc.Player(ctx, "a")
				So(a.Rating, ShouldEqual, 1432)
				So(a.MatchesPlayed, ShouldEqual, 1)
				So(a.MatchesWon, ShouldEqual, 1)
				d, _ := svc.Player(ctx, "d")
				So(d.Rating, ShouldEqual, 1368)
				So(d.MatchesWon, ShouldEqual, 0)
			})

			Convey("Then the stored match carries its changes", func() {
				ms, err := svc.PlayerMatches(ctx, "c", 0)
				So(err, ShouldBeNil)
				So(len(ms), ShouldEqual, 1)
				So(ms[0].ID, ShouldNotBeEmpty)
				So(ms[0].Changes, ShouldNotBeNil)
				So(*ms[0].Changes, ShouldResemble, changes)
			})
		})

		Convey("When the winner does not match the score", func() {
			m := match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d")
			m.WinnerTeam = model.Team2
			_, err := svc.RecordMatch(ctx, m)

			Convey("Then nothing changes", func() {
				So(errors.Is(err, rating.ErrInvalidMatch), ShouldBeTrue)
				So(ratingOf(ctx, svc, "a"), ShouldEqual, 1400)
			})
		})

		Convey("When a player is unknown", func() {
			_, err := svc.RecordMatch(ctx, match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "zz"))
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(ratingOf(ctx, svc, "a"), ShouldEqual, 1400)
		})

		Convey("When the same match id is recorded twice", func() {
			m := match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d")
			m.ID = "m-1"
			_, err := svc.RecordMatch(ctx, m)
			So(err, ShouldBeNil)
			_, err = svc.RecordMatch(ctx, m)

			Convey("Then the second is refused and ratings move once", func() {
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
				So(ratingOf(ctx, svc, "a"), ShouldEqual, 1432)
			})
		})
	})

	Convey("Given an established player teamed with a provisional one", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		for _, p := range []model.Player{
			{ID: "vet", DisplayName: "Vet", StartingCategory: category.Third, Rating: 2000, MatchesPlayed: 50, MatchesWon: 30},
			{ID: "new", DisplayName: "New", StartingCategory: category.Eighth, Rating: 1000, MatchesPlayed: 2, MatchesWon: 1},
			{ID: "x", DisplayName: "X", StartingCategory: category.Fifth, Rating: 1500, MatchesPlayed: 20, MatchesWon: 10},
			{ID: "y", DisplayName: "Y", StartingCategory: category.Fifth, Rating: 1500, MatchesPlayed: 20, MatchesWon: 10},
		} {
			So(store.CreatePlayer(ctx, p), ShouldBeNil)
		}
		svc := newService(service.WithStore(store))

		Convey("When they lose to a team averaging 1500", func() {
			changes, err := svc.RecordMatch(ctx, match(now.Add(-time.Hour), model.Team2, "vet", "new", "x", "y"))

			Convey("Then each loses by their own K factor", func() {
				So(err, ShouldBeNil)
				So(changes.Player1.Change, ShouldEqual, -16)
				So(changes.Player2.Change, ShouldEqual, -32)
				So(changes.Player3.Change, ShouldEqual, 16)
				So(changes.Player4.Change, ShouldEqual, 16)
			})
		})
	})
}

func TestService_BackdatedMatch(t *testing.T) {
	Convey("Given two matches between the same teams recorded out of order", t, func() {
		ctx := context.Background()
		later := match(now.Add(-24*time.Hour), model.Team1, "a", "b", "c", "d")
		earlier := match(now.Add(-48*time.Hour), model.Team2, "a", "b", "c", "d")

		Convey("When auto recompute is on", func() {
			svc := newService()
			seed(ctx, svc, category.Sixth, "a", "b", "c", "d")
			_, err := svc.RecordMatch(ctx, later)
			So(err, ShouldBeNil)
			changes, err := svc.RecordMatch(ctx, earlier)
			So(err, ShouldBeNil)

			Convey("Then ratings equal a replay in played order", func() {
				So(ratingOf(ctx, svc, "a"), ShouldEqual, 1406)
				So(ratingOf(ctx, svc, "b"), ShouldEqual, 1406)
				So(ratingOf(ctx, svc, "c"), ShouldEqual, 1394)
				So(ratingOf(ctx, svc, "d"), ShouldEqual, 1394)
			})

			Convey("Then the backdated match reports its regenerated changes", func() {
				So(changes.Player3, ShouldResemble, model.EloChange{Before: 1400, After: 1432, Change: 32})
				So(changes.Player1, ShouldResemble, model.EloChange{Before: 1400, After: 1368, Change: -32})
			})

			Convey("Then the later match was rewritten against the new history", func() {
				ms, err := svc.PlayerMatches(ctx, "a", 1)
				So(err, ShouldBeNil)
				So(ms[0].Changes.Player1, ShouldResemble, model.EloChange{Before: 1368, After: 1406, Change: 38})
			})
		})

		Convey("When auto recompute is off", func() {
			svc := newService(service.WithAutoRecompute(false))
			seed(ctx, svc, category.Sixth, "a", "b", "c", "d")
			_, err := svc.RecordMatch(ctx, later)
			So(err, ShouldBeNil)
			_, err = svc.RecordMatch(ctx, earlier)
			So(err, ShouldBeNil)

			Convey("Then ratings follow arrival order until a recompute", func() {
				So(ratingOf(ctx, svc, "a"), ShouldEqual, 1394)
				So(ratingOf(ctx, svc, "c"), ShouldEqual, 1406)

				_, err := svc.Recompute(ctx, nil)
				So(err, ShouldBeNil)
				So(ratingOf(ctx, svc, "a"), ShouldEqual, 1406)
				So(ratingOf(ctx, svc, "c"), ShouldEqual, 1394)
			})
		})
	})
}

func TestService_ConcurrentRecording(t *testing.T) {
	Convey("Given eight players and many concurrent overlapping matches", t, func() {
		ctx := context.Background()
		svc := newService(service.WithAutoRecompute(false), service.WithLockStripes(4))
		ids := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7"}
		seed(ctx, svc, category.Sixth, ids...)

		const goroutines, perG = 8, 25
		var wg sync.WaitGroup
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < perG; i++ {
					k := g + i
					winner := model.Team1 + (k % 2)
					m := match(now.Add(-time.Duration(k)*time.Minute), winner,
						ids[k%8], ids[(k+1)%8], ids[(k+2)%8], ids[(k+3)%8])
					if _, err := svc.RecordMatch(ctx, m); err != nil {
						panic(err)
					}
				}
			}(g)
		}
		wg.Wait()

		Convey("Then no update was lost", func() {
			total := 0
			for _, id := range ids {
				p, err := svc.Player(ctx, id)
				So(err, ShouldBeNil)
				total += p.MatchesPlayed

				ms, err := svc.PlayerMatches(ctx, id, 0)
				So(err, ShouldBeNil)
				So(len(ms), ShouldEqual, p.MatchesPlayed)

				sum := 0
				for _, m := range ms {
					sum += m.Changes.At(m.SlotOf(id)).Change
				}
				So(p.Rating, ShouldEqual, 1400+sum)
			}
			So(total, ShouldEqual, 4*goroutines*perG)
		})

		Convey("Then a full recompute is stable once applied", func() {
			_, err := svc.Recompute(ctx, nil)
			So(err, ShouldBeNil)
			rep, err := svc.Recompute(ctx, nil)
			So(err, ShouldBeNil)
			So(rep.PlayersUpdated, ShouldEqual, 0)
			So(rep.Replayed, ShouldEqual, goroutines*perG)
		})
	})
}

// blockingStore holds the first RecordMatch until released.
type blockingStore struct {
	repository.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) RecordMatch(ctx context.Context, m model.Match, players [4]model.Player) error { //nolint:gocritic // hugeParam
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.Store.RecordMatch(ctx, m, players)
}

func TestService_SubmitMatch(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		seed(ctx, svc, category.Sixth, "a", "b", "c", "d")

		Convey("When a valid match is submitted", func() {
			sub, err := svc.SubmitMatch(ctx, input(match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d"), "key-1"))
			So(err, ShouldBeNil)
			So(sub.MatchID, ShouldNotBeEmpty)
			So(sub.Duplicate, ShouldBeFalse)

			Convey("Then a worker rates it", func() {
				So(waitFor(func() bool {
					_, err := svc.Match(ctx, sub.MatchID)
					return err == nil
				}), ShouldBeTrue)
				So(ratingOf(ctx, svc, "a"), ShouldEqual, 1432)
			})

			Convey("Then resubmitting the key returns the first match", func() {
				again, err := svc.SubmitMatch(ctx, input(match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d"), "key-1"))
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.MatchID, ShouldEqual, sub.MatchID)

				So(waitFor(func() bool { return ratingOf(ctx, svc, "a") == 1432 }), ShouldBeTrue)
				ms, _ := svc.PlayerMatches(ctx, "a", 0)
				So(len(ms), ShouldEqual, 1)
			})
		})

		Convey("When the score is inconsistent", func() {
			m := match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d")
			m.Sets = append(m.Sets, model.SetScore{Team1: 2, Team2: 6}, model.SetScore{Team1: 1, Team2: 6})
			_, err := svc.SubmitMatch(ctx, input(m, ""))
			So(errors.Is(err, rating.ErrInvalidMatch), ShouldBeTrue)
		})

		Convey("When a player appears twice", func() {
			_, err := svc.SubmitMatch(ctx, input(match(now.Add(-time.Hour), model.Team1, "a", "a", "c", "d"), ""))
			So(errors.Is(err, rating.ErrInvalidMatch), ShouldBeTrue)
		})

		Convey("When a player is unknown", func() {
			_, err := svc.SubmitMatch(ctx, input(match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "zz"), ""))
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the match is in the future", func() {
			_, err := svc.SubmitMatch(ctx, input(match(now.Add(time.Hour), model.Team1, "a", "b", "c", "d"), ""))
			So(errors.Is(err, rating.ErrInvalidMatch), ShouldBeTrue)
		})

		Convey("When the match is older than the backdating limit", func() {
			_, err := svc.SubmitMatch(ctx, input(match(now.Add(-31*24*time.Hour), model.Team1, "a", "b", "c", "d"), ""))
			So(errors.Is(err, rating.ErrInvalidMatch), ShouldBeTrue)
		})
	})

	Convey("Given a service with backdating disabled", t, func() {
		ctx := context.Background()
		svc := newService(service.WithMaxBackdateDays(0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		seed(ctx, svc, category.Sixth, "a", "b", "c", "d")

		Convey("Then an old match is accepted", func() {
			_, err := svc.SubmitMatch(ctx, input(match(now.Add(-400*24*time.Hour), model.Team1, "a", "b", "c", "d"), ""))
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a one-slot queue whose only worker is busy", t, func() {
		ctx := context.Background()
		store := &blockingStore{
			Store:   repository.NewMemoryStore(),
			entered: make(chan struct{}),
			release: make(chan struct{}),
		}
		svc := newService(service.WithStore(store), service.WithQueueSize(1), service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		seed(ctx, svc, category.Sixth, "a", "b", "c", "d")

		submit := func(key string, minutesAgo int) (service.Submission, error) {
			return svc.SubmitMatch(ctx, input(match(now.Add(-time.Duration(minutesAgo)*time.Minute), model.Team1, "a", "b", "c", "d"), key))
		}

		_, err := submit("k1", 30)
		So(err, ShouldBeNil)
		picked := false
		select {
		case <-store.entered:
			picked = true
		case <-time.After(3 * time.Second):
		}
		So(picked, ShouldBeTrue)
		_, err = submit("k2", 20)
		So(err, ShouldBeNil)

		_, err = submit("k3", 10)
		So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)

		close(store.release)

		Convey("Then the refused key can be retried once there is room", func() {
			var sub service.Submission
			So(waitFor(func() bool {
				var err error
				sub, err = submit("k3", 10)
				return err == nil
			}), ShouldBeTrue)
			So(sub.Duplicate, ShouldBeFalse)

			svc.Stop()
			a, err := svc.Player(ctx, "a")
			So(err, ShouldBeNil)
			So(a.MatchesPlayed, ShouldEqual, 3)
		})
	})
}

func TestService_SubmitMatchFailureForgetsKey(t *testing.T) {
	Convey("Given a store that refuses writes", t, func() {
		ctx := context.Background()
		store := &failingStore{Store: repository.NewMemoryStore()}
		svc := newService(service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		seed(ctx, svc, category.Sixth, "a", "b", "c", "d")

		first, err := svc.SubmitMatch(ctx, input(match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d"), "retry-me"))
		So(err, ShouldBeNil)

		Convey("Then the key is released after the worker fails", func() {
			So(waitFor(func() bool { return store.attempts() == 1 }), ShouldBeTrue)
			So(waitFor(func() bool {
				sub, err := svc.SubmitMatch(ctx, input(match(now.Add(-time.Hour), model.Team1, "a", "b", "c", "d"), "retry-me"))
				return err == nil && !sub.Duplicate && sub.MatchID != first.MatchID
			}), ShouldBeTrue)
		})
	})
}

type failingStore struct {
	repository.Store
	mu    sync.Mutex
	tries int
}

func (f *failingStore) RecordMatch(ctx context.Context, m model.Match, players [4]model.Player) error { //nolint:gocritic // hugeParam
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tries++
	return errors.New("disk full")
}

func (f *failingStore) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tries
}
