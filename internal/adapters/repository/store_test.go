package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func seedPlayers(ctx context.Context, s Store, ids ...string) {
	for _, id := range ids {
		So(s.CreatePlayer(ctx, model.Player{
			ID:               id,
			DisplayName:      "Player " + id,
			StartingCategory: category.Sixth,
			Rating:           category.InitialRating(category.Sixth),
			CreatedAt:        t0,
		}), ShouldBeNil)
	}
}

func recorded(id string, at time.Time) model.Match {
	return model.Match{
		ID:         id,
		PlayedAt:   at,
		Players:    [4]string{"a", "b", "c", "d"},
		Sets:       []model.SetScore{{Team1: 6, Team2: 4}, {Team1: 7, Team2: 6, Tiebreak: true}},
		WinnerTeam: model.Team1,
		Venue:      "Club Norte",
		CreatedBy:  "a",
		Changes: &model.EloChanges{
			Player1: model.EloChange{Before: 1400, After: 1432, Change: 32},
			Player2: model.EloChange{Before: 1400, After: 1432, Change: 32},
			Player3: model.EloChange{Before: 1400, After: 1368, Change: -32},
			Player4: model.EloChange{Before: 1400, After: 1368, Change: -32},
		},
		CreatedAt: at,
	}
}

func updated(ctx context.Context, s Store, m model.Match) [4]model.Player {
	var out [4]model.Player
	for i, id := range m.Players {
		p, err := s.Player(ctx, id)
		So(err, ShouldBeNil)
		ch := m.Changes.At(i + 1)
		p.Rating = ch.After
		p.MatchesPlayed++
		if m.Won(id) {
			p.MatchesWon++
		}
		out[i] = p
	}
	return out
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, name string, open func() Store) {
	Convey("Given an empty "+name+" store", t, func() {
		ctx := context.Background()
		s := open()
		Reset(func() { _ = s.Close() })

		Convey("When creating players", func() {
			seedPlayers(ctx, s, "b", "a")

			Convey("Then they can be read back in id order", func() {
				p, err := s.Player(ctx, "a")
				So(err, ShouldBeNil)
				So(p.DisplayName, ShouldEqual, "Player a")
				So(p.StartingCategory, ShouldEqual, category.Sixth)
				So(p.Rating, ShouldEqual, 1400)
				So(p.CreatedAt.Equal(t0), ShouldBeTrue)

				all, err := s.Players(ctx)
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 2)
				So(all[0].ID, ShouldEqual, "a")
			})

			Convey("Then a second insert of the same id is a duplicate", func() {
				err := s.CreatePlayer(ctx, model.Player{ID: "a", StartingCategory: category.Eighth, Rating: 1000})
				So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
			})

			Convey("Then unknown players are not found", func() {
				_, err := s.Player(ctx, "zz")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When recording a match", func() {
			seedPlayers(ctx, s, "a", "b", "c", "d", "e")
			m := recorded("m1", t0)
			So(s.RecordMatch(ctx, m, updated(ctx, s, m)), ShouldBeNil)

			Convey("Then the match and the players are persisted together", func() {
				got, err := s.Match(ctx, "m1")
				So(err, ShouldBeNil)
				So(got.PlayedAt.Equal(t0), ShouldBeTrue)
				So(got.Players, ShouldResemble, m.Players)
				So(got.Sets, ShouldResemble, m.Sets)
				So(got.Venue, ShouldEqual, "Club Norte")
				So(*got.Changes, ShouldResemble, *m.Changes)

				a, _ := s.Player(ctx, "a")
				So(a.Rating, ShouldEqual, 1432)
				So(a.MatchesPlayed, ShouldEqual, 1)
				So(a.MatchesWon, ShouldEqual, 1)
				c, _ := s.Player(ctx, "c")
				So(c.MatchesWon, ShouldEqual, 0)
			})

			Convey("Then recording the same id again is a duplicate and changes nothing", func() {
				err := s.RecordMatch(ctx, m, updated(ctx, s, m))
				So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
				a, _ := s.Player(ctx, "a")
				So(a.MatchesPlayed, ShouldEqual, 1)
			})

			Convey("Then history lists are ordered", func() {
				m2 := recorded("m2", t0.Add(time.Hour))
				m2.Changes = nil
				players := updated(ctx, s, recorded("m2", t0))
				So(s.RecordMatch(ctx, m2, players), ShouldBeNil)

				all, err := s.Matches(ctx)
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 2)
				So(all[0].ID, ShouldEqual, "m1")
				So(all[1].Changes, ShouldBeNil)

				mine, err := s.PlayerMatches(ctx, "c")
				So(err, ShouldBeNil)
				So(len(mine), ShouldEqual, 2)
				So(mine[0].ID, ShouldEqual, "m2")

				none, err := s.PlayerMatches(ctx, "e")
				So(err, ShouldBeNil)
				So(none, ShouldBeEmpty)

				_, err = s.PlayerMatches(ctx, "zz")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("Then a replay write rewrites ratings and changes atomically", func() {
				err := s.ApplyReplay(ctx, ReplayWrite{
					Players: []model.Player{{ID: "a", Rating: 1500, MatchesPlayed: 1, MatchesWon: 1}},
					Changes: map[string]model.EloChanges{"m1": {Player1: model.EloChange{Before: 1400, After: 1500, Change: 100}}},
				})
				So(err, ShouldBeNil)
				a, _ := s.Player(ctx, "a")
				So(a.Rating, ShouldEqual, 1500)
				So(a.DisplayName, ShouldEqual, "Player a")
				got, _ := s.Match(ctx, "m1")
				So(got.Changes.Player1.After, ShouldEqual, 1500)

				So(s.ApplyReplay(ctx, ReplayWrite{Cleared: []string{"m1"}}), ShouldBeNil)
				got, _ = s.Match(ctx, "m1")
				So(got.Changes, ShouldBeNil)

				err = s.ApplyReplay(ctx, ReplayWrite{
					Players: []model.Player{{ID: "a", Rating: 1000}, {ID: "ghost", Rating: 1000}},
				})
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				a, _ = s.Player(ctx, "a")
				So(a.Rating, ShouldEqual, 1500)
			})
		})

		Convey("When a match references an unknown player", func() {
			seedPlayers(ctx, s, "a", "b", "c")
			m := recorded("m1", t0)
			players := [4]model.Player{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
			err := s.RecordMatch(ctx, m, players)

			Convey("Then nothing is written", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				_, err := s.Match(ctx, "m1")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				a, _ := s.Player(ctx, "a")
				So(a.Rating, ShouldEqual, 1400)
			})
		})
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, "memory", func() Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	n := 0
	storeContract(t, "sqlite", func() Store {
		n++
		s, err := OpenSQLite(context.Background(), filepath.Join(dir, fmt.Sprintf("vibo-%d.db", n)))
		So(err, ShouldBeNil)
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("VIBO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VIBO_TEST_POSTGRES_DSN not set")
	}
	storeContract(t, "postgres", func() Store {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, dsn)
		So(err, ShouldBeNil)
		_, err = s.db.ExecContext(ctx, `TRUNCATE matches, players`)
		So(err, ShouldBeNil)
		return s
	})
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	Convey("Given a migrated sqlite file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "twice.db")
		s, err := OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		seedPlayers(ctx, s, "a")
		So(s.Close(), ShouldBeNil)

		Convey("When opening it again", func() {
			s, err := OpenSQLite(ctx, path)
			So(err, ShouldBeNil)
			defer s.Close()

			Convey("Then the data survives", func() {
				p, err := s.Player(ctx, "a")
				So(err, ShouldBeNil)
				So(p.Rating, ShouldEqual, 1400)
			})
		})
	})
}

func TestRebind(t *testing.T) {
	Convey("Given a query with placeholders", t, func() {
		q := `UPDATE x SET a = ?, b = ? WHERE id = ?`
		So(sqliteDialect.rebind(q), ShouldEqual, q)
		So(postgresDialect.rebind(q), ShouldEqual, `UPDATE x SET a = $1, b = $2 WHERE id = $3`)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	Convey("Given driver errors", t, func() {
		Convey("Then only the unique_violation SQLSTATE counts for postgres", func() {
			So(isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})), ShouldBeTrue)
			So(isUniqueViolation(&pgconn.PgError{Code: "23503", Message: "violates unique-ish foreign key"}), ShouldBeFalse)
		})

		Convey("Then message text alone is not a conflict", func() {
			So(isUniqueViolation(nil), ShouldBeFalse)
			So(isUniqueViolation(errors.New("UNIQUE constraint failed: players.id")), ShouldBeFalse)
		})
	})

	Convey("Given a sqlite database with one player", t, func() {
		ctx := context.Background()
		s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "unique.db"))
		So(err, ShouldBeNil)
		defer s.Close()
		seedPlayers(ctx, s, "a")

		Convey("When the same id is inserted again", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO players (id, display_name, starting_category, rating, created_at) VALUES ('a', 'A', '6ta', 1400, 'x')`)

			Convey("Then it is a unique violation", func() {
				So(isUniqueViolation(err), ShouldBeTrue)
			})
		})

		Convey("When a NOT NULL column is missing", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO players (id) VALUES ('b')`)

			Convey("Then it is a constraint error but not a conflict", func() {
				So(err, ShouldNotBeNil)
				So(isUniqueViolation(err), ShouldBeFalse)
			})
		})
	})
}
