package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/pkg/metrics"
)

const (
	playerColumns = `id, display_name, is_ghost, starting_category, rating, matches_played, matches_won, created_at`
	matchColumns  = `id, played_at, player1_id, player2_id, player3_id, player4_id, sets_json, winner_team, venue, notes, created_by, elo_changes_json, created_at`
)

// SQLStore is a Store over database/sql, backed by SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Option tunes the connection pool of an SQLStore.
type Option func(*sql.DB)

// WithMaxOpenConns caps open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *sql.DB) {
		if n > 0 {
			db.SetMaxOpenConns(n)
		}
	}
}

// WithConnMaxLifetime recycles connections older than d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(db *sql.DB) {
		if d > 0 {
			db.SetConnMaxLifetime(d)
		}
	}
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// migrates it.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	// one writer; foreign keys on
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	opts = append([]Option{WithMaxOpenConns(1)}, opts...)
	return open(ctx, sqliteDialect, dsn, opts)
}

// OpenPostgres connects to PostgreSQL through pgx and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	return open(ctx, postgresDialect, dsn, opts)
}

func open(ctx context.Context, d dialect, dsn string, opts []Option) (*SQLStore, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if err := applyMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) q(query string) string { return s.dialect.rebind(query) }

func observeRead(start time.Time) {
	metrics.RecordStoreReadLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeWrite(start time.Time) {
	metrics.RecordStoreWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func (s *SQLStore) CreatePlayer(ctx context.Context, p model.Player) error {
	defer observeWrite(time.Now())

	label, err := p.StartingCategory.MarshalText()
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO players (`+playerColumns+`) VALUES (?,?,?,?,?,?,?,?)`),
		p.ID, p.DisplayName, p.IsGhost, string(label), p.Rating, p.MatchesPlayed, p.MatchesWon, s.dialect.timeArg(p.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("player %s: %w", p.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert player %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLStore) Player(ctx context.Context, id string) (model.Player, error) {
	defer observeRead(time.Now())

	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+playerColumns+` FROM players WHERE id = ?`), id)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Player{}, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return p, err
}

func (s *SQLStore) Players(ctx context.Context) ([]model.Player, error) {
	defer observeRead(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) Match(ctx context.Context, id string) (model.Match, error) {
	defer observeRead(time.Now())

	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+matchColumns+` FROM matches WHERE id = ?`), id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	return m, err
}

func (s *SQLStore) Matches(ctx context.Context) ([]model.Match, error) {
	defer observeRead(time.Now())
	return s.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY played_at, id`)
}

func (s *SQLStore) PlayerMatches(ctx context.Context, id string) ([]model.Match, error) {
	defer observeRead(time.Now())

	if _, err := s.Player(ctx, id); err != nil {
		return nil, err
	}
	return s.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches
WHERE player1_id = ? OR player2_id = ? OR player3_id = ? OR player4_id = ?
ORDER BY played_at DESC, id DESC`, id, id, id, id)
}

func (s *SQLStore) queryMatches(ctx context.Context, query string, args ...any) ([]model.Match, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) RecordMatch(ctx context.Context, m model.Match, players [4]model.Player) error {
	defer observeWrite(time.Now())

	sets, err := json.Marshal(m.Sets)
	if err != nil {
		return fmt.Errorf("encode sets: %w", err)
	}
	changes, err := encodeChanges(m.Changes)
	if err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = nowUTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range players {
			if err := s.updatePlayer(ctx, tx, p); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO matches (`+matchColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`),
			m.ID, s.dialect.timeArg(m.PlayedAt), m.Players[0], m.Players[1], m.Players[2], m.Players[3],
			string(sets), m.WinnerTeam, m.Venue, m.Notes, m.CreatedBy, changes, s.dialect.timeArg(m.CreatedAt),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("match %s: %w", m.ID, ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("insert match %s: %w", m.ID, err)
		}
		return nil
	})
}

func (s *SQLStore) ApplyReplay(ctx context.Context, w ReplayWrite) error {
	defer observeWrite(time.Now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range w.Players {
			if err := s.updatePlayer(ctx, tx, p); err != nil {
				return err
			}
		}
		for id, ch := range w.Changes {
			encoded, err := encodeChanges(&ch)
			if err != nil {
				return err
			}
			if err := s.setChanges(ctx, tx, id, encoded); err != nil {
				return err
			}
		}
		for _, id := range w.Cleared {
			if err := s.setChanges(ctx, tx, id, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) updatePlayer(ctx context.Context, tx *sql.Tx, p model.Player) error {
	res, err := tx.ExecContext(ctx, s.q(`UPDATE players SET rating = ?, matches_played = ?, matches_won = ? WHERE id = ?`),
		p.Rating, p.MatchesPlayed, p.MatchesWon, p.ID)
	if err != nil {
		return fmt.Errorf("update player %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("player %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) setChanges(ctx context.Context, tx *sql.Tx, matchID string, encoded any) error {
	res, err := tx.ExecContext(ctx, s.q(`UPDATE matches SET elo_changes_json = ? WHERE id = ?`), encoded, matchID)
	if err != nil {
		return fmt.Errorf("update match %s: %w", matchID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner) (model.Player, error) {
	var (
		p     model.Player
		label string
	)
	err := row.Scan(&p.ID, &p.DisplayName, &p.IsGhost, &label, &p.Rating, &p.MatchesPlayed, &p.MatchesWon, dbTime{&p.CreatedAt})
	if err != nil {
		return model.Player{}, err
	}
	if p.StartingCategory, err = category.Parse(label); err != nil {
		return model.Player{}, fmt.Errorf("player %s: %w", p.ID, err)
	}
	return p, nil
}

func scanMatch(row scanner) (model.Match, error) {
	var (
		m       model.Match
		sets    string
		changes sql.NullString
	)
	err := row.Scan(&m.ID, dbTime{&m.PlayedAt}, &m.Players[0], &m.Players[1], &m.Players[2], &m.Players[3],
		&sets, &m.WinnerTeam, &m.Venue, &m.Notes, &m.CreatedBy, &changes, dbTime{&m.CreatedAt})
	if err != nil {
		return model.Match{}, err
	}
	if err := json.Unmarshal([]byte(sets), &m.Sets); err != nil {
		return model.Match{}, fmt.Errorf("match %s sets: %w", m.ID, err)
	}
	if changes.Valid && changes.String != "" {
		var ch model.EloChanges
		if err := json.Unmarshal([]byte(changes.String), &ch); err != nil {
			return model.Match{}, fmt.Errorf("match %s changes: %w", m.ID, err)
		}
		m.Changes = &ch
	}
	return m, nil
}

func encodeChanges(ch *model.EloChanges) (any, error) {
	if ch == nil {
		return nil, nil
	}
	b, err := json.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("encode changes: %w", err)
	}
	return string(b), nil
}
