package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTimeLayout is fixed width so TEXT columns sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name       string // migrations sub directory
	driverName string // database/sql driver
	timeType   string
	positional bool // $1 placeholders instead of ?
	textTime   bool // times stored as TEXT
}

var (
	sqliteDialect = dialect{
		name:       "sqlite",
		driverName: "sqlite",
		timeType:   "TEXT",
		textTime:   true,
	}
	postgresDialect = dialect{
		name:       "postgres",
		driverName: "pgx",
		timeType:   "TIMESTAMPTZ",
		positional: true,
	}
)

// rebind rewrites ? placeholders to $n for positional dialects.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) timeArg(t time.Time) any {
	if d.textTime {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// pgUniqueViolation is the SQLSTATE of unique_violation.
const pgUniqueViolation = "23505"

// isUniqueViolation detects primary key conflicts from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// dbTime scans a timestamp stored either natively or as TEXT.
type dbTime struct {
	t *time.Time
}

func (d dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d.t = v.UTC()
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		*d.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (d dbTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*d.t = parsed.UTC()
			return nil
		}
	}
	return errors.New("unparseable time " + strconv.Quote(s))
}

func nowUTC() time.Time { return time.Now().UTC() }
