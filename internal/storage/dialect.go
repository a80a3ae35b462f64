package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type dialect struct {
	driver   string
	idColumn string

	// lockURL takes a row lock on a urllist row for the rest of the
	// transaction. Empty when the backend serializes writers itself.
	lockURL string

	numbered bool
	setup    func(ctx context.Context, db *sql.DB) error
}

var dialects = map[string]*dialect{
	DriverSQLite: {
		driver:   DriverSQLite,
		idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
		setup: func(ctx context.Context, db *sql.DB) error {
			// A single connection makes every session a serialized writer, which
			// is what makes the indexed check and the posting inserts atomic.
			db.SetMaxOpenConns(1)
			if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				return fmt.Errorf("failed to enable WAL: %w", err)
			}
			if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
				return fmt.Errorf("failed to set busy timeout: %w", err)
			}
			return nil
		},
	},
	DriverPostgres: {
		driver:   DriverPostgres,
		idColumn: "BIGSERIAL PRIMARY KEY",
		lockURL:  "SELECT id FROM urllist WHERE id = ? FOR UPDATE",
		numbered: true,
		setup:    func(context.Context, *sql.DB) error { return nil },
	},
}

func lookupDialect(driver string) (*dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return d, nil
}

// rebind rewrites ? placeholders into $n for drivers that need numbered ones.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
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

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
