package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnsupportedDriver is returned by Open for drivers without a dialect.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrUnknownTable is returned when a Table value does not name a keyed table.
	ErrUnknownTable = errors.New("unknown table")
)

// Table names one of the keyed tables that support lookup-or-insert.
type Table int

const (
	URLs Table = iota
	Words
)

func (t Table) String() string {
	switch t {
	case URLs:
		return "urllist"
	case Words:
		return "wordlist"
	default:
		return fmt.Sprintf("Table(%d)", int(t))
	}
}

func (t Table) column() (string, error) {
	switch t {
	case URLs:
		return "url", nil
	case Words:
		return "word", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, t)
	}
}

// Config selects the backing database.
type Config struct {
	Driver string
	DSN    string
}

// Store owns every table of the index. It is the only component that writes
// to the database; callers either use its single-statement accessors or open
// a Session to group writes into one transaction.
type Store struct {
	db *sql.DB
	d  *dialect
}

// Open connects to the configured database and creates the schema if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := d.setup(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, d: d}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema(s.d)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Driver returns the name of the underlying database driver.
func (s *Store) Driver() string { return s.d.driver }

func (s *Store) Close() error {
	return s.db.Close()
}

// Begin opens a session whose writes stay invisible to other readers until
// Commit.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Session{tx: tx, d: s.d}, nil
}

// GetOrCreate returns the id of key in table, inserting it when missing.
func (s *Store) GetOrCreate(ctx context.Context, table Table, key string) (int64, error) {
	return getOrCreate(ctx, s.db, s.d, table, key)
}

// GetOrCreateAll resolves the distinct keys in sorted order, one committed
// statement per key, and returns their ids by key.
func (s *Store) GetOrCreateAll(ctx context.Context, table Table, keys []string) (map[string]int64, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	ids := make(map[string]int64, len(sorted))
	for _, key := range sorted {
		id, err := getOrCreate(ctx, s.db, s.d, table, key)
		if err != nil {
			return nil, err
		}
		ids[key] = id
	}
	return ids, nil
}

// Lookup returns the id of key in table without creating it.
func (s *Store) Lookup(ctx context.Context, table Table, key string) (int64, bool, error) {
	return lookup(ctx, s.db, s.d, table, key)
}

// IsIndexed reports whether url is known and has at least one posting.
func (s *Store) IsIndexed(ctx context.Context, url string) (bool, error) {
	return isIndexed(ctx, s.db, s.d, url)
}

func lookup(ctx context.Context, q queryer, d *dialect, table Table, key string) (int64, bool, error) {
	col, err := table.column()
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = q.QueryRowContext(ctx,
		d.rebind(fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", table, col)),
		key,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up %s %q: %w", col, key, err)
	}
	return id, true, nil
}

func getOrCreate(ctx context.Context, q queryer, d *dialect, table Table, key string) (int64, error) {
	id, found, err := lookup(ctx, q, d, table, key)
	if err != nil || found {
		return id, err
	}

	col, _ := table.column()
	_, err = q.ExecContext(ctx,
		d.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (?) ON CONFLICT (%s) DO NOTHING", table, col, col)),
		key,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s %q: %w", col, key, err)
	}

	// A concurrent writer may have won the insert; read back whichever row exists.
	id, found, err = lookup(ctx, q, d, table, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("failed to insert %s %q: row missing after insert", col, key)
	}
	return id, nil
}

func isIndexed(ctx context.Context, q queryer, d *dialect, url string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, d.rebind(`
		SELECT EXISTS(
			SELECT 1 FROM wordlocation
			JOIN urllist ON urllist.id = wordlocation.urlid
			WHERE urllist.url = ?
		)`),
		url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check indexed state of %q: %w", url, err)
	}
	return exists, nil
}

func hasPostings(ctx context.Context, q queryer, d *dialect, urlID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		d.rebind("SELECT EXISTS(SELECT 1 FROM wordlocation WHERE urlid = ?)"),
		urlID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check postings of url %d: %w", urlID, err)
	}
	return exists, nil
}
