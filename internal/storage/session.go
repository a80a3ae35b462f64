package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Session groups writes into one transaction. A Session must be finished with
// Commit or Rollback; Rollback after Commit is a no-op so it can be deferred.
type Session struct {
	tx *sql.Tx
	d  *dialect
}

func (s *Session) GetOrCreate(ctx context.Context, table Table, key string) (int64, error) {
	return getOrCreate(ctx, s.tx, s.d, table, key)
}

func (s *Session) IsIndexed(ctx context.Context, url string) (bool, error) {
	return isIndexed(ctx, s.tx, s.d, url)
}

// HasPostings reports whether the document with urlID has been indexed.
func (s *Session) HasPostings(ctx context.Context, urlID int64) (bool, error) {
	return hasPostings(ctx, s.tx, s.d, urlID)
}

// Claim locks the document row until the session ends so that a concurrent
// session cannot index the same URL between the indexed check and the posting
// inserts.
func (s *Session) Claim(ctx context.Context, urlID int64) error {
	if s.d.lockURL == "" {
		return nil
	}

	var id int64
	if err := s.tx.QueryRowContext(ctx, s.d.rebind(s.d.lockURL), urlID).Scan(&id); err != nil {
		return fmt.Errorf("failed to claim url %d: %w", urlID, err)
	}
	return nil
}

func (s *Session) InsertPosting(ctx context.Context, urlID, wordID int64, location int) error {
	_, err := s.tx.ExecContext(ctx,
		s.d.rebind("INSERT INTO wordlocation (urlid, wordid, location) VALUES (?, ?, ?)"),
		urlID, wordID, location,
	)
	if err != nil {
		return fmt.Errorf("failed to insert posting (%d, %d, %d): %w", urlID, wordID, location, err)
	}
	return nil
}

// InsertLink stores a directed edge and returns its id.
func (s *Session) InsertLink(ctx context.Context, fromID, toID int64) (int64, error) {
	var linkID int64
	err := s.tx.QueryRowContext(ctx,
		s.d.rebind("INSERT INTO link (fromid, toid) VALUES (?, ?) RETURNING id"),
		fromID, toID,
	).Scan(&linkID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert link %d -> %d: %w", fromID, toID, err)
	}
	return linkID, nil
}

func (s *Session) InsertLinkWord(ctx context.Context, linkID, wordID int64) error {
	_, err := s.tx.ExecContext(ctx,
		s.d.rebind("INSERT INTO linkwords (linkid, wordid) VALUES (?, ?)"),
		linkID, wordID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert link word (%d, %d): %w", linkID, wordID, err)
	}
	return nil
}

func (s *Session) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Session) Rollback() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
