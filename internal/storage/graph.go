package storage

import (
	"context"
	"fmt"
	"strings"
)

// maxBatch bounds the number of ids bound into a single IN clause.
const maxBatch = 500

// Edge is a stored link between two documents.
type Edge struct {
	ID     int64
	FromID int64
	ToID   int64
}

// MatchRow is one conjunctive match: a document and the location of each
// query term, in query order.
type MatchRow struct {
	URLID     int64
	Locations []int
}

// Stats summarizes the size of the index.
type Stats struct {
	Documents int
	Indexed   int
	Words     int
	Postings  int
	Links     int
	Ranked    int
}

// URLIDs returns the id of every known document in ascending order.
func (s *Store) URLIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM urllist ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Links returns every stored edge.
func (s *Store) Links(ctx context.Context) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, fromid, toid FROM link ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// URLs resolves document ids to their URLs. Unknown ids are absent from the map.
func (s *Store) URLs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	err := s.batched(ctx, ids, "SELECT id, url FROM urllist WHERE id IN (%s)", func(scan func(...any) error) error {
		var (
			id  int64
			url string
		)
		if err := scan(&id, &url); err != nil {
			return err
		}
		out[id] = url
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve urls: %w", err)
	}
	return out, nil
}

// PageRanks returns the stored score of each id that has one.
func (s *Store) PageRanks(ctx context.Context, ids []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(ids))
	err := s.batched(ctx, ids, "SELECT urlid, score FROM pagerank WHERE urlid IN (%s)", func(scan func(...any) error) error {
		var (
			id    int64
			score float64
		)
		if err := scan(&id, &score); err != nil {
			return err
		}
		out[id] = score
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read pagerank scores: %w", err)
	}
	return out, nil
}

// InboundCounts returns the number of links pointing at each id.
func (s *Store) InboundCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(ids))
	err := s.batched(ctx, ids, "SELECT toid, COUNT(*) FROM link WHERE toid IN (%s) GROUP BY toid", func(scan func(...any) error) error {
		var (
			id    int64
			count int
		)
		if err := scan(&id, &count); err != nil {
			return err
		}
		out[id] = count
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count inbound links: %w", err)
	}
	return out, nil
}

// MatchRows joins one postings reference per word id on a shared urlid, so
// only documents containing every word are returned.
func (s *Store) MatchRows(ctx context.Context, wordIDs []int64) ([]MatchRow, error) {
	if len(wordIDs) == 0 {
		return nil, nil
	}

	var (
		fields  = []string{"w0.urlid"}
		tables  []string
		clauses []string
		args    = make([]any, 0, len(wordIDs))
	)
	for i, wordID := range wordIDs {
		fields = append(fields, fmt.Sprintf("w%d.location", i))
		tables = append(tables, fmt.Sprintf("wordlocation w%d", i))
		if i > 0 {
			clauses = append(clauses, fmt.Sprintf("w%d.urlid = w%d.urlid", i-1, i))
		}
		clauses = append(clauses, fmt.Sprintf("w%d.wordid = ?", i))
		args = append(args, wordID)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY w0.urlid",
		strings.Join(fields, ", "),
		strings.Join(tables, ", "),
		strings.Join(clauses, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matching rows: %w", err)
	}
	defer rows.Close()

	var out []MatchRow
	dest := make([]any, len(wordIDs)+1)
	for rows.Next() {
		row := MatchRow{Locations: make([]int, len(wordIDs))}
		dest[0] = &row.URLID
		for i := range row.Locations {
			dest[i+1] = &row.Locations[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan matching row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LinkTextSources returns every link whose anchor text used wordID, once per
// linkwords row.
func (s *Store) LinkTextSources(ctx context.Context, wordID int64) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT link.id, link.fromid, link.toid
		FROM linkwords JOIN link ON linkwords.linkid = link.id
		WHERE linkwords.wordid = ?`),
		wordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query link text for word %d: %w", wordID, err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID); err != nil {
			return nil, fmt.Errorf("failed to scan link text row: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ReplacePageRanks drops the score table, recreates it and fills it with
// scores inside one transaction. Readers see either the previous table or
// the complete new one.
func (s *Store) ReplacePageRanks(ctx context.Context, scores map[int64]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS pagerank"); err != nil {
		return fmt.Errorf("failed to drop pagerank table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, pageRankTable); err != nil {
		return fmt.Errorf("failed to create pagerank table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.d.rebind("INSERT INTO pagerank (urlid, score) VALUES (?, ?)"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for urlID, score := range scores {
		if _, err := stmt.ExecContext(ctx, urlID, score); err != nil {
			return fmt.Errorf("failed to insert score for url %d: %w", urlID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats counts the rows of every table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM urllist", &st.Documents},
		{"SELECT COUNT(DISTINCT urlid) FROM wordlocation", &st.Indexed},
		{"SELECT COUNT(*) FROM wordlist", &st.Words},
		{"SELECT COUNT(*) FROM wordlocation", &st.Postings},
		{"SELECT COUNT(*) FROM link", &st.Links},
		{"SELECT COUNT(*) FROM pagerank", &st.Ranked},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("failed to collect stats: %w", err)
		}
	}
	return st, nil
}

// batched runs query once per chunk of ids, substituting the IN list for %s.
func (s *Store) batched(ctx context.Context, ids []int64, query string, scanRow func(scan func(...any) error) error) error {
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx, s.d.rebind(fmt.Sprintf(query, placeholders(len(chunk)))), args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			if err := scanRow(rows.Scan); err != nil {
				rows.Close()
				return err
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
