// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/recall-dev/recall/internal/store"
	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// Compile-time interface check.
var _ store.SolutionStore = (*SolutionStore)(nil)

// SolutionStore implements store.SolutionStore backed by SQLite with FTS5
// full-text search over query and solution text.
type SolutionStore struct {
	db *sql.DB
}

// NewSolutionStore opens (or creates) a SQLite database at dbPath and
// initialises the solutions table with its FTS5 index.
func NewSolutionStore(dbPath string) (*SolutionStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, recallerr.Errorf(recallerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, recallerr.Errorf(recallerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrateSolutions(db); err != nil {
		_ = db.Close()
		return nil, recallerr.Errorf(recallerr.CodeStoreDatabaseFailure, "migrating solutions tables: %w", err)
	}

	return &SolutionStore{db: db}, nil
}

func migrateSolutions(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS solutions (
	id          TEXT PRIMARY KEY,
	query_text  TEXT NOT NULL,
	solution    TEXT NOT NULL,
	value_score REAL NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_solutions_created ON solutions(created_at);
CREATE INDEX IF NOT EXISTS idx_solutions_value ON solutions(value_score);

CREATE VIRTUAL TABLE IF NOT EXISTS solutions_fts USING fts5(
	query_text,
	solution,
	content='solutions',
	content_rowid='rowid'
);

-- Triggers to keep FTS index in sync with the main table.
CREATE TRIGGER IF NOT EXISTS solutions_ai AFTER INSERT ON solutions BEGIN
	INSERT INTO solutions_fts(rowid, query_text, solution) VALUES (new.rowid, new.query_text, new.solution);
END;

CREATE TRIGGER IF NOT EXISTS solutions_ad AFTER DELETE ON solutions BEGIN
	INSERT INTO solutions_fts(solutions_fts, rowid, query_text, solution) VALUES ('delete', old.rowid, old.query_text, old.solution);
END;

CREATE TRIGGER IF NOT EXISTS solutions_au AFTER UPDATE ON solutions BEGIN
	INSERT INTO solutions_fts(solutions_fts, rowid, query_text, solution) VALUES ('delete', old.rowid, old.query_text, old.solution);
	INSERT INTO solutions_fts(rowid, query_text, solution) VALUES (new.rowid, new.query_text, new.solution);
END;
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SolutionStore) Close() error {
	return s.db.Close()
}

// Insert stores a new solution.
func (s *SolutionStore) Insert(ctx context.Context, sol *store.Solution) error {
	const q = `INSERT INTO solutions (id, query_text, solution, value_score, created_at)
VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		sol.ID, sol.QueryText, sol.Solution, sol.ValueScore, formatTime(sol.CreatedAt))
	if err != nil {
		return recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "inserting solution %s", sol.ID)
	}
	return nil
}

// Get retrieves a solution by id.
func (s *SolutionStore) Get(ctx context.Context, id string) (*store.Solution, error) {
	const q = `SELECT id, query_text, solution, value_score, created_at FROM solutions WHERE id = ?`

	var sol store.Solution
	var createdAt string
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&sol.ID, &sol.QueryText, &sol.Solution, &sol.ValueScore, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recallerr.New(recallerr.CodeStoreSolutionNotFound, "solution not found: "+id)
	}
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "getting solution %s", id)
	}
	sol.CreatedAt = parseTime(createdAt)
	return &sol, nil
}

// Count returns the total number of stored solutions.
func (s *SolutionStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solutions`).Scan(&count)
	if err != nil {
		return 0, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "counting solutions")
	}
	return count, nil
}

// ListIDs returns every solution identifier.
func (s *SolutionStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM solutions`)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "listing solution ids")
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "scanning solution id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "iterating solution ids")
	}
	return ids, nil
}

// SearchKeyword performs an FTS5 search and maps bm25 rank into a 0..1
// relevance score (bm25 is more negative for better matches).
func (s *SolutionStore) SearchKeyword(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	const q = `SELECT s.id, s.query_text, s.solution, bm25(solutions_fts) AS rank
FROM solutions s
JOIN solutions_fts fts ON s.rowid = fts.rowid
WHERE solutions_fts MATCH ?
ORDER BY rank
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, ftsQuote(query), limit)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "keyword search")
	}
	defer func() { _ = rows.Close() }()

	var results []store.SearchResult
	for rows.Next() {
		var r store.SearchResult
		var queryText string
		var rank float64
		if err := rows.Scan(&r.ID, &queryText, &r.Text, &rank); err != nil {
			return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "scanning keyword result")
		}
		r.Collection = "solutions"
		r.Score = rankToScore(rank)
		r.Payload = map[string]any{"query_text": queryText}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "iterating keyword results")
	}
	return results, nil
}

// DeleteExpired removes solutions created before cutoff with a value score
// below minScore. Age alone is never sufficient.
func (s *SolutionStore) DeleteExpired(ctx context.Context, cutoff time.Time, minScore float64) (int64, error) {
	const q = `DELETE FROM solutions WHERE created_at < ? AND value_score < ?`

	result, err := s.db.ExecContext(ctx, q, formatTime(cutoff), minScore)
	if err != nil {
		return 0, recallerr.Wrapf(err, recallerr.CodeStoreDeleteFailure, "deleting expired solutions")
	}
	return result.RowsAffected()
}

// ValueScoreAtRank returns the value score at the given zero-based rank in
// descending score order.
func (s *SolutionStore) ValueScoreAtRank(ctx context.Context, rank int64) (float64, error) {
	const q = `SELECT value_score FROM solutions ORDER BY value_score DESC LIMIT 1 OFFSET ?`

	var score float64
	err := s.db.QueryRowContext(ctx, q, rank).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, recallerr.Errorf(recallerr.CodeStoreSolutionNotFound, "no solution at rank %d", rank)
	}
	if err != nil {
		return 0, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "value score at rank %d", rank)
	}
	return score, nil
}

// DeleteBelowScore removes every solution with value score strictly below
// threshold.
func (s *SolutionStore) DeleteBelowScore(ctx context.Context, threshold float64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM solutions WHERE value_score < ?`, threshold)
	if err != nil {
		return 0, recallerr.Wrapf(err, recallerr.CodeStoreDeleteFailure, "deleting low-value solutions")
	}
	return result.RowsAffected()
}

// Recent returns the n most recently created solutions, newest first.
func (s *SolutionStore) Recent(ctx context.Context, n int) ([]*store.Solution, error) {
	const q = `SELECT id, query_text, solution, value_score, created_at
FROM solutions ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "listing recent solutions")
	}
	defer func() { _ = rows.Close() }()

	var solutions []*store.Solution
	for rows.Next() {
		var sol store.Solution
		var createdAt string
		if err := rows.Scan(&sol.ID, &sol.QueryText, &sol.Solution, &sol.ValueScore, &createdAt); err != nil {
			return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "scanning solution row")
		}
		sol.CreatedAt = parseTime(createdAt)
		solutions = append(solutions, &sol)
	}
	if err := rows.Err(); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "iterating recent solutions")
	}
	return solutions, nil
}

// DeleteByIDs removes the given solutions and returns the deleted count.
func (s *SolutionStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders, args := inArgs(ids)
	result, err := s.db.ExecContext(ctx, `DELETE FROM solutions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, recallerr.Wrapf(err, recallerr.CodeStoreDeleteFailure, "deleting solutions by id")
	}
	return result.RowsAffected()
}

// Stats returns row count, average value score, age bounds, and on-disk
// byte size (page_count * page_size).
func (s *SolutionStore) Stats(ctx context.Context) (store.StorageStats, error) {
	var stats store.StorageStats

	const q = `SELECT COUNT(*), COALESCE(AVG(value_score), 0),
	COALESCE(MIN(created_at), ''), COALESCE(MAX(created_at), '')
FROM solutions`

	var oldest, newest string
	err := s.db.QueryRowContext(ctx, q).Scan(&stats.Count, &stats.AvgValue, &oldest, &newest)
	if err != nil {
		return stats, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "reading storage stats")
	}
	if oldest != "" {
		stats.OldestAt = parseTime(oldest)
	}
	if newest != "" {
		stats.NewestAt = parseTime(newest)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return stats, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "reading page count")
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return stats, recallerr.Wrapf(err, recallerr.CodeStoreQueryFailure, "reading page size")
	}
	stats.SizeBytes = pageCount * pageSize

	return stats, nil
}
