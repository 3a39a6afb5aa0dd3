// Package store wraps the SQLite database holding the temporal index,
// indexing progress, notes, and metrics events.
//
// Concurrency contract: WAL mode lets readers in other processes
// proceed while one writer holds the lock; busy_timeout makes a
// blocked writer fail after 5 seconds. Walkers batch inserts between
// BeginBatch/CommitBatch and commit every N commits to yield the
// write lock.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// Store wraps a SQLite database connection.
type Store struct {
	db *sql.DB

	// tx is the explicit batch transaction, if one is open.
	// The walkers drive it via BeginBatch/CommitBatch.
	tx *sql.Tx
}

// Open opens (or creates) the SQLite database at dbPath with WAL mode
// and a 5-second busy timeout, then runs any pending migrations.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: explicit BEGIN/COMMIT batch boundaries and the
	// busy-timeout semantics only hold on a single connection.
	db.SetMaxOpenConns(1)

	// Verify connection and WAL mode.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check journal mode: %w", err)
	}
	if journalMode != "wal" {
		_ = db.Close()
		return nil, fmt.Errorf("expected WAL journal mode, got %q", journalMode)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory creates an in-memory store (for testing). In-memory
// databases cannot use WAL, so the journal-mode check is skipped.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close rolls back any open batch and closes the connection.
func (s *Store) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginBatch opens an explicit transaction for batched commit-row
// inserts. Calling it with a batch already open is an error.
func (s *Store) BeginBatch() error {
	if s.tx != nil {
		return fmt.Errorf("batch already open")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	s.tx = tx
	return nil
}

// CommitBatch commits the current batch, releasing the write lock.
// A no-op when no batch is open.
func (s *Store) CommitBatch() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// RollbackBatch discards the current batch segment. Walkers call it
// when a walk fails mid-segment so rows from a partially processed
// commit are never persisted. A no-op when no batch is open.
func (s *Store) RollbackBatch() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

// execer routes writes through the open batch transaction when one
// exists, so walker inserts land atomically per batch segment.
func (s *Store) execer() interface {
	Exec(query string, args ...any) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// InsertCommitRows records the indexable files changed in a single
// commit. Duplicates are silently ignored, so re-indexing the same
// commit is a no-op.
func (s *Store) InsertCommitRows(commitHash string, files []string, timestamp int64) error {
	e := s.execer()
	for _, f := range files {
		_, err := e.Exec(
			`INSERT OR IGNORE INTO temporal_index (commit_hash, file_path, commit_timestamp)
			 VALUES (?, ?, ?)`,
			commitHash, f, timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert commit row %s %s: %w", shortHash(commitHash), f, err)
		}
	}
	return nil
}

// CommitCount returns the number of distinct commits touching filePath.
func (s *Store) CommitCount(filePath string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT commit_hash) FROM temporal_index WHERE file_path = ?`,
		filePath,
	).Scan(&count)
	return count, err
}

// CoChangeCount returns how many distinct commits contain both files.
func (s *Store) CoChangeCount(fileA, fileB string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT a.commit_hash)
		 FROM temporal_index a
		 JOIN temporal_index b ON a.commit_hash = b.commit_hash
		 WHERE a.file_path = ? AND b.file_path = ?`,
		fileA, fileB,
	).Scan(&count)
	return count, err
}

// CoupledFileStats is one row of coupling statistics for a file that
// co-changed with the query target.
type CoupledFileStats struct {
	Path          string
	CoChangeCount int
	TotalCommits  int
	LastTimestamp int64
}

// CoupledFilesWithStats returns, for every file that ever appeared in
// a commit with filePath, the co-change count, the file's total
// commit count anywhere, and the most recent shared-commit timestamp.
func (s *Store) CoupledFilesWithStats(filePath string) ([]CoupledFileStats, error) {
	rows, err := s.db.Query(
		`SELECT
			b.file_path,
			COUNT(DISTINCT a.commit_hash) AS co_change_count,
			(SELECT COUNT(DISTINCT commit_hash)
			 FROM temporal_index
			 WHERE file_path = b.file_path) AS total_commits,
			MAX(b.commit_timestamp) AS last_timestamp
		 FROM temporal_index a
		 JOIN temporal_index b ON a.commit_hash = b.commit_hash
		 WHERE a.file_path = ?1 AND b.file_path != ?1
		 GROUP BY b.file_path
		 ORDER BY co_change_count DESC`,
		filePath,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CoupledFileStats
	for rows.Next() {
		var cs CoupledFileStats
		if err := rows.Scan(&cs.Path, &cs.CoChangeCount, &cs.TotalCommits, &cs.LastTimestamp); err != nil {
			return nil, err
		}
		result = append(result, cs)
	}
	return result, rows.Err()
}

// CommitTimeRange returns the oldest and newest commit timestamps
// across all rows, or (0, 0) when the index is empty.
func (s *Store) CommitTimeRange() (oldest, newest int64, err error) {
	err = s.db.QueryRow(
		`SELECT COALESCE(MIN(commit_timestamp), 0), COALESCE(MAX(commit_timestamp), 0)
		 FROM temporal_index`,
	).Scan(&oldest, &newest)
	return oldest, newest, err
}

// shortHash abbreviates a commit hash for error messages.
func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
