package store

import (
	"database/sql"
	"fmt"
)

// IndexingState is the singleton progress record for history indexing.
// ResumeCursor and TargetPath use the empty string for "not set".
//
// Invariants: if IsComplete, ResumeCursor is empty; if Strategy is
// path_filtered, TargetPath is non-empty.
type IndexingState struct {
	HeadCommit     string
	ResumeCursor   string
	CommitsIndexed int
	Strategy       string
	IsComplete     bool
	LastUpdated    int64
	TargetPath     string
}

// GetIndexingState reads the indexing state record. Returns (nil, nil)
// when no indexing run has been recorded yet.
func (s *Store) GetIndexingState() (*IndexingState, error) {
	var (
		st       IndexingState
		cursor   sql.NullString
		target   sql.NullString
		complete int
	)
	err := s.db.QueryRow(
		`SELECT head_commit, resume_cursor, commits_indexed, strategy, is_complete, last_updated, target_path
		 FROM indexing_state WHERE id = 1`,
	).Scan(&st.HeadCommit, &cursor, &st.CommitsIndexed, &st.Strategy, &complete, &st.LastUpdated, &target)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read indexing state: %w", err)
	}
	st.ResumeCursor = cursor.String
	st.TargetPath = target.String
	st.IsComplete = complete != 0
	return &st, nil
}

// SetIndexingState overwrites the indexing state record.
// Last write wins; there is never more than one row.
func (s *Store) SetIndexingState(st *IndexingState) error {
	complete := 0
	if st.IsComplete {
		complete = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO indexing_state
			(id, head_commit, resume_cursor, commits_indexed, strategy, is_complete, last_updated, target_path)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			head_commit     = excluded.head_commit,
			resume_cursor   = excluded.resume_cursor,
			commits_indexed = excluded.commits_indexed,
			strategy        = excluded.strategy,
			is_complete     = excluded.is_complete,
			last_updated    = excluded.last_updated,
			target_path     = excluded.target_path`,
		st.HeadCommit, nullIfEmpty(st.ResumeCursor), st.CommitsIndexed,
		st.Strategy, complete, st.LastUpdated, nullIfEmpty(st.TargetPath),
	)
	if err != nil {
		return fmt.Errorf("write indexing state: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
