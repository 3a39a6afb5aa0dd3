package gitwalk

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/spectra-g/engram/internal/store"
)

// GlobalOptions parameterize a global walk segment.
type GlobalOptions struct {
	// Budget is the wall-clock limit; checked before each commit.
	Budget time.Duration
	// CommitLimit caps the number of commits processed this segment.
	CommitLimit int
	// ResumeFrom, when non-empty, skips to the commit after this hash.
	ResumeFrom string
	// BatchSize is how many commits go into one transaction segment.
	BatchSize int
}

// GlobalWalk processes commits newest-first from HEAD (or from the
// commit after ResumeFrom), inserting each commit's indexable file
// set into the store. It stops on budget, on the commit limit, or on
// natural exhaustion.
//
// When ResumeFrom is not found in history (rewritten), the walk
// reports HitEnd=true with no progress so the stale cursor is retired.
//
// On error, the returned Result reflects only progress already
// committed to the store; the open batch segment is rolled back.
func GlobalWalk(repo *git.Repository, st *store.Store, opts GlobalOptions) (Result, error) {
	start := time.Now()

	iter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return Result{}, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	if opts.ResumeFrom != "" {
		for {
			c, err := iter.Next()
			if errors.Is(err, io.EOF) {
				return Result{HitEnd: true}, nil
			}
			if err != nil {
				return Result{}, fmt.Errorf("skip to resume cursor: %w", err)
			}
			if c.Hash.String() == opts.ResumeFrom {
				break
			}
		}
	}

	res := Result{HitEnd: true}
	committed := res // progress durable in the store so far
	batchCount := 0

	if err := st.BeginBatch(); err != nil {
		return committed, err
	}

	for {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = st.RollbackBatch()
			committed.HitEnd = false
			return committed, fmt.Errorf("walk commit: %w", err)
		}

		// Checked once another commit is known to exist, so a segment
		// that reaches the limit exactly at the root still reports the
		// end of history.
		if time.Since(start) >= opts.Budget || res.Indexed >= opts.CommitLimit {
			res.HitEnd = false // stopped early, not end of history
			break
		}

		if err := insertCommitFiles(st, c); err != nil {
			_ = st.RollbackBatch()
			committed.HitEnd = false
			return committed, fmt.Errorf("index commit %s: %w", c.Hash.String()[:7], err)
		}

		res.LastCursor = c.Hash.String()
		res.Indexed++
		batchCount++

		// Commit in batches to yield the write lock.
		if batchCount >= opts.BatchSize {
			if err := st.CommitBatch(); err != nil {
				committed.HitEnd = false
				return committed, err
			}
			committed = res
			if err := st.BeginBatch(); err != nil {
				committed.HitEnd = false
				return committed, err
			}
			batchCount = 0
		}
	}

	if err := st.CommitBatch(); err != nil {
		committed.HitEnd = false
		return committed, err
	}

	return res, nil
}
