package gitwalk

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/spectra-g/engram/internal/store"
)

// PathFilteredOptions parameterize a path-filtered walk segment.
type PathFilteredOptions struct {
	// Target is the file whose change history drives the walk.
	Target string
	// Budget is the wall-clock limit.
	Budget time.Duration
	// ResumeFrom, when non-empty, skips to this hash on the
	// first-parent chain and continues from there.
	ResumeFrom string
	// BatchSize is how many diffed commits go into one transaction segment.
	BatchSize int
}

// skipAbortInterval is how often the resume skip re-checks the budget.
// Skipping to a deep cursor is itself expensive on huge repos; when
// the budget runs out mid-skip the walk reports zero progress and the
// caller keeps the old cursor.
const skipAbortInterval = 1000

// PathFilteredWalk follows the first-parent chain from HEAD, which on
// merge-heavy repositories collapses most of the commit count. Per
// commit it resolves the target's blob id (one tree lookup, no diff)
// and compares against the child commit's blob: a mismatch means the
// child changed the target, and only then is the child fully diffed
// and its row set inserted.
//
// Change detection is delayed by one step: visiting commit[i+1] (the
// parent) tells us whether commit[i] changed the file.
func PathFilteredWalk(repo *git.Repository, st *store.Store, opts PathFilteredOptions) (Result, error) {
	start := time.Now()

	cur, err := headCommit(repo)
	if err != nil {
		return Result{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	var (
		prev     *object.Commit
		prevBlob plumbing.Hash
		prevOK   bool
		havePrev bool
	)

	res := Result{HitEnd: true}

	if opts.ResumeFrom != "" {
		cur, prev, prevBlob, prevOK = skipToCursor(cur, opts.Target, opts.ResumeFrom, start, opts.Budget)
		if prev == nil {
			// Budget exhausted mid-skip, or cursor not in history
			// (rewritten) — no progress; the caller retries later.
			return Result{HitEnd: false}, nil
		}
		havePrev = true
		res.LastCursor = opts.ResumeFrom
	}

	committed := res
	batchCount := 0

	if err := st.BeginBatch(); err != nil {
		return committed, err
	}

	for cur != nil {
		if time.Since(start) >= opts.Budget {
			res.HitEnd = false
			break
		}

		blob, ok := blobID(cur, opts.Target)

		// The current commit is the previous one's first parent: a
		// blob mismatch means the previous (newer) commit changed
		// the target.
		if havePrev && (prevOK != ok || prevBlob != blob) {
			// Don't start a diff we can't afford to finish.
			if remainingMS(start, opts.Budget) < DiffSafetyMarginMS {
				res.HitEnd = false
				break
			}

			if err := indexChildCommit(st, cur, prev); err != nil {
				_ = st.RollbackBatch()
				committed.HitEnd = false
				return committed, err
			}

			res.Indexed++
			batchCount++

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

		res.LastCursor = cur.Hash.String()
		prev, prevBlob, prevOK, havePrev = cur, blob, ok, true

		if cur.NumParents() == 0 {
			cur = nil
		} else {
			cur, err = cur.Parent(0)
			if err != nil {
				_ = st.RollbackBatch()
				committed.HitEnd = false
				return committed, fmt.Errorf("walk first parent: %w", err)
			}
		}
	}

	// Root commit: if it holds the target and the walk ran to
	// exhaustion, its diff against the empty tree is the file's
	// initial add.
	if havePrev && prevOK && res.HitEnd && prev.NumParents() == 0 {
		if remainingMS(start, opts.Budget) >= DiffSafetyMarginMS {
			if err := insertCommitFiles(st, prev); err != nil {
				_ = st.RollbackBatch()
				committed.HitEnd = false
				return committed, fmt.Errorf("index root commit: %w", err)
			}
			res.Indexed++
		}
	}

	if err := st.CommitBatch(); err != nil {
		committed.HitEnd = false
		return committed, err
	}

	return res, nil
}

// skipToCursor walks the first-parent chain from head until it finds
// the resume hash, rebuilding the delayed-detection context (the
// resume commit and its blob for target). Returns (next, resume,
// blob, ok); resume is nil when the cursor was not found or the
// budget ran out during the skip.
func skipToCursor(head *object.Commit, target, cursor string, start time.Time, budget time.Duration) (*object.Commit, *object.Commit, plumbing.Hash, bool) {
	cur := head
	skipped := 0
	for cur != nil {
		skipped++
		if skipped%skipAbortInterval == 0 && time.Since(start) >= budget {
			return nil, nil, plumbing.ZeroHash, false
		}

		if cur.Hash.String() == cursor {
			blob, ok := blobID(cur, target)
			next := firstParentOrNil(cur)
			return next, cur, blob, ok
		}

		cur = firstParentOrNil(cur)
	}
	return nil, nil, plumbing.ZeroHash, false
}

func firstParentOrNil(c *object.Commit) *object.Commit {
	if c.NumParents() == 0 {
		return nil
	}
	parent, err := c.Parent(0)
	if err != nil {
		return nil
	}
	return parent
}

// indexChildCommit diffs the child commit (which changed the target)
// against the parent's tree and inserts the child's row set.
func indexChildCommit(st *store.Store, parent, child *object.Commit) error {
	parentTree, err := parent.Tree()
	if err != nil {
		return fmt.Errorf("parent tree %s: %w", parent.Hash.String()[:7], err)
	}
	childTree, err := child.Tree()
	if err != nil {
		return fmt.Errorf("child tree %s: %w", child.Hash.String()[:7], err)
	}

	changes, err := parentTree.Diff(childTree)
	if err != nil {
		return fmt.Errorf("diff %s: %w", child.Hash.String()[:7], err)
	}

	files := changedPaths(changes)
	if len(files) == 0 {
		return nil
	}
	return st.InsertCommitRows(child.Hash.String(), files, child.Committer.When.Unix())
}
