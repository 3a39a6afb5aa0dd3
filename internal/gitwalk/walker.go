// Package gitwalk streams commits out of a git repository and writes
// the per-commit file sets into the store. Two walk modes exist:
// a global walk over every commit, and a path-filtered walk that
// follows the first-parent chain and only diffs commits that changed
// one target file.
package gitwalk

import (
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/spectra-g/engram/internal/store"
)

// DiffSafetyMarginMS is the minimum remaining budget before starting
// a tree diff. The path-filtered walk diffs first-parent pairs only,
// typically 10-50ms even on the Linux kernel, but a merge diff can
// exceed 500ms. A path-filtered walk given less than 200ms never
// attempts a diff. The global walk does not apply this margin.
const DiffSafetyMarginMS = 200

// Result reports what one walk segment accomplished.
type Result struct {
	// Indexed is the number of commits this segment processed
	// (global mode) or diffed (path-filtered mode).
	Indexed int
	// LastCursor is the hash of the last commit the walk visited,
	// empty when the walk made no progress.
	LastCursor string
	// HitEnd is true when the walk exhausted history rather than
	// stopping on budget or ceiling.
	HitEnd bool
}

// headCommit resolves the repository HEAD to a commit.
func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, err
	}
	return repo.CommitObject(ref.Hash())
}

// changedPaths collects the indexable file paths touched by a diff.
// Deletions report the pre-image path.
func changedPaths(changes object.Changes) []string {
	var files []string
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if name != "" && ShouldIndex(name) {
			files = append(files, name)
		}
	}
	return files
}

// diffAgainstFirstParent diffs a commit against its first parent's
// tree; a root commit diffs against the empty tree.
func diffAgainstFirstParent(c *object.Commit) (object.Changes, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, err
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
	}

	return parentTree.Diff(tree)
}

// insertCommitFiles diffs the commit against its first parent and
// writes one row per indexable changed file.
func insertCommitFiles(st *store.Store, c *object.Commit) error {
	changes, err := diffAgainstFirstParent(c)
	if err != nil {
		return err
	}
	files := changedPaths(changes)
	if len(files) == 0 {
		return nil
	}
	return st.InsertCommitRows(c.Hash.String(), files, c.Committer.When.Unix())
}

// blobID resolves the blob hash of path in a commit's tree.
// Returns ok=false when the path does not exist there.
func blobID(c *object.Commit, path string) (plumbing.Hash, bool) {
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, false
	}
	entry, err := tree.FindEntry(path)
	if err != nil {
		return plumbing.ZeroHash, false
	}
	return entry.Hash, true
}

func remainingMS(start time.Time, budget time.Duration) int64 {
	rem := budget - time.Since(start)
	if rem < 0 {
		return 0
	}
	return rem.Milliseconds()
}
