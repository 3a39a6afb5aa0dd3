package indexing

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"

	"github.com/spectra-g/engram/internal/gitwalk"
	"github.com/spectra-g/engram/internal/logging"
	"github.com/spectra-g/engram/internal/store"
)

// SmartResult reports what one SmartIndex call accomplished.
type SmartResult struct {
	Strategy        Strategy
	CommitsIndexed  int
	IsComplete      bool
	NeedsBackground bool
}

// SmartIndex is the resumable orchestrator: it consults the persisted
// indexing state, picks a strategy (fresh probe, resume, target
// switch, or huge-repo circuit break), executes the walk under the
// foreground budget, and writes the updated state back.
//
// Safe to retry: commit-row inserts are idempotent and the state
// record is overwritten last-write-wins. Only store failures return
// an error; VCS failures stop the walk, keep whatever progress was
// committed, and the call still produces a result.
func SmartIndex(repo *git.Repository, st *store.Store, gitDir, filePath string, foregroundBudget time.Duration) (SmartResult, error) {
	log := logging.WithComponent("indexing")

	state, err := st.GetIndexingState()
	if err != nil {
		return SmartResult{}, err
	}

	head, err := headHash(repo)
	if err != nil {
		// No resolvable HEAD (empty or corrupt repo): nothing to walk,
		// nothing to persist. Report whatever the store already has.
		log.Warn().Err(err).Msg("cannot resolve HEAD, skipping indexing")
		return cachedResult(state), nil
	}

	if state != nil && state.HeadCommit == head {
		if state.IsComplete {
			// Already fully indexed at this HEAD.
			return SmartResult{
				Strategy:       ParseStrategy(state.Strategy),
				CommitsIndexed: state.CommitsIndexed,
				IsComplete:     true,
			}, nil
		}
		return resumeIncomplete(repo, st, state, head, filePath, foregroundBudget, log)
	}

	// First call, or HEAD moved: historical rows stay valid but
	// progress restarts against the new HEAD.
	return freshIndex(repo, st, gitDir, head, filePath, foregroundBudget, log)
}

// resumeIncomplete handles a same-HEAD, incomplete state record:
// target switches, path-filtered short-circuit, and global resume.
func resumeIncomplete(repo *git.Repository, st *store.Store, state *store.IndexingState, head, filePath string, foregroundBudget time.Duration, log zerolog.Logger) (SmartResult, error) {
	prev := ParseStrategy(state.Strategy)

	// PathFiltered with a different target: the stored cursor belongs
	// to another file's walk and must not be reused. Start fresh for
	// the new file with the full foreground budget; the safety margin
	// keeps this cheap on huge repos. The old file's rows are retained
	// (they are real co-change facts).
	if prev == StrategyPathFiltered && state.TargetPath != "" && state.TargetPath != filePath {
		res, err := gitwalk.PathFilteredWalk(repo, st, gitwalk.PathFilteredOptions{
			Target:    filePath,
			Budget:    foregroundBudget,
			BatchSize: ForegroundBatchSize,
		})
		if err != nil {
			log.Warn().Err(err).Msg("path-filtered walk stopped early")
		}

		newState := &store.IndexingState{
			HeadCommit:     head,
			CommitsIndexed: res.Indexed,
			Strategy:       string(StrategyPathFiltered),
			IsComplete:     res.HitEnd,
			LastUpdated:    time.Now().Unix(),
			TargetPath:     filePath,
		}
		if !res.HitEnd {
			newState.ResumeCursor = res.LastCursor
		}
		if err := st.SetIndexingState(newState); err != nil {
			return SmartResult{}, err
		}

		return SmartResult{
			Strategy:        StrategyPathFiltered,
			CommitsIndexed:  res.Indexed,
			IsComplete:      res.HitEnd,
			NeedsBackground: !res.HitEnd,
		}, nil
	}

	// PathFiltered, same target: merely skipping the walk to a deep
	// cursor exceeds any short foreground budget, so foreground work
	// here is counterproductive. Return cached coupling and let the
	// background continue.
	if prev == StrategyPathFiltered {
		return SmartResult{
			Strategy:        prev,
			CommitsIndexed:  state.CommitsIndexed,
			NeedsBackground: true,
		}, nil
	}

	// Global strategies: resume with a short slice when the record is
	// stale (crashed writer) or a cursor exists.
	isStale := time.Now().Unix()-state.LastUpdated > staleAfterSec

	if isStale || state.ResumeCursor != "" {
		limit := DefaultCommitLimit - state.CommitsIndexed
		if limit < 0 {
			limit = 0
		}
		res, err := gitwalk.GlobalWalk(repo, st, gitwalk.GlobalOptions{
			Budget:      resumeSliceBudget,
			CommitLimit: limit,
			ResumeFrom:  state.ResumeCursor,
			BatchSize:   ForegroundBatchSize,
		})
		if err != nil {
			log.Warn().Err(err).Msg("global resume stopped early")
		}

		total := state.CommitsIndexed + res.Indexed
		newState := &store.IndexingState{
			HeadCommit:     head,
			CommitsIndexed: total,
			Strategy:       state.Strategy,
			IsComplete:     res.HitEnd,
			LastUpdated:    time.Now().Unix(),
			TargetPath:     state.TargetPath,
		}
		if !res.HitEnd {
			newState.ResumeCursor = coalesce(res.LastCursor, state.ResumeCursor)
		}
		if err := st.SetIndexingState(newState); err != nil {
			return SmartResult{}, err
		}

		return SmartResult{
			Strategy:        prev,
			CommitsIndexed:  total,
			IsComplete:      res.HitEnd,
			NeedsBackground: !res.HitEnd,
		}, nil
	}

	// Fresh record, no cursor: another process is working. Return
	// what we have without contending for the writer lock.
	return SmartResult{
		Strategy:       prev,
		CommitsIndexed: state.CommitsIndexed,
	}, nil
}

// freshIndex handles the first call for a HEAD: circuit breaker,
// scoping probe, strategy decision, and the execution phase.
func freshIndex(repo *git.Repository, st *store.Store, gitDir, head, filePath string, foregroundBudget time.Duration, log zerolog.Logger) (SmartResult, error) {
	// Circuit breaker: a repo with >10K tracked files makes even one
	// merge diff risky within the probe budget. Stat the working
	// index file instead of loading it; stat failure falls back to
	// probing.
	isHuge := false
	if info, err := os.Stat(filepath.Join(gitDir, ".git", "index")); err == nil {
		isHuge = info.Size() > hugeIndexBytes
	}

	var (
		strategy Strategy
		scope    gitwalk.Result
	)
	if isHuge {
		strategy = StrategyPathFiltered
	} else {
		var err error
		scope, err = gitwalk.GlobalWalk(repo, st, gitwalk.GlobalOptions{
			Budget:      ScopeBudget,
			CommitLimit: DefaultCommitLimit,
			BatchSize:   ForegroundBatchSize,
		})
		if err != nil {
			log.Warn().Err(err).Msg("scoping probe stopped early")
		}
		strategy = DecideStrategy(scope.Indexed, scope.HitEnd, DefaultCommitLimit)
	}

	if strategy == StrategyComplete {
		if err := st.SetIndexingState(&store.IndexingState{
			HeadCommit:     head,
			CommitsIndexed: scope.Indexed,
			Strategy:       string(strategy),
			IsComplete:     true,
			LastUpdated:    time.Now().Unix(),
		}); err != nil {
			return SmartResult{}, err
		}
		return SmartResult{
			Strategy:       strategy,
			CommitsIndexed: scope.Indexed,
			IsComplete:     true,
		}, nil
	}

	// Execution phase: the remaining foreground budget. Huge repos
	// skipped the probe and get the full budget.
	remaining := foregroundBudget
	if !isHuge {
		remaining -= ScopeBudget
		if remaining < 0 {
			remaining = 0
		}
	}

	var (
		exec gitwalk.Result
		err  error
	)
	if strategy == StrategyPathFiltered {
		exec, err = gitwalk.PathFilteredWalk(repo, st, gitwalk.PathFilteredOptions{
			Target:    filePath,
			Budget:    remaining,
			BatchSize: ForegroundBatchSize,
		})
	} else {
		limit := DefaultCommitLimit - scope.Indexed
		if limit < 0 {
			limit = 0
		}
		exec, err = gitwalk.GlobalWalk(repo, st, gitwalk.GlobalOptions{
			Budget:      remaining,
			CommitLimit: limit,
			ResumeFrom:  scope.LastCursor,
			BatchSize:   ForegroundBatchSize,
		})
	}
	if err != nil {
		log.Warn().Err(err).Msg("execution walk stopped early")
	}

	total := scope.Indexed + exec.Indexed
	newState := &store.IndexingState{
		HeadCommit:     head,
		CommitsIndexed: total,
		Strategy:       string(strategy),
		IsComplete:     exec.HitEnd,
		LastUpdated:    time.Now().Unix(),
	}
	if !exec.HitEnd {
		newState.ResumeCursor = coalesce(exec.LastCursor, scope.LastCursor)
	}
	if strategy == StrategyPathFiltered {
		newState.TargetPath = filePath
	}
	if err := st.SetIndexingState(newState); err != nil {
		return SmartResult{}, err
	}

	return SmartResult{
		Strategy:        strategy,
		CommitsIndexed:  total,
		IsComplete:      exec.HitEnd,
		NeedsBackground: !exec.HitEnd,
	}, nil
}

// cachedResult builds a result from persisted state alone, for calls
// where no walk is possible.
func cachedResult(state *store.IndexingState) SmartResult {
	if state == nil {
		return SmartResult{Strategy: StrategyBudgetedGlobal}
	}
	return SmartResult{
		Strategy:       ParseStrategy(state.Strategy),
		CommitsIndexed: state.CommitsIndexed,
		IsComplete:     state.IsComplete,
	}
}

func headHash(repo *git.Repository) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", err
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
