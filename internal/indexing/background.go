package indexing

import (
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/spectra-g/engram/internal/config"
	"github.com/spectra-g/engram/internal/gitwalk"
	"github.com/spectra-g/engram/internal/logging"
	"github.com/spectra-g/engram/internal/store"
)

// Background runs one more walk segment after the foreground response
// has been emitted. It reopens the store, reads the indexing state,
// and continues from the persisted cursor for the given budget.
//
// filePath is threaded through from the foreground caller so a
// path-filtered walk can continue its file-specific history; when
// empty and the strategy is path_filtered, the continuation is a
// no-op. Errors are logged and swallowed: a background failure must
// never reach the caller.
func Background(repoRoot string, budget time.Duration, filePath string) {
	log := logging.WithComponent("background")

	st, err := store.Open(config.DBPath(repoRoot))
	if err != nil {
		log.Warn().Err(err).Msg("open store")
		return
	}
	defer st.Close()

	state, err := st.GetIndexingState()
	if err != nil {
		log.Warn().Err(err).Msg("read indexing state")
		return
	}
	if state == nil || state.IsComplete {
		return
	}

	repo, err := git.PlainOpen(config.GitDir(repoRoot))
	if err != nil {
		log.Warn().Err(err).Msg("open repository")
		return
	}

	strategy := ParseStrategy(state.Strategy)

	var res gitwalk.Result
	if strategy == StrategyPathFiltered {
		if filePath == "" {
			// Without the caller's file path there is no target to
			// walk; leave the persisted cursor for a later call.
			return
		}
		res, err = gitwalk.PathFilteredWalk(repo, st, gitwalk.PathFilteredOptions{
			Target:     filePath,
			Budget:     budget,
			ResumeFrom: state.ResumeCursor,
			BatchSize:  BackgroundBatchSize,
		})
	} else {
		limit := DefaultCommitLimit - state.CommitsIndexed
		if limit < 0 {
			limit = 0
		}
		res, err = gitwalk.GlobalWalk(repo, st, gitwalk.GlobalOptions{
			Budget:      budget,
			CommitLimit: limit,
			ResumeFrom:  state.ResumeCursor,
			BatchSize:   BackgroundBatchSize,
		})
	}
	if err != nil {
		log.Warn().Err(err).Msg("background walk stopped early")
	}

	newState := &store.IndexingState{
		HeadCommit:     state.HeadCommit,
		CommitsIndexed: state.CommitsIndexed + res.Indexed,
		Strategy:       state.Strategy,
		IsComplete:     res.HitEnd,
		LastUpdated:    time.Now().Unix(),
		TargetPath:     state.TargetPath,
	}
	if filePath != "" && strategy == StrategyPathFiltered {
		newState.TargetPath = filePath
	}
	if !res.HitEnd {
		newState.ResumeCursor = coalesce(res.LastCursor, state.ResumeCursor)
	}
	if err := st.SetIndexingState(newState); err != nil {
		log.Warn().Err(err).Msg("write indexing state")
	}
}
