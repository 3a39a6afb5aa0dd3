// Package analysis answers the blast-radius question for one file:
// index as much history as the budget allows, read coupling
// statistics back, score and rank the collaborators, and enrich the
// result with notes and test intents.
package analysis

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/spectra-g/engram/internal/config"
	"github.com/spectra-g/engram/internal/indexing"
	"github.com/spectra-g/engram/internal/knowledge"
	"github.com/spectra-g/engram/internal/logging"
	"github.com/spectra-g/engram/internal/risk"
	"github.com/spectra-g/engram/internal/store"
	"github.com/spectra-g/engram/internal/testintent"
	"github.com/spectra-g/engram/internal/types"
)

// ForegroundBudget bounds indexing inside one analyze call, leaving
// ~500ms headroom for repo open, store queries, and marshalling under
// the 2s first-call target.
const ForegroundBudget = 1500 * time.Millisecond

// Result pairs the wire response with whether the caller should run
// the background continuation after emitting it.
type Result struct {
	Response        types.AnalysisResponse
	NeedsBackground bool
}

// Analyze produces the coupling report for filePath. The store is
// opened (and created on first use) under <repoRoot>/.engram.
func Analyze(repoRoot, filePath string) (Result, error) {
	start := time.Now()
	log := logging.WithComponent("analysis")

	if err := config.EnsureDataDir(repoRoot); err != nil {
		return Result{}, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(config.DBPath(repoRoot))
	if err != nil {
		return Result{}, err
	}
	defer st.Close()

	gitDir := config.GitDir(repoRoot)
	repo, err := git.PlainOpen(gitDir)
	if err != nil {
		return Result{}, fmt.Errorf("open git repo at %s: %w", gitDir, err)
	}

	indexResult, err := indexing.SmartIndex(repo, st, gitDir, filePath, ForegroundBudget)
	if err != nil {
		return Result{}, err
	}

	coupledRaw, err := st.CoupledFilesWithStats(filePath)
	if err != nil {
		return Result{}, err
	}
	commitCount, err := st.CommitCount(filePath)
	if err != nil {
		return Result{}, err
	}
	oldest, newest, err := st.CommitTimeRange()
	if err != nil {
		return Result{}, err
	}

	coupledFiles := risk.ScoreCoupledFiles(coupledRaw, commitCount, risk.TimeWindow{
		OldestTS: oldest,
		NewestTS: newest,
	})
	if coupledFiles == nil {
		coupledFiles = []types.CoupledFile{}
	}

	// Enrichment is best-effort: a failure here degrades the response,
	// never blocks it.
	knowledge.EnrichWithMemories(st, coupledFiles)
	testintent.EnrichWithTestIntents(repoRoot, coupledFiles)

	response := types.AnalysisResponse{
		FilePath:       filePath,
		RepoRoot:       repoRoot,
		CoupledFiles:   coupledFiles,
		CommitCount:    commitCount,
		AnalysisTimeMs: time.Since(start).Milliseconds(),
		IndexingStatus: &types.IndexingStatus{
			Strategy:       string(indexResult.Strategy),
			CommitsIndexed: indexResult.CommitsIndexed,
			IsComplete:     indexResult.IsComplete,
		},
	}

	if indexResult.NeedsBackground {
		log.Debug().Int("commits_indexed", indexResult.CommitsIndexed).
			Str("strategy", string(indexResult.Strategy)).
			Msg("indexing incomplete, background continuation requested")
	}

	return Result{Response: response, NeedsBackground: indexResult.NeedsBackground}, nil
}
