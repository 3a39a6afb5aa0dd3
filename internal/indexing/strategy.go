// Package indexing decides how much git history can be indexed within
// a time budget and stitches probe, execution, persisted progress,
// and background continuation into one idempotent call.
package indexing

import "time"

// Strategy is the walk mode chosen after the scoping probe.
type Strategy string

const (
	// StrategyComplete: small repo, finished within the probe budget.
	StrategyComplete Strategy = "complete"
	// StrategyContinueGlobal: fast machine or small repo (>40% of the
	// ceiling probed), finish globally in the foreground.
	StrategyContinueGlobal Strategy = "continue_global"
	// StrategyBudgetedGlobal: medium repo (1-40% probed), continue
	// globally within budget and defer the rest to background.
	StrategyBudgetedGlobal Strategy = "budgeted_global"
	// StrategyPathFiltered: huge repo (<1% probed), a global walk will
	// never finish; walk only the target file's first-parent history.
	StrategyPathFiltered Strategy = "path_filtered"
)

// ParseStrategy decodes a persisted strategy name. Unknown names
// decode to StrategyBudgetedGlobal.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyComplete, StrategyContinueGlobal, StrategyBudgetedGlobal, StrategyPathFiltered:
		return Strategy(s)
	default:
		return StrategyBudgetedGlobal
	}
}

const (
	// DefaultCommitLimit is the global-walk commit ceiling K.
	DefaultCommitLimit = 1000

	// ScopeBudget is the first-call probe budget.
	ScopeBudget = 500 * time.Millisecond

	// resumeSliceBudget is the short foreground slice a subsequent
	// call spends resuming an incomplete global walk.
	resumeSliceBudget = 150 * time.Millisecond

	// staleAfterSec: an incomplete state record older than this is
	// assumed abandoned (crashed process) and may be seized.
	staleAfterSec = 10

	// ForegroundBatchSize and BackgroundBatchSize control how often
	// the walkers commit and yield the write lock.
	ForegroundBatchSize = 100
	BackgroundBatchSize = 50

	// hugeIndexBytes is the circuit-breaker threshold on the size of
	// the working index file. Each entry is ~62 bytes plus the path,
	// so 1MB corresponds to roughly 10K tracked files; on such repos
	// a single merge diff can exceed the entire probe budget.
	hugeIndexBytes = 1_000_000
)

// DecideStrategy maps probe results onto a strategy.
func DecideStrategy(commitsProcessed int, hitEnd bool, commitLimit int) Strategy {
	if hitEnd {
		return StrategyComplete
	}

	progress := float64(commitsProcessed) / float64(commitLimit)

	switch {
	case progress > 0.4:
		return StrategyContinueGlobal
	case progress >= 0.01:
		return StrategyBudgetedGlobal
	default:
		return StrategyPathFiltered
	}
}
