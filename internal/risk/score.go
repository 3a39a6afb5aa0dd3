// Package risk turns raw coupling statistics into a ranked list of
// risky collaborators.
package risk

import (
	"sort"

	"github.com/spectra-g/engram/internal/store"
	"github.com/spectra-g/engram/internal/types"
)

// maxResults caps the returned list.
const maxResults = 10

// Risk band thresholds, used for reporting downstream.
const (
	CriticalThreshold = 0.8
	HighThreshold     = 0.5
	MediumThreshold   = 0.25
)

// TimeWindow is the overall commit-time span of the index.
type TimeWindow struct {
	OldestTS int64
	NewestTS int64
}

// ScoreCoupledFiles blends three normalized signals into a risk score
// per candidate:
//
//	coupling = co_change / target_commit_count   (what share of the target's commits include this file)
//	churn    = total_commits / max over the set  (how active the file is)
//	recency  = position of the last shared commit in the time window
//	risk     = 0.5*coupling + 0.3*churn + 0.2*recency
//
// Coupling gate: a candidate with coupling < 0.5 cannot reach the
// Critical band; its risk is clamped to 0.79. Results are filtered to
// risk > 0, sorted descending, and truncated to 10.
func ScoreCoupledFiles(files []store.CoupledFileStats, targetCommitCount int, window TimeWindow) []types.CoupledFile {
	if len(files) == 0 {
		return nil
	}

	maxChurn := 1
	for _, f := range files {
		if f.TotalCommits > maxChurn {
			maxChurn = f.TotalCommits
		}
	}

	timeSpan := window.NewestTS - window.OldestTS

	result := make([]types.CoupledFile, 0, len(files))
	for _, f := range files {
		churn := float64(f.TotalCommits) / float64(maxChurn)

		recency := 1.0
		if timeSpan != 0 {
			recency = float64(f.LastTimestamp-window.OldestTS) / float64(timeSpan)
		}

		coupling := 0.0
		if targetCommitCount > 0 {
			coupling = float64(f.CoChangeCount) / float64(targetCommitCount)
		}

		score := coupling*0.5 + churn*0.3 + recency*0.2

		// Critical risk must reflect genuine co-change, not a file
		// that is merely churny and recent.
		if coupling < 0.5 && score >= CriticalThreshold {
			score = 0.79
		}

		if score <= 0 {
			continue
		}

		result = append(result, types.CoupledFile{
			Path:          f.Path,
			CouplingScore: coupling,
			CoChangeCount: f.CoChangeCount,
			RiskScore:     score,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RiskScore > result[j].RiskScore
	})

	if len(result) > maxResults {
		result = result[:maxResults]
	}

	return result
}

// Band names the risk band a score falls into.
func Band(score float64) string {
	switch {
	case score >= CriticalThreshold:
		return "critical"
	case score >= HighThreshold:
		return "high"
	case score >= MediumThreshold:
		return "medium"
	default:
		return "low"
	}
}
