// Package metrics records usage events after each command completes
// and aggregates them per repository.
package metrics

import (
	"github.com/spectra-g/engram/internal/risk"
	"github.com/spectra-g/engram/internal/store"
	"github.com/spectra-g/engram/internal/types"
)

// Event type constants to prevent typos.
const (
	EventAnalysis    = "analysis"
	EventAddNote     = "add_note"
	EventSearchNotes = "search_notes"
	EventListNotes   = "list_notes"
)

// RecordAnalysisEvent classifies the response's coupled files into
// risk bands, counts extracted test intents, and writes one event row.
func RecordAnalysisEvent(st *store.Store, response *types.AnalysisResponse, repoRoot string) error {
	var critical, high, medium, low, testFiles, testIntents int

	for _, f := range response.CoupledFiles {
		switch risk.Band(f.RiskScore) {
		case "critical":
			critical++
		case "high":
			high++
		case "medium":
			medium++
		default:
			low++
		}

		if len(f.TestIntents) > 0 {
			testFiles++
			testIntents += len(f.TestIntents)
		}
	}

	return st.InsertMetricsEvent(&store.MetricsEvent{
		EventType:         EventAnalysis,
		FilePath:          &response.FilePath,
		CoupledFilesCount: len(response.CoupledFiles),
		CriticalRiskCount: critical,
		HighRiskCount:     high,
		MediumRiskCount:   medium,
		LowRiskCount:      low,
		TestFilesFound:    testFiles,
		TestIntentsCount:  testIntents,
		CommitCount:       response.CommitCount,
		AnalysisTimeMs:    response.AnalysisTimeMs,
		RepoRoot:          repoRoot,
	})
}

// RecordNoteEvent records a note creation.
func RecordNoteEvent(st *store.Store, noteID int64, filePath, repoRoot string) error {
	return st.InsertMetricsEvent(&store.MetricsEvent{
		EventType: EventAddNote,
		FilePath:  &filePath,
		NoteID:    &noteID,
		RepoRoot:  repoRoot,
	})
}

// RecordSearchEvent records a notes search.
func RecordSearchEvent(st *store.Store, repoRoot string) error {
	return st.InsertMetricsEvent(&store.MetricsEvent{
		EventType: EventSearchNotes,
		RepoRoot:  repoRoot,
	})
}

// RecordListEvent records a notes listing.
func RecordListEvent(st *store.Store, repoRoot string) error {
	return st.InsertMetricsEvent(&store.MetricsEvent{
		EventType: EventListNotes,
		RepoRoot:  repoRoot,
	})
}

// GetMetrics returns the aggregated summary for a repository.
func GetMetrics(st *store.Store, repoRoot string) (types.MetricsResponse, error) {
	summary, err := st.GetMetricsSummary(repoRoot)
	if err != nil {
		return types.MetricsResponse{}, err
	}
	return types.MetricsResponse{
		RepoRoot: repoRoot,
		Summary:  summary,
	}, nil
}
