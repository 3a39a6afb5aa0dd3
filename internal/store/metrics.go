package store

import (
	"github.com/spectra-g/engram/internal/types"
)

// MetricsEvent is one usage event row. Zero-valued counters are fine
// for non-analysis events.
type MetricsEvent struct {
	EventType         string
	FilePath          *string
	CoupledFilesCount int
	CriticalRiskCount int
	HighRiskCount     int
	MediumRiskCount   int
	LowRiskCount      int
	TestFilesFound    int
	TestIntentsCount  int
	CommitCount       int
	AnalysisTimeMs    int64
	NoteID            *int64
	RepoRoot          string
}

// InsertMetricsEvent records a usage event.
func (s *Store) InsertMetricsEvent(ev *MetricsEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO metrics_events
			(event_type, file_path, coupled_files_count,
			 critical_risk_count, high_risk_count, medium_risk_count, low_risk_count,
			 test_files_found, test_intents_count, commit_count, analysis_time_ms,
			 note_id, repo_root)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventType, ev.FilePath, ev.CoupledFilesCount,
		ev.CriticalRiskCount, ev.HighRiskCount, ev.MediumRiskCount, ev.LowRiskCount,
		ev.TestFilesFound, ev.TestIntentsCount, ev.CommitCount, ev.AnalysisTimeMs,
		ev.NoteID, ev.RepoRoot,
	)
	return err
}

// GetMetricsSummary aggregates all events recorded for a repository.
func (s *Store) GetMetricsSummary(repoRoot string) (types.MetricsSummary, error) {
	var sum types.MetricsSummary

	err := s.db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN event_type = 'analysis' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'add_note' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'search_notes' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'list_notes' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(coupled_files_count), 0),
			COALESCE(SUM(critical_risk_count), 0),
			COALESCE(SUM(high_risk_count), 0),
			COALESCE(SUM(medium_risk_count), 0),
			COALESCE(SUM(low_risk_count), 0),
			COALESCE(SUM(test_files_found), 0),
			COALESCE(SUM(test_intents_count), 0),
			COALESCE(CAST(AVG(CASE WHEN event_type = 'analysis' THEN analysis_time_ms END) AS INTEGER), 0)
		 FROM metrics_events WHERE repo_root = ?`,
		repoRoot,
	).Scan(
		&sum.TotalAnalyses, &sum.NotesCreated, &sum.SearchesPerformed, &sum.ListsPerformed,
		&sum.TotalCoupledFiles, &sum.CriticalRiskCount, &sum.HighRiskCount,
		&sum.MediumRiskCount, &sum.LowRiskCount,
		&sum.TestFilesFound, &sum.TestIntentsExtracted, &sum.AvgAnalysisTimeMs,
	)
	return sum, err
}
