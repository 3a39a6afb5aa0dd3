// Package types holds the value and wire types shared across the
// analysis pipeline. The JSON field names are a stable contract with
// callers (editor adapters parse them); do not rename.
package types

// CoupledFile is one entry in the ranked blast-radius list.
type CoupledFile struct {
	Path          string       `json:"path"`
	CouplingScore float64      `json:"coupling_score"`
	CoChangeCount int          `json:"co_change_count"`
	RiskScore     float64      `json:"risk_score"`
	Memories      []Memory     `json:"memories,omitempty"`
	TestIntents   []TestIntent `json:"test_intents,omitempty"`
}

// Memory is a free-text note attached to a file, optionally scoped
// to a symbol within it.
type Memory struct {
	ID         int64   `json:"id"`
	FilePath   string  `json:"file_path"`
	SymbolName *string `json:"symbol_name"`
	Content    string  `json:"content"`
	CreatedAt  string  `json:"created_at"`
}

// TestIntent is a human-readable test title extracted from a test file.
type TestIntent struct {
	Title string `json:"title"`
}

// IndexingStatus reports how far history indexing has progressed.
type IndexingStatus struct {
	Strategy       string `json:"strategy"`
	CommitsIndexed int    `json:"commits_indexed"`
	IsComplete     bool   `json:"is_complete"`
}

// AnalysisResponse is the single JSON object printed by `engram analyze`.
type AnalysisResponse struct {
	FilePath       string          `json:"file_path"`
	RepoRoot       string          `json:"repo_root"`
	CoupledFiles   []CoupledFile   `json:"coupled_files"`
	CommitCount    int             `json:"commit_count"`
	AnalysisTimeMs int64           `json:"analysis_time_ms"`
	IndexingStatus *IndexingStatus `json:"indexing_status,omitempty"`
}

// AddNoteResponse is printed by `engram add-note`.
type AddNoteResponse struct {
	ID       int64  `json:"id"`
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// SearchNotesResponse is printed by `engram search-notes`.
type SearchNotesResponse struct {
	Query    string   `json:"query"`
	Memories []Memory `json:"memories"`
}

// ListNotesResponse is printed by `engram list-notes`.
type ListNotesResponse struct {
	FilePath *string  `json:"file_path"`
	Memories []Memory `json:"memories"`
}

// MetricsSummary aggregates recorded usage events for one repository.
type MetricsSummary struct {
	TotalAnalyses        int   `json:"total_analyses"`
	NotesCreated         int   `json:"notes_created"`
	SearchesPerformed    int   `json:"searches_performed"`
	ListsPerformed       int   `json:"lists_performed"`
	TotalCoupledFiles    int   `json:"total_coupled_files"`
	CriticalRiskCount    int   `json:"critical_risk_count"`
	HighRiskCount        int   `json:"high_risk_count"`
	MediumRiskCount      int   `json:"medium_risk_count"`
	LowRiskCount         int   `json:"low_risk_count"`
	TestFilesFound       int   `json:"test_files_found"`
	TestIntentsExtracted int   `json:"test_intents_extracted"`
	AvgAnalysisTimeMs    int64 `json:"avg_analysis_time_ms"`
}

// MetricsResponse is printed by `engram metrics`.
type MetricsResponse struct {
	RepoRoot string         `json:"repo_root"`
	Summary  MetricsSummary `json:"summary"`
}
