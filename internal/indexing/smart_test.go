package indexing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/spectra-g/engram/internal/config"
	"github.com/spectra-g/engram/internal/gitwalk"
	"github.com/spectra-g/engram/internal/logging"
	"github.com/spectra-g/engram/internal/store"
)

func TestMain(m *testing.M) {
	logging.Init("error")
	os.Exit(m.Run())
}

type filePair struct {
	path, content string
}

func createTestRepo(t *testing.T, commits [][]filePair) (*gogit.Repository, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now().Add(-time.Duration(len(commits)) * time.Minute)
	for i, files := range commits {
		for _, f := range files {
			full := filepath.Join(dir, f.path)
			if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(full, []byte(f.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := wt.Add(f.path); err != nil {
				t.Fatal(err)
			}
		}

		when := base.Add(time.Duration(i) * time.Minute)
		if _, err := wt.Commit("commit", &gogit.CommitOptions{
			Author: &object.Signature{Name: "Test", Email: "test@test.com", When: when},
		}); err != nil {
			t.Fatal(err)
		}
	}

	return repo, dir
}

func addCommit(t *testing.T, repo *gogit.Repository, dir string, files []filePair) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.path), []byte(f.content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(f.path); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := wt.Commit("another commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSmartIndexSmallRepo(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"a.go", "v0"}, {"b.go", "v0"}},
		{{"a.go", "v1"}, {"b.go", "v1"}},
	})
	s := newTestStore(t)

	result, err := SmartIndex(repo, s, dir, "a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("SmartIndex: %v", err)
	}

	if result.Strategy != StrategyComplete {
		t.Errorf("Strategy = %v, want complete", result.Strategy)
	}
	if !result.IsComplete {
		t.Error("IsComplete = false, want true")
	}
	if result.NeedsBackground {
		t.Error("NeedsBackground = true, want false")
	}
	if result.CommitsIndexed != 2 {
		t.Errorf("CommitsIndexed = %d, want 2", result.CommitsIndexed)
	}

	state, err := s.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}
	if state == nil {
		t.Fatal("no indexing state persisted")
	}
	if !state.IsComplete {
		t.Error("persisted IsComplete = false, want true")
	}
	if state.ResumeCursor != "" {
		t.Errorf("persisted ResumeCursor = %q, want empty", state.ResumeCursor)
	}
}

func TestSmartIndexSubsequentCallCached(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"a.go", "v0"}},
		{{"a.go", "v1"}},
	})
	s := newTestStore(t)

	r1, err := SmartIndex(repo, s, dir, "a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("first SmartIndex: %v", err)
	}
	if !r1.IsComplete {
		t.Fatal("first call should complete")
	}

	start := time.Now()
	r2, err := SmartIndex(repo, s, dir, "a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("second SmartIndex: %v", err)
	}
	elapsed := time.Since(start)

	if !r2.IsComplete {
		t.Error("second call IsComplete = false, want true")
	}
	if r2.NeedsBackground {
		t.Error("second call NeedsBackground = true, want false")
	}
	if elapsed > 50*time.Millisecond {
		t.Errorf("cached call took %v, want < 50ms", elapsed)
	}
}

func TestSmartIndexPathFilteredTargetSwitch(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"src/a.go", "v0"}, {"src/b.go", "v0"}},
		{{"src/a.go", "v1"}, {"src/b.go", "v1"}},
	})
	s := newTestStore(t)

	// Pre-existing rows from the old target's walk stay valid.
	if err := s.InsertCommitRows("historic", []string{"src/a.go", "src/old.go"}, 500); err != nil {
		t.Fatal(err)
	}

	head, err := headHash(repo)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetIndexingState(&store.IndexingState{
		HeadCommit:     head,
		ResumeCursor:   "deadbeef",
		CommitsIndexed: 50,
		Strategy:       string(StrategyPathFiltered),
		IsComplete:     false,
		LastUpdated:    time.Now().Unix(),
		TargetPath:     "src/a.go",
	}); err != nil {
		t.Fatal(err)
	}

	// Analyzing a different file must not reuse the stored cursor.
	result, err := SmartIndex(repo, s, dir, "src/b.go", 5*time.Second)
	if err != nil {
		t.Fatalf("SmartIndex: %v", err)
	}

	if result.Strategy != StrategyPathFiltered {
		t.Errorf("Strategy = %v, want path_filtered", result.Strategy)
	}
	// A two-commit repo completes within the budget.
	if !result.IsComplete {
		t.Error("IsComplete = false, want true")
	}

	state, err := s.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}
	if state.TargetPath != "src/b.go" {
		t.Errorf("TargetPath = %q, want src/b.go", state.TargetPath)
	}
	if state.ResumeCursor == "deadbeef" {
		t.Error("stale cursor from the old target was reused")
	}

	// Historical rows preserved.
	count, err := s.CommitCount("src/old.go")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("historic rows lost: commit count = %d, want 1", count)
	}
}

func TestSmartIndexPathFilteredSameTargetReturnsCached(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"src/a.go", "v0"}},
		{{"src/a.go", "v1"}},
	})
	s := newTestStore(t)

	head, err := headHash(repo)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetIndexingState(&store.IndexingState{
		HeadCommit:     head,
		ResumeCursor:   "deadbeef",
		CommitsIndexed: 50,
		Strategy:       string(StrategyPathFiltered),
		IsComplete:     false,
		LastUpdated:    time.Now().Unix(),
		TargetPath:     "src/a.go",
	}); err != nil {
		t.Fatal(err)
	}

	result, err := SmartIndex(repo, s, dir, "src/a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("SmartIndex: %v", err)
	}

	// Foreground work would waste the budget skipping to a deep
	// cursor; the call returns cached data and defers to background.
	if !result.NeedsBackground {
		t.Error("NeedsBackground = false, want true")
	}
	if result.IsComplete {
		t.Error("IsComplete = true, want false")
	}
	if result.CommitsIndexed != 50 {
		t.Errorf("CommitsIndexed = %d, want 50 (cached)", result.CommitsIndexed)
	}

	state, err := s.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}
	if state.ResumeCursor != "deadbeef" {
		t.Errorf("cursor changed to %q, want deadbeef untouched", state.ResumeCursor)
	}
}

func TestSmartIndexHeadChangeRestartsProgress(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"a.go", "v0"}},
		{{"a.go", "v1"}},
	})
	s := newTestStore(t)

	r1, err := SmartIndex(repo, s, dir, "a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("first SmartIndex: %v", err)
	}
	if !r1.IsComplete {
		t.Fatal("first call should complete")
	}
	oldState, err := s.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}

	addCommit(t, repo, dir, []filePair{{"a.go", "v2"}})

	r2, err := SmartIndex(repo, s, dir, "a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("second SmartIndex: %v", err)
	}
	if !r2.IsComplete {
		t.Error("re-index after HEAD change should complete on a small repo")
	}

	newState, err := s.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}
	if newState.HeadCommit == oldState.HeadCommit {
		t.Error("state still records the old HEAD")
	}

	// Rows survive the restart; the new commit is indexed too.
	count, err := s.CommitCount("a.go")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("commit count = %d, want 3", count)
	}
}

func TestSmartIndexGlobalResumeWithCursor(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"a.go", "v0"}},
		{{"a.go", "v1"}},
		{{"a.go", "v2"}},
		{{"a.go", "v3"}},
	})
	s := newTestStore(t)

	// Index the first two commits by hand, then leave an incomplete
	// global state behind as a crashed run would.
	res, err := gitwalk.GlobalWalk(repo, s, gitwalk.GlobalOptions{
		Budget:      10 * time.Second,
		CommitLimit: 2,
		BatchSize:   100,
	})
	if err != nil {
		t.Fatal(err)
	}
	head, err := headHash(repo)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetIndexingState(&store.IndexingState{
		HeadCommit:     head,
		ResumeCursor:   res.LastCursor,
		CommitsIndexed: res.Indexed,
		Strategy:       string(StrategyBudgetedGlobal),
		IsComplete:     false,
		LastUpdated:    time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}

	result, err := SmartIndex(repo, s, dir, "a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("SmartIndex: %v", err)
	}

	if !result.IsComplete {
		t.Error("IsComplete = false, want true")
	}
	if result.CommitsIndexed != 4 {
		t.Errorf("CommitsIndexed = %d, want 4", result.CommitsIndexed)
	}

	count, err := s.CommitCount("a.go")
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("commit count = %d, want 4", count)
	}
}

func TestSmartIndexFreshGlobalStateDefersToOtherWriter(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"a.go", "v0"}},
	})
	s := newTestStore(t)

	head, err := headHash(repo)
	if err != nil {
		t.Fatal(err)
	}
	// Fresh record, no cursor: another process is mid-probe.
	if err := s.SetIndexingState(&store.IndexingState{
		HeadCommit:     head,
		CommitsIndexed: 7,
		Strategy:       string(StrategyBudgetedGlobal),
		IsComplete:     false,
		LastUpdated:    time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}

	result, err := SmartIndex(repo, s, dir, "a.go", 5*time.Second)
	if err != nil {
		t.Fatalf("SmartIndex: %v", err)
	}

	if result.NeedsBackground {
		t.Error("NeedsBackground = true, want false")
	}
	if result.IsComplete {
		t.Error("IsComplete = true, want false")
	}
	if result.CommitsIndexed != 7 {
		t.Errorf("CommitsIndexed = %d, want 7 (cached)", result.CommitsIndexed)
	}
}

func TestBackgroundContinuesToCompletion(t *testing.T) {
	repo, dir := createTestRepo(t, [][]filePair{
		{{"a.go", "v0"}},
		{{"a.go", "v1"}},
		{{"a.go", "v2"}},
		{{"a.go", "v3"}},
	})

	if err := config.EnsureDataDir(dir); err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(config.DBPath(dir))
	if err != nil {
		t.Fatal(err)
	}

	res, err := gitwalk.GlobalWalk(repo, s, gitwalk.GlobalOptions{
		Budget:      10 * time.Second,
		CommitLimit: 2,
		BatchSize:   100,
	})
	if err != nil {
		t.Fatal(err)
	}
	head, err := headHash(repo)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetIndexingState(&store.IndexingState{
		HeadCommit:     head,
		ResumeCursor:   res.LastCursor,
		CommitsIndexed: res.Indexed,
		Strategy:       string(StrategyBudgetedGlobal),
		IsComplete:     false,
		LastUpdated:    time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	Background(dir, 10*time.Second, "")

	s2, err := store.Open(config.DBPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	state, err := s2.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || !state.IsComplete {
		t.Fatal("background continuation did not complete indexing")
	}
	if state.ResumeCursor != "" {
		t.Errorf("ResumeCursor = %q, want empty after completion", state.ResumeCursor)
	}

	count, err := s2.CommitCount("a.go")
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("commit count = %d, want 4", count)
	}
}

func TestBackgroundPathFilteredWithoutFilePathIsNoOp(t *testing.T) {
	_, dir := createTestRepo(t, [][]filePair{
		{{"src/a.go", "v0"}},
		{{"src/a.go", "v1"}},
	})

	if err := config.EnsureDataDir(dir); err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(config.DBPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetIndexingState(&store.IndexingState{
		HeadCommit:     "somehead",
		ResumeCursor:   "deadbeef",
		CommitsIndexed: 50,
		Strategy:       string(StrategyPathFiltered),
		IsComplete:     false,
		LastUpdated:    time.Now().Unix(),
		TargetPath:     "src/a.go",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Without the caller's file path the continuation must not walk,
	// even though the state remembers a target.
	Background(dir, 10*time.Second, "")

	s2, err := store.Open(config.DBPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	state, err := s2.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}
	if state.CommitsIndexed != 50 || state.ResumeCursor != "deadbeef" || state.IsComplete {
		t.Errorf("state modified by a no-op continuation: %+v", state)
	}

	count, err := s2.CommitCount("src/a.go")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rows inserted by a no-op continuation: %d", count)
	}
}

func TestBackgroundNoOpWhenComplete(t *testing.T) {
	_, dir := createTestRepo(t, [][]filePair{
		{{"a.go", "v0"}},
	})

	if err := config.EnsureDataDir(dir); err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(config.DBPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetIndexingState(&store.IndexingState{
		HeadCommit:     "somehead",
		CommitsIndexed: 1,
		Strategy:       string(StrategyComplete),
		IsComplete:     true,
		LastUpdated:    time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Must not touch a completed state.
	Background(dir, time.Second, "")

	s2, err := store.Open(config.DBPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	state, err := s2.GetIndexingState()
	if err != nil {
		t.Fatal(err)
	}
	if state.CommitsIndexed != 1 || !state.IsComplete {
		t.Error("background modified a completed state")
	}
}
