// Package config resolves where engram keeps its persistent state.
// All writes go under <repo-root>/.engram; nothing else on disk is
// touched.
package config

import (
	"os"
	"path/filepath"
)

const (
	// DataDirName is the state directory created at the repository root.
	DataDirName = ".engram"
	// DBFileName is the store file inside the state directory.
	DBFileName = "engram.db"

	// EnvGitDir optionally overrides the directory the git repository
	// is opened from (e.g. a detached worktree). Absent, the repo root
	// itself is opened.
	EnvGitDir = "ENGRAM_GIT_DIR"
	// EnvLogLevel controls stderr log verbosity (debug|info|warn|error).
	EnvLogLevel = "ENGRAM_LOG"
)

// DataDir returns the state directory for a repository.
func DataDir(repoRoot string) string {
	return filepath.Join(repoRoot, DataDirName)
}

// DBPath returns the store file path for a repository.
func DBPath(repoRoot string) string {
	return filepath.Join(DataDir(repoRoot), DBFileName)
}

// EnsureDataDir creates the state directory if it does not exist.
func EnsureDataDir(repoRoot string) error {
	return os.MkdirAll(DataDir(repoRoot), 0755)
}

// GitDir returns the directory to open the git repository from:
// the ENGRAM_GIT_DIR override when set, otherwise the repo root.
func GitDir(repoRoot string) string {
	if dir := os.Getenv(EnvGitDir); dir != "" {
		return dir
	}
	return repoRoot
}
