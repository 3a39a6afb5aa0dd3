// Package testintent discovers test files among coupling candidates
// and extracts human-readable test titles from them.
package testintent

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spectra-g/engram/internal/types"
)

// maxIntentsPerFile caps how many titles one test file contributes.
const maxIntentsPerFile = 5

var (
	// it('...') / test("...") with either quote style.
	jsTestRe = regexp.MustCompile(`(?:^|\s)(?:it|test)\(\s*(?:'([^']*)'|"([^"]*)")`)

	// #[test] fn name, allowing attribute lines in between.
	rustTestRe = regexp.MustCompile(`#\[test\]\s*(?:#\[[^\]]*\]\s*)*fn\s+(\w+)`)

	pythonTestRe = regexp.MustCompile(`def\s+(test_\w+)\s*\(`)

	goTestRe = regexp.MustCompile(`func\s+(Test\w+)\s*\(`)
)

// IsTestFile reports whether a path looks like a test file by naming
// convention.
func IsTestFile(path string) bool {
	filename := filepath.Base(path)

	// JS/TS variants: *.test.ts, *.spec.tsx, etc.
	for _, suffix := range []string{
		".test.ts", ".spec.ts", ".test.js", ".spec.js",
		".test.tsx", ".spec.tsx", ".test.jsx", ".spec.jsx",
	} {
		if strings.HasSuffix(filename, suffix) {
			return true
		}
	}

	if strings.HasSuffix(filename, "_test.go") {
		return true
	}

	if strings.HasSuffix(filename, ".py") &&
		(strings.HasPrefix(filename, "test_") || strings.HasSuffix(filename, "_test.py")) {
		return true
	}

	// Rust integration tests live under a tests/ directory.
	if strings.Contains(path, "/tests/") && strings.HasSuffix(filename, ".rs") {
		return true
	}

	return false
}

// humanize strips the "test_"/"Test" prefix and replaces underscores
// with spaces.
func humanize(name string) string {
	stripped := strings.TrimPrefix(name, "test_")
	if stripped == name {
		stripped = strings.TrimPrefix(name, "Test")
	}
	return strings.ReplaceAll(stripped, "_", " ")
}

// ExtractTestIntents pulls test titles out of file content, at most
// maxIntentsPerFile of them.
func ExtractTestIntents(content, path string) []types.TestIntent {
	filename := filepath.Base(path)

	var intents []types.TestIntent

	switch {
	case strings.HasSuffix(filename, ".ts") || strings.HasSuffix(filename, ".tsx") ||
		strings.HasSuffix(filename, ".js") || strings.HasSuffix(filename, ".jsx"):
		for _, m := range jsTestRe.FindAllStringSubmatch(content, -1) {
			title := m[1]
			if title == "" {
				title = m[2]
			}
			intents = append(intents, types.TestIntent{Title: title})
			if len(intents) >= maxIntentsPerFile {
				break
			}
		}
	case strings.HasSuffix(filename, ".rs") || strings.Contains(path, "/tests/"):
		for _, m := range rustTestRe.FindAllStringSubmatch(content, -1) {
			intents = append(intents, types.TestIntent{Title: humanize(m[1])})
			if len(intents) >= maxIntentsPerFile {
				break
			}
		}
	case strings.HasSuffix(filename, ".py"):
		for _, m := range pythonTestRe.FindAllStringSubmatch(content, -1) {
			intents = append(intents, types.TestIntent{Title: humanize(m[1])})
			if len(intents) >= maxIntentsPerFile {
				break
			}
		}
	case strings.HasSuffix(filename, ".go"):
		for _, m := range goTestRe.FindAllStringSubmatch(content, -1) {
			intents = append(intents, types.TestIntent{Title: humanize(m[1])})
			if len(intents) >= maxIntentsPerFile {
				break
			}
		}
	}

	return intents
}

// EnrichWithTestIntents reads each coupled test file from disk and
// attaches its extracted titles. Read errors are ignored.
func EnrichWithTestIntents(repoRoot string, coupledFiles []types.CoupledFile) {
	for i := range coupledFiles {
		if !IsTestFile(coupledFiles[i].Path) {
			continue
		}

		content, err := os.ReadFile(filepath.Join(repoRoot, coupledFiles[i].Path))
		if err != nil {
			continue
		}

		coupledFiles[i].TestIntents = ExtractTestIntents(string(content), coupledFiles[i].Path)
	}
}
