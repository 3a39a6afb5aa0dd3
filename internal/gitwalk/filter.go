package gitwalk

import "strings"

// Files excluded from the temporal index because they change in
// nearly every commit and drown the coupling signal.
// Basename match is case-sensitive.
var ignoredFilenames = map[string]struct{}{
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"Cargo.lock":        {},
	"Gemfile.lock":      {},
	"poetry.lock":       {},
	"composer.lock":     {},
	"go.sum":            {},
	".DS_Store":         {},
	"Thumbs.db":         {},
}

// Extension match is case-insensitive.
var ignoredExtensions = []string{
	"png", "jpg", "jpeg", "gif", "ico", "svg", "bmp", "webp",
	"woff", "woff2", "ttf", "eot", "otf",
	"zip", "tar", "gz", "bz2", "xz",
	"exe", "dll", "so", "dylib",
	"pdf", "doc", "docx",
	"pyc", "class", "o", "obj",
	"min.js", "min.css",
}

// ShouldIndex reports whether a path belongs in the temporal index.
// Lock files, binary assets, and OS noise are excluded.
func ShouldIndex(path string) bool {
	basename := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		basename = path[i+1:]
	}
	if _, ok := ignoredFilenames[basename]; ok {
		return false
	}

	lower := strings.ToLower(path)
	for _, ext := range ignoredExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return false
		}
	}

	return true
}
