package safety

import (
	"os"
	"path/filepath"
)

// ResolveExisting returns path absolute with symlinks resolved in its longest
// existing prefix. Components that do not exist yet are appended unchanged,
// so directories created later below the result never go through a link.
func ResolveExisting(path string) string {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return path
	}
	var rest []string
	for p := abs; ; p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err == nil {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil {
				return abs
			}
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs
		}
		rest = append(rest, filepath.Base(p))
	}
}
