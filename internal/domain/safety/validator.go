package safety

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var blockedPaths = []string{
	"/",
	"/boot",
	"/bin",
	"/sbin",
	"/lib",
	"/lib64",
	"/usr",
	"/etc",
	"/proc",
	"/sys",
	"/dev",
	"/run",
	"/var",
}

// ValidatePath rejects malformed paths, system locations not covered by the
// whitelist, and paths (or their symlink targets) outside allowedRoots. Nil
// allowedRoots permits any root.
func ValidatePath(path string, allowedRoots []string, whitelist []string) error {
	if err := checkSyntax(path); err != nil {
		return err
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("PATH_INVALID: %w", err)
	}
	if isBlocked(abs) && !isWhitelisted(abs, whitelist) {
		return fmt.Errorf("PATH_BLOCKED: %s", abs)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
		if isBlocked(resolved) && !isWhitelisted(resolved, whitelist) {
			return fmt.Errorf("SYMLINK_ESCAPE: %s resolves to %s", abs, resolved)
		}
		if !inAllowedRoots(resolved, allowedRoots) {
			return fmt.Errorf("SYMLINK_ESCAPE: %s resolves outside allowed roots", abs)
		}
	}

	if !inAllowedRoots(abs, allowedRoots) && !isWhitelisted(abs, whitelist) {
		return fmt.Errorf("PATH_BLOCKED: outside allowed roots %s", abs)
	}
	return nil
}

func checkSyntax(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("PATH_INVALID: empty path")
	}
	for _, r := range path {
		switch {
		case r == 0:
			return errors.New("PATH_INVALID: null byte")
		case r < 32:
			return errors.New("PATH_INVALID: control character")
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return errors.New("PATH_INVALID: traversal")
		}
	}
	return nil
}

// ValidateVictim checks a file about to be removed. Paths inside protected
// roots (the tool's own backup and quarantine areas) are never removable.
func ValidateVictim(path string, protected []string, whitelist []string) error {
	if err := ValidatePath(path, nil, whitelist); err != nil {
		return err
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("PATH_INVALID: %w", err)
	}
	for _, p := range protected {
		if p == "" {
			continue
		}
		if within(abs, p) {
			return fmt.Errorf("PATH_PROTECTED: %s is inside %s", abs, p)
		}
	}
	return nil
}

func within(path, root string) bool {
	rootAbs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return false
	}
	return path == rootAbs || strings.HasPrefix(path, rootAbs+string(filepath.Separator))
}

func isBlocked(path string) bool {
	for _, p := range blockedPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func inAllowedRoots(path string, roots []string) bool {
	if len(roots) == 0 {
		return true
	}
	for _, r := range roots {
		if within(path, r) {
			return true
		}
	}
	return false
}

func isWhitelisted(path string, whitelist []string) bool {
	for _, w := range whitelist {
		if path == w || strings.HasPrefix(path, w+"/") {
			return true
		}
		if !strings.ContainsAny(w, "*?[") {
			continue
		}
		for p := path; p != string(filepath.Separator) && p != "."; p = filepath.Dir(p) {
			if ok, _ := filepath.Match(w, p); ok {
				return true
			}
		}
	}
	return false
}
