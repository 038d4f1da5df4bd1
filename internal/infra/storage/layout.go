// Package storage keeps the on-disk state behind deletions: verified backup
// copies and the persisted undo ledger. Both go through afero so tests can run
// against an in-memory filesystem.
package storage

import (
	"path/filepath"
	"strings"
)

// MirrorPath places original under root/opID, keeping its absolute path so
// the stored file alone says where it came from.
func MirrorPath(root, opID, original string) string {
	abs := filepath.Clean(original)
	if a, err := filepath.Abs(abs); err == nil {
		abs = a
	}
	vol := filepath.VolumeName(abs)
	rel := strings.TrimLeft(abs[len(vol):], string(filepath.Separator))
	if vol != "" {
		rel = filepath.Join(strings.TrimSuffix(vol, ":"), rel)
	}
	return filepath.Join(root, opID, rel)
}
