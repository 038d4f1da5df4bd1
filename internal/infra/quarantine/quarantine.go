// Package quarantine holds safe-deleted files. Files are moved, never copied,
// into <root>/<operation id>/<original absolute path> and moved back on undo.
package quarantine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"duplo/internal/domain/safety"
	"duplo/internal/infra/storage"
)

// ErrCrossDevice is returned when the quarantine root is on another
// filesystem than the file being moved.
var ErrCrossDevice = errors.New("QUARANTINE_CROSS_DEVICE: quarantine must be on the same volume as the file")

type Store struct {
	root string
}

// New returns a store rooted at root. Symlinks in the existing part of root
// are resolved; below it every directory is created and entered without
// following links.
func New(root string) *Store {
	return &Store{root: safety.ResolveExisting(root)}
}

func (s *Store) Root() string { return s.root }

// PathFor returns where original is held for opID.
func (s *Store) PathFor(opID, original string) string {
	return storage.MirrorPath(s.root, opID, original)
}

// Prune removes directories left empty under the operation's area,
// including the operation directory itself.
func (s *Store) Prune(opID string) error {
	base := filepath.Join(s.root, opID)
	var dirs []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil || len(entries) > 0 {
			continue
		}
		_ = os.Remove(d)
	}
	return nil
}
