//go:build !unix
// +build !unix

package quarantine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"duplo/internal/domain/safety"
)

func (s *Store) Move(opID, src string, expected safety.Identity) (string, error) {
	_ = expected
	dst := s.PathFor(opID, src)
	if err := renameNoReplace(src, dst, 0o700); err != nil {
		return "", err
	}
	return dst, nil
}

func (s *Store) Restore(quarantined, original string) error {
	return renameNoReplace(quarantined, original, 0o755)
}

func renameNoReplace(src, dst string, dirPerm os.FileMode) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return errors.New("PATH_INVALID: not a regular file")
	}
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("target exists: %s: %w", dst, os.ErrExist)
	}
	return os.Rename(src, dst)
}
