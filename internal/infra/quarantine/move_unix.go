//go:build unix
// +build unix

package quarantine

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"

	"duplo/internal/domain/safety"
)

// Move renames src into the quarantine area for opID. When expected is set
// the source must still be that inode at the moment of the rename.
func (s *Store) Move(opID, src string, expected safety.Identity) (string, error) {
	dst := s.PathFor(opID, src)
	if err := renameNoReplace(src, dst, expected, 0o700); err != nil {
		return "", err
	}
	return dst, nil
}

// Restore moves a quarantined file back to original. An existing file at
// original is never replaced.
func (s *Store) Restore(quarantined, original string) error {
	return renameNoReplace(quarantined, original, safety.Identity{}, 0o755)
}

func renameNoReplace(src, dst string, expected safety.Identity, dirPerm uint32) error {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	srcParentFD, err := safety.OpenDirNoFollow(filepath.Dir(srcAbs))
	if err != nil {
		return fmt.Errorf("open source dir: %w", err)
	}
	defer unix.Close(srcParentFD)

	srcName := filepath.Base(srcAbs)
	st, err := safety.LstatAt(srcParentFD, srcName)
	if err != nil {
		return err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return errors.New("PATH_INVALID: not a regular file")
	}
	if !expected.IsZero() {
		if err := safety.EnsureIdentityAt(srcParentFD, srcName, expected); err != nil {
			return err
		}
	}

	dstParentFD, err := safety.EnsureDirNoFollow(filepath.Dir(dst), dirPerm)
	if err != nil {
		return fmt.Errorf("prepare target dir: %w", err)
	}
	defer unix.Close(dstParentFD)

	dstName := filepath.Base(dst)
	if _, err := safety.LstatAt(dstParentFD, dstName); err == nil {
		return fmt.Errorf("target exists: %s: %w", dst, unix.EEXIST)
	} else if !errors.Is(err, unix.ENOENT) {
		return err
	}

	if err := safety.RenameAt(srcParentFD, srcName, dstParentFD, dstName); err != nil {
		if safety.IsCrossDevice(err) {
			return fmt.Errorf("%w: %v", ErrCrossDevice, err)
		}
		return err
	}
	return nil
}
