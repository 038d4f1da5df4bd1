//go:build unix
// +build unix

package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// RenameAt is swapped in tests to simulate cross-device moves.
var RenameAt = unix.Renameat

// Identity pins a directory entry to the inode it referred to when it was
// inspected, so a swapped path is detected before it is touched.
type Identity struct {
	Dev uint64
	Ino uint64
}

func (id Identity) IsZero() bool { return id.Dev == 0 && id.Ino == 0 }

// RemoveFile unlinks a regular file without following symlinks in any path
// component. When expected is non-zero the entry must still be that inode.
func RemoveFile(path string, expected Identity) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return err
	}
	if abs == string(filepath.Separator) {
		return errors.New("PATH_BLOCKED: root remove is forbidden")
	}
	parentFD, err := OpenDirNoFollow(filepath.Dir(abs))
	if err != nil {
		return err
	}
	defer unix.Close(parentFD)

	name := filepath.Base(abs)
	st, err := LstatAt(parentFD, name)
	if err != nil {
		return err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return errors.New("PATH_INVALID: not a regular file")
	}
	want := toIdentity(st)
	if !expected.IsZero() {
		want = expected
	}
	if err := EnsureIdentityAt(parentFD, name, want); err != nil {
		return err
	}
	return unix.Unlinkat(parentFD, name, 0)
}

// Stat returns the identity and mode of path without following a final symlink.
func Stat(path string) (Identity, os.FileMode, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Identity{}, 0, err
	}
	mode := os.FileMode(st.Mode & 0o777)
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		mode |= os.ModeDir
	case unix.S_IFLNK:
		mode |= os.ModeSymlink
	case unix.S_IFREG:
	default:
		mode |= os.ModeIrregular
	}
	return toIdentity(st), mode, nil
}

func OpenDirNoFollow(path string) (int, error) {
	if !filepath.IsAbs(path) {
		return -1, unix.EINVAL
	}
	rootFD, err := unix.Open(string(filepath.Separator), unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return -1, err
	}
	cur := rootFD
	components := strings.Split(strings.TrimPrefix(path, string(filepath.Separator)), string(filepath.Separator))
	for _, c := range components {
		if c == "" || c == "." {
			continue
		}
		next, err := unix.Openat(cur, c, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW, 0)
		if err != nil {
			_ = unix.Close(cur)
			return -1, err
		}
		_ = unix.Close(cur)
		cur = next
	}
	return cur, nil
}

// EnsureDirNoFollow creates every missing component of path with perm,
// refusing to traverse symlinks, and returns an open descriptor for it.
func EnsureDirNoFollow(path string, perm uint32) (int, error) {
	if !filepath.IsAbs(path) {
		return -1, unix.EINVAL
	}
	rootFD, err := unix.Open(string(filepath.Separator), unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return -1, err
	}
	cur := rootFD
	components := strings.Split(strings.TrimPrefix(path, string(filepath.Separator)), string(filepath.Separator))
	for _, c := range components {
		if c == "" || c == "." {
			continue
		}
		next, err := unix.Openat(cur, c, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW, 0)
		if errors.Is(err, unix.ENOENT) {
			if mkErr := unix.Mkdirat(cur, c, perm); mkErr != nil && !errors.Is(mkErr, unix.EEXIST) {
				_ = unix.Close(cur)
				return -1, mkErr
			}
			next, err = unix.Openat(cur, c, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW, 0)
		}
		if err != nil {
			_ = unix.Close(cur)
			return -1, err
		}
		_ = unix.Close(cur)
		cur = next
	}
	return cur, nil
}

func LstatAt(parentFD int, name string) (unix.Stat_t, error) {
	var st unix.Stat_t
	err := unix.Fstatat(parentFD, name, &st, unix.AT_SYMLINK_NOFOLLOW)
	return st, err
}

func EnsureIdentityAt(parentFD int, name string, want Identity) error {
	cur, err := LstatAt(parentFD, name)
	if err != nil {
		return err
	}
	if id := toIdentity(cur); id != want {
		return errors.New("path changed during operation")
	}
	return nil
}

// IsCrossDevice reports whether err is the rename failure for moves between
// filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

func toIdentity(st unix.Stat_t) Identity {
	return Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}
}
