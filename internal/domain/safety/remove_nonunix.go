//go:build !unix
// +build !unix

package safety

import (
	"errors"
	"os"
)

type Identity struct {
	Dev uint64
	Ino uint64
}

func (id Identity) IsZero() bool { return id.Dev == 0 && id.Ino == 0 }

func RemoveFile(path string, expected Identity) error {
	_ = expected
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return errors.New("PATH_INVALID: not a regular file")
	}
	return os.Remove(path)
}

func Stat(path string) (Identity, os.FileMode, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Identity{}, 0, err
	}
	return Identity{}, fi.Mode(), nil
}

func IsCrossDevice(err error) bool {
	_ = err
	return false
}
