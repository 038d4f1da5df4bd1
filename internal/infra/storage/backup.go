package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"duplo/internal/domain/model"
)

// Backup describes one verified copy.
type Backup struct {
	Path      string
	SizeBytes int64
	Digest    string
}

type BackupStore struct {
	fs   afero.Fs
	root string
}

func NewBackupStore(fs afero.Fs, root string) *BackupStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &BackupStore{fs: fs, root: root}
}

func (s *BackupStore) Root() string { return s.root }

// Save copies src into the store for opID and verifies the copy against the
// source by size and SHA-256. A copy that fails verification is removed.
func (s *BackupStore) Save(opID, src string) (Backup, error) {
	dst := MirrorPath(s.root, opID, src)
	size, digest, err := copyFile(s.fs, src, dst, 0o600)
	if err != nil {
		return Backup{}, err
	}
	if err := Verify(s.fs, dst, size, digest); err != nil {
		_ = s.fs.Remove(dst)
		return Backup{}, err
	}
	return Backup{Path: dst, SizeBytes: size, Digest: digest}, nil
}

// Discard removes a backup that no longer protects anything, such as the
// copy made for a pair whose removal then failed.
func (s *BackupStore) Discard(path string) error {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &model.IOError{Path: path, Op: "remove", Err: err}
	}
	return nil
}

// Restore copies a backup back to original. It never replaces an existing
// file, and the restored bytes must match digest when one is given.
func (s *BackupStore) Restore(backupPath, original, digest string) error {
	if _, err := s.fs.Stat(original); err == nil {
		return &model.IOError{Path: original, Op: "restore", Err: os.ErrExist}
	} else if !errors.Is(err, os.ErrNotExist) {
		return &model.IOError{Path: original, Op: "stat", Err: err}
	}
	perm := os.FileMode(0o644)
	if st, err := s.fs.Stat(backupPath); err == nil {
		perm = st.Mode().Perm() | 0o600
	}
	size, got, err := copyFile(s.fs, backupPath, original, perm)
	if err != nil {
		return err
	}
	if digest != "" && got != digest {
		_ = s.fs.Remove(original)
		return &model.IOError{Path: original, Op: "verify", Err: fmt.Errorf("digest mismatch after restoring %d bytes", size)}
	}
	return nil
}

// Verify checks that path holds exactly size bytes hashing to digest.
func Verify(fs afero.Fs, path string, size int64, digest string) error {
	f, err := fs.Open(path)
	if err != nil {
		return &model.IOError{Path: path, Op: "verify", Err: err}
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return &model.IOError{Path: path, Op: "verify", Err: err}
	}
	if n != size {
		return &model.IOError{Path: path, Op: "verify", Err: fmt.Errorf("size mismatch: want %d, got %d", size, n)}
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != digest {
		return &model.IOError{Path: path, Op: "verify", Err: errors.New("digest mismatch")}
	}
	return nil
}

// copyFile streams src to a newly created dst and returns the source size and
// digest as read.
func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) (int64, string, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, "", &model.IOError{Path: src, Op: "open", Err: err}
	}
	defer in.Close()

	if err := fs.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return 0, "", &model.IOError{Path: dst, Op: "mkdir", Err: err}
	}
	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return 0, "", &model.IOError{Path: dst, Op: "create", Err: err}
	}

	h := sha256.New()
	n, err := io.Copy(out, io.TeeReader(in, h))
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fs.Remove(dst)
		return 0, "", &model.IOError{Path: dst, Op: "copy", Err: err}
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
