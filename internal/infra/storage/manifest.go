package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"duplo/internal/domain/model"
)

const manifestVersion = 1

type manifestFile struct {
	Version   int              `json:"version"`
	Operation *model.Operation `json:"operation"`
}

// Manifest persists the single retained operation as JSON.
type Manifest struct {
	fs   afero.Fs
	path string
}

func NewManifest(fs afero.Fs, path string) *Manifest {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manifest{fs: fs, path: path}
}

func (m *Manifest) Path() string { return m.path }

// Load returns the stored operation, or nil when none is recorded.
func (m *Manifest) Load() (*model.Operation, error) {
	b, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &model.IOError{Path: m.path, Op: "read", Err: err}
	}
	var mf manifestFile
	if err := json.Unmarshal(b, &mf); err != nil {
		return nil, &model.IOError{Path: m.path, Op: "decode", Err: err}
	}
	if mf.Version != manifestVersion {
		return nil, &model.IOError{Path: m.path, Op: "decode", Err: fmt.Errorf("unsupported ledger version %d", mf.Version)}
	}
	return mf.Operation, nil
}

// Save writes op through a temp file and rename. A nil op removes the file.
func (m *Manifest) Save(op *model.Operation) error {
	if op == nil {
		if err := m.fs.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &model.IOError{Path: m.path, Op: "remove", Err: err}
		}
		return nil
	}
	if err := m.fs.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return &model.IOError{Path: m.path, Op: "mkdir", Err: err}
	}
	b, err := json.MarshalIndent(manifestFile{Version: manifestVersion, Operation: op}, "", "  ")
	if err != nil {
		return &model.IOError{Path: m.path, Op: "encode", Err: err}
	}
	tmp := m.path + ".tmp"
	if err := afero.WriteFile(m.fs, tmp, append(b, '\n'), 0o600); err != nil {
		return &model.IOError{Path: tmp, Op: "write", Err: err}
	}
	if err := m.fs.Rename(tmp, m.path); err != nil {
		_ = m.fs.Remove(tmp)
		return &model.IOError{Path: m.path, Op: "rename", Err: err}
	}
	return nil
}
