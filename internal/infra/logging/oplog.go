package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"duplo/internal/domain/model"
)

// Logger records one line per file action taken by a deletion or undo.
type Logger interface {
	Log(ctx context.Context, entry model.OperationLogEntry) error
	Close() error
}

type noopLogger struct{}

func (n noopLogger) Log(context.Context, model.OperationLogEntry) error { return nil }

func (n noopLogger) Close() error { return nil }

func NewNoopLogger() Logger { return noopLogger{} }

type operationLogger struct {
	mu   sync.Mutex
	file *os.File
	uid  int
}

// NewOperationLogger appends JSONL entries to operations.log in dir. An
// empty dir resolves to $XDG_CONFIG_HOME/duplo.
func NewOperationLogger(_ context.Context, dir string, disabled bool) (Logger, error) {
	if disabled || os.Getenv("DUPLO_NO_OPLOG") == "1" {
		return noopLogger{}, nil
	}
	if dir == "" {
		var err error
		dir, err = defaultDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(dir, "operations.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &operationLogger{file: f, uid: os.Getuid()}, nil
}

func (l *operationLogger) Log(_ context.Context, entry model.OperationLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.UserID == 0 {
		entry.UserID = l.uid
	}

	if l.file == nil {
		return os.ErrClosed
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = l.file.Write(append(b, '\n'))
	return err
}

// Close releases the log file; later Log calls return os.ErrClosed.
func (l *operationLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func defaultDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "duplo"), nil
}
