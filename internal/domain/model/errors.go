package model

import (
	"errors"
	"fmt"
)

var (
	ErrNoOperation = errors.New("no operation recorded")
	ErrCanceled    = errors.New("scan canceled")
)

// IOError reports an unreadable or unwritable path.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("IO_FAILED: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ScanError is returned when the walk cannot start or is aborted.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("SCAN_FAILED: %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// DeletionError scopes a failure to one pair of a plan.
type DeletionError struct {
	Path  string
	Stage string
	Err   error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("DELETE_FAILED: %s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }

type UndoError struct {
	Path string
	Err  error
}

func (e *UndoError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("UNDO_FAILED: %v", e.Err)
	}
	return fmt.Sprintf("UNDO_FAILED: %s: %v", e.Path, e.Err)
}

func (e *UndoError) Unwrap() error { return e.Err }
