// Package ledger retains the most recent reversible deletion and reverts it
// on request. Only one operation is kept: recording a new one discards the
// previous undo target.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"duplo/internal/domain/model"
	"duplo/internal/infra/logging"
)

type Store interface {
	Load() (*model.Operation, error)
	Save(op *model.Operation) error
}

type BackupRestorer interface {
	Restore(backupPath, original, digest string) error
}

type QuarantineRestorer interface {
	Restore(quarantined, original string) error
	Prune(opID string) error
}

type Config struct {
	Store      Store
	Backups    BackupRestorer
	Quarantine QuarantineRestorer
	OpLog      logging.Logger
}

type Ledger struct {
	mu         sync.Mutex
	store      Store
	backups    BackupRestorer
	quarantine QuarantineRestorer
	oplog      logging.Logger
	current    *model.Operation
	loadErr    error
}

// New restores the retained operation from cfg.Store. A store that cannot be
// read leaves the ledger empty; the error is reported by the next Undo.
func New(cfg Config) *Ledger {
	l := &Ledger{
		store:      cfg.Store,
		backups:    cfg.Backups,
		quarantine: cfg.Quarantine,
		oplog:      cfg.OpLog,
	}
	if l.oplog == nil {
		l.oplog = logging.NewNoopLogger()
	}
	if l.store != nil {
		op, err := l.store.Load()
		if err != nil {
			logging.Get().Warn().Err(err).Msg("undo ledger unreadable")
			l.loadErr = err
		}
		l.current = op
	}
	return l
}

// Replace makes op the retained operation.
func (l *Ledger) Replace(op model.Operation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := op
	cp.Entries = append([]model.OperationEntry(nil), op.Entries...)
	l.current = &cp
	l.loadErr = nil
	if l.store == nil {
		return nil
	}
	return l.store.Save(&cp)
}

// Current returns a copy of the retained operation, or nil.
func (l *Ledger) Current() *model.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	cp := *l.current
	cp.Entries = append([]model.OperationEntry(nil), l.current.Entries...)
	return &cp
}

// Undo reverts the retained operation, newest entry first. Reverting carries
// on past failures, and the operation is dropped afterwards either way, so a
// second Undo reports nothing to do.
func (l *Ledger) Undo(ctx context.Context) model.UndoReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	report := model.UndoReport{Reverted: []string{}, Failed: []model.Failure{}}
	if l.current == nil {
		err := error(&model.UndoError{Err: model.ErrNoOperation})
		if l.loadErr != nil {
			err = &model.UndoError{Err: fmt.Errorf("ledger unreadable: %w", l.loadErr)}
			l.loadErr = nil
			l.clearStore(&report)
		}
		report.Failed = append(report.Failed, model.Failure{Reason: err.Error()})
		return report
	}

	op := l.current
	report.OperationID = op.ID
	for i := len(op.Entries) - 1; i >= 0; i-- {
		entry := op.Entries[i]
		start := time.Now()
		err := l.revert(entry)
		logEntry := model.OperationLogEntry{
			PlanID:     op.ID,
			Command:    "undo",
			Action:     "restore",
			Path:       entry.OriginalPath,
			Target:     source(entry),
			SizeBytes:  entry.SizeBytes,
			Result:     "success",
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			logEntry.Result = "failed"
			logEntry.Error = err.Error()
			report.Failed = append(report.Failed, model.Failure{Path: entry.OriginalPath, Reason: err.Error()})
			logging.Get().Warn().Str("path", entry.OriginalPath).Err(err).Msg("revert failed")
		} else {
			report.Reverted = append(report.Reverted, entry.OriginalPath)
		}
		if lerr := l.oplog.Log(ctx, logEntry); lerr != nil {
			logging.Get().Warn().Err(lerr).Msg("operation log write failed")
		}
	}

	if l.quarantine != nil {
		if err := l.quarantine.Prune(op.ID); err != nil {
			logging.Get().Debug().Err(err).Str("operation", op.ID).Msg("prune quarantine")
		}
	}
	l.current = nil
	l.clearStore(&report)
	report.OK = len(report.Failed) == 0
	return report
}

func (l *Ledger) clearStore(report *model.UndoReport) {
	if l.store == nil {
		return
	}
	if err := l.store.Save(nil); err != nil {
		report.Failed = append(report.Failed, model.Failure{Reason: (&model.UndoError{Err: err}).Error()})
	}
}

func (l *Ledger) revert(entry model.OperationEntry) error {
	switch entry.Action {
	case model.ActionQuarantined:
		if l.quarantine == nil {
			return &model.UndoError{Path: entry.OriginalPath, Err: errors.New("no quarantine configured")}
		}
		if err := l.quarantine.Restore(entry.QuarantinePath, entry.OriginalPath); err != nil {
			return &model.UndoError{Path: entry.OriginalPath, Err: err}
		}
		return nil
	case model.ActionDeleted:
		if entry.BackupPath == "" {
			return &model.UndoError{Path: entry.OriginalPath, Err: errors.New("permanently deleted without backup")}
		}
		if l.backups == nil {
			return &model.UndoError{Path: entry.OriginalPath, Err: errors.New("no backup store configured")}
		}
		if err := l.backups.Restore(entry.BackupPath, entry.OriginalPath, entry.Digest); err != nil {
			return &model.UndoError{Path: entry.OriginalPath, Err: err}
		}
		return nil
	}
	return &model.UndoError{Path: entry.OriginalPath, Err: fmt.Errorf("unknown action %q", entry.Action)}
}

func source(entry model.OperationEntry) string {
	if entry.Action == model.ActionQuarantined {
		return entry.QuarantinePath
	}
	return entry.BackupPath
}
