// Package manager is the surface a presentation client drives: scan a
// directory, delete a selection of pairs, undo the last deletion.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"duplo/internal/app/deletion"
	"duplo/internal/app/ledger"
	"duplo/internal/app/scan"
	"duplo/internal/domain/model"
	"duplo/internal/domain/safety"
	"duplo/internal/infra/config"
	"duplo/internal/infra/filesystem"
	"duplo/internal/infra/fingerprint"
	"duplo/internal/infra/logging"
	"duplo/internal/infra/quarantine"
	"duplo/internal/infra/storage"
)

type Manager struct {
	// mu serializes deletion and undo against the single retained operation.
	mu       sync.Mutex
	scanner  scan.Service
	engine   *deletion.Engine
	ledger   *ledger.Ledger
	scanOpts scan.Options
	lastUndo model.UndoReport
}

// New wires the scanner, deletion engine and undo ledger from settings. The
// storage directories are always excluded from scans.
func New(settings config.Settings, whitelist []string, oplog logging.Logger) *Manager {
	settings.Storage.DataDir = safety.ResolveExisting(settings.Storage.DataDir)
	settings.Storage.BackupDir = safety.ResolveExisting(settings.Storage.BackupDir)
	settings.Storage.QuarantineDir = safety.ResolveExisting(settings.Storage.QuarantineDir)
	fs := afero.NewOsFs()
	backups := storage.NewBackupStore(fs, settings.Storage.BackupDir)
	holding := quarantine.New(settings.Storage.QuarantineDir)
	l := ledger.New(ledger.Config{
		Store:      storage.NewManifest(fs, settings.Storage.LedgerPath()),
		Backups:    backups,
		Quarantine: holding,
		OpLog:      oplog,
	})

	excludes := append([]string{}, settings.Scan.Excludes...)
	excludes = append(excludes, settings.Storage.DataDir, settings.Storage.BackupDir, settings.Storage.QuarantineDir)

	return &Manager{
		scanner: scan.NewService(fingerprint.New(fs)),
		engine: deletion.NewEngine(deletion.Config{
			Backups:    backups,
			Quarantine: holding,
			Ledger:     l,
			OpLog:      oplog,
			Whitelist:  whitelist,
		}),
		ledger: l,
		scanOpts: scan.Options{
			Threshold: settings.Scan.Threshold,
			Workers:   settings.Scan.Workers,
			Walk: filesystem.WalkOptions{
				Excludes:      excludes,
				IncludeHidden: settings.Scan.IncludeHidden,
				MinSizeBytes:  settings.Scan.MinSize,
				SkipNetworkFS: settings.Scan.SkipNetworkFS,
			},
		},
	}
}

// Scan returns the full report, warnings included.
func (m *Manager) Scan(ctx context.Context, path string, mode model.ComparisonType) (model.ScanReport, error) {
	return m.scanner.Scan(ctx, path, mode, m.scanOpts)
}

func (m *Manager) ScanDirectory(ctx context.Context, path string, mode model.ComparisonType) ([]model.DuplicatePair, error) {
	report, err := m.Scan(ctx, path, mode)
	if err != nil {
		return nil, err
	}
	return report.Pairs, nil
}

// ScanAsync never blocks the caller; the outcome arrives on the channel.
func (m *Manager) ScanAsync(ctx context.Context, path string, mode model.ComparisonType) <-chan scan.Outcome {
	return m.scanner.ScanAsync(ctx, path, mode, m.scanOpts)
}

// Apply runs plan as given. Callers select pairs; see PerformDeletion.
func (m *Manager) Apply(ctx context.Context, plan model.DeletionPlan) model.DeletionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Apply(ctx, plan)
}

// PerformDeletion acts on the pairs marked for deletion and ignores the rest.
func (m *Manager) PerformDeletion(ctx context.Context, pairs []model.DuplicatePair, performBackup, useSafeDelete bool) model.DeletionReport {
	plan := model.DeletionPlan{PerformBackup: performBackup, UseSafeDelete: useSafeDelete}
	for _, p := range pairs {
		if p.Marked {
			plan.Pairs = append(plan.Pairs, p)
		}
	}
	res := m.Apply(ctx, plan)
	return Report(res, len(plan.Pairs), useSafeDelete)
}

// UndoLastOperation reverts the retained operation. The detailed outcome is
// kept for LastUndoReport.
func (m *Manager) UndoLastOperation(ctx context.Context) bool {
	return m.Undo(ctx).OK
}

func (m *Manager) Undo(ctx context.Context) model.UndoReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUndo = m.ledger.Undo(ctx)
	return m.lastUndo
}

func (m *Manager) LastUndoReport() model.UndoReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUndo
}

// PendingUndo returns the operation an undo would revert, or nil.
func (m *Manager) PendingUndo() *model.Operation {
	return m.ledger.Current()
}

// Report condenses a deletion result into the client-facing summary.
func Report(res model.DeletionResult, total int, safe bool) model.DeletionReport {
	verb := "deleted"
	if safe {
		verb = "quarantined"
	}
	if res.DryRun {
		verb = "would remove"
	}
	var msg string
	switch {
	case total == 0:
		msg = "nothing marked for deletion"
	case res.Status == model.StatusSuccess:
		msg = fmt.Sprintf("%s %d file(s)", verb, len(res.Succeeded))
	case res.Status == model.StatusPartial:
		msg = fmt.Sprintf("%s %d of %d file(s); %d failure(s)", verb, len(res.Succeeded), total, len(res.Failed))
	default:
		msg = fmt.Sprintf("%s 0 of %d file(s); %d failure(s)", verb, total, len(res.Failed))
	}
	return model.DeletionReport{
		Status:       res.Status,
		Message:      msg,
		SuccessCount: len(res.Succeeded),
		Failures:     res.Failed,
		OperationID:  res.OperationID,
	}
}
