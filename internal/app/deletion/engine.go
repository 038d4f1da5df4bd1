package deletion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"duplo/internal/domain/model"
	"duplo/internal/domain/safety"
	"duplo/internal/infra/logging"
	"duplo/internal/infra/storage"
)

const command = "delete"

// Ledger receives the operation built by a plan that changed at least one
// file.
type Ledger interface {
	Replace(op model.Operation) error
}

type Backups interface {
	Root() string
	Save(opID, src string) (storage.Backup, error)
	Discard(path string) error
}

type Quarantine interface {
	Root() string
	Move(opID, src string, expected safety.Identity) (string, error)
}

type Config struct {
	Backups    Backups
	Quarantine Quarantine
	Ledger     Ledger
	OpLog      logging.Logger
	Whitelist  []string
}

type Engine struct {
	backups    Backups
	quarantine Quarantine
	ledger     Ledger
	oplog      logging.Logger
	whitelist  []string
	newID      func() string
	now        func() time.Time
}

func NewEngine(cfg Config) *Engine {
	oplog := cfg.OpLog
	if oplog == nil {
		oplog = logging.NewNoopLogger()
	}
	return &Engine{
		backups:    cfg.Backups,
		quarantine: cfg.Quarantine,
		ledger:     cfg.Ledger,
		oplog:      oplog,
		whitelist:  cfg.Whitelist,
		newID:      uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Apply removes file2 of every pair in plan, keeping file1. Each pair stands
// alone: a failure is recorded against that pair and the rest continue. The
// ledger's retained operation is replaced only when some file was changed.
func (e *Engine) Apply(ctx context.Context, plan model.DeletionPlan) model.DeletionResult {
	opID := e.newID()
	res := model.DeletionResult{
		OperationID: opID,
		Succeeded:   []string{},
		Failed:      []model.Failure{},
		DryRun:      plan.DryRun,
	}
	if len(plan.Pairs) == 0 {
		res.OperationID = ""
		res.Status = model.StatusSuccess
		return res
	}

	op := model.Operation{ID: opID, Timestamp: e.now()}
	handled := make(map[string]bool, len(plan.Pairs))
	for _, pair := range plan.Pairs {
		victim := filepath.Clean(pair.File2)
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, model.Failure{Path: victim, Reason: (&model.DeletionError{Path: victim, Stage: "canceled", Err: err}).Error()})
			continue
		}
		entry, err := e.applyPair(ctx, opID, pair, plan, handled)
		if err != nil {
			res.Failed = append(res.Failed, model.Failure{Path: victim, Reason: err.Error()})
			e.record(ctx, opID, "skip", victim, "", 0, "failed", err, plan.DryRun)
			logging.Get().Warn().Str("path", victim).Err(err).Msg("pair failed")
			continue
		}
		handled[victim] = true
		res.Succeeded = append(res.Succeeded, victim)
		if !plan.DryRun {
			op.Entries = append(op.Entries, entry)
		}
	}

	res.Status = statusFor(len(res.Succeeded), len(plan.Pairs))
	op.Outcome = res.Status
	if plan.DryRun || len(op.Entries) == 0 {
		if len(op.Entries) == 0 {
			res.OperationID = ""
		}
		return res
	}
	if e.ledger != nil {
		if err := e.ledger.Replace(op); err != nil {
			logging.Get().Error().Err(err).Str("operation", opID).Msg("persist undo ledger")
			res.Failed = append(res.Failed, model.Failure{Path: opID, Reason: fmt.Sprintf("ledger: %v", err)})
			if res.Status == model.StatusSuccess {
				res.Status = model.StatusPartial
			}
		}
	}
	return res
}

func (e *Engine) applyPair(ctx context.Context, opID string, pair model.DuplicatePair, plan model.DeletionPlan, handled map[string]bool) (model.OperationEntry, error) {
	start := time.Now()
	victim := filepath.Clean(pair.File2)
	keeper := filepath.Clean(pair.File1)

	id, size, err := e.validate(victim, keeper, handled)
	if err != nil {
		return model.OperationEntry{}, err
	}
	if plan.DryRun {
		action := "delete"
		if plan.UseSafeDelete {
			action = "quarantine"
		}
		e.record(ctx, opID, action, victim, "", size, "planned", nil, true)
		return model.OperationEntry{OriginalPath: victim, SizeBytes: size}, nil
	}

	entry := model.OperationEntry{OriginalPath: victim, SizeBytes: size}
	if plan.PerformBackup {
		if e.backups == nil {
			return entry, &model.DeletionError{Path: victim, Stage: "backup", Err: errors.New("no backup store configured")}
		}
		b, err := e.backups.Save(opID, victim)
		if err != nil {
			return entry, &model.DeletionError{Path: victim, Stage: "backup", Err: err}
		}
		entry.BackupPath = b.Path
		entry.Digest = b.Digest
		e.record(ctx, opID, "backup", victim, b.Path, size, "success", nil, false)
	}

	if plan.UseSafeDelete {
		var held string
		if e.quarantine == nil {
			err = errors.New("no quarantine configured")
		} else {
			held, err = e.quarantine.Move(opID, victim, id)
		}
		if err != nil {
			e.discardBackup(entry)
			return entry, &model.DeletionError{Path: victim, Stage: "quarantine", Err: err}
		}
		entry.QuarantinePath = held
		entry.Action = model.ActionQuarantined
		e.record(ctx, opID, "quarantine", victim, held, size, "success", nil, false)
	} else {
		if err := safety.RemoveFile(victim, id); err != nil {
			e.discardBackup(entry)
			return entry, &model.DeletionError{Path: victim, Stage: "delete", Err: err}
		}
		entry.Action = model.ActionDeleted
		e.record(ctx, opID, "delete", victim, entry.BackupPath, size, "success", nil, false)
	}
	logging.Get().Debug().Str("path", victim).Str("action", string(entry.Action)).Dur("took", time.Since(start)).Msg("pair applied")
	return entry, nil
}

// validate returns the identity and size of victim once every guard passes.
func (e *Engine) validate(victim, keeper string, handled map[string]bool) (safety.Identity, int64, error) {
	fail := func(err error) (safety.Identity, int64, error) {
		return safety.Identity{}, 0, &model.DeletionError{Path: victim, Stage: "validate", Err: err}
	}
	if victim == keeper {
		return fail(errors.New("PATH_INVALID: pair names the same file twice"))
	}
	if handled[victim] {
		return fail(errors.New("already removed earlier in this plan"))
	}
	if handled[keeper] {
		return fail(fmt.Errorf("keeper %s was removed earlier in this plan", keeper))
	}
	var protected []string
	if e.backups != nil {
		protected = append(protected, e.backups.Root())
	}
	if e.quarantine != nil {
		protected = append(protected, e.quarantine.Root())
	}
	if err := safety.ValidateVictim(victim, protected, e.whitelist); err != nil {
		return fail(err)
	}
	if _, err := os.Lstat(keeper); err != nil {
		return fail(fmt.Errorf("keeper unavailable: %w", err))
	}
	id, mode, err := safety.Stat(victim)
	if err != nil {
		return fail(&model.IOError{Path: victim, Op: "stat", Err: err})
	}
	if !mode.IsRegular() {
		return fail(errors.New("PATH_INVALID: not a regular file"))
	}
	fi, err := os.Lstat(victim)
	if err != nil {
		return fail(&model.IOError{Path: victim, Op: "stat", Err: err})
	}
	return id, fi.Size(), nil
}

func (e *Engine) discardBackup(entry model.OperationEntry) {
	if entry.BackupPath == "" || e.backups == nil {
		return
	}
	if err := e.backups.Discard(entry.BackupPath); err != nil {
		logging.Get().Warn().Err(err).Str("backup", entry.BackupPath).Msg("discard orphaned backup")
	}
}

func (e *Engine) record(ctx context.Context, opID, action, path, target string, size int64, result string, err error, dryRun bool) {
	entry := model.OperationLogEntry{
		Timestamp: e.now(),
		PlanID:    opID,
		Command:   command,
		Action:    action,
		Path:      path,
		Target:    target,
		SizeBytes: size,
		Result:    result,
		DryRun:    dryRun,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if lerr := e.oplog.Log(ctx, entry); lerr != nil {
		logging.Get().Warn().Err(lerr).Msg("operation log write failed")
	}
}

func statusFor(ok, total int) model.DeletionStatus {
	switch {
	case ok == total:
		return model.StatusSuccess
	case ok == 0:
		return model.StatusFailure
	default:
		return model.StatusPartial
	}
}
