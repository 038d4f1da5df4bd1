package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duplo/internal/domain/model"
)

type memStore struct {
	op      *model.Operation
	loadErr error
	saves   int
}

func (m *memStore) Load() (*model.Operation, error) { return m.op, m.loadErr }

func (m *memStore) Save(op *model.Operation) error {
	m.saves++
	m.op = op
	return nil
}

type fakeRestorer struct {
	calls  []string
	fail   map[string]error
	pruned []string
}

func (f *fakeRestorer) Restore(from, original string, _ ...string) error {
	f.calls = append(f.calls, original)
	return f.fail[original]
}

type quarantineFake struct{ *fakeRestorer }

func (q quarantineFake) Restore(from, original string) error { return q.fakeRestorer.Restore(from, original) }
func (q quarantineFake) Prune(opID string) error {
	q.pruned = append(q.pruned, opID)
	return nil
}

type backupFake struct{ *fakeRestorer }

func (b backupFake) Restore(from, original, digest string) error {
	return b.fakeRestorer.Restore(from, original, digest)
}

func sampleOp() model.Operation {
	return model.Operation{
		ID:        "op-1",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Entries: []model.OperationEntry{
			{OriginalPath: "/w/a", QuarantinePath: "/q/op-1/w/a", Action: model.ActionQuarantined},
			{OriginalPath: "/w/b", BackupPath: "/b/op-1/w/b", Action: model.ActionDeleted, Digest: "d"},
			{OriginalPath: "/w/c", QuarantinePath: "/q/op-1/w/c", Action: model.ActionQuarantined},
		},
		Outcome: model.StatusSuccess,
	}
}

func TestUndoWithoutOperationReturnsFalse(t *testing.T) {
	l := New(Config{Store: &memStore{}})
	report := l.Undo(context.Background())
	assert.False(t, report.OK)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "no operation recorded")
}

func TestReplacePersistsAndCopies(t *testing.T) {
	store := &memStore{}
	l := New(Config{Store: store})
	op := sampleOp()
	require.NoError(t, l.Replace(op))
	op.Entries[0].OriginalPath = "/mutated"

	cur := l.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "/w/a", cur.Entries[0].OriginalPath)
	require.NotNil(t, store.op)
	assert.Equal(t, "op-1", store.op.ID)
}

func TestUndoRevertsNewestFirstAndClears(t *testing.T) {
	store := &memStore{}
	shared := &fakeRestorer{}
	l := New(Config{Store: store, Backups: backupFake{shared}, Quarantine: quarantineFake{shared}})
	require.NoError(t, l.Replace(sampleOp()))

	report := l.Undo(context.Background())
	assert.True(t, report.OK)
	assert.Equal(t, "op-1", report.OperationID)
	assert.Equal(t, []string{"/w/c", "/w/b", "/w/a"}, shared.calls)
	assert.Equal(t, []string{"/w/c", "/w/b", "/w/a"}, report.Reverted)
	assert.Equal(t, []string{"op-1"}, shared.pruned)
	assert.Nil(t, l.Current())
	assert.Nil(t, store.op)

	second := l.Undo(context.Background())
	assert.False(t, second.OK)
}

func TestUndoContinuesPastFailures(t *testing.T) {
	shared := &fakeRestorer{fail: map[string]error{"/w/c": errors.New("target exists")}}
	l := New(Config{Store: &memStore{}, Backups: backupFake{shared}, Quarantine: quarantineFake{shared}})
	require.NoError(t, l.Replace(sampleOp()))

	report := l.Undo(context.Background())
	assert.False(t, report.OK)
	assert.Equal(t, []string{"/w/b", "/w/a"}, report.Reverted)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "/w/c", report.Failed[0].Path)
	assert.Contains(t, report.Failed[0].Reason, "UNDO_FAILED")
	assert.Nil(t, l.Current(), "undo is single-shot even after partial failure")
}

func TestUndoPermanentDeleteWithoutBackupFails(t *testing.T) {
	l := New(Config{Store: &memStore{}, Backups: backupFake{&fakeRestorer{}}})
	require.NoError(t, l.Replace(model.Operation{ID: "op-2", Entries: []model.OperationEntry{
		{OriginalPath: "/w/x", Action: model.ActionDeleted},
	}}))
	report := l.Undo(context.Background())
	assert.False(t, report.OK)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "without backup")
}

func TestNewLoadsPersistedOperation(t *testing.T) {
	op := sampleOp()
	l := New(Config{Store: &memStore{op: &op}})
	cur := l.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "op-1", cur.ID)
}

func TestUnreadableStoreReportedOnce(t *testing.T) {
	store := &memStore{loadErr: errors.New("IO_FAILED: decode ledger.json")}
	l := New(Config{Store: store})
	assert.Nil(t, l.Current())

	first := l.Undo(context.Background())
	assert.False(t, first.OK)
	require.NotEmpty(t, first.Failed)
	assert.Contains(t, first.Failed[0].Reason, "ledger unreadable")
	assert.Equal(t, 1, store.saves, "corrupt ledger is cleared")

	second := l.Undo(context.Background())
	assert.False(t, second.OK)
	assert.Contains(t, second.Failed[0].Reason, "no operation recorded")
}
