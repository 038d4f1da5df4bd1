package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duplo/internal/domain/model"
	"duplo/internal/infra/filesystem"
	"duplo/internal/infra/fingerprint"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func opts() Options {
	return Options{Threshold: 0.85, Workers: 4, Walk: filesystem.WalkOptions{IncludeHidden: true}}
}

func TestScanHashFindsSinglePair(t *testing.T) {
	dir := t.TempDir()
	a := write(t, dir, "A", "x")
	b := write(t, dir, "B", "x")
	c := write(t, dir, "C", "y")

	report, err := NewService(nil).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	require.Len(t, report.Pairs, 1)

	p := report.Pairs[0]
	assert.Equal(t, a, p.File1)
	assert.Equal(t, b, p.File2)
	assert.Equal(t, 1.0, p.Similarity)
	assert.Equal(t, model.CompareHash, p.ComparisonType)
	assert.NotEqual(t, c, p.File1)
	assert.NotEqual(t, c, p.File2)
	assert.Equal(t, 3, report.FilesSeen)
}

func TestScanNoDuplicatesReturnsEmptyList(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a", "one")
	write(t, dir, "b", "two")

	report, err := NewService(nil).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	require.NotNil(t, report.Pairs)
	assert.Empty(t, report.Pairs)
}

func TestScanIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"z", "y/x", "w", "v/u/t"} {
		write(t, dir, n, "same")
	}
	write(t, dir, "other", "diff")

	svc := NewService(nil)
	first, err := svc.Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	second, err := svc.Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	assert.Equal(t, first.Pairs, second.Pairs)
}

func TestScanExactGroupsUseStarTopology(t *testing.T) {
	dir := t.TempDir()
	a := write(t, dir, "a", "dup")
	b := write(t, dir, "b", "dup")
	c := write(t, dir, "sub/c", "dup")

	report, err := NewService(nil).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	require.Len(t, report.Pairs, 2)
	assert.Equal(t, []model.DuplicatePair{
		{File1: a, File2: b, Similarity: 1, ComparisonType: model.CompareHash},
		{File1: a, File2: c, Similarity: 1, ComparisonType: model.CompareHash},
	}, report.Pairs)
}

func TestScanEmptyFileMode(t *testing.T) {
	dir := t.TempDir()
	e1 := write(t, dir, "e1", "")
	e2 := write(t, dir, "e2", "")
	write(t, dir, "full", "content")

	report, err := NewService(nil).Scan(context.Background(), dir, model.CompareEmptyFile, opts())
	require.NoError(t, err)
	require.Len(t, report.Pairs, 1)
	assert.Equal(t, e1, report.Pairs[0].File1)
	assert.Equal(t, e2, report.Pairs[0].File2)
	assert.Equal(t, 1.0, report.Pairs[0].Similarity)

	hashed, err := NewService(nil).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	assert.Empty(t, hashed.Pairs, "empty files belong to empty_file mode only")
}

func TestScanCodeModeFindsNearDuplicates(t *testing.T) {
	dir := t.TempDir()
	body := "package calc\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n\nfunc Sub(a, b int) int {\n\treturn a - b\n}\n"
	a := write(t, dir, "a.go", body)
	b := write(t, dir, "b.go", "// copied\n"+body)
	write(t, dir, "c.go", "package other\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hello world\") }\n")

	report, err := NewService(nil).Scan(context.Background(), dir, model.CompareCode, opts())
	require.NoError(t, err)
	require.Len(t, report.Pairs, 1)
	assert.Equal(t, a, report.Pairs[0].File1)
	assert.Equal(t, b, report.Pairs[0].File2)
	assert.GreaterOrEqual(t, report.Pairs[0].Similarity, 0.85)
	assert.LessOrEqual(t, report.Pairs[0].Similarity, 1.0)
}

func TestScanRejectsUnknownMode(t *testing.T) {
	_, err := NewService(nil).Scan(context.Background(), t.TempDir(), model.ComparisonType("video"), opts())
	var scanErr *model.ScanError
	assert.True(t, errors.As(err, &scanErr))
}

func TestScanRejectsMissingRoot(t *testing.T) {
	_, err := NewService(nil).Scan(context.Background(), filepath.Join(t.TempDir(), "gone"), model.CompareHash, opts())
	var scanErr *model.ScanError
	assert.True(t, errors.As(err, &scanErr))
}

func TestScanCanceled(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a", "x")
	write(t, dir, "b", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(nil).Scan(ctx, dir, model.CompareHash, opts())
	assert.ErrorIs(t, err, model.ErrCanceled)
}

type fakeFingerprinter struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]error
	cancel context.CancelFunc
}

func (f *fakeFingerprinter) Eligible(path string, size int64, mode model.ComparisonType) bool {
	return fingerprint.New(nil).Eligible(path, size, mode)
}

func (f *fakeFingerprinter) Signature(ctx context.Context, path string, mode model.ComparisonType) (model.Signature, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[filepath.Base(path)]++
	f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		return model.Signature{}, ctx.Err()
	}
	if err := f.fail[filepath.Base(path)]; err != nil {
		return model.Signature{}, err
	}
	return fingerprint.New(nil).Signature(ctx, path, mode)
}

func TestScanHashSkipsUniqueSizes(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a", "xx")
	write(t, dir, "b", "xx")
	write(t, dir, "lonely", "a much longer body")

	fp := &fakeFingerprinter{}
	report, err := NewService(fp).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	assert.Len(t, report.Pairs, 1)
	assert.Equal(t, 0, fp.calls["lonely"])
	assert.Equal(t, 2, report.FilesCompared)
}

func TestScanUnreadableFileBecomesWarning(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a", "x")
	write(t, dir, "b", "x")
	bad := write(t, dir, "c", "x")

	fp := &fakeFingerprinter{fail: map[string]error{"c": &model.IOError{Path: bad, Op: "open", Err: os.ErrPermission}}}
	report, err := NewService(fp).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, bad, report.Warnings[0].Path)
	assert.Len(t, report.Pairs, 1)
}

func TestScanCanceledMidFingerprint(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a", "x")
	write(t, dir, "b", "x")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewService(&fakeFingerprinter{cancel: cancel}).Scan(ctx, dir, model.CompareHash, opts())
	assert.ErrorIs(t, err, model.ErrCanceled)
}

func TestScanAsyncDeliversOneOutcome(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a", "x")
	write(t, dir, "b", "x")

	ch := NewService(nil).ScanAsync(context.Background(), dir, model.CompareHash, opts())
	out, ok := <-ch
	require.True(t, ok)
	require.NoError(t, out.Err)
	assert.Len(t, out.Report.Pairs, 1)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestFuzzyPairsRespectThreshold(t *testing.T) {
	files := []model.FileRecord{{Path: "/b"}, {Path: "/a"}, {Path: "/c"}}
	sigs := []*model.Signature{
		{Mode: model.CompareImageVisual, Bits: 0},
		{Mode: model.CompareImageVisual, Bits: 0b111},
		{Mode: model.CompareImageVisual, Bits: ^uint64(0)},
	}
	pairs := fuzzyPairs(files, sigs, model.CompareImageVisual, 0.9)
	require.Len(t, pairs, 1)
	assert.Equal(t, "/a", pairs[0].File1)
	assert.Equal(t, "/b", pairs[0].File2)
	assert.InDelta(t, 1-3.0/64, pairs[0].Similarity, 1e-9)
}

func TestFuzzyPairsSkipEmptySignatures(t *testing.T) {
	files := []model.FileRecord{{Path: "/a"}, {Path: "/b"}}
	sigs := []*model.Signature{
		{Mode: model.CompareDocument, Empty: true},
		{Mode: model.CompareDocument, Empty: true},
	}
	assert.Empty(t, fuzzyPairs(files, sigs, model.CompareDocument, 0.85))
}

func TestScanHashCollapsesHardLinks(t *testing.T) {
	dir := t.TempDir()
	a := write(t, dir, "a", "dup")
	if err := os.Link(a, filepath.Join(dir, "b")); err != nil {
		t.Skipf("hard links unsupported: %v", err)
	}

	report, err := NewService(nil).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	assert.Empty(t, report.Pairs, "links to one inode are not duplicates")

	c := write(t, dir, "c", "dup")
	report, err = NewService(nil).Scan(context.Background(), dir, model.CompareHash, opts())
	require.NoError(t, err)
	assert.Equal(t, []model.DuplicatePair{
		{File1: a, File2: c, Similarity: 1, ComparisonType: model.CompareHash},
	}, report.Pairs)
}

func TestExactPairsKeepRecordsWithoutIdentity(t *testing.T) {
	files := []model.FileRecord{{Path: "/b"}, {Path: "/a"}, {Path: "/c", Dev: 1, Ino: 7}, {Path: "/d", Dev: 1, Ino: 7}}
	sig := &model.Signature{Mode: model.CompareHash, Digest: "d"}
	pairs := exactPairs(files, []*model.Signature{sig, sig, sig, sig}, model.CompareHash)
	assert.ElementsMatch(t, []model.DuplicatePair{
		{File1: "/a", File2: "/b", Similarity: 1, ComparisonType: model.CompareHash},
		{File1: "/a", File2: "/c", Similarity: 1, ComparisonType: model.CompareHash},
	}, pairs)
}

func TestFuzzyPairsSkipSameInode(t *testing.T) {
	files := []model.FileRecord{{Path: "/a", Dev: 1, Ino: 9}, {Path: "/b", Dev: 1, Ino: 9}}
	sigs := []*model.Signature{
		{Mode: model.CompareImageVisual, Bits: 42},
		{Mode: model.CompareImageVisual, Bits: 42},
	}
	assert.Empty(t, fuzzyPairs(files, sigs, model.CompareImageVisual, 0.85))
}
