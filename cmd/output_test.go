package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"duplo/internal/app/common"
	"duplo/internal/domain/model"
)

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSummarizeCountsDistinctMarkedVictims(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("12345"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	pairs := []model.DuplicatePair{
		{File1: a, File2: b, Marked: true},
		{File1: "/other", File2: b, Marked: true},
		{File1: a, File2: "/unmarked"},
	}
	sum := summarize(pairs, 2)
	if sum.ItemsTotal != 3 || sum.ItemsSelected != 2 || sum.Errors != 2 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.ReclaimBytes != 5 {
		t.Fatalf("expected victim counted once, got %d bytes", sum.ReclaimBytes)
	}
}

func TestResultFileRoundTripKeepsMarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.json")
	result := newResult("scan", time.Now())
	result.Scan = &model.ScanReport{
		Root: "/r",
		Mode: model.CompareHash,
		Pairs: []model.DuplicatePair{
			{File1: "/r/a", File2: "/r/b", Similarity: 1, ComparisonType: model.CompareHash, Marked: true},
			{File1: "/r/a", File2: "/r/c", Similarity: 1, ComparisonType: model.CompareHash},
		},
	}
	if err := writeResultFile(path, result); err != nil {
		t.Fatal(err)
	}
	pairs, err := loadPairs(path)
	if err != nil {
		t.Fatal(err)
	}
	marked := common.MarkedPairs(pairs)
	if len(pairs) != 2 || len(marked) != 1 || marked[0].File2 != "/r/b" {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}

func TestLoadPairsRejectsNonScanResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undo.json")
	if err := os.WriteFile(path, []byte(`{"schema_version":"1.0","command":"undo"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPairs(path); err == nil {
		t.Fatal("expected error for result without scan section")
	}
	if _, err := loadPairs(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestManagerForValidatesThreshold(t *testing.T) {
	app := &common.AppContext{}
	for _, v := range []float64{0, -0.1, 1.5} {
		if _, err := managerFor(app, true, v); err == nil {
			t.Fatalf("expected threshold %v rejected", v)
		}
	}
	if m, err := managerFor(app, false, 0); err != nil || m != app.Manager {
		t.Fatalf("expected context manager without override")
	}
}

func TestNewResultSchema(t *testing.T) {
	r := newResult("scan", time.Now())
	if r.SchemaVersion != "1.0" || r.Command != "scan" {
		t.Fatalf("unexpected result header: %+v", r)
	}
}

func TestTextRenderings(t *testing.T) {
	res := model.CommandResult{Scan: &model.ScanReport{
		Root:     "/r",
		Mode:     model.CompareImageVisual,
		Pairs:    []model.DuplicatePair{{File1: "/r/a.png", File2: "/r/b.jpg", Similarity: 0.9, ComparisonType: model.CompareImageVisual}},
		Warnings: []model.ScanWarning{{Path: "/r/x.png", Error: "IO_FAILED"}},
	}}
	out := scanText{res}.String()
	if !strings.Contains(out, "/r/a.png ~ /r/b.jpg (90%)") || !strings.Contains(out, "warning: /r/x.png") {
		t.Fatalf("unexpected scan text:\n%s", out)
	}

	del := model.CommandResult{Deletion: &model.DeletionReport{
		Status:      model.StatusPartial,
		Message:     "quarantined 1 of 2 file(s); 1 failure(s)",
		OperationID: "op-1",
		Failures:    []model.Failure{{Path: "/r/c", Reason: "PATH_BLOCKED"}},
	}}
	out = deletionText{del}.String()
	if !strings.Contains(out, "partial: quarantined 1 of 2") || !strings.Contains(out, "failed /r/c: PATH_BLOCKED") {
		t.Fatalf("unexpected deletion text:\n%s", out)
	}

	if got := (pendingText{}).String(); got != "nothing to undo" {
		t.Fatalf("unexpected pending text: %q", got)
	}
	op := &model.Operation{ID: "op-1", Entries: []model.OperationEntry{{OriginalPath: "/r/b", Action: model.ActionQuarantined}}}
	if out := (pendingText{Pending: op}).String(); !strings.Contains(out, "quarantined /r/b") {
		t.Fatalf("unexpected pending text:\n%s", out)
	}
}

func TestUndoError(t *testing.T) {
	none := model.UndoReport{Failed: []model.Failure{{Reason: "UNDO_FAILED: no operation recorded"}}}
	if err := undoError(none); err == nil || err.Error() != "UNDO_FAILED: no operation recorded" {
		t.Fatalf("unexpected error: %v", err)
	}
	partial := model.UndoReport{OperationID: "op", Reverted: []string{"/a"}, Failed: []model.Failure{{Path: "/b"}}}
	if err := undoError(partial); err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("unexpected error: %v", err)
	}
}
