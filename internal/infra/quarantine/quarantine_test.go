package quarantine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMoveAndRestoreRoundTrip(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "work", "b.txt")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := New(filepath.Join(base, "quarantine"))

	held, err := store.Move("op1", src, zeroIdentity())
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if held != store.PathFor("op1", src) {
		t.Fatalf("unexpected quarantine path %s", held)
	}
	if _, err := os.Lstat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source gone, got %v", err)
	}

	if err := store.Restore(held, src); err != nil {
		t.Fatalf("restore: %v", err)
	}
	b, err := os.ReadFile(src)
	if err != nil || string(b) != "x" {
		t.Fatalf("expected restored content, got %q err=%v", b, err)
	}
	if err := store.Prune("op1"); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "op1")); !os.IsNotExist(err) {
		t.Fatalf("expected empty op dir pruned, got %v", err)
	}
}

func TestRestoreNeverOverwrites(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "b.txt")
	if err := os.WriteFile(src, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := New(filepath.Join(base, "q"))
	held, err := store.Move("op1", src, zeroIdentity())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(held, src); err == nil {
		t.Fatal("expected restore to refuse existing target")
	}
	b, _ := os.ReadFile(src)
	if string(b) != "new" {
		t.Fatalf("existing file was replaced: %q", b)
	}
	if _, err := os.Stat(held); err != nil {
		t.Fatalf("quarantined file should remain: %v", err)
	}
}

func TestMoveRejectsNonRegular(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "t.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if _, err := New(filepath.Join(base, "q")).Move("op1", link, zeroIdentity()); err == nil {
		t.Fatal("expected symlink to be rejected")
	}
}

func TestPruneMissingOperationIsNoop(t *testing.T) {
	if err := New(t.TempDir()).Prune("missing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestPruneKeepsNonEmptyDirs(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "op1", "a", "f.txt")
	if err := os.MkdirAll(filepath.Dir(keep), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "op1", "empty", "deeper"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := New(root).Prune("op1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("file removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "op1", "empty")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected empty dir pruned, got %v", err)
	}
}
