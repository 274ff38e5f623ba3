package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "record.json")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteAtomicKeepsPreviousContentOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("encoder failed")
	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Fatalf("previous content lost: %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestHasPrefix(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "a.pdf")
	empty := filepath.Join(dir, "b.pdf")
	other := filepath.Join(dir, "c.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(other, []byte("<html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	prefix := []byte("%PDF-")
	if !HasPrefix(pdf, prefix) {
		t.Fatal("expected pdf prefix match")
	}
	if HasPrefix(empty, prefix) || HasPrefix(other, prefix) {
		t.Fatal("unexpected prefix match")
	}
	if HasPrefix(filepath.Join(dir, "missing"), prefix) {
		t.Fatal("missing file should not match")
	}
	if HasPrefix(dir, prefix) {
		t.Fatal("directory should not match")
	}
}

func TestRemoveIfEmpty(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	empty := filepath.Join(dir, "empty")
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(full, "keep"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := RemoveIfEmpty(full)
	if err != nil || removed {
		t.Fatalf("expected non-empty dir kept, removed=%v err=%v", removed, err)
	}
	removed, err = RemoveIfEmpty(empty)
	if err != nil || !removed {
		t.Fatalf("expected empty dir removed, removed=%v err=%v", removed, err)
	}
	removed, err = RemoveIfEmpty(filepath.Join(dir, "missing"))
	if err != nil || removed {
		t.Fatalf("missing dir: removed=%v err=%v", removed, err)
	}
}
