package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"folio/internal/logging"
)

func makeDir(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, "00001.jpg"), []byte("page"), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("set old time: %v", err)
		}
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), Layout{DataDir: dir}, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldWorkDirectories(t *testing.T) {
	base := t.TempDir()
	pdfDir := filepath.Join(base, "pdf")
	logDir := filepath.Join(base, "logs")

	oldDir := filepath.Join(base, "Old_Work")
	makeDir(t, oldDir, 2*time.Hour)
	recentDir := filepath.Join(base, "Recent_Work")
	makeDir(t, recentDir, 0)
	makeDir(t, pdfDir, 2*time.Hour)
	makeDir(t, logDir, 2*time.Hour)

	layout := Layout{DataDir: base, PDFDir: pdfDir, Reserved: []string{logDir}}
	result := CleanStale(context.Background(), layout, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	for _, keep := range []string{recentDir, pdfDir, logDir} {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("%s should still exist", keep)
		}
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	base := t.TempDir()
	oldFile := filepath.Join(base, "favorites.json")
	if err := os.WriteFile(oldFile, []byte("[]"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), Layout{DataDir: base}, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should not have been removed")
	}
}

func TestReservedParentIsKept(t *testing.T) {
	base := t.TempDir()
	state := filepath.Join(base, "state")
	logDir := filepath.Join(state, "logs")
	makeDir(t, logDir, 0)
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(state, old, old); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), Layout{DataDir: base, Reserved: []string{logDir}}, time.Hour, nil)
	if len(result.Removed) != 0 {
		t.Fatalf("expected reserved parent to be kept, removed %v", result.Removed)
	}
}

func TestCleanCompletedRemovesDirectoriesWithPDF(t *testing.T) {
	base := t.TempDir()
	pdfDir := filepath.Join(base, "pdf")
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	done := filepath.Join(base, "Done")
	pending := filepath.Join(base, "Pending")
	makeDir(t, done, 0)
	makeDir(t, pending, 0)
	if err := os.WriteFile(filepath.Join(pdfDir, "Done.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	result := CleanCompleted(context.Background(), Layout{DataDir: base, PDFDir: pdfDir}, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != done {
		t.Fatalf("expected %s removed, got %v", done, result.Removed)
	}
	if _, err := os.Stat(pending); err != nil {
		t.Error("pending directory should still exist")
	}
}

func TestListDirectories(t *testing.T) {
	base := t.TempDir()
	pdfDir := filepath.Join(base, "pdf")
	makeDir(t, filepath.Join(base, "A"), 0)
	makeDir(t, pdfDir, 0)
	if err := os.Mkdir(filepath.Join(base, ".hidden"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	dirs, err := ListDirectories(Layout{DataDir: base, PDFDir: pdfDir})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected 1 directory, got %d", len(dirs))
	}
	if dirs[0].Name != "A" || dirs[0].Files != 1 || dirs[0].Size != 4 || dirs[0].Complete {
		t.Errorf("unexpected dir info: %+v", dirs[0])
	}
}
