package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"folio/internal/logging"
)

// Layout names the directories a cleanup pass operates on.
type Layout struct {
	DataDir string
	PDFDir  string
	// Reserved lists extra absolute paths that must never be removed.
	Reserved []string
}

// CleanResult contains the outcome of a cleanup operation.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo contains metadata about a work directory.
type DirInfo struct {
	Name     string
	Path     string
	ModTime  time.Time
	Size     int64
	Files    int
	Complete bool
}

// CleanStale removes work directories older than maxAge.
func CleanStale(ctx context.Context, layout Layout, maxAge time.Duration, logger *slog.Logger) CleanResult {
	cutoff := time.Now().Add(-maxAge)
	return clean(ctx, layout, logger, "stale", func(dir DirInfo) bool {
		return dir.ModTime.Before(cutoff)
	})
}

// CleanCompleted removes work directories whose PDF already exists in the
// output directory.
func CleanCompleted(ctx context.Context, layout Layout, logger *slog.Logger) CleanResult {
	return clean(ctx, layout, logger, "completed", func(dir DirInfo) bool {
		return dir.Complete
	})
}

func clean(ctx context.Context, layout Layout, logger *slog.Logger, reason string, match func(DirInfo) bool) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	dirs, err := ListDirectories(layout)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: layout.DataDir, Error: err})
		return result
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if !match(dir) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logging.WithContext(ctx, logger), "failed to remove work directory", "staging_cleanup_failed",
				logging.String("path", dir.Path),
				logging.String("reason", reason),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check data_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed work directory",
			logging.String("path", dir.Path),
			logging.String("reason", reason),
			logging.Duration("age", time.Since(dir.ModTime)),
			logging.Int64("bytes", dir.Size),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}

	return result
}

// ListDirectories returns the work directories under the data directory.
// A missing data directory yields an empty list.
func ListDirectories(layout Layout) ([]DirInfo, error) {
	dataDir := strings.TrimSpace(layout.DataDir)
	if dataDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	reserved := make([]string, 0, len(layout.Reserved)+1)
	if layout.PDFDir != "" {
		reserved = append(reserved, filepath.Clean(layout.PDFDir))
	}
	for _, path := range layout.Reserved {
		if strings.TrimSpace(path) != "" {
			reserved = append(reserved, filepath.Clean(path))
		}
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirPath := filepath.Join(dataDir, entry.Name())
		if isReserved(dirPath, reserved) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		size, files := dirSize(dirPath)

		dir := DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
			Files:   files,
		}
		if layout.PDFDir != "" {
			if st, err := os.Stat(filepath.Join(layout.PDFDir, entry.Name()+".pdf")); err == nil && st.Mode().IsRegular() && st.Size() > 0 {
				dir.Complete = true
			}
		}
		dirs = append(dirs, dir)
	}

	return dirs, nil
}

// isReserved reports whether dir is, or contains, a reserved path.
func isReserved(dir string, reserved []string) bool {
	for _, path := range reserved {
		if dir == path || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func dirSize(path string) (int64, int) {
	var size int64
	var files int
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
			files++
		}
		return nil
	})
	return size, files
}
