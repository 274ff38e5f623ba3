package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"folio/internal/acquire"
	"folio/internal/services"
)

const (
	defaultRecentLimit = 20
	// timeLayout is fixed-width so started_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one recorded acquisition.
type Entry struct {
	ID            int64         `json:"id"`
	WorkID        string        `json:"work_id"`
	Title         string        `json:"title"`
	ArtifactPath  string        `json:"artifact_path,omitempty"`
	Succeeded     bool          `json:"succeeded"`
	Reused        bool          `json:"reused"`
	Pages         int           `json:"pages"`
	FailureKind   string        `json:"failure_kind,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

// Summary aggregates the recorded acquisitions.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Store manages acquisition history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "open", "create directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "open", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrStorage, "history", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrStorage, "history", "migrate", path, err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordAcquisition implements acquire.Recorder.
func (s *Store) RecordAcquisition(ctx context.Context, res acquire.Result) error {
	started := res.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO acquisitions (
            work_id, title, artifact_path, succeeded, reused, pages,
            failure_kind, failure_reason, request_id, started_at, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(),
		res.Title,
		nullableString(res.ArtifactPath),
		boolToInt(res.Succeeded),
		boolToInt(res.Reused),
		res.Pages,
		nullableString(res.FailureKind),
		nullableString(res.FailureReason),
		nullableString(res.RequestID),
		started.UTC().Format(timeLayout),
		res.Duration.Milliseconds(),
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "history", "record acquisition", res.ID.String(), err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, work_id, title, artifact_path, succeeded, reused, pages,
            failure_kind, failure_reason, request_id, started_at, duration_ms
        FROM acquisitions ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "query recent", "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "history", "scan entry", "", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "iterate entries", "", err)
	}
	return entries, nil
}

// LastSuccess returns the newest successful acquisition of workID.
func (s *Store) LastSuccess(ctx context.Context, workID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, work_id, title, artifact_path, succeeded, reused, pages,
            failure_kind, failure_reason, request_id, started_at, duration_ms
        FROM acquisitions WHERE work_id = ? AND succeeded = 1
        ORDER BY started_at DESC, id DESC LIMIT 1`,
		workID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, services.Wrap(services.ErrStorage, "history", "last success", workID, err)
	}
	return entry, true, nil
}

// Summary counts recorded acquisitions by outcome.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1), COALESCE(SUM(succeeded), 0) FROM acquisitions`,
	).Scan(&sum.Total, &sum.Succeeded)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrStorage, "history", "summary", "", err)
	}
	sum.Failed = sum.Total - sum.Succeeded
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry                             Entry
		artifact, kind, reason, requestID sql.NullString
		succeeded, reused                 int
		started                           string
		durationMS                        int64
	)
	if err := row.Scan(
		&entry.ID,
		&entry.WorkID,
		&entry.Title,
		&artifact,
		&succeeded,
		&reused,
		&entry.Pages,
		&kind,
		&reason,
		&requestID,
		&started,
		&durationMS,
	); err != nil {
		return Entry{}, err
	}
	entry.ArtifactPath = artifact.String
	entry.FailureKind = kind.String
	entry.FailureReason = reason.String
	entry.RequestID = requestID.String
	entry.Succeeded = succeeded != 0
	entry.Reused = reused != 0
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	if ts, err := time.Parse(timeLayout, started); err == nil {
		entry.StartedAt = ts
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
