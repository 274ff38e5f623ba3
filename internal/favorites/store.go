package favorites

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/workid"
)

const recordVersion = 1

// AddResult reports the outcome of Add.
type AddResult struct {
	ID             workid.ID `json:"id"`
	AlreadyPresent bool      `json:"already_present"`
	Total          int       `json:"total"`
}

// RemoveResult reports the outcome of Remove.
type RemoveResult struct {
	ID         workid.ID `json:"id"`
	WasPresent bool      `json:"was_present"`
	Total      int       `json:"total"`
}

// Listing is a snapshot of the favorites set. Warning is non-nil when the
// record was unreadable or held invalid entries; IDs then reflect what could
// be recovered.
type Listing struct {
	IDs     []workid.ID `json:"ids"`
	Warning error       `json:"-"`
}

// Store reads and writes one favorites record.
type Store struct {
	path   string
	lock   *recordLock
	logger *slog.Logger
}

type record struct {
	Version int               `json:"version"`
	IDs     []json.RawMessage `json:"ids"`
}

type snapshot struct {
	ids     []workid.ID
	corrupt error
	warning error
}

// Open returns a store for the record at path. The record is created lazily
// on the first insert.
func Open(path string, logger *slog.Logger) *Store {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return &Store{
		path:   abs,
		lock:   lockFor(abs),
		logger: logging.NewComponentLogger(logger, "favorites"),
	}
}

// Path returns the absolute path of the record.
func (s *Store) Path() string {
	return s.path
}

// Add inserts raw into the set. Adding a present id leaves the record as is
// and reports AlreadyPresent.
func (s *Store) Add(ctx context.Context, raw string) (AddResult, error) {
	id, err := workid.Parse(raw)
	if err != nil {
		return AddResult{}, err
	}
	res := AddResult{ID: id}
	err = s.withLock(ctx, true, func() error {
		snap, err := s.load(ctx)
		if err != nil {
			return err
		}
		if slices.Contains(snap.ids, id) {
			res.AlreadyPresent = true
			res.Total = len(snap.ids)
			return nil
		}
		ids := append(snap.ids, id)
		if err := s.save(ctx, ids, snap.corrupt != nil); err != nil {
			return err
		}
		res.Total = len(ids)
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	logging.WithContext(ctx, s.logger).Debug("favorite added",
		logging.String(logging.FieldWorkID, id.String()),
		logging.Bool("already_present", res.AlreadyPresent),
		logging.Int("total", res.Total),
	)
	return res, nil
}

// Remove deletes raw from the set. Removing an absent id leaves the record as
// is and reports WasPresent=false.
func (s *Store) Remove(ctx context.Context, raw string) (RemoveResult, error) {
	id, err := workid.Parse(raw)
	if err != nil {
		return RemoveResult{}, err
	}
	res := RemoveResult{ID: id}
	err = s.withLock(ctx, true, func() error {
		snap, err := s.load(ctx)
		if err != nil {
			return err
		}
		idx := slices.Index(snap.ids, id)
		if idx < 0 {
			res.Total = len(snap.ids)
			return nil
		}
		ids := slices.Delete(snap.ids, idx, idx+1)
		if err := s.save(ctx, ids, snap.corrupt != nil); err != nil {
			return err
		}
		res.WasPresent = true
		res.Total = len(ids)
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	logging.WithContext(ctx, s.logger).Debug("favorite removed",
		logging.String(logging.FieldWorkID, id.String()),
		logging.Bool("was_present", res.WasPresent),
		logging.Int("total", res.Total),
	)
	return res, nil
}

// List returns the ids in insertion order. A missing record yields an empty
// listing.
func (s *Store) List(ctx context.Context) (Listing, error) {
	var listing Listing
	err := s.withLock(ctx, false, func() error {
		snap, err := s.load(ctx)
		if err != nil {
			return err
		}
		listing.IDs = snap.ids
		listing.Warning = snap.corrupt
		if listing.Warning == nil {
			listing.Warning = snap.warning
		}
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	if listing.IDs == nil {
		listing.IDs = []workid.ID{}
	}
	return listing, nil
}

// PickRandom returns a uniformly chosen member of the set.
func (s *Store) PickRandom(ctx context.Context) (workid.ID, error) {
	listing, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(listing.IDs) == 0 {
		return "", services.Wrap(services.ErrEmptyCollection, "favorites", "pick random", "no favorites saved", nil)
	}
	return listing.IDs[rand.IntN(len(listing.IDs))], nil
}

// load reads the record. Structural damage is reported in snapshot.corrupt,
// never as an error; only I/O failures are returned.
func (s *Store) load(ctx context.Context) (snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snapshot{}, nil
		}
		return snapshot{}, services.Wrap(services.ErrStorage, "favorites", "read record", s.path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return snapshot{}, nil
	}

	entries, err := decodeRecord(data)
	if err != nil {
		corrupt := services.Wrap(services.ErrPersistenceCorrupted, "favorites", "decode record", s.path, err)
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "favorites record unreadable", "favorites_corrupted",
			logging.String("path", s.path),
			logging.String(logging.FieldErrorHint, "the record will be moved to "+s.path+".corrupt on the next change"),
			logging.String(logging.FieldImpact, "favorites treated as empty"),
			logging.Error(err),
		)
		return snapshot{corrupt: corrupt}, nil
	}

	snap := snapshot{ids: make([]workid.ID, 0, len(entries))}
	dropped := 0
	for _, entry := range entries {
		id, err := workid.Parse(entry)
		if err != nil {
			dropped++
			continue
		}
		if !slices.Contains(snap.ids, id) {
			snap.ids = append(snap.ids, id)
		}
	}
	if dropped > 0 {
		snap.warning = services.Wrap(
			services.ErrPersistenceCorrupted,
			"favorites",
			"decode record",
			fmt.Sprintf("dropped %d invalid entries from %s", dropped, s.path),
			nil,
		)
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "invalid favorites entries ignored", "favorites_invalid_entries",
			logging.Int("dropped", dropped),
			logging.String(logging.FieldErrorHint, "entries must be digit strings"),
			logging.String(logging.FieldImpact, "invalid entries are removed on the next change"),
		)
	}
	return snap, nil
}

// decodeRecord accepts the versioned object layout or a bare array. Entries
// may be JSON strings or integers.
func decodeRecord(data []byte) ([]string, error) {
	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		if rec.Version > recordVersion {
			return nil, fmt.Errorf("unsupported record version %d", rec.Version)
		}
		if rec.IDs == nil {
			return nil, errors.New("record has no ids field")
		}
		raw = rec.IDs
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n.String())
			continue
		}
		out = append(out, string(item))
	}
	return out, nil
}

func (s *Store) save(ctx context.Context, ids []workid.ID, quarantine bool) error {
	if quarantine {
		backup := s.path + ".corrupt"
		if err := os.Rename(s.path, backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrStorage, "favorites", "quarantine record", s.path, err)
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "moved unreadable favorites record aside", "favorites_quarantined",
			logging.String("backup", backup),
			logging.String(logging.FieldErrorHint, "inspect the backup to recover ids manually"),
			logging.String(logging.FieldImpact, "a fresh favorites record was started"),
		)
	}

	rec := struct {
		Version int         `json:"version"`
		IDs     []workid.ID `json:"ids"`
	}{Version: recordVersion, IDs: ids}
	if rec.IDs == nil {
		rec.IDs = []workid.ID{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "favorites", "encode record", s.path, err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "favorites", "write record", s.path, err)
	}
	return nil
}
