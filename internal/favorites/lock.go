package favorites

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"folio/internal/services"
)

const lockRetryDelay = 20 * time.Millisecond

type recordLock struct {
	mu   sync.Mutex
	file *flock.Flock
}

var locks = struct {
	sync.Mutex
	byPath map[string]*recordLock
}{byPath: make(map[string]*recordLock)}

// lockFor returns the lock shared by every Store opened on path.
func lockFor(path string) *recordLock {
	locks.Lock()
	defer locks.Unlock()
	l, ok := locks.byPath[path]
	if !ok {
		l = &recordLock{file: flock.New(path + ".lock")}
		locks.byPath[path] = l
	}
	return l
}

// withLock runs fn while holding the record lock. Read-only callers skip the
// file lock when the record's directory does not exist yet, so reads never
// create directories.
func (s *Store) withLock(ctx context.Context, write bool, fn func() error) error {
	s.lock.mu.Lock()
	defer s.lock.mu.Unlock()

	dir := filepath.Dir(s.path)
	if !write {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			return fn()
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "favorites", "create directory", dir, err)
	}

	locked, err := s.lock.file.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrStorage, "favorites", "lock record", s.path, err)
	}
	if !locked {
		return services.Wrap(services.ErrStorage, "favorites", "lock record", s.path+" is locked by another process", nil)
	}
	defer func() {
		_ = s.lock.file.Unlock()
	}()
	return fn()
}
