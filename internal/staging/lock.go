package staging

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"avpackaging/internal/services"
)

// ErrLocked reports that another run holds the refid lock.
var ErrLocked = errors.New("refid is locked by another run")

// Lock is an exclusive claim on one refid's working paths.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the refid lock without blocking.
func (l Layout) Acquire(refID string) (*Lock, error) {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "acquire lock", l.Root, err)
	}
	path := l.LockPath(refID)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "acquire lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "", "acquire lock", fmt.Sprintf("%s is held", path), ErrLocked)
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		_ = fl.Unlock()
		return nil, services.Wrap(services.ErrConfiguration, "", "acquire lock", path, err)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Release unlocks the refid. The lock file stays in place: removing it while
// another process has it open would let two runs lock different inodes at the
// same path. CleanStale removes lock files that are old and unheld.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// held reports whether a live process holds refID's lock.
func (l Layout) held(refID string) bool {
	path := l.LockPath(refID)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil || !ok {
		return true
	}
	_ = fl.Unlock()
	return false
}
