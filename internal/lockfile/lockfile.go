// Package lockfile enforces that only one governor process manages a given
// set of cgroups at a time: two instances racing to write cpu.max for the
// same workload would violate determinism (G1) just as surely as a buggy
// policy would.
package lockfile

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyLocked is returned by Acquire when another process already
// holds the lock.
var ErrAlreadyLocked = errors.New("lockfile: already held by another process")

// Lock wraps an exclusive, non-blocking file lock.
type Lock struct {
	flock *flock.Flock
}

// Acquire attempts to take an exclusive lock on path without blocking. The
// lock file is created if it does not exist.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lockfile: acquire %q: %w", path, err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, path)
	}

	return &Lock{flock: fl}, nil
}

// Release gives up the lock. It is safe to call on a nil *Lock.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("lockfile: release %q: %w", l.flock.Path(), err)
	}

	return nil
}
