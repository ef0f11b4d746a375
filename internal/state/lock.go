package state

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockContention reports that another transaction holds the requested
// scope and the caller asked to fail fast (or the bounded wait expired).
var ErrLockContention = errors.New("another pkgbridge transaction holds the lock")

const lockPollEvery = 100 * time.Millisecond

// Lock is a held advisory file lock. Release it exactly once.
type Lock struct {
	file *os.File
}

// AcquireBoxLock takes the exclusive per-box transaction lock. wait bounds
// how long to poll for it; zero means a single non-blocking attempt.
func (s *Store) AcquireBoxLock(box string, wait time.Duration) (*Lock, error) {
	return acquire(s.boxLockPath(box), wait)
}

// AcquireExportsLock takes the global lock covering the shared host export
// directories. Two boxes exporting the same base name concurrently serialize
// here; the second sees the first's records and falls back accordingly.
func (s *Store) AcquireExportsLock(wait time.Duration) (*Lock, error) {
	return acquire(s.exportsLockPath(), wait)
}

func acquire(path string, wait time.Duration) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	deadline := time.Now().Add(wait)
	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{file: file}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
			file.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		if wait == 0 || time.Now().After(deadline) {
			file.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrLockContention)
		}
		time.Sleep(lockPollEvery)
	}
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}
