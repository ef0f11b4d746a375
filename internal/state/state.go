// Package state is the durable store for pkgbridge's mutable state: the
// per-box current snapshot, the export-record set, and the advisory locks
// that serialize transactions.
//
// Everything lives under the XDG state directory (~/.local/state/pkgbridge).
// All files are TOML, written via temp-file + atomic rename so a reader never
// observes a half-written file. Corrupt or missing state is treated as empty
// state with a warning, never as a fatal error.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Store resolves paths and owns the lock files for one state directory.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating the directory layout.
// An empty dir selects the default XDG state location.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(xdg.StateHome, "pkgbridge")
	}
	for _, sub := range []string{"", "snapshots", "locks"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory root.
func (s *Store) Dir() string {
	return s.dir
}

// SnapshotPath is the current (committed) snapshot for a box.
func (s *Store) SnapshotPath(box string) string {
	return filepath.Join(s.dir, "snapshots", box+".toml")
}

// PendingSnapshotPath is the transaction baseline captured at Snapshotting.
// It outlives an aborted transaction so a retry re-diffs from the same
// baseline, and is removed on commit.
func (s *Store) PendingSnapshotPath(box string) string {
	return filepath.Join(s.dir, "snapshots", box+".pending.toml")
}

// ExportsPath is the export-record set shared by all boxes.
func (s *Store) ExportsPath() string {
	return filepath.Join(s.dir, "exports.toml")
}

// HistoryPath is the sqlite transaction journal.
func (s *Store) HistoryPath() string {
	return filepath.Join(s.dir, "history.db")
}

func (s *Store) boxLockPath(box string) string {
	return filepath.Join(s.dir, "locks", box+".lock")
}

func (s *Store) exportsLockPath() string {
	return filepath.Join(s.dir, "locks", "exports.lock")
}
