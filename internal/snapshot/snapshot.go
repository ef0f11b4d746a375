// Package snapshot captures and diffs a box's installed-package inventory.
//
// A Snapshot is the normalized inventory at one point in time: entries sorted
// lexicographically by package name so two snapshots of an unchanged system
// serialize identically. Exactly one committed snapshot exists per box at
// rest; transactions stage a pending baseline beside it and promote only on
// success.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/state"
)

// ErrUnavailable reports that the inventory could not be captured: the box is
// unreachable or its query command failed. This is fatal for the enclosing
// transaction; no partial snapshot is ever persisted.
var ErrUnavailable = errors.New("snapshot unavailable")

// PackageVersion is one inventory entry.
type PackageVersion struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Snapshot is the full inventory of one box, ordered by package name.
type Snapshot struct {
	Box      string           `toml:"box"`
	TakenAt  time.Time        `toml:"taken_at"`
	Packages []PackageVersion `toml:"packages"`
}

// Capture queries the box's full package inventory with the family's query
// command and normalizes it to sorted order.
func Capture(ctx context.Context, r boxes.Runner, box boxes.Box) (*Snapshot, error) {
	cmd := box.Family.InventoryCommand()
	if cmd == "" {
		return nil, fmt.Errorf("box %s has no known package manager: %w", box.Name, ErrUnavailable)
	}

	out, err := r.Output(ctx, box.Name, cmd)
	if err != nil {
		return nil, fmt.Errorf("querying inventory of %s: %w: %v", box.Name, ErrUnavailable, err)
	}

	snap := &Snapshot{
		Box:      box.Name,
		TakenAt:  time.Now().UTC(),
		Packages: parseInventory(string(out)),
	}
	return snap, nil
}

// parseInventory parses "name\tversion" lines into sorted entries. Lines
// without a tab are tolerated as versionless packages; blanks are skipped.
func parseInventory(out string) []PackageVersion {
	var pkgs []PackageVersion
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, version, _ := strings.Cut(line, "\t")
		if name == "" {
			continue
		}
		pkgs = append(pkgs, PackageVersion{Name: name, Version: version})
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs
}

// Load reads a snapshot file. A missing file returns (nil, nil): callers
// treat that as "no prior state", i.e. an empty baseline. A corrupt file is
// handled the same way, per the state-corruption policy.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := toml.Unmarshal(data, &snap); err != nil {
		return nil, nil
	}
	sort.Slice(snap.Packages, func(i, j int) bool { return snap.Packages[i].Name < snap.Packages[j].Name })
	return &snap, nil
}

// Save persists the snapshot atomically.
func Save(path string, snap *Snapshot) error {
	data, err := toml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot for %s: %w", snap.Box, err)
	}
	if err := state.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", snap.Box, err)
	}
	return nil
}
