package snapshot

import "sort"

// ChangeKind classifies one diff entry.
type ChangeKind int

const (
	// KindNew marks a package absent from the prior snapshot.
	KindNew ChangeKind = iota
	// KindUpgraded marks a package whose version string changed.
	KindUpgraded
)

func (k ChangeKind) String() string {
	if k == KindUpgraded {
		return "upgraded"
	}
	return "new"
}

// Change is one package that appeared or changed version between snapshots.
type Change struct {
	Package string
	Kind    ChangeKind
	Version string // version in the current snapshot
}

// Diff is the set of changes, sorted by package name.
type Diff []Change

// Compute diffs two snapshots. It is a pure function of its inputs: packages
// in current but not prior are new, differing versions are upgraded,
// identical versions are omitted. Packages that disappeared (or were
// downgraded to absence) are omitted — export is additive, never destructive.
func Compute(prior, current *Snapshot) Diff {
	before := make(map[string]string, len(prior.Packages))
	for _, p := range prior.Packages {
		before[p.Name] = p.Version
	}

	var diff Diff
	for _, p := range current.Packages {
		prev, ok := before[p.Name]
		switch {
		case !ok:
			diff = append(diff, Change{Package: p.Name, Kind: KindNew, Version: p.Version})
		case prev != p.Version:
			diff = append(diff, Change{Package: p.Name, Kind: KindUpgraded, Version: p.Version})
		}
	}

	sort.Slice(diff, func(i, j int) bool { return diff[i].Package < diff[j].Package })
	return diff
}
