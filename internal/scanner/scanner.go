// Package scanner finds the exportable artifacts a set of changed packages
// installed inside a box.
//
// For each changed package it asks the box's package manager which files the
// package owns, then keeps only the two artifact classes pkgbridge bridges to
// the host: executables under /usr/bin and desktop entries under
// /usr/share/applications.
package scanner

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/logging"
	"github.com/blackwell-systems/pkgbridge/internal/snapshot"
)

// ArtifactKind distinguishes the two exportable classes.
type ArtifactKind int

const (
	// KindBinary is an executable under /usr/bin.
	KindBinary ArtifactKind = iota
	// KindDesktop is a .desktop entry under /usr/share/applications.
	KindDesktop
)

func (k ArtifactKind) String() string {
	if k == KindDesktop {
		return "desktop"
	}
	return "binary"
}

// Artifact is one exportable file owned by a changed package.
type Artifact struct {
	Box     string
	Package string
	Kind    ArtifactKind
	// Path is the file's absolute path inside the box.
	Path string
}

// Name returns the artifact's base name (the command name or the .desktop
// file name).
func (a Artifact) Name() string {
	return path.Base(a.Path)
}

const (
	binPrefix     = "/usr/bin/"
	desktopPrefix = "/usr/share/applications/"
)

// Scan resolves the artifacts for every package in diff. Failures are
// per-package, not fatal: a package that vanished between diff and scan (or
// whose file query fails) contributes nothing, and the error is collected for
// reporting. Results are sorted by path for stable output.
func Scan(ctx context.Context, r boxes.Runner, box boxes.Box, diff snapshot.Diff) ([]Artifact, []error) {
	log := logging.GetLogger("scanner")

	var artifacts []Artifact
	var errs []error
	for _, change := range diff {
		cmd := box.Family.OwnedFilesCommand(change.Package)
		if cmd == "" {
			errs = append(errs, fmt.Errorf("package %s: no file-listing command for box %s", change.Package, box.Name))
			continue
		}

		out, err := r.Output(ctx, box.Name, cmd)
		if err != nil {
			log.Warn().Str("box", box.Name).Str("package", change.Package).Err(err).
				Msg("file listing failed; skipping package")
			errs = append(errs, fmt.Errorf("package %s: listing files: %w", change.Package, err))
			continue
		}

		found := filterArtifacts(box.Name, change.Package, string(out))
		log.Debug().Str("box", box.Name).Str("package", change.Package).
			Int("artifacts", len(found)).Msg("scanned package")
		artifacts = append(artifacts, found...)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Path < artifacts[j].Path })
	return artifacts, errs
}

// filterArtifacts keeps the exportable subset of a package's file list.
// Directories and files nested below the watched roots are excluded; only a
// direct child of /usr/bin or a .desktop file directly under
// /usr/share/applications qualifies.
func filterArtifacts(box, pkg, listing string) []Artifact {
	var out []Artifact
	for _, line := range strings.Split(listing, "\n") {
		p := strings.TrimSpace(line)
		if p == "" {
			continue
		}
		switch {
		case strings.HasPrefix(p, binPrefix):
			rest := p[len(binPrefix):]
			if rest == "" || strings.Contains(rest, "/") {
				continue
			}
			out = append(out, Artifact{Box: box, Package: pkg, Kind: KindBinary, Path: p})
		case strings.HasPrefix(p, desktopPrefix):
			rest := p[len(desktopPrefix):]
			if rest == "" || strings.Contains(rest, "/") || !strings.HasSuffix(rest, ".desktop") {
				continue
			}
			out = append(out, Artifact{Box: box, Package: pkg, Kind: KindDesktop, Path: p})
		}
	}
	return out
}
