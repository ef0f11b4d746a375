// Package export materializes box artifacts onto the host.
//
// Binaries become small sh wrappers in the host bin directory; desktop
// entries are copied with their Exec lines rewritten to launch through the
// box. Name collisions with files pkgbridge does not own fall back to a
// box-suffixed name, and if that is taken too the artifact is skipped. The
// host's own files are never overwritten.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/logging"
	"github.com/blackwell-systems/pkgbridge/internal/scanner"
	"github.com/blackwell-systems/pkgbridge/internal/state"
)

// Outcome classifies what happened to one artifact.
type Outcome int

const (
	// OutcomeExported is a fresh export to a previously unclaimed host path.
	OutcomeExported Outcome = iota
	// OutcomeRefreshed rewrote an export pkgbridge already owned whose
	// content changed.
	OutcomeRefreshed
	// OutcomeUnchanged found an identical export already in place.
	OutcomeUnchanged
	// OutcomeCollided exported under the box-suffixed fallback name.
	OutcomeCollided
	// OutcomeSkipped could not export: both the direct and fallback names
	// are taken by files pkgbridge does not own.
	OutcomeSkipped
	// OutcomeFailed hit an I/O or box error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExported:
		return "exported"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeCollided:
		return "collided"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result reports the disposition of one artifact.
type Result struct {
	Artifact scanner.Artifact
	Outcome  Outcome
	HostPath string
	Err      error
}

// Exporter writes artifacts into the host export directories and keeps the
// export records in step. Callers hold the exports lock around any batch of
// Export/Unexport calls and persist Records afterwards.
type Exporter struct {
	BinDir  string
	AppsDir string
	Records *state.Records
	Runner  boxes.Runner

	now func() time.Time
}

// New returns an Exporter writing into binDir and appsDir.
func New(binDir, appsDir string, records *state.Records, r boxes.Runner) *Exporter {
	return &Exporter{BinDir: binDir, AppsDir: appsDir, Records: records, Runner: r, now: time.Now}
}

// ExportAll exports every artifact, collecting per-artifact results. A failed
// artifact never stops the rest.
func (e *Exporter) ExportAll(ctx context.Context, artifacts []scanner.Artifact) []Result {
	results := make([]Result, 0, len(artifacts))
	for _, a := range artifacts {
		results = append(results, e.Export(ctx, a))
	}
	return results
}

// Export materializes one artifact on the host.
func (e *Exporter) Export(ctx context.Context, a scanner.Artifact) Result {
	log := logging.GetLogger("export")

	content, err := e.render(ctx, a)
	if err != nil {
		return Result{Artifact: a, Outcome: OutcomeFailed, Err: err}
	}

	target, outcome := e.resolve(a, content)
	if outcome == OutcomeSkipped {
		log.Warn().Str("box", a.Box).Str("package", a.Package).Str("artifact", a.Name()).
			Msg("direct and fallback names both taken; skipping")
		return Result{Artifact: a, Outcome: OutcomeSkipped}
	}

	if outcome != OutcomeUnchanged {
		mode := os.FileMode(0o644)
		if a.Kind == scanner.KindBinary {
			mode = 0o755
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return Result{Artifact: a, Outcome: OutcomeFailed, HostPath: target, Err: err}
		}
		if err := state.WriteFileAtomic(target, content, mode); err != nil {
			return Result{Artifact: a, Outcome: OutcomeFailed, HostPath: target, Err: err}
		}
	}

	e.Records.Upsert(state.ExportRecord{
		HostPath:    target,
		Box:         a.Box,
		Package:     a.Package,
		Kind:        recordKind(a.Kind),
		SourcePath:  a.Path,
		ContentHash: hashContent(content),
		ExportedAt:  e.now().UTC(),
	})

	log.Info().Str("box", a.Box).Str("package", a.Package).
		Str("host_path", target).Stringer("outcome", outcome).Msg("export resolved")
	return Result{Artifact: a, Outcome: outcome, HostPath: target}
}

// render produces the exact host bytes for the artifact.
func (e *Exporter) render(ctx context.Context, a scanner.Artifact) ([]byte, error) {
	switch a.Kind {
	case scanner.KindBinary:
		return BinShim(a.Box, a.Name()), nil
	case scanner.KindDesktop:
		raw, err := fetchDesktop(ctx, e.Runner, a.Box, a.Path)
		if err != nil {
			return nil, err
		}
		return []byte(RewriteExec(string(raw), a.Box)), nil
	default:
		return nil, fmt.Errorf("unknown artifact kind %v", a.Kind)
	}
}

// resolve picks the host path and outcome for an artifact. It tries the
// direct name first, then the box-suffixed fallback; a name counts as ours
// only when an ExportRecord maps it to the same (box, source path) origin.
func (e *Exporter) resolve(a scanner.Artifact, content []byte) (string, Outcome) {
	direct := e.hostPath(a, false)
	switch e.claim(direct, a) {
	case claimOurs:
		return direct, e.freshness(direct, content)
	case claimFree:
		return direct, OutcomeExported
	}

	fallback := e.hostPath(a, true)
	switch e.claim(fallback, a) {
	case claimOurs:
		return fallback, e.freshness(fallback, content)
	case claimFree:
		return fallback, OutcomeCollided
	}
	return "", OutcomeSkipped
}

// hostPath derives the host file name. The fallback embeds the sanitized box
// name: `foo-<box>` for binaries, `foo.<box>.desktop` for launchers.
func (e *Exporter) hostPath(a scanner.Artifact, fallback bool) string {
	name := a.Name()
	if a.Kind == scanner.KindDesktop {
		if fallback {
			stem := strings.TrimSuffix(name, ".desktop")
			name = stem + "." + boxes.SanitizeName(a.Box) + ".desktop"
		}
		return filepath.Join(e.AppsDir, name)
	}
	if fallback {
		name = name + "-" + boxes.SanitizeName(a.Box)
	}
	return filepath.Join(e.BinDir, name)
}

type claimState int

const (
	claimFree claimState = iota
	claimOurs
	claimForeign
)

// claim classifies a host path: free, claimed by this artifact's own origin,
// or owned by someone else (another export record or an unrelated host file).
func (e *Exporter) claim(path string, a scanner.Artifact) claimState {
	if rec := e.Records.ByHostPath(path); rec != nil {
		if rec.Box == a.Box && rec.SourcePath == a.Path {
			return claimOurs
		}
		return claimForeign
	}
	if _, err := os.Lstat(path); err == nil {
		return claimForeign
	}
	return claimFree
}

// freshness compares the on-disk bytes with what we would write.
func (e *Exporter) freshness(path string, content []byte) Outcome {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return OutcomeUnchanged
	}
	return OutcomeRefreshed
}

func recordKind(k scanner.ArtifactKind) string {
	if k == scanner.KindDesktop {
		return state.KindDesktop
	}
	return state.KindBin
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Summary tallies a result set for display.
type Summary struct {
	Exported  int
	Refreshed int
	Unchanged int
	Collided  int
	Skipped   int
	Failed    int
}

// Summarize folds results into counts.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Outcome {
		case OutcomeExported:
			s.Exported++
		case OutcomeRefreshed:
			s.Refreshed++
		case OutcomeUnchanged:
			s.Unchanged++
		case OutcomeCollided:
			s.Collided++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		}
	}
	return s
}

// Total returns the number of artifacts summarized.
func (s Summary) Total() int {
	return s.Exported + s.Refreshed + s.Unchanged + s.Collided + s.Skipped + s.Failed
}
