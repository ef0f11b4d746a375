// Package transaction drives one package-manager run end to end: snapshot
// the box, run the package manager, diff, scan, and export what changed.
//
// The pipeline is a linear state machine. The per-box lock is held from
// Snapshotting through Committed or Aborted so concurrent runs against one
// box serialize; runs against different boxes are independent. The baseline
// snapshot is staged as a pending file and the committed snapshot is promoted
// only at the end, so an aborted or interrupted run re-diffs from the same
// baseline on retry.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/config"
	"github.com/blackwell-systems/pkgbridge/internal/export"
	"github.com/blackwell-systems/pkgbridge/internal/history"
	"github.com/blackwell-systems/pkgbridge/internal/logging"
	"github.com/blackwell-systems/pkgbridge/internal/scanner"
	"github.com/blackwell-systems/pkgbridge/internal/snapshot"
	"github.com/blackwell-systems/pkgbridge/internal/state"
)

// Phase is one state of the transaction machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSnapshotting
	PhaseExecuting
	PhaseDiffing
	PhaseScanning
	PhaseResolving
	PhaseExporting
	PhaseCommitted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSnapshotting:
		return "snapshotting"
	case PhaseExecuting:
		return "executing"
	case PhaseDiffing:
		return "diffing"
	case PhaseScanning:
		return "scanning"
	case PhaseResolving:
		return "resolving"
	case PhaseExporting:
		return "exporting"
	case PhaseCommitted:
		return "committed"
	default:
		return "aborted"
	}
}

// PackageManagerError reports a non-zero package-manager exit. It does not
// abort the pipeline; partial successes still get exported, and the final
// process exit mirrors this code.
type PackageManagerError struct {
	ExitCode int
}

func (e *PackageManagerError) Error() string {
	return fmt.Sprintf("package manager exited with code %d", e.ExitCode)
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Store  *state.Store
	Config *config.Config
	Runner boxes.Runner
	// Journal is optional; nil disables history recording.
	Journal *history.Journal

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) lockWait() time.Duration {
	return time.Duration(o.Config.LockWaitSeconds) * time.Second
}

// Report is the outcome of one transaction.
type Report struct {
	Box        string
	Phase      Phase
	ExitCode   int
	Diff       snapshot.Diff
	Results    []export.Result
	ScanErrors []error
	// PMErr is the *PackageManagerError when the package manager failed.
	PMErr error
}

// Summary tallies the export results.
func (r *Report) Summary() export.Summary {
	return export.Summarize(r.Results)
}

// Run executes a full transaction in one process: the path taken by the
// generated shims. argv is the package-manager command line, e.g.
// ["apt", "install", "ripgrep"].
func Run(ctx context.Context, opts Options, box boxes.Box, argv []string) (*Report, error) {
	log := logging.GetLogger("transaction")
	started := time.Now().UTC()

	lock, err := opts.Store.AcquireBoxLock(box.Name, opts.lockWait())
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	baseline, err := begin(ctx, opts, box)
	if err != nil {
		return &Report{Box: box.Name, Phase: PhaseAborted}, err
	}

	exitCode, pmErr := execute(ctx, opts, box, argv)
	log.Debug().Str("box", box.Name).Int("exit_code", exitCode).Msg("package manager finished")

	// An interrupt during Executing still gets a best-effort export pass,
	// but the baseline is not promoted so a retry re-diffs the same gap.
	// The cancelled context would refuse to start the inventory query and
	// every later subprocess, so the export pass runs detached from it.
	interrupted := ctx.Err() != nil
	finishCtx := ctx
	if interrupted {
		finishCtx = context.WithoutCancel(ctx)
	}
	report, err := finish(finishCtx, opts, box, baseline, !interrupted)
	if err != nil {
		return report, err
	}

	report.ExitCode = exitCode
	report.PMErr = pmErr
	if interrupted {
		report.Phase = PhaseAborted
	}
	journal(opts, box, argv, report, started)
	return report, nil
}

// PreTransaction is the first half of the two-phase path (`pm snapshot`):
// capture and persist the baseline, then release the lock so the package
// manager can run in between. The pending file carries the baseline to
// PostTransaction.
func PreTransaction(ctx context.Context, opts Options, box boxes.Box) error {
	lock, err := opts.Store.AcquireBoxLock(box.Name, opts.lockWait())
	if err != nil {
		return err
	}
	defer lock.Release()

	_, err = begin(ctx, opts, box)
	return err
}

// PostTransaction is the second half (`pm post-transaction`): resume from the
// persisted baseline and run Diffing through Committed.
func PostTransaction(ctx context.Context, opts Options, box boxes.Box) (*Report, error) {
	started := time.Now().UTC()

	lock, err := opts.Store.AcquireBoxLock(box.Name, opts.lockWait())
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	baseline, err := snapshot.Load(opts.Store.PendingSnapshotPath(box.Name))
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, fmt.Errorf("no pending baseline for box %s; run `pkgbridge pm snapshot` first", box.Name)
	}

	report, err := finish(ctx, opts, box, baseline, true)
	if err != nil {
		return report, err
	}
	journal(opts, box, nil, report, started)
	return report, nil
}

// begin captures the transaction baseline. An existing pending file is a
// prior run that never committed; it is reused verbatim so the interrupted
// gap is still diffed.
func begin(ctx context.Context, opts Options, box boxes.Box) (*snapshot.Snapshot, error) {
	log := logging.GetLogger("transaction")

	pendingPath := opts.Store.PendingSnapshotPath(box.Name)
	if pending, err := snapshot.Load(pendingPath); err == nil && pending != nil {
		log.Info().Str("box", box.Name).Msg("reusing baseline from interrupted transaction")
		return pending, nil
	}

	// The baseline is always captured live, never read back from the last
	// committed snapshot: packages installed out of band inside the box must
	// not be attributed to the next unrelated transaction.
	prior, err := snapshot.Capture(ctx, opts.Runner, box)
	if err != nil {
		return nil, err
	}
	if err := snapshot.Save(pendingPath, prior); err != nil {
		return nil, err
	}
	return prior, nil
}

// execute streams the package manager live. Elevation is probed once per run.
func execute(ctx context.Context, opts Options, box boxes.Box, argv []string) (int, error) {
	elev := boxes.ResolveElevation(ctx, opts.Runner, box.Name)
	code, err := opts.Runner.Run(ctx, box.Name, elev, argv, opts.Stdin, opts.Stdout, opts.Stderr)
	if err != nil {
		return -1, err
	}
	if code != 0 {
		return code, &PackageManagerError{ExitCode: code}
	}
	return 0, nil
}

// finish runs Diffing through Committed (or stops short of promotion when
// promote is false). Per-artifact failures are collected, never fatal.
func finish(ctx context.Context, opts Options, box boxes.Box, baseline *snapshot.Snapshot, promote bool) (*Report, error) {
	report := &Report{Box: box.Name, Phase: PhaseDiffing}

	current, err := snapshot.Capture(ctx, opts.Runner, box)
	if err != nil {
		report.Phase = PhaseAborted
		return report, err
	}
	report.Diff = snapshot.Compute(baseline, current)
	if len(report.Diff) == 0 {
		return commit(opts, box, current, report, promote)
	}

	report.Phase = PhaseScanning
	artifacts, scanErrs := scanner.Scan(ctx, opts.Runner, box, report.Diff)
	report.ScanErrors = scanErrs

	report.Phase = PhaseExporting
	exportsLock, err := opts.Store.AcquireExportsLock(opts.lockWait())
	if err != nil {
		report.Phase = PhaseAborted
		return report, err
	}
	defer exportsLock.Release()

	records := opts.Store.LoadExports()
	exporter := export.New(opts.Config.HostBinDir(), opts.Config.HostApplicationsDir(), records, opts.Runner)
	report.Results = exporter.ExportAll(ctx, artifacts)
	if err := opts.Store.SaveExports(records); err != nil {
		report.Phase = PhaseAborted
		return report, err
	}

	return commit(opts, box, current, report, promote)
}

// commit promotes the current snapshot and clears the pending baseline.
func commit(opts Options, box boxes.Box, current *snapshot.Snapshot, report *Report, promote bool) (*Report, error) {
	if !promote {
		report.Phase = PhaseAborted
		return report, nil
	}
	if err := snapshot.Save(opts.Store.SnapshotPath(box.Name), current); err != nil {
		report.Phase = PhaseAborted
		return report, err
	}
	if err := os.Remove(opts.Store.PendingSnapshotPath(box.Name)); err != nil && !os.IsNotExist(err) {
		report.Phase = PhaseAborted
		return report, err
	}
	report.Phase = PhaseCommitted
	return report, nil
}

// journal records the transaction best-effort; a journal failure never
// disturbs the transaction outcome.
func journal(opts Options, box boxes.Box, argv []string, report *Report, started time.Time) {
	if opts.Journal == nil {
		return
	}
	log := logging.GetLogger("transaction")

	summary := report.Summary()
	id, err := opts.Journal.RecordTransaction(history.Transaction{
		Box:        box.Name,
		Command:    history.CommandString(argv),
		ExitCode:   report.ExitCode,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Changed:    len(report.Diff),
		Exported:   summary.Exported + summary.Refreshed + summary.Collided,
		Skipped:    summary.Skipped,
	})
	if err != nil {
		log.Warn().Err(err).Msg("journal write failed")
		return
	}
	for _, res := range report.Results {
		ev := history.ExportEvent{
			TransactionID: id,
			HostPath:      res.HostPath,
			Package:       res.Artifact.Package,
			Kind:          res.Artifact.Kind.String(),
			Outcome:       res.Outcome.String(),
		}
		if err := opts.Journal.RecordExportEvent(ev); err != nil {
			log.Warn().Err(err).Msg("journal event write failed")
		}
	}
}

// IsPackageManagerFailure extracts the package-manager exit code from an
// error chain.
func IsPackageManagerFailure(err error) (int, bool) {
	var pmErr *PackageManagerError
	if errors.As(err, &pmErr) {
		return pmErr.ExitCode, true
	}
	return 0, false
}
