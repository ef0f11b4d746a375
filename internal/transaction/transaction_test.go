package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/config"
	"github.com/blackwell-systems/pkgbridge/internal/export"
	"github.com/blackwell-systems/pkgbridge/internal/history"
	"github.com/blackwell-systems/pkgbridge/internal/snapshot"
	"github.com/blackwell-systems/pkgbridge/internal/state"
)

// fakeBoxRunner simulates one debian box whose inventory changes when the
// package manager runs.
type fakeBoxRunner struct {
	inventory string
	files     map[string]string // package -> owned-files listing
	desktops  map[string]string // in-box path -> content

	pmExit int
	onPM   func(r *fakeBoxRunner)
	pmRuns int
}

func (f *fakeBoxRunner) Output(ctx context.Context, box, command string) ([]byte, error) {
	// The real runner goes through exec.CommandContext, which refuses to
	// start once the context is done.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(command, "dpkg-query"):
		return []byte(f.inventory), nil
	case strings.HasPrefix(command, "dpkg -L"):
		for pkg, listing := range f.files {
			if strings.Contains(command, "'"+pkg+"'") {
				return []byte(listing), nil
			}
		}
		return nil, fmt.Errorf("package not installed")
	case strings.HasPrefix(command, "cat "):
		for path, content := range f.desktops {
			if strings.Contains(command, "'"+path+"'") {
				return []byte(content), nil
			}
		}
		return nil, fmt.Errorf("no such file")
	case strings.HasPrefix(command, "command -v"):
		return nil, fmt.Errorf("not found")
	}
	return nil, fmt.Errorf("unexpected command %q", command)
}

func (f *fakeBoxRunner) Run(ctx context.Context, box string, elev boxes.Elevation, argv []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if len(argv) == 1 && argv[0] == "true" {
		// Elevation probe.
		return 0, nil
	}
	f.pmRuns++
	if f.onPM != nil {
		f.onPM(f)
	}
	return f.pmExit, nil
}

func (f *fakeBoxRunner) Alive(ctx context.Context, box string) bool { return true }

func testOptions(t *testing.T, r boxes.Runner) Options {
	t.Helper()
	base := t.TempDir()
	store, err := state.Open(filepath.Join(base, "state"))
	if err != nil {
		t.Fatalf("opening state store: %v", err)
	}
	return Options{
		Store: store,
		Config: &config.Config{
			Defaults:        map[string]string{},
			LockWaitSeconds: 0,
			BinDir:          filepath.Join(base, "bin"),
			ApplicationsDir: filepath.Join(base, "apps"),
		},
		Runner: r,
		Stdout: io.Discard,
		Stderr: io.Discard,
	}
}

func debBox() boxes.Box {
	return boxes.Box{Name: "deb", Family: boxes.FamilyDebian}
}

func TestRunExportsNewPackage(t *testing.T) {
	r := &fakeBoxRunner{
		inventory: "bash\t5.2\n",
		files:     map[string]string{"ripgrep": "/usr/bin/rg\n/usr/share/doc/ripgrep/README\n"},
		onPM: func(r *fakeBoxRunner) {
			r.inventory = "bash\t5.2\nripgrep\t14.0\n"
		},
	}
	opts := testOptions(t, r)

	report, err := Run(context.Background(), opts, debBox(), []string{"apt", "install", "ripgrep"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Phase != PhaseCommitted || report.ExitCode != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Diff) != 1 || report.Diff[0].Package != "ripgrep" {
		t.Fatalf("diff = %+v", report.Diff)
	}
	if len(report.Results) != 1 || report.Results[0].Outcome != export.OutcomeExported {
		t.Fatalf("results = %+v", report.Results)
	}

	if _, err := os.Stat(filepath.Join(opts.Config.BinDir, "rg")); err != nil {
		t.Errorf("shim not materialized: %v", err)
	}

	current, _ := snapshot.Load(opts.Store.SnapshotPath("deb"))
	if current == nil || len(current.Packages) != 2 {
		t.Errorf("current snapshot not promoted: %+v", current)
	}
	if _, err := os.Stat(opts.Store.PendingSnapshotPath("deb")); !os.IsNotExist(err) {
		t.Error("pending baseline should be removed after commit")
	}
}

func TestRunPartialPMFailureStillExports(t *testing.T) {
	r := &fakeBoxRunner{
		inventory: "",
		files:     map[string]string{"good": "/usr/bin/good\n"},
		pmExit:    100,
		onPM: func(r *fakeBoxRunner) {
			// One of two requested packages made it in before the failure.
			r.inventory = "good\t1.0\n"
		},
	}
	opts := testOptions(t, r)

	report, err := Run(context.Background(), opts, debBox(), []string{"apt", "install", "good", "bad"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.ExitCode != 100 {
		t.Errorf("exit code = %d, want 100", report.ExitCode)
	}
	if code, ok := IsPackageManagerFailure(report.PMErr); !ok || code != 100 {
		t.Errorf("PMErr = %v", report.PMErr)
	}
	if len(report.Results) != 1 || report.Results[0].Outcome != export.OutcomeExported {
		t.Errorf("partial success must still export: %+v", report.Results)
	}
	if report.Phase != PhaseCommitted {
		t.Errorf("phase = %v, want committed", report.Phase)
	}
}

func TestInterruptedRunKeepsBaseline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeBoxRunner{
		inventory: "bash\t5.2\n",
		files:     map[string]string{"ripgrep": "/usr/bin/rg\n"},
		onPM: func(r *fakeBoxRunner) {
			r.inventory = "bash\t5.2\nripgrep\t14.0\n"
			cancel()
		},
	}
	opts := testOptions(t, r)

	report, err := Run(ctx, opts, debBox(), []string{"apt", "install", "ripgrep"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Phase != PhaseAborted {
		t.Fatalf("phase = %v, want aborted", report.Phase)
	}
	// Best-effort export still happened.
	if len(report.Results) != 1 {
		t.Errorf("interrupt should still export best-effort: %+v", report.Results)
	}
	// Baseline survives so the retry re-diffs the same gap.
	pending, _ := snapshot.Load(opts.Store.PendingSnapshotPath("deb"))
	if pending == nil {
		t.Fatal("pending baseline must survive an interrupted run")
	}
	if current, _ := snapshot.Load(opts.Store.SnapshotPath("deb")); current != nil {
		t.Error("interrupted run must not promote the snapshot")
	}

	// The retry reuses the surviving baseline and commits.
	report2, err := Run(context.Background(), opts, debBox(), []string{"apt", "install", "ripgrep"})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if report2.Phase != PhaseCommitted || len(report2.Diff) != 1 {
		t.Errorf("retry should re-diff the same gap and commit: %+v", report2)
	}
}

func TestRunCapturesBaselineLive(t *testing.T) {
	r := &fakeBoxRunner{
		inventory: "bash\t5.2\n",
		files:     map[string]string{"jq": "/usr/bin/jq\n"},
	}
	opts := testOptions(t, r)

	if _, err := Run(context.Background(), opts, debBox(), []string{"apt", "update"}); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// jq arrives out of band, e.g. installed by hand inside the box. The
	// next transaction's baseline must include it, not inherit the stale
	// committed snapshot and claim jq as its own change.
	r.inventory = "bash\t5.2\njq\t1.7\n"

	report, err := Run(context.Background(), opts, debBox(), []string{"apt", "update"})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(report.Diff) != 0 {
		t.Errorf("out-of-band install attributed to an unrelated transaction: %+v", report.Diff)
	}
	if _, err := os.Stat(filepath.Join(opts.Config.BinDir, "jq")); !os.IsNotExist(err) {
		t.Error("out-of-band install must not be exported")
	}
}

func TestTwoPhaseSnapshotThenPostTransaction(t *testing.T) {
	r := &fakeBoxRunner{
		inventory: "bash\t5.2\n",
		files:     map[string]string{"jq": "/usr/bin/jq\n"},
	}
	opts := testOptions(t, r)
	box := debBox()

	if err := PreTransaction(context.Background(), opts, box); err != nil {
		t.Fatalf("PreTransaction failed: %v", err)
	}
	if pending, _ := snapshot.Load(opts.Store.PendingSnapshotPath("deb")); pending == nil {
		t.Fatal("pending baseline not persisted")
	}

	// The package manager runs out of band between the two phases.
	r.inventory = "bash\t5.2\njq\t1.7\n"

	report, err := PostTransaction(context.Background(), opts, box)
	if err != nil {
		t.Fatalf("PostTransaction failed: %v", err)
	}
	if report.Phase != PhaseCommitted {
		t.Fatalf("phase = %v", report.Phase)
	}
	if len(report.Diff) != 1 || report.Diff[0].Package != "jq" {
		t.Errorf("diff = %+v", report.Diff)
	}
	if _, err := os.Stat(filepath.Join(opts.Config.BinDir, "jq")); err != nil {
		t.Errorf("shim not materialized: %v", err)
	}
}

func TestPostTransactionWithoutBaseline(t *testing.T) {
	opts := testOptions(t, &fakeBoxRunner{})
	if _, err := PostTransaction(context.Background(), opts, debBox()); err == nil {
		t.Error("expected error without a pending baseline")
	}
}

func TestRunFailsFastOnHeldLock(t *testing.T) {
	opts := testOptions(t, &fakeBoxRunner{inventory: "bash\t5.2\n"})

	held, err := opts.Store.AcquireBoxLock("deb", 0)
	if err != nil {
		t.Fatalf("setup lock failed: %v", err)
	}
	defer held.Release()

	_, err = Run(context.Background(), opts, debBox(), []string{"apt", "upgrade"})
	if !errors.Is(err, state.ErrLockContention) {
		t.Errorf("expected lock contention, got %v", err)
	}
}

func TestRunNoChangesCommitsCleanly(t *testing.T) {
	r := &fakeBoxRunner{inventory: "bash\t5.2\n"}
	opts := testOptions(t, r)

	report, err := Run(context.Background(), opts, debBox(), []string{"apt", "upgrade"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Phase != PhaseCommitted || len(report.Diff) != 0 || len(report.Results) != 0 {
		t.Errorf("no-op transaction mishandled: %+v", report)
	}
}

func TestRunRecordsJournal(t *testing.T) {
	r := &fakeBoxRunner{
		inventory: "bash\t5.2\n",
		files:     map[string]string{"ripgrep": "/usr/bin/rg\n"},
		onPM: func(r *fakeBoxRunner) {
			r.inventory = "bash\t5.2\nripgrep\t14.0\n"
		},
	}
	opts := testOptions(t, r)
	j, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	defer j.Close()
	opts.Journal = j

	if _, err := Run(context.Background(), opts, debBox(), []string{"apt", "install", "ripgrep"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	txs, err := j.ListTransactions("deb", 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Changed != 1 || txs[0].Exported != 1 {
		t.Fatalf("journal rows = %+v", txs)
	}
	events, err := j.EventsFor(txs[0].ID)
	if err != nil || len(events) != 1 || events[0].Outcome != "exported" {
		t.Errorf("events = %+v, err = %v", events, err)
	}
}
