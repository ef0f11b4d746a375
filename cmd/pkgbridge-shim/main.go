// Command pkgbridge-shim is the package-manager interceptor the host PATH
// shims point at. `pkgbridge pm generate-shims` symlinks apt, dnf, zypper and
// friends to this binary; which manager was invoked is read from argv[0].
//
// One invocation is one full transaction: snapshot the bound box, run the
// real package manager inside it with the user's arguments streamed live,
// diff the inventory, and export the new binaries and launchers to the host.
// The process exits with the package manager's own exit code; the export
// summary prints afterwards on stderr so it never corrupts piped output.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/config"
	"github.com/blackwell-systems/pkgbridge/internal/history"
	"github.com/blackwell-systems/pkgbridge/internal/logging"
	"github.com/blackwell-systems/pkgbridge/internal/output"
	"github.com/blackwell-systems/pkgbridge/internal/state"
	"github.com/blackwell-systems/pkgbridge/internal/transaction"
)

func main() {
	logging.Setup(0)

	manager, boxOverride := parseInvocation(filepath.Base(os.Args[0]))
	if manager == "pkgbridge-shim" {
		fmt.Fprintln(os.Stderr, "pkgbridge-shim: invoke through a package-manager symlink (apt, dnf, zypper, pacman)")
		os.Exit(1)
	}

	family := boxes.FamilyForManager(manager)
	if family == boxes.FamilyUnknown {
		fmt.Fprintf(os.Stderr, "pkgbridge-shim: %q is not a known package manager\n", manager)
		os.Exit(1)
	}

	cfg := config.Load()
	store, err := state.Open("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pkgbridge-shim: %v\n", err)
		os.Exit(1)
	}

	// SIGINT cancels the context; the orchestrator finishes best-effort and
	// leaves the baseline in place for a retry.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boxName := boxOverride
	if boxName == "" {
		boxName = cfg.Defaults[family.String()]
	}
	box, err := boxes.Select(ctx, boxes.NewRunner(), family, boxName, false, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pkgbridge-shim: %v\n", err)
		fmt.Fprintf(os.Stderr, "hint: bind a box with 'pkgbridge pm set-default %s <box>'\n", family)
		os.Exit(1)
	}

	opts := transaction.Options{
		Store:  store,
		Config: cfg,
		Runner: boxes.NewRunner(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	opts.Journal = openJournal(store)
	if opts.Journal != nil {
		defer opts.Journal.Close()
	}

	argv := append([]string{manager}, os.Args[1:]...)
	report, err := transaction.Run(ctx, opts, box, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pkgbridge-shim: %v\n", err)
		os.Exit(1)
	}

	if len(report.Diff) > 0 {
		fmt.Fprint(os.Stderr, output.RenderExportResults(report.Results))
	}
	for _, scanErr := range report.ScanErrors {
		fmt.Fprintf(os.Stderr, "pkgbridge-shim: warning: %v\n", scanErr)
	}

	// The user's command is the package manager; mirror its exit code.
	os.Exit(report.ExitCode)
}

// openJournal is best-effort; a broken journal never blocks an install.
func openJournal(store *state.Store) *history.Journal {
	j, err := history.Open(store.HistoryPath())
	if err != nil {
		return nil
	}
	return j
}

// parseInvocation splits an argv[0] base name into the manager command and
// an optional box override: "apt" targets the configured default, while a
// collision-suffixed shim like "apt-deb-work" pins the box it was exported
// for.
func parseInvocation(name string) (manager, box string) {
	if boxes.FamilyForManager(name) != boxes.FamilyUnknown || name == "pkgbridge-shim" {
		return name, ""
	}
	for candidate := name; ; {
		i := strings.LastIndex(candidate, "-")
		if i < 0 {
			return name, ""
		}
		candidate = candidate[:i]
		if boxes.FamilyForManager(candidate) != boxes.FamilyUnknown {
			return candidate, name[len(candidate)+1:]
		}
	}
}
