package app

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/config"
	"github.com/blackwell-systems/pkgbridge/internal/output"
	"github.com/blackwell-systems/pkgbridge/internal/transaction"
)

var pmCmd = &cobra.Command{
	Use:   "pm",
	Short: "Package-manager bindings and transaction phases",
	Long: `Manages the binding between package-manager commands (apt, dnf, zypper,
pacman) and boxes, and exposes the two transaction phases that the generated
shims run around the real package manager.`,
}

var pmSetDefaultCmd = &cobra.Command{
	Use:   "set-default <family> <box>",
	Short: "Bind a family's package managers to a box",
	Args:  cobra.ExactArgs(2),
	RunE:  runPMSetDefault,
}

var pmShowDefaultsCmd = &cobra.Command{
	Use:   "show-defaults",
	Short: "Show the family→box bindings",
	RunE:  runPMShowDefaults,
}

var pmGenerateShimsCmd = &cobra.Command{
	Use:   "generate-shims",
	Short: "Put package-manager shims on the host PATH",
	Long: `Creates a symlink per package-manager command (apt, apt-get, dnf,
zypper, pacman) pointing at the pkgbridge-shim binary. Invoking a shim runs
the full transaction against the bound box: snapshot, package manager, diff,
export.

Only families with a configured default box get shims; bind one first with
'pkgbridge pm set-default'.`,
	RunE: runPMGenerateShims,
}

var pmSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the pre-transaction baseline for a box",
	Long: `Captures the box's package inventory and stages it as the pending
transaction baseline. Run the package manager however you like afterwards,
then 'pkgbridge pm post-transaction' to export what changed.`,
	RunE: runPMSnapshot,
}

var pmPostTransactionCmd = &cobra.Command{
	Use:   "post-transaction",
	Short: "Diff against the staged baseline and export the changes",
	RunE:  runPMPostTransaction,
}

func init() {
	pmCmd.AddCommand(pmSetDefaultCmd)
	pmCmd.AddCommand(pmShowDefaultsCmd)
	pmCmd.AddCommand(pmGenerateShimsCmd)
	pmCmd.AddCommand(pmSnapshotCmd)
	pmCmd.AddCommand(pmPostTransactionCmd)
	RootCmd.AddCommand(pmCmd)
}

func runPMSetDefault(cmd *cobra.Command, args []string) error {
	family, err := boxes.ParseFamily(args[0])
	if err != nil {
		return err
	}
	boxName := args[1]

	env, err := newEnv()
	if err != nil {
		return err
	}
	if !env.Runner.Alive(cmd.Context(), boxName) {
		fmt.Fprintf(os.Stderr, "warning: box %s is not currently reachable\n", boxName)
	}

	env.Config.Defaults[family.String()] = boxName
	cfgPath := flagConfigPath
	if cfgPath == "" {
		cfgPath = config.Path()
	}
	if err := config.Save(cfgPath, env.Config); err != nil {
		return err
	}
	fmt.Printf("%s commands now run in box %s\n", family, boxName)
	return nil
}

func runPMShowDefaults(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	if len(env.Config.Defaults) == 0 {
		fmt.Println("No defaults configured. Bind one with 'pkgbridge pm set-default <family> <box>'.")
		return nil
	}

	families := make([]string, 0, len(env.Config.Defaults))
	for fam := range env.Config.Defaults {
		families = append(families, fam)
	}
	sort.Strings(families)
	for _, fam := range families {
		family, err := boxes.ParseFamily(fam)
		managers := ""
		if err == nil {
			for i, m := range family.Managers() {
				if i > 0 {
					managers += ", "
				}
				managers += m
			}
		}
		fmt.Printf("%-10s → %-16s (%s)\n", fam, env.Config.Defaults[fam], managers)
	}
	return nil
}

func runPMGenerateShims(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	if len(env.Config.Defaults) == 0 {
		return fmt.Errorf("no defaults configured; run 'pkgbridge pm set-default <family> <box>' first")
	}

	shimBin, err := locateShimBinary()
	if err != nil {
		return err
	}

	binDir := env.Config.HostBinDir()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}

	created := 0
	for fam := range env.Config.Defaults {
		family, err := boxes.ParseFamily(fam)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: unknown family %q in config; skipping\n", fam)
			continue
		}
		if flagFamily != "" && flagFamily != fam {
			continue
		}
		boxName := env.Config.Defaults[fam]
		for _, manager := range family.Managers() {
			link := filepath.Join(binDir, manager)

			// Never shadow a tool the host itself provides: a Fedora host
			// keeps its native dnf and gets dnf-<box> instead. The plain
			// name also stays untouched when something else already owns it.
			reason := ""
			switch {
			case hostHasManager(manager, binDir):
				reason = fmt.Sprintf("host already has %s", manager)
			case ownShim(link, shimBin):
				continue
			case entryExists(link):
				reason = fmt.Sprintf("%s exists", link)
			}
			if reason != "" {
				link = filepath.Join(binDir, manager+"-"+boxes.SanitizeName(boxName))
				if ownShim(link, shimBin) {
					continue
				}
				if entryExists(link) {
					fmt.Fprintf(os.Stderr, "warning: %s exists and is not a pkgbridge shim; skipping\n", link)
					continue
				}
			}
			if err := os.Symlink(shimBin, link); err != nil {
				return fmt.Errorf("linking %s: %w", link, err)
			}
			if reason != "" {
				fmt.Printf("%s; linked %s → %s\n", reason, link, shimBin)
			} else {
				fmt.Printf("linked %s → %s\n", link, shimBin)
			}
			created++
		}
	}
	if created == 0 {
		fmt.Println("All shims already in place.")
	}
	return nil
}

// lookPathFn is a test seam: shim collision checks must be testable without
// crafting the test process's PATH.
var lookPathFn = exec.LookPath

// hostHasManager reports whether the host provides manager outside binDir. A
// hit inside binDir is one of our own shims, not a host tool.
func hostHasManager(manager, binDir string) bool {
	found, err := lookPathFn(manager)
	if err != nil {
		return false
	}
	// Resolve directories only: our shims are symlinks pointing out of
	// binDir, and a PATH hit on one of them is not a host tool.
	foundDir := filepath.Dir(found)
	if resolved, err := filepath.EvalSymlinks(foundDir); err == nil {
		foundDir = resolved
	}
	if resolved, err := filepath.EvalSymlinks(binDir); err == nil {
		binDir = resolved
	}
	return foundDir != binDir
}

// ownShim reports whether link is already a symlink to our shim binary.
func ownShim(link, shimBin string) bool {
	existing, err := os.Readlink(link)
	return err == nil && existing == shimBin
}

func entryExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// locateShimBinary finds pkgbridge-shim next to the running binary, falling
// back to PATH.
func locateShimBinary() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "pkgbridge-shim")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if found, err := lookPathFn("pkgbridge-shim"); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("pkgbridge-shim binary not found next to pkgbridge or on PATH")
}

func runPMSnapshot(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	box, err := env.requireContainerBox(cmd.Context())
	if err != nil {
		return err
	}

	opts := env.transactionOptions(nil, liveStdio())
	if err := transaction.PreTransaction(cmd.Context(), opts, box); err != nil {
		return err
	}
	fmt.Printf("Baseline captured for box %s.\n", box.Name)
	return nil
}

func runPMPostTransaction(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	box, err := env.requireContainerBox(cmd.Context())
	if err != nil {
		return err
	}

	j := env.openJournal()
	if j != nil {
		defer j.Close()
	}

	report, err := transaction.PostTransaction(cmd.Context(), env.transactionOptions(j, liveStdio()), box)
	if err != nil {
		return err
	}

	fmt.Print(output.RenderDiffTable(report.Diff))
	if len(report.Diff) > 0 {
		fmt.Print(output.RenderExportResults(report.Results))
	}
	for _, scanErr := range report.ScanErrors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", scanErr)
	}
	return nil
}
