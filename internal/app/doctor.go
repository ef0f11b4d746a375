package app

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common setup problems",
	Long: `Runs diagnostic checks on the pkgbridge installation.

Checks:
  • distrobox is installed and reachable
  • the state directory is writable
  • the export bin directory is on PATH
  • configured default boxes exist and are classifiable
  • package-manager shims resolve to pkgbridge-shim`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running pkgbridge diagnostics...")
	fmt.Println()

	criticalIssues := 0
	warningIssues := 0
	ctx := cmd.Context()

	// Check 1: distrobox available
	if _, err := exec.LookPath("distrobox"); err != nil {
		fmt.Println("✗ distrobox not found on PATH")
		fmt.Println("  Action: install distrobox (https://distrobox.it)")
		criticalIssues++
	} else {
		fmt.Println("✓ distrobox found")
	}

	// Check 2: state directory
	env, err := newEnv()
	if err != nil {
		fmt.Println("✗ State directory not writable:", err)
		criticalIssues++
	} else {
		fmt.Println("✓ State directory:", env.Store.Dir())
	}

	if env != nil {
		// Check 3: export bin dir on PATH
		binDir := env.Config.HostBinDir()
		onPath := false
		for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
			if dir == binDir {
				onPath = true
				break
			}
		}
		if onPath {
			fmt.Println("✓ Export bin directory is on PATH:", binDir)
		} else {
			fmt.Println("⚠ Export bin directory not on PATH:", binDir)
			fmt.Printf("  Action: add 'export PATH=\"%s:$PATH\"' to your shell profile\n", binDir)
			warningIssues++
		}

		// Check 4: configured default boxes
		if len(env.Config.Defaults) == 0 {
			fmt.Println("⚠ No family defaults configured")
			fmt.Println("  Action: run 'pkgbridge pm set-default <family> <box>'")
			warningIssues++
		} else {
			for fam, boxName := range env.Config.Defaults {
				if !env.Runner.Alive(ctx, boxName) {
					fmt.Printf("✗ Default box for %s (%s) is not reachable\n", fam, boxName)
					criticalIssues++
					continue
				}
				detected, err := boxes.Classify(ctx, env.Runner, boxName)
				if err != nil || detected.String() != fam {
					fmt.Printf("⚠ Box %s does not look like a %s box\n", boxName, fam)
					warningIssues++
					continue
				}
				fmt.Printf("✓ Default box for %s: %s\n", fam, boxName)
			}
		}

		// Check 5: shims resolve to pkgbridge-shim
		checkShims(env, &warningIssues)
	}

	fmt.Println()
	switch {
	case criticalIssues > 0:
		return fmt.Errorf("%d critical issue(s) found", criticalIssues)
	case warningIssues > 0:
		fmt.Printf("%d warning(s); pkgbridge will work but setup is incomplete.\n", warningIssues)
		return nil
	default:
		fmt.Println("All checks passed.")
		return nil
	}
}

func checkShims(env *Env, warningIssues *int) {
	binDir := env.Config.HostBinDir()
	missing := []string{}
	for fam := range env.Config.Defaults {
		family, err := boxes.ParseFamily(fam)
		if err != nil {
			continue
		}
		// The collision policy may have installed the suffixed variant
		// instead of the plain name; either counts.
		suffix := "-" + boxes.SanitizeName(env.Config.Defaults[fam])
		for _, manager := range family.Managers() {
			if shimInstalled(binDir, manager) || shimInstalled(binDir, manager+suffix) {
				continue
			}
			missing = append(missing, manager)
		}
	}
	if len(missing) > 0 {
		fmt.Printf("⚠ Shims missing or not pkgbridge's: %s\n", strings.Join(missing, ", "))
		fmt.Println("  Action: run 'pkgbridge pm generate-shims'")
		*warningIssues++
	} else if len(env.Config.Defaults) > 0 {
		fmt.Println("✓ Package-manager shims in place")
	}
}

func shimInstalled(binDir, name string) bool {
	target, err := os.Readlink(filepath.Join(binDir, name))
	return err == nil && strings.HasSuffix(target, "pkgbridge-shim")
}
