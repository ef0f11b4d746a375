package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pkgbridge/internal/export"
	"github.com/blackwell-systems/pkgbridge/internal/output"
	"github.com/blackwell-systems/pkgbridge/internal/scanner"
	"github.com/blackwell-systems/pkgbridge/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export <package>",
	Short: "Export an installed package's commands and launchers to the host",
	Long: `Exports the binaries and desktop launchers of a package that is
already installed in the box. Useful when a package predates pkgbridge or
when an export was removed by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var unexportCmd = &cobra.Command{
	Use:   "unexport <package>",
	Short: "Remove a package's exports from the host",
	Long: `Deletes the host files pkgbridge exported for a package and their
records. Files the user has since modified are left in place; only their
records are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnexport,
}

func init() {
	RootCmd.AddCommand(exportCmd)
	RootCmd.AddCommand(unexportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	pkg := args[0]
	env, err := newEnv()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	box, err := env.requireContainerBox(ctx)
	if err != nil {
		return err
	}

	// Treat the one package as freshly installed and run the scan+export
	// tail of a transaction against it.
	diff := snapshot.Diff{{Package: pkg, Kind: snapshot.KindNew}}
	artifacts, scanErrs := scanner.Scan(ctx, env.Runner, box, diff)
	if len(scanErrs) > 0 {
		return fmt.Errorf("package %s not found in box %s: %w", pkg, box.Name, scanErrs[0])
	}
	if len(artifacts) == 0 {
		fmt.Printf("Package %s has no exportable binaries or launchers.\n", pkg)
		return nil
	}

	lock, err := env.Store.AcquireExportsLock(env.lockWait())
	if err != nil {
		return err
	}
	defer lock.Release()

	records := env.Store.LoadExports()
	exporter := export.New(env.Config.HostBinDir(), env.Config.HostApplicationsDir(), records, env.Runner)
	results := exporter.ExportAll(ctx, artifacts)
	if err := env.Store.SaveExports(records); err != nil {
		return err
	}

	fmt.Print(output.RenderExportResults(results))
	return nil
}

func runUnexport(cmd *cobra.Command, args []string) error {
	pkg := args[0]
	env, err := newEnv()
	if err != nil {
		return err
	}
	box, err := env.requireContainerBox(cmd.Context())
	if err != nil {
		return err
	}

	lock, err := env.Store.AcquireExportsLock(env.lockWait())
	if err != nil {
		return err
	}
	defer lock.Release()

	records := env.Store.LoadExports()
	exporter := export.New(env.Config.HostBinDir(), env.Config.HostApplicationsDir(), records, env.Runner)
	removed, err := exporter.Unexport(box.Name, pkg)
	if err != nil {
		return err
	}
	if err := env.Store.SaveExports(records); err != nil {
		return err
	}

	for _, path := range removed {
		fmt.Printf("removed %s\n", path)
	}
	return nil
}
