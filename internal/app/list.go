package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List boxes and their package-manager families",
	Long: `Lists every distrobox container with its detected family (debian,
fedora, opensuse, arch). The family decides which package manager pkgbridge
speaks inside the box and which shims bind to it.`,
	RunE: runList,
}

func init() {
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	discovered, err := boxes.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovering boxes: %w", err)
	}

	classified := make([]boxes.Box, 0, len(discovered))
	for _, b := range discovered {
		if b.Family == boxes.FamilyUnknown && env.Runner.Alive(ctx, b.Name) {
			if fam, err := boxes.Classify(ctx, env.Runner, b.Name); err == nil {
				b.Family = fam
			}
		}
		classified = append(classified, b)
	}

	fmt.Print(output.RenderBoxTable(classified))
	return nil
}
