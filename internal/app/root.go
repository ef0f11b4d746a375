// Package app implements the pkgbridge CLI.
package app

import (
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pkgbridge/internal/logging"
)

var (
	flagContainer   string
	flagFamily      string
	flagCreate      bool
	flagCreateImage string
	flagNoWait      bool
	flagStateDir    string
	flagConfigPath  string
	verbosity       int

	// RootCmd is the root command for pkgbridge.
	RootCmd = &cobra.Command{
		Use:   "pkgbridge",
		Short: "Bridge native packages from distrobox containers to the host",
		Long: `pkgbridge installs packages inside distrobox containers ("boxes") and
exports what they provide onto the host: commands land in ~/.local/bin as
thin wrappers, desktop launchers land in ~/.local/share/applications with
their Exec lines routed through the box.

The usual flow:
  1. pkgbridge list                        # see your boxes and their families
  2. pkgbridge pm set-default debian deb   # bind apt/apt-get to a box
  3. pkgbridge pm generate-shims           # put apt, dnf, ... on your PATH
  4. apt install ripgrep                   # runs in the box; rg appears on the host

Every shim invocation is a transaction: snapshot, run the package manager,
diff, export what changed. Nothing on the host is ever overwritten; name
collisions fall back to box-suffixed names like rg-deb.

Examples:
  # Install inside an explicit box
  pkgbridge pm snapshot --container deb && distrobox enter deb -- sudo apt install -y jq && pkgbridge pm post-transaction --container deb

  # Re-export one package's artifacts
  pkgbridge export ripgrep --container deb

  # See what past transactions did
  pkgbridge history`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(verbosity)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&flagContainer, "container", "c", "", "target box by name")
	RootCmd.PersistentFlags().StringVar(&flagFamily, "family", "", "target box by family (debian, fedora, opensuse, arch)")
	RootCmd.PersistentFlags().BoolVar(&flagCreate, "create", false, "create the box if no matching one exists")
	RootCmd.PersistentFlags().StringVar(&flagCreateImage, "create-image", "", "image for --create (default: family image)")
	RootCmd.PersistentFlags().BoolVar(&flagNoWait, "no-wait", false, "fail immediately if another transaction holds the lock")
	RootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "state directory (default: ~/.local/state/pkgbridge)")
	RootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default: ~/.config/pkgbridge/config.toml)")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
	RootCmd.PersistentFlags().MarkHidden("state-dir")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
