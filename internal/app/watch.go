package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pkgbridge/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep export records in sync with the export directories",
		Long: `Watches the host export directories and drops the record of any
export the user deletes or replaces, so stale entries never accumulate. Runs
in the foreground by default; --daemon detaches it.

The watcher never deletes or rewrites host files. It only reconciles
pkgbridge's own records.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  pkgbridge watch

  # Run as background daemon
  pkgbridge watch --daemon

  # Stop the daemon
  pkgbridge watch --stop`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: <state-dir>/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: <state-dir>/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop the running daemon")
	watchCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	if watchPIDFile == "" {
		watchPIDFile = filepath.Join(env.Store.Dir(), "watch.pid")
	}
	if watchLogFile == "" {
		watchLogFile = filepath.Join(env.Store.Dir(), "watch.log")
	}

	if watchStop {
		if err := watcher.StopDaemon(watchPIDFile); err != nil {
			return err
		}
		fmt.Println("Watcher daemon stopped.")
		return nil
	}

	w, err := watcher.New(env.Store, env.Config.HostBinDir(), env.Config.HostApplicationsDir(), env.lockWait())
	if err != nil {
		return err
	}

	switch {
	case watchDaemon:
		if err := w.StartDaemon(watchPIDFile, watchLogFile); err != nil {
			return err
		}
		fmt.Printf("Watcher daemon started (PID file: %s).\n", watchPIDFile)
		return nil
	case watchDaemonChild:
		return w.RunDaemon(watchPIDFile)
	default:
		if err := w.Start(); err != nil {
			return err
		}
		fmt.Println("Watching export directories. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh
		return w.Stop()
	}
}
