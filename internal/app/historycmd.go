package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pkgbridge/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [transaction-id]",
	Short: "Show past transactions and what they exported",
	Long: `Without arguments, lists recent transactions (newest first). With a
transaction id, shows the per-artifact export events of that transaction.
Filter to one box with --container.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of transactions to show")
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	j := env.openJournal()
	if j == nil {
		return fmt.Errorf("transaction journal unavailable")
	}
	defer j.Close()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid transaction id %q", args[0])
		}
		events, err := j.EventsFor(id)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Printf("No export events for transaction %d.\n", id)
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%-10s %-20s %-8s %s\n", ev.Outcome, ev.Package, ev.Kind, ev.HostPath)
		}
		return nil
	}

	txs, err := j.ListTransactions(flagContainer, historyLimit)
	if err != nil {
		return err
	}
	fmt.Print(output.RenderHistoryTable(txs))
	return nil
}
