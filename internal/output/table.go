// Package output renders pkgbridge's terminal output: box listings, diff
// and export summaries, and the transaction history table.
//
// Tables are plain ASCII with ANSI colors when stdout is a terminal; NO_COLOR
// disables color unconditionally.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/export"
	"github.com/blackwell-systems/pkgbridge/internal/history"
	"github.com/blackwell-systems/pkgbridge/internal/snapshot"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderBoxTable renders the discovered boxes with their classification.
func RenderBoxTable(list []boxes.Box) string {
	if len(list) == 0 {
		return "No boxes found. Create one with `distrobox create`.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-20s %-10s %-10s %s\n", "Box", "Family", "Runtime", "Image"))
	sb.WriteString(strings.Repeat("─", 78))
	sb.WriteString("\n")

	for _, b := range list {
		family := b.Family.String()
		if b.Family == boxes.FamilyUnknown {
			family = colorize(colorGray, family)
		}
		sb.WriteString(fmt.Sprintf("%-20s %-10s %-10s %s\n",
			truncate(b.Name, 20), family, truncate(b.Runtime, 10), truncate(b.Image, 36)))
	}
	return sb.String()
}

// RenderDiffTable renders the package changes of one transaction.
func RenderDiffTable(diff snapshot.Diff) string {
	if len(diff) == 0 {
		return "No package changes.\n"
	}

	var sb strings.Builder
	for _, change := range diff {
		marker := colorize(colorGreen, "+")
		if change.Kind == snapshot.KindUpgraded {
			marker = colorize(colorYellow, "^")
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", marker, change.Package, change.Version))
	}
	return sb.String()
}

// RenderExportResults renders one line per artifact disposition plus a
// summary footer.
func RenderExportResults(results []export.Result) string {
	if len(results) == 0 {
		return "Nothing to export.\n"
	}

	var sb strings.Builder
	for _, res := range results {
		switch res.Outcome {
		case export.OutcomeExported, export.OutcomeRefreshed:
			sb.WriteString(fmt.Sprintf("  %s %s → %s\n",
				colorize(colorGreen, "✓"), res.Artifact.Name(), res.HostPath))
		case export.OutcomeCollided:
			sb.WriteString(fmt.Sprintf("  %s %s → %s (name collision)\n",
				colorize(colorYellow, "~"), res.Artifact.Name(), res.HostPath))
		case export.OutcomeUnchanged:
			sb.WriteString(fmt.Sprintf("  %s %s (unchanged)\n",
				colorize(colorGray, "="), res.Artifact.Name()))
		case export.OutcomeSkipped:
			sb.WriteString(fmt.Sprintf("  %s %s (skipped: name taken)\n",
				colorize(colorRed, "!"), res.Artifact.Name()))
		case export.OutcomeFailed:
			sb.WriteString(fmt.Sprintf("  %s %s: %v\n",
				colorize(colorRed, "✗"), res.Artifact.Name(), res.Err))
		}
	}
	sb.WriteString(RenderExportSummary(export.Summarize(results)))
	return sb.String()
}

// RenderExportSummary renders the one-line tally footer.
func RenderExportSummary(s export.Summary) string {
	parts := []string{}
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(s.Exported, "exported")
	add(s.Refreshed, "refreshed")
	add(s.Unchanged, "unchanged")
	add(s.Collided, "collided")
	add(s.Skipped, "skipped")
	add(s.Failed, "failed")
	if len(parts) == 0 {
		return "Exports: none\n"
	}
	return "Exports: " + strings.Join(parts, ", ") + "\n"
}

// RenderHistoryTable renders past transactions, newest first.
func RenderHistoryTable(txs []history.Transaction) string {
	if len(txs) == 0 {
		return "No transactions recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-5s %-16s %-14s %-5s %-8s %-9s %s\n",
		"ID", "Box", "When", "Exit", "Changed", "Exported", "Command"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, tx := range txs {
		exit := fmt.Sprintf("%d", tx.ExitCode)
		if tx.ExitCode != 0 {
			exit = colorize(colorRed, exit)
		}
		sb.WriteString(fmt.Sprintf("%-5d %-16s %-14s %-5s %-8d %-9d %s\n",
			tx.ID, truncate(tx.Box, 16), formatRelativeTime(tx.StartedAt),
			exit, tx.Changed, tx.Exported, truncate(tx.Command, 32)))
	}
	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g. "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
