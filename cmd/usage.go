package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samsaffron/relaychat/internal/exitcode"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/usage"
	"github.com/spf13/cobra"
)

var (
	usageDays int
	usageJSON bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage per model",
	Long: `Summarize the tokens reported for every answered message, per model.

Examples:
  relaychat usage
  relaychat usage --days 7
  relaychat usage --json`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().IntVar(&usageDays, "days", 0, "Only include the last N days (0 for all)")
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	if usageDays < 0 {
		return exitcode.BadUsage("--days must not be negative")
	}
	res := usage.Load(usageDir(cfg))
	for _, err := range res.Errors {
		log.Warn().Err(err).Msg("skipping usage record")
	}

	var since time.Time
	if usageDays > 0 {
		since = time.Now().AddDate(0, 0, -usageDays)
	}
	return printUsage(cmd.OutOrStdout(), usage.Summarize(res.Entries, since), usageJSON)
}

func printUsage(w io.Writer, rows []usage.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No usage recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-32s %8s %10s %10s\n", "MODEL", "ANSWERS", "INPUT", "OUTPUT")
	var total usage.Summary
	for _, r := range rows {
		fmt.Fprintf(w, "%-32s %8d %10s %10s\n", r.Model, r.Answers, tokens(r.InputTokens), tokens(r.OutputTokens))
		total.Answers += r.Answers
		total.InputTokens += r.InputTokens
		total.OutputTokens += r.OutputTokens
	}
	if len(rows) > 1 {
		fmt.Fprintf(w, "%-32s %8d %10s %10s\n", "total", total.Answers, tokens(total.InputTokens), tokens(total.OutputTokens))
	}
	return nil
}

func tokens(n int) string {
	if n < 1000 {
		return fmt.Sprint(n)
	}
	return llm.FormatTokenCount(n)
}
