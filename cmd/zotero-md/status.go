package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/zotero-md/internal/state"
	"github.com/pdiddy/zotero-md/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize recorded export runs",
	Long: `Status reads the state database under the output directory and prints
how many attachments are converted, skipped, or dry-run as of their most
recent attempt. With --key it prints the full attempt history for one
attachment.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("output-dir", "markdown", "root directory for generated Markdown")
	statusCmd.Flags().String("key", "", "show the attempt history for one attachment key")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	outputDir, _ := cmd.Flags().GetString("output-dir")

	store, err := state.Open(outputDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	key, _ := cmd.Flags().GetString("key")
	if key != "" {
		entries, err := store.History(ctx, key)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(os.Stdout, "no recorded attempts for %s\n", key)
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(os.Stdout, "%s  %-10s %s\n", e.RecordedAt.Format("2006-01-02 15:04:05"), e.Status, e.Output)
		}
		return nil
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, status := range []types.ConversionStatus{types.StatusConverted, types.StatusSkipped, types.StatusDryRun} {
		fmt.Fprintf(os.Stdout, "%-10s %d\n", status, summary[status])
		total += summary[status]
	}
	fmt.Fprintf(os.Stdout, "total      %d\n", total)
	return nil
}
