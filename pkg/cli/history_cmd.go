package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sheetql/internal/history"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent query executions from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = os.Getenv("HISTORY_DB_PATH")
			}
			if dbPath == "" {
				return fmt.Errorf("no history database: set --db or HISTORY_DB_PATH")
			}
			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			entries, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"history": entries})
			}
			for _, e := range entries {
				status := "ok"
				if e.Error != "" {
					status = "error"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-5s  %4d rows  %5dms  %s\n",
					e.ExecutedAt.Format("2006-01-02 15:04:05"), status, e.RowCount, e.DurationMs, e.SQL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the history database")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	return cmd
}
