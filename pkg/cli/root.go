// Package cli implements the sheetql command-line interface. Commands run
// directly against a local data directory; no server is required.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sheetql/internal/domain"
	"sheetql/internal/query"
	"sheetql/internal/source"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dataDir  string
	format   string
	excluded []string
	strict   bool
	output   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "sheetql",
		Short:         "SQL queries over spreadsheet data",
		Long:          "Run SQL queries, array expansions, and validation rules against spreadsheet files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Flag > env > default, matching the server's configuration.
			if !cmd.Flags().Changed("data-dir") {
				if v := os.Getenv("DATA_DIR"); v != "" {
					opts.dataDir = v
				}
			}
			if !cmd.Flags().Changed("format") {
				if v := os.Getenv("DATA_FORMAT"); v != "" {
					opts.format = strings.ToLower(v)
				}
			}
			if opts.format != "csv" && opts.format != "xlsx" {
				return fmt.Errorf("invalid format %q: must be \"csv\" or \"xlsx\"", opts.format)
			}
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("invalid output %q: must be \"table\" or \"json\"", opts.output)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "data", "root directory of spreadsheet data")
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", "csv", "data format (csv, xlsx)")
	rootCmd.PersistentFlags().StringSliceVar(&opts.excluded, "exclude", nil, "column names excluded from every table")
	rootCmd.PersistentFlags().BoolVar(&opts.strict, "strict", false, "surface evaluation fallbacks as warnings")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format (table, json)")

	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newTablesCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

func (o *rootOptions) dataSource() (domain.DataSource, error) {
	switch o.format {
	case "xlsx":
		return source.NewXLSXDir(o.dataDir), nil
	case "csv":
		return source.NewCSVDir(o.dataDir), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", o.format)
	}
}

func (o *rootOptions) executor() (*query.Executor, error) {
	src, err := o.dataSource()
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return query.New(src, o.excluded, log, query.WithStrict(o.strict)), nil
}

// parseParams turns repeated key=value flags into bind parameters.
func parseParams(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
