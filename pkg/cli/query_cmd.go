package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute a SQL query against the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := opts.executor()
			if err != nil {
				return err
			}
			bind, err := parseParams(params)
			if err != nil {
				return err
			}
			result := executor.Execute(cmd.Context(), args[0], bind)
			return printResult(cmd.OutOrStdout(), result, opts.output)
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "bind parameter as name=value (repeatable)")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		params []string
		rules  []string
	)

	cmd := &cobra.Command{
		Use:   "validate <sql>",
		Short: "Execute a query and apply validation rules to every row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(rules) == 0 {
				return fmt.Errorf("at least one --rule is required")
			}
			executor, err := opts.executor()
			if err != nil {
				return err
			}
			bind, err := parseParams(params)
			if err != nil {
				return err
			}
			result := executor.ExecuteWithValidation(cmd.Context(), args[0], bind, rules)
			if err := printResult(cmd.OutOrStdout(), result, opts.output); err != nil {
				return err
			}
			if result.Validation != nil && result.Validation.ErrorRows > 0 {
				return fmt.Errorf("%d of %d rows failed validation",
					result.Validation.ErrorRows, result.Validation.TotalRows)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "bind parameter as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&rules, "rule", nil, "validation rule expression (repeatable)")
	return cmd
}

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List available file.sheet tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := opts.dataSource()
			if err != nil {
				return err
			}
			tables, err := src.Tables()
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"tables": tables})
			}
			for _, t := range tables {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s\n", t.File, t.Sheet)
			}
			return nil
		},
	}
}
