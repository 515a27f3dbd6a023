package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"sheetql/internal/domain"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult renders a query result as a table or JSON. A failed query is
// reported as an error so the process exits non-zero.
func printResult(w io.Writer, result *domain.QueryResult, output string) error {
	if result.Error != "" {
		return fmt.Errorf("%s", result.Error)
	}
	if output == "json" {
		return printJSON(w, result)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, col := range result.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, row := range result.Data {
		for i, col := range result.Columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cellText(row[col]))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d rows (%dms)\n", result.Stats.RowCount, result.Stats.ExecutionTime)
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if result.Validation != nil {
		fmt.Fprintf(w, "validation: %d/%d rows failed\n",
			result.Validation.ErrorRows, result.Validation.TotalRows)
		for _, warning := range result.Validation.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warning)
		}
	}
	return nil
}

func cellText(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
