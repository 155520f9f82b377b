package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"fintrack/internal/services"

	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	now := time.Now().UTC()

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the income and expense summary for one month",
		Example: `  fintrack summary --year 2024 --month 3
  fintrack summary --json`,
		Args: cobra.NoArgs,
		RunE: runSummary,
	}

	cmd.Flags().Int("year", now.Year(), "calendar year")
	cmd.Flags().Int("month", int(now.Month()), "month (1-12)")
	cmd.Flags().Bool("json", false, "print the summary as JSON")

	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	asJSON, _ := cmd.Flags().GetBool("json")

	res, err := openBackend(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer cleanup(res)

	summary, err := services.NewSummaryService(res.Store, nil).MonthlySummary(cmd.Context(), year, month)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(out, "Summary for %04d-%02d\n\n", summary.Year, summary.Month)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Income\t%s\t\n", summary.TotalIncome)
	fmt.Fprintf(w, "Expenses\t%s\t\n", summary.TotalExpenses)
	fmt.Fprintf(w, "Net\t%s\t\n", summary.Net)
	if len(summary.Categories) > 0 {
		fmt.Fprintln(w, "\t\t")
		for _, c := range summary.Categories {
			fmt.Fprintf(w, "%s\t%s\t\n", c.CategoryName, c.TotalExpenses)
		}
	}
	return w.Flush()
}
