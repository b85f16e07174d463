package main

import (
    "time"

    "github.com/spf13/cobra"
)

var recomputeYear int

var recomputeCmd = &cobra.Command{
    Use:   "recompute",
    Short: "Rebuild the derived summary tables",
    Long: `Drop and rebuild delivery progress and backlog summaries for one year,
plus the monthly work item summaries across all years. Safe to run any
number of times.`,
    RunE: func(cmd *cobra.Command, args []string) error {
        a, err := newApp(cmd.Context())
        if err != nil { return err }
        defer a.Close()
        year := recomputeYear
        if year == 0 { year = time.Now().Year() }
        return a.svc.RecomputeAggregates(cmd.Context(), year)
    },
}

func init() {
    recomputeCmd.Flags().IntVar(&recomputeYear, "year", 0, "year to rebuild (default: current year)")
    rootCmd.AddCommand(recomputeCmd)
}
