package main

import (
    "time"

    "github.com/spf13/cobra"
)

var kpisRefresh bool

var kpisCmd = &cobra.Command{
    Use:   "kpis",
    Short: "Create and refresh the monthly KPI rows",
    Long: `Ensure the current month's KPI definitions exist. With --refresh the
previous month's values are also recomputed from the summary buckets.`,
    RunE: func(cmd *cobra.Command, args []string) error {
        a, err := newApp(cmd.Context())
        if err != nil { return err }
        defer a.Close()
        if err := a.svc.EnsureMonthlyKPIs(cmd.Context(), time.Now()); err != nil { return err }
        if kpisRefresh {
            return a.svc.RefreshKPIs(cmd.Context(), time.Now().AddDate(0, -1, 0))
        }
        return nil
    },
}

func init() {
    kpisCmd.Flags().BoolVar(&kpisRefresh, "refresh", false, "recompute last month's values")
    rootCmd.AddCommand(kpisCmd)
}
