package main

import (
    "github.com/spf13/cobra"
)

var leadtimesCmd = &cobra.Command{
    Use:   "leadtimes",
    Short: "Backfill missing lead times",
    Long: `Derive lead time for resolved work items that never got one. Lead time
is the inclusive weekday count between creation and resolution and is
written exactly once per item.`,
    RunE: func(cmd *cobra.Command, args []string) error {
        a, err := newApp(cmd.Context())
        if err != nil { return err }
        defer a.Close()
        n, err := a.svc.UpdateLeadTimes(cmd.Context())
        if err != nil { return err }
        a.log.Info().Int("items", n).Msg("backfill done")
        return nil
    },
}

func init() {
    rootCmd.AddCommand(leadtimesCmd)
}
