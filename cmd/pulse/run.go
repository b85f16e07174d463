package main

import (
    "github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
    Use:   "run",
    Short: "Run the sync pipeline once",
    Long: `Run one extract/transform/load cycle against the configured project,
then refresh the affected monthly buckets. Artifacts land under the data
directory and the raw input is archived on success.`,
    RunE: func(cmd *cobra.Command, args []string) error {
        a, err := newApp(cmd.Context())
        if err != nil { return err }
        defer a.Close()
        return a.svc.RunPipeline(cmd.Context())
    },
}

func init() {
    rootCmd.AddCommand(runCmd)
}
