package main

import (
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    apihttp "github.com/vivinfor/data-sync-pipeline-automation/internal/http"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/jobs"
)

var serveCmd = &cobra.Command{
    Use:   "serve",
    Short: "Run the API server with scheduled jobs",
    Long: `Serve the read API and keep the nightly pipeline and monthly KPI jobs
running on their cron schedules. Shuts down on SIGINT/SIGTERM.`,
    RunE: func(cmd *cobra.Command, args []string) error {
        a, err := newApp(cmd.Context())
        if err != nil { return err }
        defer a.Close()

        cron := jobs.NewCron(a.cfg, a.log, a.svc, a.repo)
        cron.Start()
        defer cron.Stop()

        router := apihttp.NewRouter(a.cfg, a.log, a.svc)

        errCh := make(chan error, 1)
        go func() { errCh <- router.Run(a.cfg.HTTPAddr) }()

        sigCh := make(chan os.Signal, 1)
        signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

        select {
        case <-sigCh:
            a.log.Info().Msg("shutting down...")
        case err := <-errCh:
            if err != nil { a.log.Error().Err(err).Msg("http server error") }
        }

        time.Sleep(500 * time.Millisecond)
        return nil
    },
}

func init() {
    rootCmd.AddCommand(serveCmd)
}
