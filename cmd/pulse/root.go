/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"

    "github.com/rs/zerolog"
    "github.com/spf13/cobra"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/adapters/azdevops"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/checkpoint"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/config"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/etl"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/logger"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/repo"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/services"
)

var rootCmd = &cobra.Command{
    Use:   "pulse",
    Short: "Work item sync pipeline and delivery metrics",
    Long: `pulse pulls work items from an Azure DevOps project into Postgres and
maintains the derived delivery metrics on top of them.

  pulse run         run the extract/transform/load pipeline once
  pulse recompute   rebuild all derived summary tables
  pulse leadtimes   backfill missing lead times
  pulse kpis        create and refresh the monthly KPI rows
  pulse serve       run the API server with scheduled jobs`,
}

// app bundles the wired components every subcommand needs. Close releases
// the database pool.
type app struct {
    cfg  config.Config
    log  zerolog.Logger
    db   *repo.DB
    repo *repo.Repository
    svc  *services.Service
}

func newApp(ctx context.Context) (*app, error) {
    cfg := config.Load()
    log := logger.New(cfg)

    db := repo.MustOpen(ctx, cfg, log)
    if err := db.Init(ctx); err != nil {
        db.Close()
        return nil, err
    }
    repository := repo.NewRepository(db, log)

    client := azdevops.NewClient(cfg, log)
    ckpt := checkpoint.NewStore(cfg.CheckpointFile, log)
    ex := etl.NewExtractor(client, ckpt, log)
    tr := etl.NewTransformer(log)
    ld := etl.NewLoader(repository, log)
    svc := services.New(cfg, log, repository, ex, tr, ld)

    return &app{cfg: cfg, log: log, db: db, repo: repository, svc: svc}, nil
}

func (a *app) Close() { a.db.Close() }
