package jobs

import (
    "context"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/config"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/repo"
)

type service interface {
    RunPipeline(ctx context.Context) error
    RecomputeAggregates(ctx context.Context, year int) error
    EnsureMonthlyKPIs(ctx context.Context, ref time.Time) error
    RefreshKPIs(ctx context.Context, ref time.Time) error
}

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    repo *repo.Repository
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
    loc, _ := time.LoadLocation(cfg.TZ)
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
    _, _ = c.AddFunc(cfg.PipelineCron, cr.nightly)
    _, _ = c.AddFunc(cfg.KPICron, cr.monthly)
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) nightly() {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute); defer cancel()
    const lockKey int64 = 731001
    ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
    if !ok { cr.log.Info().Msg("cron: pipeline already running elsewhere"); return }
    defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()
    cr.log.Info().Msg("cron: nightly pipeline")
    if err := cr.svc.RunPipeline(ctx); err != nil {
        cr.log.Error().Err(err).Msg("cron: pipeline failed")
        return
    }
    if err := cr.svc.RecomputeAggregates(ctx, time.Now().Year()); err != nil {
        cr.log.Error().Err(err).Msg("cron: recompute failed")
    }
}

func (cr *Cron) monthly() {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute); defer cancel()
    const lockKey int64 = 731002
    ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
    if !ok { cr.log.Info().Msg("cron: kpi refresh already running elsewhere"); return }
    defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()
    // Runs on the first of the month and closes out the previous one.
    prev := time.Now().AddDate(0, -1, 0)
    cr.log.Info().Msg("cron: monthly kpi refresh")
    if err := cr.svc.EnsureMonthlyKPIs(ctx, time.Now()); err != nil {
        cr.log.Error().Err(err).Msg("cron: kpi ensure failed")
    }
    if err := cr.svc.RefreshKPIs(ctx, prev); err != nil {
        cr.log.Error().Err(err).Msg("cron: kpi refresh failed")
    }
}
