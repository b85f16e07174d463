/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "time"

    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/config"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/domain"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/repo"
)

// Store is the persistence surface the service drives. *repo.Repository
// implements it; tests substitute fakes.
type Store interface {
    GetWorkItemByExternalID(ctx context.Context, externalID int64) (*domain.WorkItem, error)
    UpsertWorkItem(ctx context.Context, it domain.WorkItem) (domain.WorkItem, error)
    InsertHistory(ctx context.Context, workItemID int64, state string, changedDate *time.Time) error
    MarkResolved(ctx context.Context, workItemID int64, resolved time.Time) error
    SetLeadTime(ctx context.Context, workItemID int64, days int) error
    ListItemsNeedingLeadTime(ctx context.Context) ([]domain.WorkItem, error)
    ListResolvedItems(ctx context.Context, year int) ([]domain.WorkItem, error)
    CountResolvedInMonth(ctx context.Context, ref time.Time, typ string) (total, closed int, err error)
    UpsertDeliveryProgress(ctx context.Context, p domain.DeliveryProgress) error
    UpsertSummaryBucket(ctx context.Context, typ string, year, month, total int, closedPct float64) error
    ReplaceWorkItemSummaries(ctx context.Context, rows []domain.WorkItemSummary) error
    ReplaceDeliveryProgress(ctx context.Context, rows []domain.DeliveryProgress) error
    ReplaceBacklogSummaries(ctx context.Context, rows []domain.BacklogSummary) error
    ListSummaries(ctx context.Context, year int, typ string) ([]domain.WorkItemSummary, error)
    ListDeliveryProgress(ctx context.Context, year int, typ string) ([]domain.DeliveryProgress, error)
    ListBacklogSummaries(ctx context.Context, year int, typ string) ([]domain.BacklogSummary, error)
    GetSummaryStats(ctx context.Context, year, month int) (repo.SummaryStats, error)
    EnsureKPI(ctx context.Context, k domain.KPI) (int64, error)
    SetKPIValue(ctx context.Context, id int64, value float64) error
    ListKPIs(ctx context.Context, on time.Time) ([]domain.KPI, error)
    StartETLRun(ctx context.Context) (int64, error)
    FinishETLRun(ctx context.Context, id int64, extracted, loaded int, success bool, errStr string) error
    GetLastRun(ctx context.Context) (*repo.LastRun, error)
}

type Service struct {
    cfg   config.Config
    log   zerolog.Logger
    store Store

    extract   Extractor
    transform Transformer
    load      Loader
}

type Extractor interface {
    Run(ctx context.Context, outputPath string) (int, error)
}

type Transformer interface {
    Run(inputPath, outputPath string) error
}

type Loader interface {
    Run(ctx context.Context, path string) ([]domain.WorkItem, error)
}

func New(cfg config.Config, log zerolog.Logger, store Store, ex Extractor, tr Transformer, ld Loader) *Service {
    return &Service{cfg: cfg, log: log, store: store, extract: ex, transform: tr, load: ld}
}

// SaveWorkItem is the single-item write path used outside the batch load.
// When the item already exists and its state changed, a history row stamped
// with the incoming changed date is appended. A resolved date in the payload
// is written once; an already resolved row keeps its original date.
// Maintenance runs after the write either way.
func (s *Service) SaveWorkItem(ctx context.Context, it domain.WorkItem) (domain.WorkItem, error) {
    prev, err := s.store.GetWorkItemByExternalID(ctx, it.ExternalID)
    if err != nil && !errors.Is(err, repo.ErrNotFound) { return it, err }
    saved, err := s.store.UpsertWorkItem(ctx, it)
    if err != nil { return it, err }
    if prev != nil && prev.State != it.State {
        if err := s.store.InsertHistory(ctx, saved.ID, it.State, it.ChangedDate); err != nil {
            s.log.Error().Err(err).Int64("item", saved.ID).Msg("history append failed")
        }
    }
    if it.ResolvedDate != nil && saved.ResolvedDate == nil {
        if err := s.store.MarkResolved(ctx, saved.ID, *it.ResolvedDate); err != nil {
            return saved, err
        }
        saved.ResolvedDate = it.ResolvedDate
    }
    if err := s.AfterWorkItemWrite(ctx, saved); err != nil {
        s.log.Error().Err(err).Int64("item", saved.ID).Msg("post-write maintenance failed")
    }
    return saved, nil
}

// AfterWorkItemWrite derives lead time for freshly resolved items and
// refreshes the item's monthly bucket. Lead time is written once; replays
// are no-ops.
func (s *Service) AfterWorkItemWrite(ctx context.Context, it domain.WorkItem) error {
    if it.ResolvedDate != nil && it.LeadTime == nil && it.CreatedDate != nil {
        days := BusinessDays(*it.CreatedDate, *it.ResolvedDate)
        if err := s.store.SetLeadTime(ctx, it.ID, days); err != nil { return err }
    }
    if it.ResolvedDate != nil {
        return s.refreshBucket(ctx, *it.ResolvedDate, it.Type)
    }
    return nil
}

// refreshBucket recomputes the single (month, type) bucket from live counts.
// The incremental path keys closure on the Closed state, unlike the full
// recompute which keys on Resolved; both are kept as-is.
func (s *Service) refreshBucket(ctx context.Context, ref time.Time, typ string) error {
    total, closed, err := s.store.CountResolvedInMonth(ctx, ref, typ)
    if err != nil { return err }
    month := monthStart(ref)
    if err := s.store.UpsertDeliveryProgress(ctx, domain.DeliveryProgress{
        Month: month, Year: month.Year(), Type: typ, TotalItems: total, ClosedItems: closed,
    }); err != nil { return err }
    closedPct := 0.0
    if total > 0 { closedPct = round2(float64(closed) / float64(total) * 100) }
    return s.store.UpsertSummaryBucket(ctx, typ, month.Year(), int(month.Month()), total, closedPct)
}

// RecomputeAggregates rebuilds every derived table from the canonical rows.
// DeliveryProgress and BacklogSummary are wiped entirely and rebuilt from
// items created in the given year; the monthly summaries are rebuilt across
// all years. Running it twice with no intervening writes produces identical
// tables.
func (s *Service) RecomputeAggregates(ctx context.Context, year int) error {
    if year == 0 { year = time.Now().Year() }
    items, err := s.store.ListResolvedItems(ctx, year)
    if err != nil { return err }
    if err := s.store.ReplaceDeliveryProgress(ctx, BuildDeliveryProgress(items)); err != nil { return err }
    if err := s.store.ReplaceBacklogSummaries(ctx, BuildBacklogSummaries(items)); err != nil { return err }

    all, err := s.store.ListResolvedItems(ctx, 0)
    if err != nil { return err }
    if err := s.store.ReplaceWorkItemSummaries(ctx, BuildWorkItemSummaries(all)); err != nil { return err }
    s.log.Info().Int("year", year).Int("items", len(items)).Msg("aggregates recomputed")
    return nil
}

// UpdateLeadTimes backfills lead_time for resolved items that never got one.
func (s *Service) UpdateLeadTimes(ctx context.Context) (int, error) {
    items, err := s.store.ListItemsNeedingLeadTime(ctx)
    if err != nil { return 0, err }
    n := 0
    for _, it := range items {
        days := BusinessDays(*it.CreatedDate, *it.ResolvedDate)
        if err := s.store.SetLeadTime(ctx, it.ID, days); err != nil { return n, err }
        n++
    }
    s.log.Info().Int("items", n).Msg("lead times backfilled")
    return n, nil
}

// Read side, consumed by the HTTP handlers.

func (s *Service) GetSummaries(ctx context.Context, year int, typ string) ([]domain.WorkItemSummary, error) {
    return s.store.ListSummaries(ctx, year, typ)
}

func (s *Service) GetDeliveryProgress(ctx context.Context, year int, typ string) ([]domain.DeliveryProgress, error) {
    return s.store.ListDeliveryProgress(ctx, year, typ)
}

func (s *Service) GetBacklogSummaries(ctx context.Context, year int, typ string) ([]domain.BacklogSummary, error) {
    return s.store.ListBacklogSummaries(ctx, year, typ)
}

func (s *Service) GetKPIs(ctx context.Context, on time.Time) ([]domain.KPI, error) {
    return s.store.ListKPIs(ctx, on)
}

func (s *Service) GetLastRun(ctx context.Context) (any, error) {
    return s.store.GetLastRun(ctx)
}
