/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "time"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/domain"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/repo"
)

const (
    MetricCount      = "count"
    MetricPercentage = "percentage"
)

type kpiDef struct {
    name        string
    description string
    target      float64
    metric      string
    value       func(repo.SummaryStats) float64
}

var monthlyKPIs = []kpiDef{
    {"Average Lead Time", "Average lead time in business days across monthly summaries", 10, MetricCount,
        func(s repo.SummaryStats) float64 { return s.AvgLead }},
    {"Minimum Lead Time", "Lowest average lead time across monthly summaries", 5, MetricCount,
        func(s repo.SummaryStats) float64 { return s.MinLead }},
    {"Maximum Lead Time", "Highest average lead time across monthly summaries", 15, MetricCount,
        func(s repo.SummaryStats) float64 { return s.MaxLead }},
    {"Rework Percentage", "Average rework percentage across monthly summaries", 20, MetricPercentage,
        func(s repo.SummaryStats) float64 { return s.AvgRework }},
    {"Minimum Rework Percentage", "Lowest rework percentage across monthly summaries", 5, MetricPercentage,
        func(s repo.SummaryStats) float64 { return s.MinRework }},
    {"Maximum Rework Percentage", "Highest rework percentage across monthly summaries", 30, MetricPercentage,
        func(s repo.SummaryStats) float64 { return s.MaxRework }},
}

// EnsureMonthlyKPIs creates the KPI rows for the month containing ref.
// Existing rows keep their current value.
func (s *Service) EnsureMonthlyKPIs(ctx context.Context, ref time.Time) error {
    start := monthStart(ref)
    end := monthEnd(ref)
    for _, def := range monthlyKPIs {
        if _, err := s.store.EnsureKPI(ctx, domain.KPI{
            Name:        def.name,
            Description: def.description,
            TargetValue: def.target,
            MetricType:  def.metric,
            StartDate:   start,
            EndDate:     end,
        }); err != nil { return err }
    }
    return nil
}

// RefreshKPIs recomputes the month's KPI values from the summary buckets.
// Months with no buckets leave the values untouched.
func (s *Service) RefreshKPIs(ctx context.Context, ref time.Time) error {
    stats, err := s.store.GetSummaryStats(ctx, ref.Year(), int(ref.Month()))
    if err != nil { return err }
    if stats.Buckets == 0 {
        s.log.Warn().Int("year", ref.Year()).Int("month", int(ref.Month())).Msg("kpi: no summary buckets for month")
        return nil
    }
    start := monthStart(ref)
    end := monthEnd(ref)
    for _, def := range monthlyKPIs {
        id, err := s.store.EnsureKPI(ctx, domain.KPI{
            Name:        def.name,
            Description: def.description,
            TargetValue: def.target,
            MetricType:  def.metric,
            StartDate:   start,
            EndDate:     end,
        })
        if err != nil { return err }
        if err := s.store.SetKPIValue(ctx, id, round2(def.value(stats))); err != nil { return err }
    }
    s.log.Info().Int("kpis", len(monthlyKPIs)).Time("month", start).Msg("kpi: monthly values refreshed")
    return nil
}

func monthEnd(t time.Time) time.Time {
    return monthStart(t).AddDate(0, 1, -1)
}
