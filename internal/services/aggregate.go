/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "math"
    "sort"
    "time"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/domain"
)

// BusinessDays counts weekdays in the inclusive range [start, end].
// A Monday resolved the following Monday counts 6.
func BusinessDays(start, end time.Time) int {
    start = truncateDay(start)
    end = truncateDay(end)
    if end.Before(start) { return 0 }
    days := 0
    for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
        if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday { days++ }
    }
    return days
}

func truncateDay(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type bucketKey struct {
    month time.Time
    typ   string
}

// BuildDeliveryProgress groups resolved items by (resolution month, type).
// Total counts only items created in the same month they were resolved;
// closed counts everything resolved that month. The asymmetry approximates
// same-month throughput.
func BuildDeliveryProgress(items []domain.WorkItem) []domain.DeliveryProgress {
    buckets := map[bucketKey]*domain.DeliveryProgress{}
    for _, it := range items {
        if it.ResolvedDate == nil || it.Archived { continue }
        key := bucketKey{month: monthStart(*it.ResolvedDate), typ: it.Type}
        b, ok := buckets[key]
        if !ok {
            b = &domain.DeliveryProgress{Month: key.month, Year: key.month.Year(), Type: it.Type}
            buckets[key] = b
        }
        b.ClosedItems++
        if it.CreatedDate != nil &&
            it.CreatedDate.Year() == it.ResolvedDate.Year() &&
            it.CreatedDate.Month() == it.ResolvedDate.Month() {
            b.TotalItems++
        }
    }
    out := make([]domain.DeliveryProgress, 0, len(buckets))
    for _, b := range buckets { out = append(out, *b) }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].Month.Equal(out[j].Month) { return out[i].Month.Before(out[j].Month) }
        return out[i].Type < out[j].Type
    })
    return out
}

// BuildBacklogSummaries groups resolved items by (creation month, type),
// regardless of when they were resolved.
func BuildBacklogSummaries(items []domain.WorkItem) []domain.BacklogSummary {
    buckets := map[bucketKey]*domain.BacklogSummary{}
    for _, it := range items {
        if it.CreatedDate == nil || it.Archived { continue }
        key := bucketKey{month: monthStart(*it.CreatedDate), typ: it.Type}
        b, ok := buckets[key]
        if !ok {
            b = &domain.BacklogSummary{Month: key.month, Year: key.month.Year(), Type: it.Type}
            buckets[key] = b
        }
        b.BacklogCount++
    }
    out := make([]domain.BacklogSummary, 0, len(buckets))
    for _, b := range buckets { out = append(out, *b) }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].Month.Equal(out[j].Month) { return out[i].Month.Before(out[j].Month) }
        return out[i].Type < out[j].Type
    })
    return out
}

type summaryAccum struct {
    total    int
    closed   int
    rework   int
    leadSum  int
    leadHits int
}

// BuildWorkItemSummaries groups resolved items by (type, resolution year,
// resolution month). Closed means state Resolved; average lead time is taken
// over Resolved items that have one.
func BuildWorkItemSummaries(items []domain.WorkItem) []domain.WorkItemSummary {
    type ymKey struct {
        typ         string
        year, month int
    }
    buckets := map[ymKey]*summaryAccum{}
    for _, it := range items {
        if it.ResolvedDate == nil || it.Archived { continue }
        key := ymKey{typ: it.Type, year: it.ResolvedDate.Year(), month: int(it.ResolvedDate.Month())}
        a, ok := buckets[key]
        if !ok { a = &summaryAccum{}; buckets[key] = a }
        a.total++
        if it.State == "Resolved" {
            a.closed++
            if it.LeadTime != nil { a.leadSum += *it.LeadTime; a.leadHits++ }
        }
        // TODO: reopen detection should come from work_item_history; a row
        // cannot hold both states at once, so this always yields zero.
        if it.State == "Resolved" {
            if it.State == "Reopened" { a.rework++ }
        }
    }
    out := make([]domain.WorkItemSummary, 0, len(buckets))
    for key, a := range buckets {
        s := domain.WorkItemSummary{Type: key.typ, Year: key.year, Month: key.month, TotalCount: a.total}
        if a.leadHits > 0 { s.AverageLeadTime = round2(float64(a.leadSum) / float64(a.leadHits)) }
        if a.total > 0 {
            s.ClosedPercentage = round2(float64(a.closed) / float64(a.total) * 100)
            s.ReworkPercentage = round2(float64(a.rework) / float64(a.total) * 100)
        }
        out = append(out, s)
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Year != out[j].Year { return out[i].Year < out[j].Year }
        if out[i].Month != out[j].Month { return out[i].Month < out[j].Month }
        return out[i].Type < out[j].Type
    })
    return out
}
