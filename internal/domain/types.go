package domain

import (
    "math"
    "time"
)

const (
    TypeTask      = "Task"
    TypeBug       = "Bug"
    TypeUserStory = "UserStory"
    TypeIncident  = "Incident"
)

var WorkItemTypes = []string{TypeTask, TypeBug, TypeUserStory, TypeIncident}

// WorkItem is the canonical row for a tracker work item. LeadTime is computed
// from created/resolved dates and never taken from the source system.
type WorkItem struct {
    ID           int64
    ExternalID   int64
    Title        string
    Type         string
    State        string
    CreatedDate  *time.Time
    ChangedDate  *time.Time
    ResolvedDate *time.Time
    LeadTime     *int
    Archived     bool
    AssignedTo   string
}

// WorkItemHistory is an append-only state transition log.
type WorkItemHistory struct {
    ID          int64
    WorkItemID  int64
    State       string
    ChangedDate time.Time
}

type WorkItemSummary struct {
    Type             string  `json:"type"`
    Year             int     `json:"year"`
    Month            int     `json:"month"`
    TotalCount       int     `json:"total_count"`
    AverageLeadTime  float64 `json:"average_lead_time"`
    ClosedPercentage float64 `json:"closed_percentage"`
    ReworkPercentage float64 `json:"rework_percentage"`
}

// DeliveryProgress tracks same-month throughput per type. Month is always the
// first day of the month; Year is derived from Month when not set.
type DeliveryProgress struct {
    Month       time.Time `json:"month"`
    Year        int       `json:"year"`
    Type        string    `json:"type"`
    TotalItems  int       `json:"total_items"`
    ClosedItems int       `json:"closed_items"`
}

type BacklogSummary struct {
    Type         string    `json:"type"`
    Month        time.Time `json:"month"`
    Year         int       `json:"year"`
    BacklogCount int       `json:"backlog_count"`
}

type KPI struct {
    ID           int64     `json:"id"`
    Name         string    `json:"name"`
    Description  string    `json:"description"`
    TargetValue  float64   `json:"target_value"`
    MetricType   string    `json:"metric_type"`
    CurrentValue float64   `json:"current_value"`
    WorkItemType string    `json:"work_item_type,omitempty"`
    StartDate    time.Time `json:"start_date"`
    EndDate      time.Time `json:"end_date"`
}

// ProgressPercentage reports how far CurrentValue is towards TargetValue.
func (k KPI) ProgressPercentage() float64 {
    if k.TargetValue == 0 { return 0 }
    return math.Round(k.CurrentValue/k.TargetValue*100*100) / 100
}

func (k KPI) TargetAchieved() bool { return k.CurrentValue >= k.TargetValue }

// ActiveOn reports whether the KPI period covers the given date.
func (k KPI) ActiveOn(d time.Time) bool {
    return !d.Before(k.StartDate) && !d.After(k.EndDate)
}
