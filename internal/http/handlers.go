/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/config"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/domain"
)

type service interface {
    GetSummaries(ctx context.Context, year int, typ string) ([]domain.WorkItemSummary, error)
    GetBacklogSummaries(ctx context.Context, year int, typ string) ([]domain.BacklogSummary, error)
    GetDeliveryProgress(ctx context.Context, year int, typ string) ([]domain.DeliveryProgress, error)
    GetKPIs(ctx context.Context, on time.Time) ([]domain.KPI, error)
    GetLastRun(ctx context.Context) (any, error)
    RunPipeline(ctx context.Context) error
    SaveWorkItem(ctx context.Context, it domain.WorkItem) (domain.WorkItem, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// yearParam reads ?year=YYYY; absent or malformed means no filter.
func yearParam(c *gin.Context) int {
    y, err := strconv.Atoi(c.Query("year"))
    if err != nil || y < 0 { return 0 }
    return y
}

func (h *Handlers) Summaries(c *gin.Context) {
    rows, err := h.svc.GetSummaries(c.Request.Context(), yearParam(c), c.Query("type"))
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) Backlog(c *gin.Context) {
    rows, err := h.svc.GetBacklogSummaries(c.Request.Context(), yearParam(c), c.Query("type"))
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) Progress(c *gin.Context) {
    rows, err := h.svc.GetDeliveryProgress(c.Request.Context(), yearParam(c), c.Query("type"))
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) KPIs(c *gin.Context) {
    on := time.Time{}
    if c.Query("active") == "true" { on = time.Now() }
    rows, err := h.svc.GetKPIs(c.Request.Context(), on)
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.GetLastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, lr)
}

type workItemPayload struct {
    ExternalID   int64  `json:"external_id" binding:"required"`
    Title        string `json:"title"`
    Type         string `json:"type"`
    State        string `json:"state"`
    CreatedDate  string `json:"created_date"`
    ChangedDate  string `json:"changed_date"`
    ResolvedDate string `json:"resolved_date"`
    AssignedTo   string `json:"assigned_to"`
}

func parseDateField(s string) (*time.Time, error) {
    if s == "" { return nil, nil }
    t, err := time.Parse("2006-01-02", s)
    if err != nil { return nil, err }
    return &t, nil
}

// SaveWorkItem is the admin single-item write path. Dates are YYYY-MM-DD.
func (h *Handlers) SaveWorkItem(c *gin.Context) {
    var p workItemPayload
    if err := c.ShouldBindJSON(&p); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    it := domain.WorkItem{
        ExternalID: p.ExternalID,
        Title:      p.Title,
        Type:       p.Type,
        State:      p.State,
        AssignedTo: p.AssignedTo,
    }
    var err error
    if it.CreatedDate, err = parseDateField(p.CreatedDate); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "bad created_date: " + err.Error()})
        return
    }
    if it.ChangedDate, err = parseDateField(p.ChangedDate); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "bad changed_date: " + err.Error()})
        return
    }
    if it.ResolvedDate, err = parseDateField(p.ResolvedDate); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "bad resolved_date: " + err.Error()})
        return
    }
    saved, err := h.svc.SaveWorkItem(c.Request.Context(), it)
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"id": saved.ID, "external_id": saved.ExternalID})
}

func (h *Handlers) RunNow(c *gin.Context) {
    // Detached from the request so client disconnects cannot cancel the run
    go func() { _ = h.svc.RunPipeline(context.Background()) }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
