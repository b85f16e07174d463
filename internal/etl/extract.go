/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package etl

import (
    "context"
    "encoding/csv"
    "fmt"
    "os"
    "strconv"
    "time"

    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/adapters/azdevops"
)

// rawHeader is the fixed raw artifact schema; transform and load validate
// against these names.
var rawHeader = []string{"id", "System.Title", "System.State", "System.CreatedDate", "System.ChangedDate", "System.AssignedTo"}

type Tracker interface {
    ListWorkItemIDs(ctx context.Context) ([]int64, error)
    GetWorkItem(ctx context.Context, id int64) (azdevops.WorkItemRecord, error)
}

type Checkpointer interface {
    Save(lastID int64) error
}

type Extractor struct {
    client Tracker
    ckpt   Checkpointer
    log    zerolog.Logger
    pause  time.Duration
}

func NewExtractor(client Tracker, ckpt Checkpointer, log zerolog.Logger) *Extractor {
    return &Extractor{client: client, ckpt: ckpt, log: log, pause: 5 * time.Second}
}

// Run lists every work item id, fetches detail records and writes the raw
// artifact. Id listing is all-or-nothing; detail fetches are best-effort.
// Returns the number of records written.
func (e *Extractor) Run(ctx context.Context, outputPath string) (int, error) {
    e.log.Info().Msg("extract: listing work item ids")
    ids, err := e.client.ListWorkItemIDs(ctx)
    if err != nil { return 0, fmt.Errorf("listing work item ids: %w", err) }
    if len(ids) == 0 {
        e.log.Warn().Msg("extract: no work item ids found")
        return 0, nil
    }
    records := e.FetchDetails(ctx, ids, 0)
    if len(records) == 0 {
        e.log.Warn().Msg("extract: no work items fetched")
        return 0, nil
    }
    e.log.Info().Int("count", len(records)).Str("path", outputPath).Msg("extract: writing raw file")
    if err := e.WriteRaw(records, outputPath); err != nil { return 0, err }
    return len(records), nil
}

// FetchDetails fetches one item per call starting at startIndex. A failed
// fetch is logged and skipped after a short pause; the checkpoint advances
// only on success.
func (e *Extractor) FetchDetails(ctx context.Context, ids []int64, startIndex int) []azdevops.WorkItemRecord {
    var out []azdevops.WorkItemRecord
    for i := startIndex; i < len(ids); i++ {
        id := ids[i]
        rec, err := e.client.GetWorkItem(ctx, id)
        if err != nil {
            e.log.Error().Err(err).Int64("id", id).Msg("extract: work item fetch failed, skipping")
            time.Sleep(e.pause)
            continue
        }
        e.log.Info().Int64("id", id).Msg("extract: work item fetched")
        out = append(out, rec)
        if err := e.ckpt.Save(id); err != nil {
            e.log.Error().Err(err).Int64("id", id).Msg("extract: checkpoint save failed")
        }
    }
    return out
}

// WriteRaw serializes records to the raw CSV. Rows with every field empty are
// dropped with a warning; an empty record set writes nothing at all.
func (e *Extractor) WriteRaw(records []azdevops.WorkItemRecord, path string) error {
    if len(records) == 0 {
        e.log.Warn().Msg("extract: nothing to write")
        return nil
    }
    f, err := os.Create(path)
    if err != nil { return err }
    defer f.Close()
    w := csv.NewWriter(f)
    if err := w.Write(rawHeader); err != nil { return err }
    for _, r := range records {
        if emptyRecord(r) {
            e.log.Warn().Msg("extract: dropping row with no fields")
            continue
        }
        row := []string{strconv.FormatInt(r.ID, 10), r.Title, r.State, r.CreatedDate, r.ChangedDate, r.AssignedTo}
        if err := w.Write(row); err != nil { return err }
    }
    w.Flush()
    return w.Error()
}

func emptyRecord(r azdevops.WorkItemRecord) bool {
    return r.ID == 0 && r.Title == "" && r.State == "" && r.CreatedDate == "" && r.ChangedDate == "" && r.AssignedTo == ""
}
