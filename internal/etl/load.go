package etl

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/domain"
)

var requiredLoadColumns = []string{"id", "System.Title", "System.State", "System.CreatedDate", "System.ChangedDate", "System.AssignedTo"}

// WorkItemStore commits a batch of canonical rows as one atomic unit and
// returns them with store-assigned fields (id, resolved date, lead time)
// filled in.
type WorkItemStore interface {
    LoadWorkItems(ctx context.Context, items []domain.WorkItem) ([]domain.WorkItem, error)
}

type Loader struct {
    store WorkItemStore
    log   zerolog.Logger
}

func NewLoader(store WorkItemStore, log zerolog.Logger) *Loader {
    return &Loader{store: store, log: log}
}

// Run parses the processed artifact and loads it in a single transaction.
// Column validation happens before the store is touched: a malformed file
// leaves it unmodified. The committed items are returned so the caller can
// run post-write maintenance.
func (l *Loader) Run(ctx context.Context, path string) ([]domain.WorkItem, error) {
    header, rows, err := readCSV(path)
    if err != nil { return nil, fmt.Errorf("reading processed file: %w", err) }
    l.log.Info().Str("path", path).Int("rows", len(rows)).Msg("load: processed file loaded")

    if missing := missingColumns(header, requiredLoadColumns); len(missing) > 0 {
        l.log.Error().Strs("columns", missing).Msg("load: required columns missing, aborting")
        return nil, fmt.Errorf("load: missing columns %v", missing)
    }

    idx := columnIndex(header)
    items := make([]domain.WorkItem, 0, len(rows))
    for _, row := range rows {
        id, err := strconv.ParseInt(row[idx["id"]], 10, 64)
        if err != nil { return nil, fmt.Errorf("load: bad work item id %q: %w", row[idx["id"]], err) }
        title := row[idx["System.Title"]]
        items = append(items, domain.WorkItem{
            ExternalID:  id,
            Title:       title,
            Type:        InferType(title),
            State:       row[idx["System.State"]],
            CreatedDate: l.parseDate(row[idx["System.CreatedDate"]]),
            ChangedDate: l.parseDate(row[idx["System.ChangedDate"]]),
            AssignedTo:  row[idx["System.AssignedTo"]],
        })
    }

    loaded, err := l.store.LoadWorkItems(ctx, items)
    if err != nil {
        l.log.Error().Err(err).Msg("load: transaction rolled back")
        return nil, err
    }
    l.log.Info().Int("rows", len(loaded)).Msg("load: work items committed")
    return loaded, nil
}

// InferType maps a title to a work item type by substring match. Matching is
// case-sensitive and the first hit in this order wins.
func InferType(title string) string {
    switch {
    case strings.Contains(title, "Bug"):
        return domain.TypeBug
    case strings.Contains(title, "Task"):
        return domain.TypeTask
    case strings.Contains(title, "User Story"):
        return domain.TypeUserStory
    }
    return domain.TypeTask
}

// ParseFlexibleDate accepts DD/MM/YYYY or YYYY-MM-DD.
func ParseFlexibleDate(s string) (time.Time, error) {
    if t, err := time.Parse("02/01/2006", s); err == nil { return t, nil }
    return time.Parse("2006-01-02", s)
}

func (l *Loader) parseDate(s string) *time.Time {
    if s == "" { return nil }
    t, err := ParseFlexibleDate(s)
    if err != nil {
        l.log.Error().Err(err).Str("value", s).Msg("load: date parse failed")
        return nil
    }
    return &t
}
