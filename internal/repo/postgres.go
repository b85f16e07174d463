package repo

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/config"
    "github.com/vivinfor/data-sync-pipeline-automation/internal/domain"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

const upsertWorkItemSQL = `
    INSERT INTO work_items(external_id, title, type, state, created_date, changed_date, assigned_to)
    VALUES($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT(external_id) DO UPDATE SET
        title=EXCLUDED.title,
        type=EXCLUDED.type,
        state=EXCLUDED.state,
        created_date=EXCLUDED.created_date,
        changed_date=EXCLUDED.changed_date,
        assigned_to=EXCLUDED.assigned_to
    RETURNING id, resolved_date, lead_time`

// LoadWorkItems commits a batch in one transaction. Every row also gets a
// history entry for its incoming state, stamped with the row's changed date.
// Returned items carry the surrogate id plus resolved_date and lead_time
// already present in the table, so the caller sees the merged row rather
// than the incoming one.
func (r *Repository) LoadWorkItems(ctx context.Context, items []domain.WorkItem) ([]domain.WorkItem, error) {
    if len(items) == 0 { return nil, nil }
    tx, err := r.db.Pool.Begin(ctx)
    if err != nil { return nil, err }
    defer tx.Rollback(ctx)

    out := make([]domain.WorkItem, 0, len(items))
    for _, it := range items {
        row := tx.QueryRow(ctx, upsertWorkItemSQL,
            it.ExternalID, it.Title, it.Type, it.State, it.CreatedDate, it.ChangedDate, it.AssignedTo)
        if err := row.Scan(&it.ID, &it.ResolvedDate, &it.LeadTime); err != nil { return nil, err }
        if _, err := tx.Exec(ctx, insertHistorySQL, it.ID, it.State, it.ChangedDate); err != nil {
            return nil, err
        }
        out = append(out, it)
    }
    if err := tx.Commit(ctx); err != nil { return nil, err }
    return out, nil
}

// UpsertWorkItem writes a single item outside the batch path and returns the
// merged row.
func (r *Repository) UpsertWorkItem(ctx context.Context, it domain.WorkItem) (domain.WorkItem, error) {
    row := r.db.Pool.QueryRow(ctx, upsertWorkItemSQL,
        it.ExternalID, it.Title, it.Type, it.State, it.CreatedDate, it.ChangedDate, it.AssignedTo)
    if err := row.Scan(&it.ID, &it.ResolvedDate, &it.LeadTime); err != nil { return it, err }
    return it, nil
}

var ErrNotFound = errors.New("not found")

const workItemColumns = `id, external_id, COALESCE(title,''), COALESCE(type,''), COALESCE(state,''),
    created_date, changed_date, resolved_date, lead_time, archived, COALESCE(assigned_to,'')`

func scanWorkItem(row pgx.Row) (domain.WorkItem, error) {
    var it domain.WorkItem
    err := row.Scan(&it.ID, &it.ExternalID, &it.Title, &it.Type, &it.State,
        &it.CreatedDate, &it.ChangedDate, &it.ResolvedDate, &it.LeadTime, &it.Archived, &it.AssignedTo)
    return it, err
}

func (r *Repository) GetWorkItemByExternalID(ctx context.Context, externalID int64) (*domain.WorkItem, error) {
    row := r.db.Pool.QueryRow(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE external_id=$1`, externalID)
    it, err := scanWorkItem(row)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return &it, nil
}

// insertHistorySQL stamps the item's changed date on the history row; a row
// without one falls back to ingest time.
const insertHistorySQL = `INSERT INTO work_item_history(work_item_id, state, changed_date)
    VALUES($1,$2,COALESCE($3, now()))`

func (r *Repository) InsertHistory(ctx context.Context, workItemID int64, state string, changedDate *time.Time) error {
    _, err := r.db.Pool.Exec(ctx, insertHistorySQL, workItemID, state, changedDate)
    return err
}

// MarkResolved stamps resolved_date once. An already resolved item keeps its
// original date.
func (r *Repository) MarkResolved(ctx context.Context, workItemID int64, resolved time.Time) error {
    _, err := r.db.Pool.Exec(ctx,
        `UPDATE work_items SET resolved_date=$2 WHERE id=$1 AND resolved_date IS NULL`, workItemID, resolved)
    return err
}

// SetLeadTime fills lead_time only when empty so recomputation never
// overwrites an already derived value.
func (r *Repository) SetLeadTime(ctx context.Context, workItemID int64, days int) error {
    _, err := r.db.Pool.Exec(ctx,
        `UPDATE work_items SET lead_time=$2 WHERE id=$1 AND lead_time IS NULL`, workItemID, days)
    return err
}

// ListItemsNeedingLeadTime returns resolved items whose lead_time was never
// derived.
func (r *Repository) ListItemsNeedingLeadTime(ctx context.Context) ([]domain.WorkItem, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT `+workItemColumns+` FROM work_items
        WHERE resolved_date IS NOT NULL AND created_date IS NOT NULL AND lead_time IS NULL`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.WorkItem
    for rows.Next() {
        it, err := scanWorkItem(rows)
        if err != nil { return nil, err }
        out = append(out, it)
    }
    return out, rows.Err()
}

// ListResolvedItems returns non-archived items with a resolved date,
// optionally limited to a creation-year. year == 0 means no year filter.
func (r *Repository) ListResolvedItems(ctx context.Context, year int) ([]domain.WorkItem, error) {
    q := `SELECT ` + workItemColumns + ` FROM work_items WHERE resolved_date IS NOT NULL AND NOT archived`
    args := []any{}
    if year > 0 {
        q += ` AND EXTRACT(YEAR FROM created_date) = $1`
        args = append(args, year)
    }
    q += ` ORDER BY resolved_date, id`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.WorkItem
    for rows.Next() {
        it, err := scanWorkItem(rows)
        if err != nil { return nil, err }
        out = append(out, it)
    }
    return out, rows.Err()
}

// CountResolvedInMonth counts items of one type resolved inside the month
// containing ref, and how many of them sit in the Closed state.
func (r *Repository) CountResolvedInMonth(ctx context.Context, ref time.Time, typ string) (total, closed int, err error) {
    first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
    next := first.AddDate(0, 1, 0)
    err = r.db.Pool.QueryRow(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE state = 'Closed')
        FROM work_items
        WHERE type = $1 AND resolved_date >= $2 AND resolved_date < $3`,
        typ, first, next).Scan(&total, &closed)
    return total, closed, err
}

func (r *Repository) UpsertDeliveryProgress(ctx context.Context, p domain.DeliveryProgress) error {
    _, err := r.db.Pool.Exec(ctx, `
        INSERT INTO delivery_progress(month, year, type, total_items, closed_items)
        VALUES($1,$2,$3,$4,$5)
        ON CONFLICT(month, type) DO UPDATE SET
            year=EXCLUDED.year,
            total_items=EXCLUDED.total_items,
            closed_items=EXCLUDED.closed_items`,
        p.Month, p.Year, p.Type, p.TotalItems, p.ClosedItems)
    return err
}

// UpsertSummaryBucket refreshes only the volume columns of a monthly summary
// bucket. Lead time and rework stay untouched until the next full recompute.
func (r *Repository) UpsertSummaryBucket(ctx context.Context, typ string, year, month, total int, closedPct float64) error {
    _, err := r.db.Pool.Exec(ctx, `
        INSERT INTO work_item_summary(type, year, month, total_count, closed_percentage)
        VALUES($1,$2,$3,$4,$5)
        ON CONFLICT(type, year, month) DO UPDATE SET
            total_count=EXCLUDED.total_count,
            closed_percentage=EXCLUDED.closed_percentage`,
        typ, year, month, total, closedPct)
    return err
}

// ReplaceWorkItemSummaries swaps the whole summary table for freshly built
// rows in one transaction.
func (r *Repository) ReplaceWorkItemSummaries(ctx context.Context, rows []domain.WorkItemSummary) error {
    tx, err := r.db.Pool.Begin(ctx)
    if err != nil { return err }
    defer tx.Rollback(ctx)
    if _, err := tx.Exec(ctx, `DELETE FROM work_item_summary`); err != nil { return err }
    batch := &pgx.Batch{}
    const q = `INSERT INTO work_item_summary(type, year, month, total_count, average_lead_time, closed_percentage, rework_percentage)
        VALUES($1,$2,$3,$4,$5,$6,$7)`
    for _, s := range rows {
        batch.Queue(q, s.Type, s.Year, s.Month, s.TotalCount, s.AverageLeadTime, s.ClosedPercentage, s.ReworkPercentage)
    }
    br := tx.SendBatch(ctx, batch)
    for range rows { if _, err := br.Exec(); err != nil { br.Close(); return err } }
    if err := br.Close(); err != nil { return err }
    return tx.Commit(ctx)
}

// ReplaceDeliveryProgress wipes the whole table and inserts the fresh rows
// in one transaction.
func (r *Repository) ReplaceDeliveryProgress(ctx context.Context, rows []domain.DeliveryProgress) error {
    tx, err := r.db.Pool.Begin(ctx)
    if err != nil { return err }
    defer tx.Rollback(ctx)
    if _, err := tx.Exec(ctx, `DELETE FROM delivery_progress`); err != nil { return err }
    batch := &pgx.Batch{}
    const q = `INSERT INTO delivery_progress(month, year, type, total_items, closed_items) VALUES($1,$2,$3,$4,$5)`
    for _, p := range rows { batch.Queue(q, p.Month, p.Year, p.Type, p.TotalItems, p.ClosedItems) }
    br := tx.SendBatch(ctx, batch)
    for range rows { if _, err := br.Exec(); err != nil { br.Close(); return err } }
    if err := br.Close(); err != nil { return err }
    return tx.Commit(ctx)
}

func (r *Repository) ReplaceBacklogSummaries(ctx context.Context, rows []domain.BacklogSummary) error {
    tx, err := r.db.Pool.Begin(ctx)
    if err != nil { return err }
    defer tx.Rollback(ctx)
    if _, err := tx.Exec(ctx, `DELETE FROM backlog_summary`); err != nil { return err }
    batch := &pgx.Batch{}
    const q = `INSERT INTO backlog_summary(month, year, type, backlog_count) VALUES($1,$2,$3,$4)`
    for _, b := range rows { batch.Queue(q, b.Month, b.Year, b.Type, b.BacklogCount) }
    br := tx.SendBatch(ctx, batch)
    for range rows { if _, err := br.Exec(); err != nil { br.Close(); return err } }
    if err := br.Close(); err != nil { return err }
    return tx.Commit(ctx)
}

// filterClause builds an optional WHERE over year and type, in that order.
func filterClause(year int, typ string) (string, []any) {
    var conds []string
    var args []any
    if year > 0 { args = append(args, year); conds = append(conds, fmt.Sprintf("year=$%d", len(args))) }
    if typ != "" { args = append(args, typ); conds = append(conds, fmt.Sprintf("type=$%d", len(args))) }
    if len(conds) == 0 { return "", nil }
    return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) ListSummaries(ctx context.Context, year int, typ string) ([]domain.WorkItemSummary, error) {
    q := `SELECT type, year, month, total_count, average_lead_time, closed_percentage, rework_percentage
        FROM work_item_summary`
    where, args := filterClause(year, typ)
    q += where + ` ORDER BY year, month, type`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.WorkItemSummary
    for rows.Next() {
        var s domain.WorkItemSummary
        if err := rows.Scan(&s.Type, &s.Year, &s.Month, &s.TotalCount, &s.AverageLeadTime, &s.ClosedPercentage, &s.ReworkPercentage); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (r *Repository) ListDeliveryProgress(ctx context.Context, year int, typ string) ([]domain.DeliveryProgress, error) {
    q := `SELECT month, year, type, total_items, closed_items FROM delivery_progress`
    where, args := filterClause(year, typ)
    q += where + ` ORDER BY month, type`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.DeliveryProgress
    for rows.Next() {
        var p domain.DeliveryProgress
        if err := rows.Scan(&p.Month, &p.Year, &p.Type, &p.TotalItems, &p.ClosedItems); err != nil { return nil, err }
        out = append(out, p)
    }
    return out, rows.Err()
}

func (r *Repository) ListBacklogSummaries(ctx context.Context, year int, typ string) ([]domain.BacklogSummary, error) {
    q := `SELECT month, year, type, backlog_count FROM backlog_summary`
    where, args := filterClause(year, typ)
    q += where + ` ORDER BY month, type`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.BacklogSummary
    for rows.Next() {
        var b domain.BacklogSummary
        if err := rows.Scan(&b.Month, &b.Year, &b.Type, &b.BacklogCount); err != nil { return nil, err }
        out = append(out, b)
    }
    return out, rows.Err()
}

// SummaryStats aggregates the monthly summary buckets for one year/month
// across all types.
type SummaryStats struct {
    Buckets   int
    AvgLead   float64
    MinLead   float64
    MaxLead   float64
    AvgRework float64
    MinRework float64
    MaxRework float64
}

func (r *Repository) GetSummaryStats(ctx context.Context, year, month int) (SummaryStats, error) {
    var s SummaryStats
    err := r.db.Pool.QueryRow(ctx, `
        SELECT COUNT(*),
            COALESCE(AVG(average_lead_time),0), COALESCE(MIN(average_lead_time),0), COALESCE(MAX(average_lead_time),0),
            COALESCE(AVG(rework_percentage),0), COALESCE(MIN(rework_percentage),0), COALESCE(MAX(rework_percentage),0)
        FROM work_item_summary WHERE year=$1 AND month=$2`, year, month).
        Scan(&s.Buckets, &s.AvgLead, &s.MinLead, &s.MaxLead, &s.AvgRework, &s.MinRework, &s.MaxRework)
    return s, err
}

// EnsureKPI inserts a KPI definition if the (name, period) slot is empty and
// returns its id either way.
func (r *Repository) EnsureKPI(ctx context.Context, k domain.KPI) (int64, error) {
    var id int64
    err := r.db.Pool.QueryRow(ctx, `
        INSERT INTO kpis(name, description, target_value, metric_type, current_value, work_item_type, start_date, end_date)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT(name, start_date, end_date) DO UPDATE SET description=EXCLUDED.description
        RETURNING id`,
        k.Name, k.Description, k.TargetValue, k.MetricType, k.CurrentValue, k.WorkItemType, k.StartDate, k.EndDate).Scan(&id)
    return id, err
}

func (r *Repository) SetKPIValue(ctx context.Context, id int64, value float64) error {
    _, err := r.db.Pool.Exec(ctx, `UPDATE kpis SET current_value=$2 WHERE id=$1`, id, value)
    return err
}

// ListKPIs returns KPI rows whose period covers the given date; a zero time
// returns everything.
func (r *Repository) ListKPIs(ctx context.Context, on time.Time) ([]domain.KPI, error) {
    q := `SELECT id, name, description, target_value, metric_type, current_value, work_item_type, start_date, end_date FROM kpis`
    args := []any{}
    if !on.IsZero() { q += ` WHERE start_date <= $1 AND end_date >= $1`; args = append(args, on) }
    q += ` ORDER BY start_date, name`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.KPI
    for rows.Next() {
        var k domain.KPI
        if err := rows.Scan(&k.ID, &k.Name, &k.Description, &k.TargetValue, &k.MetricType, &k.CurrentValue, &k.WorkItemType, &k.StartDate, &k.EndDate); err != nil {
            return nil, err
        }
        out = append(out, k)
    }
    return out, rows.Err()
}

// ETL runs

func (r *Repository) StartETLRun(ctx context.Context) (int64, error) {
    const q = `INSERT INTO etl_runs(started_at, success) VALUES(now(), false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishETLRun(ctx context.Context, id int64, extracted, loaded int, success bool, errStr string) error {
    const q = `UPDATE etl_runs SET finished_at=now(), items_extracted=$2, items_loaded=$3, success=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, extracted, loaded, success, errStr)
    return err
}

type LastRun struct {
    StartedAt      time.Time  `json:"started_at"`
    FinishedAt     *time.Time `json:"finished_at"`
    ItemsExtracted int        `json:"items_extracted"`
    ItemsLoaded    int        `json:"items_loaded"`
    Success        bool       `json:"success"`
    Error          string     `json:"error"`
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
    const q = `SELECT started_at, finished_at,
        coalesce(items_extracted,0), coalesce(items_loaded,0),
        coalesce(success,false), coalesce(error,'')
        FROM etl_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    lr := &LastRun{}
    if err := row.Scan(&lr.StartedAt, &lr.FinishedAt, &lr.ItemsExtracted, &lr.ItemsLoaded, &lr.Success, &lr.Error); err != nil {
        return nil, err
    }
    return lr, nil
}
