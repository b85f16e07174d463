package repo

import "context"

// Init applies the schema. Statements are idempotent so the call is safe on
// every startup.
func (d *DB) Init(ctx context.Context) error {
    for _, q := range schema {
        if _, err := d.Pool.Exec(ctx, q); err != nil { return err }
    }
    return nil
}

var schema = []string{
    `CREATE TABLE IF NOT EXISTS work_items (
        id            BIGSERIAL PRIMARY KEY,
        external_id   BIGINT NOT NULL UNIQUE,
        title         TEXT NOT NULL DEFAULT '',
        type          TEXT NOT NULL DEFAULT 'Task',
        state         TEXT NOT NULL DEFAULT '',
        created_date  DATE,
        changed_date  DATE,
        resolved_date DATE,
        lead_time     INT,
        archived      BOOLEAN NOT NULL DEFAULT FALSE,
        assigned_to   TEXT NOT NULL DEFAULT ''
    )`,
    `CREATE INDEX IF NOT EXISTS idx_work_items_resolved ON work_items(resolved_date)`,
    `CREATE INDEX IF NOT EXISTS idx_work_items_state ON work_items(state)`,
    `CREATE TABLE IF NOT EXISTS work_item_history (
        id           BIGSERIAL PRIMARY KEY,
        work_item_id BIGINT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
        state        TEXT NOT NULL,
        changed_date TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
    `CREATE INDEX IF NOT EXISTS idx_history_item ON work_item_history(work_item_id)`,
    `CREATE TABLE IF NOT EXISTS work_item_summary (
        id                BIGSERIAL PRIMARY KEY,
        type              TEXT NOT NULL,
        year              INT NOT NULL,
        month             INT NOT NULL,
        total_count       INT NOT NULL DEFAULT 0,
        average_lead_time DOUBLE PRECISION NOT NULL DEFAULT 0,
        closed_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
        rework_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
        UNIQUE(type, year, month)
    )`,
    `CREATE TABLE IF NOT EXISTS delivery_progress (
        id           BIGSERIAL PRIMARY KEY,
        month        DATE NOT NULL,
        year         INT NOT NULL,
        type         TEXT NOT NULL,
        total_items  INT NOT NULL DEFAULT 0,
        closed_items INT NOT NULL DEFAULT 0,
        UNIQUE(month, type)
    )`,
    `CREATE TABLE IF NOT EXISTS backlog_summary (
        id            BIGSERIAL PRIMARY KEY,
        month         DATE NOT NULL,
        year          INT NOT NULL,
        type          TEXT NOT NULL,
        backlog_count INT NOT NULL DEFAULT 0,
        UNIQUE(month, type)
    )`,
    `CREATE TABLE IF NOT EXISTS kpis (
        id             BIGSERIAL PRIMARY KEY,
        name           TEXT NOT NULL,
        description    TEXT NOT NULL DEFAULT '',
        target_value   DOUBLE PRECISION NOT NULL,
        metric_type    TEXT NOT NULL,
        current_value  DOUBLE PRECISION NOT NULL DEFAULT 0,
        work_item_type TEXT NOT NULL DEFAULT '',
        start_date     DATE NOT NULL,
        end_date       DATE NOT NULL,
        UNIQUE(name, start_date, end_date)
    )`,
    `CREATE TABLE IF NOT EXISTS etl_runs (
        id              BIGSERIAL PRIMARY KEY,
        started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
        finished_at     TIMESTAMPTZ,
        items_extracted INT,
        items_loaded    INT,
        success         BOOLEAN NOT NULL DEFAULT FALSE,
        error           TEXT
    )`,
}
