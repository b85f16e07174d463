package etl

import (
    "fmt"
    "time"

    "github.com/rs/zerolog"
)

var requiredTransformColumns = []string{"System.CreatedDate", "System.ChangedDate", "System.Title", "System.State"}

type Transformer struct {
    log zerolog.Logger
}

func NewTransformer(log zerolog.Logger) *Transformer { return &Transformer{log: log} }

// Run validates the raw artifact and rewrites its date columns to DD/MM/YYYY.
// Missing required columns abort the stage before anything is written; a date
// that fails to parse is nulled and logged, and the row still goes through.
func (t *Transformer) Run(inputPath, outputPath string) error {
    header, rows, err := readCSV(inputPath)
    if err != nil { return fmt.Errorf("reading raw file: %w", err) }
    t.log.Info().Str("path", inputPath).Int("rows", len(rows)).Msg("transform: raw file loaded")

    if missing := missingColumns(header, requiredTransformColumns); len(missing) > 0 {
        t.log.Error().Strs("columns", missing).Msg("transform: required columns missing, aborting")
        return fmt.Errorf("transform: missing columns %v", missing)
    }

    idx := columnIndex(header)
    created := idx["System.CreatedDate"]
    changed := idx["System.ChangedDate"]
    incomplete := 0
    for _, row := range rows {
        row[created] = t.toDayPrecision(row[created])
        row[changed] = t.toDayPrecision(row[changed])
        for _, v := range row {
            if v == "" { incomplete++; break }
        }
    }
    if incomplete > 0 {
        t.log.Warn().Int("rows", incomplete).Msg("transform: rows with empty fields after transformation")
    }

    if err := writeCSV(outputPath, header, rows); err != nil { return err }
    t.log.Info().Str("path", outputPath).Int("rows", len(rows)).Msg("transform: processed file written")
    return nil
}

// toDayPrecision converts an ISO-8601 UTC timestamp, with or without
// fractional seconds, to DD/MM/YYYY. Unparseable values come back empty.
func (t *Transformer) toDayPrecision(s string) string {
    if s == "" { return "" }
    ts, err := time.Parse(time.RFC3339Nano, s)
    if err != nil {
        t.log.Error().Err(err).Str("value", s).Msg("transform: date parse failed")
        return ""
    }
    return ts.Format("02/01/2006")
}
