/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "time"
)

// RunPipeline sequences extract, transform, load and the post-load
// maintenance for one batch. Stage gating goes through the filesystem: a
// stage that produced no artifact ends the run cleanly and the remaining
// stages are skipped. Failures are recorded on the run row, never panicked.
func (s *Service) RunPipeline(ctx context.Context) error {
    runID, err := s.store.StartETLRun(ctx)
    if err != nil { return err }
    extracted, loaded, runErr := s.runStages(ctx)
    success := runErr == nil
    errStr := ""
    if runErr != nil { errStr = runErr.Error() }
    if err := s.store.FinishETLRun(ctx, runID, extracted, loaded, success, errStr); err != nil {
        s.log.Error().Err(err).Int64("run", runID).Msg("pipeline: run bookkeeping failed")
    }
    if runErr != nil {
        s.log.Error().Err(runErr).Int64("run", runID).Msg("pipeline: run failed")
        return runErr
    }
    s.log.Info().Int64("run", runID).Int("extracted", extracted).Int("loaded", loaded).Msg("pipeline: run complete")
    return nil
}

func (s *Service) runStages(ctx context.Context) (extracted, loaded int, err error) {
    for _, dir := range []string{s.cfg.RawDir, s.cfg.ProcessedDir, s.cfg.ArchiveDir} {
        if err := os.MkdirAll(dir, 0o755); err != nil { return 0, 0, err }
    }
    day := time.Now().Format("2006-01-02")
    rawPath := filepath.Join(s.cfg.RawDir, fmt.Sprintf("work_items_raw_%s.csv", day))
    processedPath := filepath.Join(s.cfg.ProcessedDir, fmt.Sprintf("work_items_transformed_%s.csv", day))

    extracted, err = s.extract.Run(ctx, rawPath)
    if err != nil { return 0, 0, fmt.Errorf("extract: %w", err) }
    if !fileHasData(rawPath) {
        s.log.Warn().Str("path", rawPath).Msg("pipeline: no raw artifact, stopping")
        return extracted, 0, nil
    }

    if err := s.transform.Run(rawPath, processedPath); err != nil {
        return extracted, 0, fmt.Errorf("transform: %w", err)
    }
    if !fileHasData(processedPath) {
        s.log.Warn().Str("path", processedPath).Msg("pipeline: no processed artifact, stopping")
        return extracted, 0, nil
    }

    items, err := s.load.Run(ctx, processedPath)
    if err != nil { return extracted, 0, fmt.Errorf("load: %w", err) }
    loaded = len(items)

    for _, it := range items {
        if err := s.AfterWorkItemWrite(ctx, it); err != nil {
            s.log.Error().Err(err).Int64("item", it.ID).Msg("pipeline: maintenance failed")
        }
    }

    if err := archiveFile(rawPath, s.cfg.ArchiveDir); err != nil {
        s.log.Error().Err(err).Str("path", rawPath).Msg("pipeline: archive failed")
    }
    for _, dir := range []string{s.cfg.RawDir, s.cfg.ProcessedDir, s.cfg.ArchiveDir} {
        if n, err := cleanOldFiles(dir, s.cfg.RetentionDays); err != nil {
            s.log.Error().Err(err).Str("dir", dir).Msg("pipeline: retention cleanup failed")
        } else if n > 0 {
            s.log.Info().Int("files", n).Str("dir", dir).Msg("pipeline: old files removed")
        }
    }
    return extracted, loaded, nil
}

// fileHasData reports whether a stage artifact exists and is non-empty. A
// header-only file passes the gate; downstream stages handle zero data rows.
func fileHasData(path string) bool {
    info, err := os.Stat(path)
    return err == nil && info.Size() > 0
}

func archiveFile(path, archiveDir string) error {
    if _, err := os.Stat(path); err != nil { return err }
    return os.Rename(path, filepath.Join(archiveDir, filepath.Base(path)))
}

// cleanOldFiles removes regular files older than retentionDays, returning
// how many were deleted.
func cleanOldFiles(dir string, retentionDays int) (int, error) {
    entries, err := os.ReadDir(dir)
    if err != nil {
        if os.IsNotExist(err) { return 0, nil }
        return 0, err
    }
    cutoff := time.Now().AddDate(0, 0, -retentionDays)
    removed := 0
    for _, e := range entries {
        if e.IsDir() { continue }
        info, err := e.Info()
        if err != nil { continue }
        if info.ModTime().Before(cutoff) {
            if err := os.Remove(filepath.Join(dir, e.Name())); err != nil { return removed, err }
            removed++
        }
    }
    return removed, nil
}
