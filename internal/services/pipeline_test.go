package services

import (
    "os"
    "path/filepath"
    "testing"
    "time"
)

func TestFileHasData(t *testing.T) {
    dir := t.TempDir()
    missing := filepath.Join(dir, "missing.csv")
    if fileHasData(missing) { t.Error("missing file should report no data") }

    empty := filepath.Join(dir, "empty.csv")
    if err := os.WriteFile(empty, nil, 0o644); err != nil { t.Fatal(err) }
    if fileHasData(empty) { t.Error("empty file should report no data") }

    headerOnly := filepath.Join(dir, "header.csv")
    if err := os.WriteFile(headerOnly, []byte("id,title,state\n"), 0o644); err != nil { t.Fatal(err) }
    if !fileHasData(headerOnly) { t.Error("header-only file still passes the gate") }

    full := filepath.Join(dir, "full.csv")
    if err := os.WriteFile(full, []byte("id\n1\n"), 0o644); err != nil { t.Fatal(err) }
    if !fileHasData(full) { t.Error("non-empty file should report data") }
}

func TestArchiveFile(t *testing.T) {
    dir := t.TempDir()
    archive := filepath.Join(dir, "archive")
    if err := os.MkdirAll(archive, 0o755); err != nil { t.Fatal(err) }
    src := filepath.Join(dir, "work_items_raw_2024-03-01.csv")
    if err := os.WriteFile(src, []byte("id\n1\n"), 0o644); err != nil { t.Fatal(err) }

    if err := archiveFile(src, archive); err != nil { t.Fatalf("archiveFile: %v", err) }
    if _, err := os.Stat(src); !os.IsNotExist(err) { t.Error("source should be gone after archiving") }
    if _, err := os.Stat(filepath.Join(archive, filepath.Base(src))); err != nil {
        t.Errorf("archived copy missing: %v", err)
    }

    if err := archiveFile(filepath.Join(dir, "nope.csv"), archive); err == nil {
        t.Error("archiving a missing file should fail")
    }
}

func TestCleanOldFiles(t *testing.T) {
    dir := t.TempDir()
    old := filepath.Join(dir, "old.csv")
    fresh := filepath.Join(dir, "fresh.csv")
    for _, p := range []string{old, fresh} {
        if err := os.WriteFile(p, []byte("x"), 0o644); err != nil { t.Fatal(err) }
    }
    stale := time.Now().AddDate(0, 0, -40)
    if err := os.Chtimes(old, stale, stale); err != nil { t.Fatal(err) }

    n, err := cleanOldFiles(dir, 30)
    if err != nil { t.Fatalf("cleanOldFiles: %v", err) }
    if n != 1 { t.Fatalf("removed %d files, want 1", n) }
    if _, err := os.Stat(old); !os.IsNotExist(err) { t.Error("stale file should be removed") }
    if _, err := os.Stat(fresh); err != nil { t.Error("fresh file should survive") }
}

func TestCleanOldFiles_MissingDirIsNoop(t *testing.T) {
    n, err := cleanOldFiles(filepath.Join(t.TempDir(), "nope"), 30)
    if err != nil || n != 0 { t.Fatalf("expected clean noop, got n=%d err=%v", n, err) }
}
