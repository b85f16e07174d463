package etl

import (
    "context"
    "errors"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/adapters/azdevops"
)

type fakeTracker struct {
    ids     []int64
    listErr error
    items   map[int64]azdevops.WorkItemRecord
    failIDs map[int64]bool
}

func (f *fakeTracker) ListWorkItemIDs(ctx context.Context) ([]int64, error) {
    return f.ids, f.listErr
}

func (f *fakeTracker) GetWorkItem(ctx context.Context, id int64) (azdevops.WorkItemRecord, error) {
    if f.failIDs[id] { return azdevops.WorkItemRecord{}, errors.New("boom") }
    return f.items[id], nil
}

type fakeCheckpoint struct {
    saved []int64
}

func (f *fakeCheckpoint) Save(lastID int64) error {
    f.saved = append(f.saved, lastID)
    return nil
}

func newTestExtractor(tr *fakeTracker, ck *fakeCheckpoint) *Extractor {
    e := NewExtractor(tr, ck, zerolog.Nop())
    e.pause = 0
    return e
}

func TestFetchDetails_SkipsFailuresAndAdvancesCheckpoint(t *testing.T) {
    tr := &fakeTracker{
        ids: []int64{1, 2, 3},
        items: map[int64]azdevops.WorkItemRecord{
            1: {ID: 1, Title: "Task one", State: "Active"},
            3: {ID: 3, Title: "Task three", State: "Closed"},
        },
        failIDs: map[int64]bool{2: true},
    }
    ck := &fakeCheckpoint{}
    e := newTestExtractor(tr, ck)

    recs := e.FetchDetails(context.Background(), tr.ids, 0)
    if len(recs) != 2 { t.Fatalf("expected 2 records, got %d", len(recs)) }
    if recs[0].ID != 1 || recs[1].ID != 3 { t.Fatalf("unexpected records: %+v", recs) }
    if len(ck.saved) != 2 || ck.saved[0] != 1 || ck.saved[1] != 3 {
        t.Fatalf("checkpoint should advance only on success, got %v", ck.saved)
    }
}

func TestFetchDetails_StartIndex(t *testing.T) {
    tr := &fakeTracker{
        ids: []int64{1, 2, 3},
        items: map[int64]azdevops.WorkItemRecord{
            1: {ID: 1, Title: "a"}, 2: {ID: 2, Title: "b"}, 3: {ID: 3, Title: "c"},
        },
    }
    e := newTestExtractor(tr, &fakeCheckpoint{})
    recs := e.FetchDetails(context.Background(), tr.ids, 2)
    if len(recs) != 1 || recs[0].ID != 3 { t.Fatalf("expected only item 3, got %+v", recs) }
}

func TestRun_AbortsWhenListingFails(t *testing.T) {
    tr := &fakeTracker{listErr: errors.New("wiql rejected")}
    e := newTestExtractor(tr, &fakeCheckpoint{})
    path := filepath.Join(t.TempDir(), "raw.csv")
    if _, err := e.Run(context.Background(), path); err == nil {
        t.Fatal("expected listing failure to abort extraction")
    }
    if _, err := os.Stat(path); !os.IsNotExist(err) {
        t.Fatal("no raw file should exist after aborted listing")
    }
}

func TestWriteRaw_DropsAllEmptyRows(t *testing.T) {
    e := newTestExtractor(&fakeTracker{}, &fakeCheckpoint{})
    path := filepath.Join(t.TempDir(), "raw.csv")
    recs := []azdevops.WorkItemRecord{
        {ID: 7, Title: "Bug: login", State: "Active", CreatedDate: "2024-01-05T10:00:00Z"},
        {}, // all fields empty
    }
    if err := e.WriteRaw(recs, path); err != nil { t.Fatalf("WriteRaw: %v", err) }
    b, err := os.ReadFile(path)
    if err != nil { t.Fatal(err) }
    lines := strings.Split(strings.TrimSpace(string(b)), "\n")
    if len(lines) != 2 { t.Fatalf("expected header + 1 row, got %d lines: %s", len(lines), b) }
    if lines[0] != strings.Join(rawHeader, ",") { t.Fatalf("unexpected header: %s", lines[0]) }
}

func TestWriteRaw_EmptyInputWritesNothing(t *testing.T) {
    e := newTestExtractor(&fakeTracker{}, &fakeCheckpoint{})
    path := filepath.Join(t.TempDir(), "raw.csv")
    if err := e.WriteRaw(nil, path); err != nil { t.Fatalf("WriteRaw: %v", err) }
    if _, err := os.Stat(path); !os.IsNotExist(err) {
        t.Fatal("empty record set must not create a file")
    }
}
