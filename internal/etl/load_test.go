package etl

import (
    "context"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/rs/zerolog"

    "github.com/vivinfor/data-sync-pipeline-automation/internal/domain"
)

type fakeStore struct {
    got    []domain.WorkItem
    called bool
}

func (f *fakeStore) LoadWorkItems(ctx context.Context, items []domain.WorkItem) ([]domain.WorkItem, error) {
    f.called = true
    f.got = items
    return items, nil
}

func TestInferType(t *testing.T) {
    cases := []struct {
        title, want string
    }{
        {"Bug: login fails", domain.TypeBug},
        {"Task: update docs", domain.TypeTask},
        {"User Story: checkout flow", domain.TypeUserStory},
        {"Bug in Task runner", domain.TypeBug}, // Bug wins over Task
        {"bug: lowercase does not match", domain.TypeTask},
        {"Refactor billing", domain.TypeTask},
    }
    for _, c := range cases {
        if got := InferType(c.title); got != c.want {
            t.Errorf("InferType(%q) = %q, want %q", c.title, got, c.want)
        }
    }
}

func TestParseFlexibleDate(t *testing.T) {
    d, err := ParseFlexibleDate("05/03/2024")
    if err != nil { t.Fatalf("DD/MM/YYYY: %v", err) }
    if d.Day() != 5 || d.Month() != time.March || d.Year() != 2024 {
        t.Fatalf("unexpected date %v", d)
    }
    d, err = ParseFlexibleDate("2024-03-05")
    if err != nil { t.Fatalf("YYYY-MM-DD: %v", err) }
    if d.Day() != 5 || d.Month() != time.March { t.Fatalf("unexpected date %v", d) }
    if _, err := ParseFlexibleDate("03-05-2024"); err == nil {
        t.Fatal("expected error for unsupported format")
    }
}

func writeLoadFixture(t *testing.T, lines ...string) string {
    t.Helper()
    path := filepath.Join(t.TempDir(), "processed.csv")
    if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
        t.Fatal(err)
    }
    return path
}

func TestLoad_BuildsCanonicalItems(t *testing.T) {
    path := writeLoadFixture(t,
        "id,System.Title,System.State,System.CreatedDate,System.ChangedDate,System.AssignedTo",
        "42,Bug: crash on save,Active,05/03/2024,07/03/2024,Alice",
        "43,User Story: onboarding,Resolved,2024-02-01,,",
    )
    store := &fakeStore{}
    l := NewLoader(store, zerolog.Nop())
    items, err := l.Run(context.Background(), path)
    if err != nil { t.Fatalf("Run: %v", err) }
    if len(items) != 2 { t.Fatalf("expected 2 items, got %d", len(items)) }

    first := store.got[0]
    if first.ExternalID != 42 || first.Type != domain.TypeBug || first.State != "Active" {
        t.Fatalf("unexpected first item: %+v", first)
    }
    if first.CreatedDate == nil || first.CreatedDate.Day() != 5 {
        t.Fatalf("created date not parsed: %+v", first.CreatedDate)
    }
    if first.AssignedTo != "Alice" { t.Fatalf("assigned to = %q", first.AssignedTo) }

    second := store.got[1]
    if second.Type != domain.TypeUserStory { t.Fatalf("second type = %q", second.Type) }
    if second.CreatedDate == nil || second.CreatedDate.Year() != 2024 {
        t.Fatalf("ISO fallback not parsed: %+v", second.CreatedDate)
    }
    if second.ChangedDate != nil { t.Fatal("empty date should load as nil") }
}

func TestLoad_MissingColumnLeavesStoreUntouched(t *testing.T) {
    path := writeLoadFixture(t,
        "id,System.Title,System.State,System.CreatedDate",
        "42,Task one,Active,05/03/2024",
    )
    store := &fakeStore{}
    l := NewLoader(store, zerolog.Nop())
    if _, err := l.Run(context.Background(), path); err == nil {
        t.Fatal("expected error for missing columns")
    }
    if store.called { t.Fatal("store must not be touched when validation fails") }
}

func TestLoad_BadIDAborts(t *testing.T) {
    path := writeLoadFixture(t,
        "id,System.Title,System.State,System.CreatedDate,System.ChangedDate,System.AssignedTo",
        "not-a-number,Task one,Active,05/03/2024,06/03/2024,Alice",
    )
    store := &fakeStore{}
    l := NewLoader(store, zerolog.Nop())
    if _, err := l.Run(context.Background(), path); err == nil {
        t.Fatal("expected error for non-numeric id")
    }
    if store.called { t.Fatal("store must not be touched for a malformed file") }
}
