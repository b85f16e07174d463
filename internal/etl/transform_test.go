package etl

import (
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/rs/zerolog"
)

func writeFixture(t *testing.T, lines ...string) string {
    t.Helper()
    path := filepath.Join(t.TempDir(), "raw.csv")
    if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
        t.Fatal(err)
    }
    return path
}

func TestTransform_ConvertsDatesToDayPrecision(t *testing.T) {
    in := writeFixture(t,
        "id,System.Title,System.State,System.CreatedDate,System.ChangedDate,System.AssignedTo",
        "10,Bug: crash,Active,2024-03-01T08:15:00Z,2024-03-05T12:00:00.1234567Z,Alice",
    )
    out := filepath.Join(t.TempDir(), "processed.csv")
    tr := NewTransformer(zerolog.Nop())
    if err := tr.Run(in, out); err != nil { t.Fatalf("Run: %v", err) }

    _, rows, err := readCSV(out)
    if err != nil { t.Fatal(err) }
    if len(rows) != 1 { t.Fatalf("expected 1 row, got %d", len(rows)) }
    if rows[0][3] != "01/03/2024" { t.Fatalf("created date = %q", rows[0][3]) }
    if rows[0][4] != "05/03/2024" { t.Fatalf("changed date = %q", rows[0][4]) }
}

func TestTransform_MissingColumnAbortsWithoutOutput(t *testing.T) {
    in := writeFixture(t,
        "id,System.Title,System.CreatedDate,System.ChangedDate",
        "10,Task one,2024-03-01T08:15:00Z,2024-03-05T12:00:00Z",
    )
    out := filepath.Join(t.TempDir(), "processed.csv")
    tr := NewTransformer(zerolog.Nop())
    if err := tr.Run(in, out); err == nil {
        t.Fatal("expected error for missing System.State column")
    }
    if _, err := os.Stat(out); !os.IsNotExist(err) {
        t.Fatal("no output file should be written when validation fails")
    }
}

func TestTransform_UnparseableDateBecomesEmpty(t *testing.T) {
    in := writeFixture(t,
        "id,System.Title,System.State,System.CreatedDate,System.ChangedDate,System.AssignedTo",
        "11,Task two,New,not-a-date,2024-03-05T12:00:00Z,Bob",
    )
    out := filepath.Join(t.TempDir(), "processed.csv")
    tr := NewTransformer(zerolog.Nop())
    if err := tr.Run(in, out); err != nil { t.Fatalf("Run: %v", err) }

    _, rows, err := readCSV(out)
    if err != nil { t.Fatal(err) }
    if rows[0][3] != "" { t.Fatalf("bad date should be nulled, got %q", rows[0][3]) }
    if rows[0][4] != "05/03/2024" { t.Fatalf("changed date = %q", rows[0][4]) }
}

func TestTransform_EmptyFileFails(t *testing.T) {
    path := filepath.Join(t.TempDir(), "raw.csv")
    if err := os.WriteFile(path, nil, 0o644); err != nil { t.Fatal(err) }
    tr := NewTransformer(zerolog.Nop())
    if err := tr.Run(path, filepath.Join(t.TempDir(), "out.csv")); err == nil {
        t.Fatal("expected error for empty raw file")
    }
}
