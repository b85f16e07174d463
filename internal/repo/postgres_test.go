package repo

import (
    "reflect"
    "testing"
)

func TestFilterClause(t *testing.T) {
    cases := []struct {
        year     int
        typ      string
        want     string
        wantArgs []any
    }{
        {0, "", "", nil},
        {2024, "", " WHERE year=$1", []any{2024}},
        {0, "Bug", " WHERE type=$1", []any{"Bug"}},
        {2024, "Bug", " WHERE year=$1 AND type=$2", []any{2024, "Bug"}},
    }
    for _, c := range cases {
        got, args := filterClause(c.year, c.typ)
        if got != c.want { t.Errorf("filterClause(%d, %q) = %q, want %q", c.year, c.typ, got, c.want) }
        if !reflect.DeepEqual(args, c.wantArgs) {
            t.Errorf("filterClause(%d, %q) args = %v, want %v", c.year, c.typ, args, c.wantArgs)
        }
    }
}
