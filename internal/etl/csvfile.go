package etl

import (
    "encoding/csv"
    "fmt"
    "os"
)

// readCSV loads a delimited artifact into a header row plus data rows.
func readCSV(path string) ([]string, [][]string, error) {
    f, err := os.Open(path)
    if err != nil { return nil, nil, err }
    defer f.Close()
    recs, err := csv.NewReader(f).ReadAll()
    if err != nil { return nil, nil, err }
    if len(recs) == 0 { return nil, nil, fmt.Errorf("empty file %s", path) }
    return recs[0], recs[1:], nil
}

func writeCSV(path string, header []string, rows [][]string) error {
    f, err := os.Create(path)
    if err != nil { return err }
    defer f.Close()
    w := csv.NewWriter(f)
    if err := w.Write(header); err != nil { return err }
    for _, row := range rows {
        if err := w.Write(row); err != nil { return err }
    }
    w.Flush()
    return w.Error()
}

func columnIndex(header []string) map[string]int {
    idx := make(map[string]int, len(header))
    for i, name := range header { idx[name] = i }
    return idx
}

func missingColumns(header, required []string) []string {
    idx := columnIndex(header)
    var missing []string
    for _, name := range required {
        if _, ok := idx[name]; !ok { missing = append(missing, name) }
    }
    return missing
}
