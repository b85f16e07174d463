package checkpoint

import (
    "encoding/json"
    "os"
    "path/filepath"

    "github.com/rs/zerolog"
)

// Store persists extraction progress as a single JSON scalar outside the
// relational store, so a wiped database does not lose the extract position.
type Store struct {
    path string
    log  zerolog.Logger
}

type record struct {
    LastID int64 `json:"last_id"`
}

func NewStore(path string, log zerolog.Logger) *Store {
    return &Store{path: path, log: log}
}

// Save overwrites the checkpoint with the id of the last extracted item.
func (s *Store) Save(lastID int64) error {
    if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil { return err }
    b, err := json.Marshal(record{LastID: lastID})
    if err != nil { return err }
    return os.WriteFile(s.path, b, 0o644)
}

// Load returns the last saved id, or 0 when the checkpoint is missing or
// unreadable (both are logged, neither is fatal).
func (s *Store) Load() int64 {
    b, err := os.ReadFile(s.path)
    if err != nil {
        if !os.IsNotExist(err) { s.log.Warn().Err(err).Str("path", s.path).Msg("checkpoint read failed") }
        return 0
    }
    var r record
    if err := json.Unmarshal(b, &r); err != nil {
        s.log.Warn().Err(err).Str("path", s.path).Msg("checkpoint parse failed")
        return 0
    }
    return r.LastID
}

// ResumeIndex maps a saved id back to the position after it in a freshly
// listed id sequence. Unknown or zero ids resume from the start.
func ResumeIndex(ids []int64, lastID int64) int {
    if lastID == 0 { return 0 }
    for i, id := range ids {
        if id == lastID { return i + 1 }
    }
    return 0
}
