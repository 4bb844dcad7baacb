package checkpoint

import (
	stdjson "encoding/json"
	"fmt"
	"os"
)

// Log is an ordered sequence of checkpoint records plus the thread
// start-routine symbols that seeded breakpoints during recording.
// EntryPoints and SessionID are additive fields the original record/replay
// split along syrup/replay_writer never needed to round-trip: syrup's verify
// pass uses EntryPoints for diagnostics (see SPEC_FULL.md §3), and
// SessionID is only carried through for log correlation.
type Log struct {
	Records             []Record
	ThreadStartRoutines []string
	EntryPoints         []Location
	SessionID           string
}

// Validate checks the well-formedness invariants: ids run
// 0..N-1 in order and the first record belongs to the main thread. Pairing
// every created_thread record with its creator_thread is the Creation
// Matcher's job, not a structural property of a loaded log, so it is not
// checked here.
func (l *Log) Validate() error {
	if len(l.Records) == 0 {
		return nil
	}
	if l.Records[0].Thread != MainThreadID {
		return fmt.Errorf("checkpoint: first record must belong to thread %d, got %d", MainThreadID, l.Records[0].Thread)
	}
	for i, r := range l.Records {
		if r.ID != i {
			return fmt.Errorf("checkpoint: record at index %d has id %d, want %d", i, r.ID, i)
		}
	}
	return nil
}

// LoadFile reads and decodes a checkpoint log from disk.
func LoadFile(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	l, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %s: %w", path, err)
	}
	return l, nil
}

// SaveFile encodes and writes a checkpoint log to disk with the same
// indentation width (two spaces).
func SaveFile(path string, l *Log) error {
	data, err := Marshal(l)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	pretty, err := indentJSON(data)
	if err != nil {
		return fmt.Errorf("checkpoint: indent: %w", err)
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	return nil
}

// indentJSON re-indents compact JSON with a two-space width, matching the
// formatting of the checkpoint logs syrup's predecessor produced. It always
// goes through encoding/json regardless of which codec encoded the original
// bytes, since indentation is a one-off formatting step, not hot-path work.
func indentJSON(data []byte) ([]byte, error) {
	raw := stdjson.RawMessage(data)
	return stdjson.MarshalIndent(&raw, "", "  ")
}
