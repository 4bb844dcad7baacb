// Package session tags a single record or replay run with a sortable
// identifier for log correlation, the way a request id threads through a
// service's structured logs. A log's optional top-level "session_id" field
// is informational only: the checkpoint codec round-trips it into
// checkpoint.Log.SessionID, and neither replay nor verify reads it.
package session

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a session's ULID, lexicographically sortable by creation time so a
// log stream tailed across several runs stays in run order.
type ID struct {
	ulid.ULID
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New mints a fresh session ID from the current time. Successive calls
// within the same process are strictly increasing even within the same
// millisecond, via a monotonic entropy source.
func New() ID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ID{ulid.MustNew(ulid.Timestamp(time.Now()), entropy)}
}

// Parse parses a session ID previously rendered by String.
func Parse(s string) (ID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return ID{}, fmt.Errorf("session: parse %q: %w", s, err)
	}
	return ID{u}, nil
}

// String renders the session ID in its canonical Crockford base32 form.
func (id ID) String() string { return id.ULID.String() }

// Time reports when the session was minted.
func (id ID) Time() time.Time { return ulid.Time(id.ULID.Time()) }
