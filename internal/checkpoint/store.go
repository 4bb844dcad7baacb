package checkpoint

import "errors"

// Errors returned by Store operations. Callers are expected to match these
// with errors.Is; they are not wrapped with additional context because the
// orchestrators add their own (thread, location) detail at the call site.
var (
	// ErrLogExhausted is returned by NextUnhit when every record has Hit set.
	ErrLogExhausted = errors.New("checkpoint: log exhausted")

	// ErrNoMoreForThread is returned by NextUnhitFor when a thread has no
	// remaining unhit records, even though other threads may still have some.
	ErrNoMoreForThread = errors.New("checkpoint: no more records for thread")

	// ErrAlreadyHit is returned by MarkHit when the record was already hit.
	ErrAlreadyHit = errors.New("checkpoint: record already hit")

	// ErrOutOfOrder is returned by MarkHit when the record being hit is not
	// the next unhit record for its own thread, violating intra-thread order.
	ErrOutOfOrder = errors.New("checkpoint: record hit out of intra-thread order")
)

// Store is the stateful view over a Log that a replay session consults one
// record at a time: it tracks which records have been hit and enforces that,
// within a single thread, records are only ever hit in ascending ID order.
type Store struct {
	log *Log

	// nextByThread holds, for each thread seen so far, the index into
	// log.Records of that thread's next candidate record. It advances only
	// on MarkHit, never on a lookup, so repeated NextUnhitFor calls are
	// side-effect free.
	nextByThread map[int]int
}

// NewStore builds a Store over log. The log's records are assumed to already
// be in global ID order, as produced by the Record Orchestrator or loaded
// from disk.
func NewStore(log *Log) *Store {
	return &Store{
		log:          log,
		nextByThread: make(map[int]int),
	}
}

// Log returns the underlying checkpoint log.
func (s *Store) Log() *Log {
	return s.log
}

// NextUnhit returns the lowest-ID record that has not yet been hit, across
// all threads. It returns ErrLogExhausted once every record has been hit.
func (s *Store) NextUnhit() (Record, error) {
	for _, r := range s.log.Records {
		if !r.Hit {
			return r, nil
		}
	}
	return Record{}, ErrLogExhausted
}

// NextUnhitFor returns the next unhit record belonging to thread t, scanning
// forward from that thread's last matched record. It returns
// ErrNoMoreForThread if thread t has no remaining records.
func (s *Store) NextUnhitFor(t int) (Record, error) {
	start := s.nextByThread[t]
	for i := start; i < len(s.log.Records); i++ {
		r := s.log.Records[i]
		if r.Thread != t {
			continue
		}
		if !r.Hit {
			return r, nil
		}
	}
	return Record{}, ErrNoMoreForThread
}

// RemainingFor reports how many unhit records remain for thread t.
func (s *Store) RemainingFor(t int) int {
	n := 0
	for _, r := range s.log.Records {
		if r.Thread == t && !r.Hit {
			n++
		}
	}
	return n
}

// Matches reports whether the single global next-unhit record is at loc and
// belongs to thread. The Replay Orchestrator calls this from inside a
// stop-event callback to decide whether the thread that just hit a
// shared-variable breakpoint is the one whose turn it is, or an unrelated
// thread racing on the same address.
func (s *Store) Matches(loc Location, thread int) bool {
	r, err := s.NextUnhit()
	if err != nil {
		return false
	}
	return r.Location == loc && r.Thread == thread
}

// MarkHit records that r has been observed, advancing thread-local
// bookkeeping. It returns ErrAlreadyHit if r.Hit was already set, and
// ErrOutOfOrder if some earlier unhit record on the same thread exists —
// replay must hit a thread's records strictly in the order they were
// recorded.
func (s *Store) MarkHit(r Record) error {
	if r.ID < 0 || r.ID >= len(s.log.Records) {
		return ErrOutOfOrder
	}
	stored := &s.log.Records[r.ID]
	if stored.Hit {
		return ErrAlreadyHit
	}

	next, err := s.NextUnhitFor(stored.Thread)
	if err != nil || next.ID != stored.ID {
		return ErrOutOfOrder
	}

	stored.Hit = true
	s.nextByThread[stored.Thread] = stored.ID + 1
	return nil
}

// Done reports whether every record in the log has been hit.
func (s *Store) Done() bool {
	_, err := s.NextUnhit()
	return errors.Is(err, ErrLogExhausted)
}
