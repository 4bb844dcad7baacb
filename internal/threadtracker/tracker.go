// Package threadtracker maintains the live-thread snapshot the Replay and
// Record Orchestrators consult whenever the debugger reports a new-thread or
// thread-exit event.
package threadtracker

import (
	"errors"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

// ErrAmbiguousBirth is returned by NewlyBornSingleton when the most recent
// Refresh produced zero or more than one newly-born thread id. The
// orchestrator relies on the debugger delivering at most one new-thread
// event per thread creation; seeing more than one id here means that
// assumption broke.
var ErrAmbiguousBirth = errors.New("threadtracker: ambiguous thread birth")

// Tracker holds the set of thread ids the orchestrator currently believes
// are alive, plus the diff computed by the most recent Refresh.
type Tracker struct {
	alive map[int]struct{}

	newlyBorn []int
	exited    []int
}

// New returns a Tracker seeded with the main thread, which is always live
// once the target is paused at its entry point.
func New() *Tracker {
	t := &Tracker{alive: make(map[int]struct{})}
	t.alive[checkpoint.MainThreadID] = struct{}{}
	return t
}

// Refresh replaces the live set with current and returns the ids that
// appeared (newlyBorn) and disappeared (exited) relative to the previous
// snapshot.
func (t *Tracker) Refresh(current []int) (newlyBorn, exited []int) {
	next := make(map[int]struct{}, len(current))
	for _, id := range current {
		next[id] = struct{}{}
	}

	for id := range next {
		if _, ok := t.alive[id]; !ok {
			newlyBorn = append(newlyBorn, id)
		}
	}
	for id := range t.alive {
		if _, ok := next[id]; !ok {
			exited = append(exited, id)
		}
	}

	t.alive = next
	t.newlyBorn = newlyBorn
	t.exited = exited
	return newlyBorn, exited
}

// NewlyBornSingleton returns the single thread id that appeared in the most
// recent Refresh. It fails with ErrAmbiguousBirth if that refresh produced
// zero or more than one newly-born id.
func (t *Tracker) NewlyBornSingleton() (int, error) {
	if len(t.newlyBorn) != 1 {
		return 0, ErrAmbiguousBirth
	}
	return t.newlyBorn[0], nil
}

// Alive reports whether id is in the current live set.
func (t *Tracker) Alive(id int) bool {
	_, ok := t.alive[id]
	return ok
}

// AliveIDs returns a snapshot of the current live thread ids. The order is
// unspecified.
func (t *Tracker) AliveIDs() []int {
	ids := make([]int, 0, len(t.alive))
	for id := range t.alive {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of currently live threads.
func (t *Tracker) Count() int {
	return len(t.alive)
}
