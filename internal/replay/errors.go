package replay

import (
	"fmt"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

// DivergenceError is raised when the target exited while unhit records
// remained — the replayed interleaving diverged from the recorded one. A
// breakpoint-less stop while draining is not a divergence; it ends the
// drain. It is fatal to replay and carries the first still-unhit record.
type DivergenceError struct {
	FirstUnhit checkpoint.Record
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("replay: divergence detected, first unhit record: %s", e.FirstUnhit)
}

// SetupError reports a fatal failure before the event loop starts: an
// unknown symbol, or the target could not be paused at entry.
type SetupError struct {
	Reason string
	Err    error
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("replay: setup failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("replay: setup failed: %s", e.Reason)
}

func (e *SetupError) Unwrap() error { return e.Err }
