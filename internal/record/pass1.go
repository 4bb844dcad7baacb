package record

import (
	"go.uber.org/zap"

	"github.com/otley-syrup/syrup/internal/checkpoint"
	"github.com/otley-syrup/syrup/internal/gdbgw"
)

// runPass1 discovers the set of PCs at which the target creates threads: it
// catches the clone syscall, records the PC the gateway reports on every
// stop, and runs the target to completion. Pass 1 is a dry run purely to learn
// creation_pcs; no checkpoint records are produced yet.
func (r *Recorder) runPass1() (map[checkpoint.Location]bool, error) {
	if err := r.gw.Exec("set pagination off"); err != nil {
		return nil, &SetupError{Reason: "disable pagination", Err: err}
	}
	if err := r.gw.Exec("set confirm off"); err != nil {
		return nil, &SetupError{Reason: "disable confirmation", Err: err}
	}
	if err := r.gw.Exec("catch syscall " + r.cfg.CloneSyscallName); err != nil {
		return nil, &SetupError{Reason: "catch syscall " + r.cfg.CloneSyscallName, Err: err}
	}

	creationPCs := make(map[checkpoint.Location]bool)
	done := make(chan struct{})

	stopID := r.gw.ConnectStop(func(ev gdbgw.StopEvent) {
		// The PC recorded is whatever CurrentLocation reports for this
		// stop. No caller-frame query (`info frame 1` or an MI frame
		// query) is made here, so the frame one older than the
		// syscall-catch stub is recorded only if the gateway itself
		// reports that frame's PC.
		loc, err := r.gw.CurrentLocation()
		if err == nil {
			creationPCs[loc] = true
		}
		r.gw.Enqueue("continue")
	}, true)
	defer r.gw.DisconnectStop(stopID)

	exitedID := r.gw.ConnectExited(func(ev gdbgw.ExitedEvent) {
		close(done)
	}, true)
	defer r.gw.DisconnectExited(exitedID)

	if err := r.gw.Exec("run"); err != nil {
		return nil, &SetupError{Reason: "run (pass 1)", Err: err}
	}

	<-done

	if err := r.gw.DeleteAll(); err != nil {
		r.logger.Warn("pass 1: failed to delete catchpoint", zap.Error(err))
	}

	return creationPCs, nil
}
