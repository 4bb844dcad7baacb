package record

import (
	"go.uber.org/zap"

	"github.com/otley-syrup/syrup/internal/checkpoint"
	"github.com/otley-syrup/syrup/internal/gdbgw"
	"github.com/otley-syrup/syrup/internal/matcher"
)

// runPass2 re-runs the target with watchpoints on the declared shared
// variables and breakpoints at every discovered creation PC and declared
// thread start routine, appending a checkpoint record on every stop and a
// ThreadCreation on every new-thread event.
func (r *Recorder) runPass2(creationPCs map[checkpoint.Location]bool) ([]checkpoint.Record, []matcher.ThreadCreation, error) {
	if err := r.gw.Exec("set pagination off"); err != nil {
		return nil, nil, &SetupError{Reason: "disable pagination", Err: err}
	}
	if err := r.gw.Exec("set confirm off"); err != nil {
		return nil, nil, &SetupError{Reason: "disable confirmation", Err: err}
	}

	mainLoc, err := r.gw.ResolveSymbol("main")
	if err != nil {
		return nil, nil, &SetupError{Reason: "resolve main", Err: err}
	}
	if _, err := r.gw.SetBreakpoint(mainLoc, gdbgw.BreakpointOpts{Temporary: true}); err != nil {
		return nil, nil, &SetupError{Reason: "temporary breakpoint on main", Err: err}
	}

	for _, sym := range r.cfg.SharedVariables {
		if _, err := r.gw.SetWatchpoint(sym, gdbgw.AccessReadWrite, gdbgw.BreakpointOpts{}); err != nil {
			return nil, nil, &SetupError{Reason: "watchpoint on " + sym, Err: err}
		}
	}
	for loc := range creationPCs {
		if _, err := r.gw.SetBreakpoint(loc, gdbgw.BreakpointOpts{}); err != nil {
			return nil, nil, &SetupError{Reason: "breakpoint at creation pc " + loc.String(), Err: err}
		}
	}
	for _, sym := range r.cfg.ThreadStartRoutines {
		loc, err := r.gw.ResolveSymbol(sym)
		if err != nil {
			return nil, nil, &SetupError{Reason: "resolve start routine " + sym, Err: err}
		}
		if _, err := r.gw.SetBreakpoint(loc, gdbgw.BreakpointOpts{}); err != nil {
			return nil, nil, &SetupError{Reason: "breakpoint at start routine " + sym, Err: err}
		}
	}

	var records []checkpoint.Record
	var creations []matcher.ThreadCreation
	nextID := 0
	done := make(chan struct{})

	stopID := r.gw.ConnectStop(func(ev gdbgw.StopEvent) {
		thread, err := r.gw.CurrentThread()
		if err != nil {
			r.gw.Enqueue("continue")
			return
		}
		records = append(records, checkpoint.Record{
			ID:       nextID,
			Thread:   thread,
			Location: ev.Location,
			Action:   checkpoint.ActionSharedAccess,
		})
		nextID++
		r.gw.Enqueue("continue")
	}, true)
	defer r.gw.DisconnectStop(stopID)

	tracker := newThreadTracker()
	newThreadID := r.gw.ConnectNewThread(func(ev gdbgw.NewThreadEvent) {
		threads, err := r.gw.Threads()
		if err != nil {
			return
		}
		tracker.Refresh(threads)
		child, err := tracker.NewlyBornSingleton()
		if err != nil {
			r.logger.Warn("pass 2: ambiguous thread birth", zap.Error(err))
			child = ev.InferiorThreadNum
		}
		creations = append(creations, matcher.ThreadCreation{Creator: ev.CreatorThread, Created: child})
	}, true)
	defer r.gw.DisconnectNewThread(newThreadID)

	exitedID := r.gw.ConnectExited(func(ev gdbgw.ExitedEvent) {
		close(done)
	}, true)
	defer r.gw.DisconnectExited(exitedID)

	if err := r.gw.Exec("run"); err != nil {
		return nil, nil, &SetupError{Reason: "run (pass 2)", Err: err}
	}

	<-done

	return records, creations, nil
}
