// Package replay implements the Replay Orchestrator: the central state
// machine that drives a target one checkpoint at a time, switching the
// scheduler-locked thread and installing targeted breakpoints so a recorded
// interleaving is reproduced exactly.
package replay

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/otley-syrup/syrup/internal/checkpoint"
	"github.com/otley-syrup/syrup/internal/gdbgw"
	"github.com/otley-syrup/syrup/internal/threadtracker"
)

// State is one of the orchestrator's three sub-states.
type State int

const (
	// Driving is the normal checkpoint-by-checkpoint advance.
	Driving State = iota
	// DrainingThread is entered when a thread has no remaining checkpoints
	// but has not yet exited; it must be allowed to run to completion
	// without re-stopping the process at one of its own breakpoints.
	DrainingThread
	// Terminating is entered once every record has been hit; scheduler
	// locking is released and the target runs to natural exit.
	Terminating
)

func (s State) String() string {
	switch s {
	case DrainingThread:
		return "draining"
	case Terminating:
		return "terminating"
	default:
		return "driving"
	}
}

// Orchestrator drives gw through the log held by store, one checkpoint at a
// time, until every record has been hit and the target exits.
type Orchestrator struct {
	gw      gdbgw.Gateway
	store   *checkpoint.Store
	tracker *threadtracker.Tracker
	logger  *zap.Logger

	state          State
	drainingThread int

	// breakpoints maps a (thread, location) pair, keyed by its string form,
	// to the installed handle, so each distinct pair is only ever installed
	// once: persistent breakpoints, never temporary ones.
	breakpoints map[string]gdbgw.BreakpointHandle

	done      chan error
	finalized bool
}

// New returns an Orchestrator over the given log, driven through gw.
func New(gw gdbgw.Gateway, log *checkpoint.Log, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		gw:          gw,
		store:       checkpoint.NewStore(log),
		tracker:     threadtracker.New(),
		logger:      logger,
		state:       Driving,
		breakpoints: make(map[string]gdbgw.BreakpointHandle),
		done:        make(chan error, 1),
	}
}

func bpKey(thread int, loc checkpoint.Location) string {
	return fmt.Sprintf("%d@%s", thread, loc)
}

// installThreadBreakpoints installs one persistent, thread-scoped
// breakpoint per distinct location among records belonging to thread,
// including its created_thread record (the child's first observed
// instruction is stopped at like any other), skipping only locations
// already instrumented for this thread.
func (o *Orchestrator) installThreadBreakpoints(thread int) error {
	seen := make(map[checkpoint.Location]bool)
	for _, r := range o.store.Log().Records {
		if r.Thread != thread {
			continue
		}
		if seen[r.Location] {
			continue
		}
		seen[r.Location] = true

		key := bpKey(thread, r.Location)
		if _, ok := o.breakpoints[key]; ok {
			continue
		}
		t := thread
		h, err := o.gw.SetBreakpoint(r.Location, gdbgw.BreakpointOpts{Thread: &t})
		if err != nil {
			return &SetupError{Reason: fmt.Sprintf("breakpoint for thread %d at %s", thread, r.Location), Err: err}
		}
		o.breakpoints[key] = h
	}
	return nil
}

// Run performs Setup and then blocks until the orchestrator reaches
// Terminating and the target has exited, returning a *DivergenceError if
// the recorded interleaving was not faithfully reproduced.
func (o *Orchestrator) Run() error {
	if err := o.Setup(); err != nil {
		return err
	}
	return <-o.done
}

// Setup configures the debugger, pauses the target at main, enables
// scheduler-locking, installs thread-1's breakpoints, connects the
// listeners, and enqueues the first continue.
func (o *Orchestrator) Setup() error {
	if err := o.gw.Exec("set pagination off"); err != nil {
		return &SetupError{Reason: "disable pagination", Err: err}
	}
	if err := o.gw.Exec("set confirm off"); err != nil {
		return &SetupError{Reason: "disable confirmation", Err: err}
	}

	mainLoc, err := o.gw.ResolveSymbol("main")
	if err != nil {
		return &SetupError{Reason: "resolve main", Err: err}
	}
	if _, err := o.gw.SetBreakpoint(mainLoc, gdbgw.BreakpointOpts{Temporary: true}); err != nil {
		return &SetupError{Reason: "temporary breakpoint on main", Err: err}
	}
	if err := o.gw.Exec("run"); err != nil {
		return &SetupError{Reason: "run", Err: err}
	}

	if err := o.gw.Exec("set scheduler-locking on"); err != nil {
		return &SetupError{Reason: "enable scheduler-locking", Err: err}
	}

	if err := o.installThreadBreakpoints(checkpoint.MainThreadID); err != nil {
		return err
	}

	o.gw.ConnectStop(o.onStop, true)
	o.gw.ConnectNewThread(o.onNewThread, true)
	o.gw.ConnectExited(o.onExited, true)

	o.gw.Enqueue("continue")
	return nil
}

// onStop is the stop-event handler. It runs on every debugger stop once the
// target is alive.
func (o *Orchestrator) onStop(ev gdbgw.StopEvent) {
	if o.finalized {
		return
	}

	current, err := o.gw.CurrentThread()
	if err != nil {
		o.finish(fmt.Errorf("replay: query current thread: %w", err))
		return
	}

	if ev.Breakpoint == nil {
		if o.state == DrainingThread {
			o.logger.Debug("drain observed spurious stop, resuming normal advance", zap.Int("thread", o.drainingThread))
			o.state = Driving
			o.advance()
			return
		}
		o.logger.Debug("spurious stop ignored", zap.Int("thread", current))
		o.gw.Enqueue("continue")
		return
	}

	r, err := o.store.NextUnhit()
	if err != nil {
		// Every record already hit; a further stop here means the target
		// kept running past Terminating's release of scheduler-locking.
		o.gw.Enqueue("continue")
		return
	}

	if r.Thread != current || r.Location != ev.Location {
		o.logger.Debug("stop does not match expected next checkpoint, ignoring",
			zap.Int("expected_thread", r.Thread), zap.Stringer("expected_loc", r.Location),
			zap.Int("current_thread", current), zap.Stringer("current_loc", ev.Location))
		o.gw.Enqueue("continue")
		return
	}

	if err := o.store.MarkHit(r); err != nil {
		o.finish(fmt.Errorf("replay: mark hit %s: %w", r, err))
		return
	}
	o.logger.Debug("checkpoint hit", zap.Stringer("record", recordStringer{r}))

	if o.store.RemainingFor(current) == 0 {
		o.state = DrainingThread
		o.drainingThread = current
		o.gw.Enqueue("continue")
		return
	}

	o.advance()
}

// advance enqueues the thread switch and continue for the next unhit
// checkpoint, or transitions to Terminating if the log is exhausted.
func (o *Orchestrator) advance() {
	next, err := o.store.NextUnhit()
	if err != nil {
		o.enterTerminating()
		return
	}
	o.gw.Enqueue(fmt.Sprintf("thread %d", next.Thread))
	o.gw.Enqueue("continue")
}

func (o *Orchestrator) enterTerminating() {
	o.state = Terminating
	if err := o.gw.Exec("set scheduler-locking off"); err != nil {
		o.logger.Warn("failed to release scheduler-locking at termination", zap.Error(err))
	}
	o.gw.Enqueue("continue")
}

// onNewThread is the new-thread handler: it installs breakpoints for the
// newly born child and resumes whichever thread's turn is next.
func (o *Orchestrator) onNewThread(ev gdbgw.NewThreadEvent) {
	if o.finalized {
		return
	}

	threads, err := o.gw.Threads()
	if err != nil {
		o.finish(fmt.Errorf("replay: list threads: %w", err))
		return
	}
	o.tracker.Refresh(threads)
	child, err := o.tracker.NewlyBornSingleton()
	if err != nil {
		child = ev.InferiorThreadNum
		o.logger.Warn("ambiguous thread birth, falling back to reported thread id", zap.Error(err), zap.Int("fallback", child))
	}

	if err := o.installThreadBreakpoints(child); err != nil {
		o.finish(err)
		return
	}

	next, err := o.store.NextUnhit()
	if err != nil {
		o.enterTerminating()
		return
	}
	o.gw.Enqueue(fmt.Sprintf("thread %d", next.Thread))
	o.gw.Enqueue("continue")
}

// onExited is the inferior-exited handler. If any checkpoint remains unhit,
// the replayed run diverged from the recording.
func (o *Orchestrator) onExited(ev gdbgw.ExitedEvent) {
	if o.finalized {
		return
	}
	if !o.store.Done() {
		if r, err := o.store.NextUnhit(); err == nil {
			o.finish(&DivergenceError{FirstUnhit: r})
			return
		}
	}
	if o.state == Terminating {
		o.gw.Enqueue("quit")
	}
	o.finish(nil)
}

func (o *Orchestrator) finish(err error) {
	if o.finalized {
		return
	}
	o.finalized = true
	o.done <- err
}

// State returns the orchestrator's current sub-state, for diagnostics.
func (o *Orchestrator) State() State { return o.state }

type recordStringer struct{ r checkpoint.Record }

func (s recordStringer) String() string { return s.r.String() }
