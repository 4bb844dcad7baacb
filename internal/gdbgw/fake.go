package gdbgw

import (
	"fmt"
	"sync"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

// Fake is an in-memory Gateway used by orchestrator tests. It implements the
// same interface gdbSubprocess does, so code driven through Fake exercises
// the identical orchestrator logic a real gdb session would. Tests drive it
// by calling FireStop/FireNewThread/FireExited directly; Enqueue simply
// records commands for later inspection via Commands(), mirroring the real
// adapter's FIFO semantics without an actual debugger to talk to.
type Fake struct {
	mu sync.Mutex

	threads       map[int]bool
	currentThread int
	currentLoc    checkpoint.Location

	breakpoints map[int]BreakpointHandle
	nextBPID    int

	symbols map[string]checkpoint.Location

	stopListeners      map[ListenerID]fakeListener[StopListener]
	newThreadListeners map[ListenerID]fakeListener[NewThreadListener]
	exitedListeners    map[ListenerID]fakeListener[ExitedListener]
	nextListenerID     ListenerID

	enqueued []string
	execed   []string
	closed   bool
}

type fakeListener[T any] struct {
	fn       T
	enqueued bool
}

// NewFake returns a Fake with thread 1 alive, matching a target freshly
// paused at main.
func NewFake() *Fake {
	return &Fake{
		threads:            map[int]bool{checkpoint.MainThreadID: true},
		currentThread:      checkpoint.MainThreadID,
		breakpoints:        make(map[int]BreakpointHandle),
		symbols:            make(map[string]checkpoint.Location),
		stopListeners:      make(map[ListenerID]fakeListener[StopListener]),
		newThreadListeners: make(map[ListenerID]fakeListener[NewThreadListener]),
		exitedListeners:    make(map[ListenerID]fakeListener[ExitedListener]),
	}
}

// DefineSymbol seeds the address ResolveSymbol returns for name. Tests use
// this to model a target binary's known function addresses.
func (f *Fake) DefineSymbol(name string, loc checkpoint.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols[name] = loc
}

func (f *Fake) ResolveSymbol(name string) (checkpoint.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.symbols[name]
	if !ok {
		return 0, fmt.Errorf("gdbgw: unknown symbol %q", name)
	}
	return loc, nil
}

func (f *Fake) SetBreakpoint(loc checkpoint.Location, opts BreakpointOpts) (BreakpointHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBPID++
	h := BreakpointHandle{ID: f.nextBPID, Location: loc, Thread: opts.Thread, Temporary: opts.Temporary}
	f.breakpoints[h.ID] = h
	return h, nil
}

func (f *Fake) SetWatchpoint(symbol string, class AccessClass, opts BreakpointOpts) (BreakpointHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBPID++
	h := BreakpointHandle{ID: f.nextBPID, Symbol: symbol, Thread: opts.Thread, Temporary: opts.Temporary, IsWatch: true}
	f.breakpoints[h.ID] = h
	return h, nil
}

func (f *Fake) DeleteBreakpoint(h BreakpointHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.breakpoints, h.ID)
	return nil
}

func (f *Fake) DeleteAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breakpoints = make(map[int]BreakpointHandle)
	return nil
}

func (f *Fake) Exec(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execed = append(f.execed, cmd)
	return nil
}

func (f *Fake) Enqueue(cmd string) {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, cmd)
	f.mu.Unlock()
}

// Commands returns every command handed to Enqueue so far, in order.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.enqueued...)
}

// Execed returns every command handed to Exec so far, in order.
func (f *Fake) Execed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.execed...)
}

func (f *Fake) Threads() ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.threads))
	for id, alive := range f.threads {
		if alive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *Fake) CurrentThread() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentThread, nil
}

func (f *Fake) CurrentLocation() (checkpoint.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentLoc, nil
}

func (f *Fake) ConnectStop(l StopListener, enqueued bool) ListenerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextListenerID++
	f.stopListeners[f.nextListenerID] = fakeListener[StopListener]{fn: l, enqueued: enqueued}
	return f.nextListenerID
}

func (f *Fake) DisconnectStop(id ListenerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stopListeners, id)
}

func (f *Fake) ConnectNewThread(l NewThreadListener, enqueued bool) ListenerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextListenerID++
	f.newThreadListeners[f.nextListenerID] = fakeListener[NewThreadListener]{fn: l, enqueued: enqueued}
	return f.nextListenerID
}

func (f *Fake) DisconnectNewThread(id ListenerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.newThreadListeners, id)
}

func (f *Fake) ConnectExited(l ExitedListener, enqueued bool) ListenerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextListenerID++
	f.exitedListeners[f.nextListenerID] = fakeListener[ExitedListener]{fn: l, enqueued: enqueued}
	return f.nextListenerID
}

func (f *Fake) DisconnectExited(id ListenerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.exitedListeners, id)
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// --- Test-driving surface below; not part of the Gateway interface. ---

// SetThread moves the fake's notion of "current thread" and "current
// location", as if a `thread N` command had been honored.
func (f *Fake) SetThread(t int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentThread = t
}

// SetLocation sets the PC the fake reports via CurrentLocation, as if the
// target had run to that address.
func (f *Fake) SetLocation(loc checkpoint.Location) {
	f.mu.Lock()
	f.currentLoc = loc
	f.mu.Unlock()
}

// FireStop delivers a StopEvent to every connected stop listener, honoring
// each connection's enqueued/immediate choice by running enqueued ones
// after immediate ones — a single-goroutine approximation of "runs after
// the current handler returns" good enough for deterministic tests.
func (f *Fake) FireStop(ev StopEvent) {
	f.currentThread = ev.Thread
	f.currentLoc = ev.Location
	var deferred []StopListener
	f.mu.Lock()
	for _, l := range f.stopListeners {
		if l.enqueued {
			deferred = append(deferred, l.fn)
			continue
		}
		fn := l.fn
		f.mu.Unlock()
		fn(ev)
		f.mu.Lock()
	}
	f.mu.Unlock()
	for _, fn := range deferred {
		fn(ev)
	}
}

// FireNewThread delivers a NewThreadEvent, registering the child in the
// fake's live-thread set first so a Threads() call made from inside the
// listener observes it.
func (f *Fake) FireNewThread(ev NewThreadEvent) {
	f.mu.Lock()
	f.threads[ev.InferiorThreadNum] = true
	f.mu.Unlock()

	for _, l := range f.newThreadListeners {
		l.fn(ev)
	}
}

// FireExited delivers an ExitedEvent to every connected listener.
func (f *Fake) FireExited(ev ExitedEvent) {
	for _, l := range f.exitedListeners {
		l.fn(ev)
	}
}

// KillThread removes a thread id from the live set, as if it had exited.
func (f *Fake) KillThread(t int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[t] = false
}

func (f *Fake) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("Fake{thread=%d loc=%s breakpoints=%d closed=%v}", f.currentThread, f.currentLoc, len(f.breakpoints), f.closed)
}

var _ Gateway = (*Fake)(nil)
