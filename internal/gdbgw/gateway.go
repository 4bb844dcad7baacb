// gateway.go - Gateway interface and supporting types for the debugger adapter

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package gdbgw is the capability seam onto an external machine-code
// debugger: breakpoints, watchpoints, raw control commands, thread/frame
// introspection, and the stop/new-thread/exited event streams the
// orchestrators drive off of.
package gdbgw

import "github.com/otley-syrup/syrup/internal/checkpoint"

// AccessClass selects the class of memory access a watchpoint fires on.
type AccessClass int

const (
	// AccessWrite fires only on writes (GDB's plain "watch").
	AccessWrite AccessClass = iota
	// AccessRead fires only on reads ("rwatch").
	AccessRead
	// AccessReadWrite fires on either ("awatch").
	AccessReadWrite
)

// BreakpointOpts scopes a breakpoint or watchpoint installation.
type BreakpointOpts struct {
	// Thread restricts the breakpoint to one thread's stops; nil means
	// every thread can trigger it.
	Thread *int
	// Temporary breakpoints are deleted by the debugger on first hit.
	Temporary bool
}

// BreakpointHandle is the opaque per-debugger handle the orchestrator holds
// for as long as a breakpoint or watchpoint is installed. Location is the
// program-counter address for an ordinary breakpoint; watchpoints instead
// populate Symbol, since a shared variable is declared by name and its
// address is resolved inside the debugger, not known to the orchestrator.
type BreakpointHandle struct {
	ID        int
	Location  checkpoint.Location
	Symbol    string
	Thread    *int
	Temporary bool
	IsWatch   bool
}

// StopEvent is delivered on every debugger stop. Breakpoint is nil when the
// stop has no associated breakpoint (a spurious signal, or the completion
// of a `finish`/`continue` to natural exit).
type StopEvent struct {
	Thread     int
	Location   checkpoint.Location
	Breakpoint *BreakpointHandle
}

// NewThreadEvent is delivered when the debugger reports a freshly created
// inferior thread. CreatorThread is the thread that was running when the
// event fired; InferiorThreadNum is the debugger's global id for the child.
type NewThreadEvent struct {
	CreatorThread     int
	InferiorThreadNum int
}

// ExitedEvent is delivered once, when the inferior process terminates.
type ExitedEvent struct {
	ExitCode int
}

// StopListener, NewThreadListener and ExitedListener are the three listener
// shapes a Gateway accepts. A listener is called either on the gateway's own
// event-dispatch goroutine (immediate) or via the enqueue sink (deferred) —
// chosen by the enqueued argument to the matching Connect call.
type (
	StopListener      func(StopEvent)
	NewThreadListener func(NewThreadEvent)
	ExitedListener    func(ExitedEvent)
)

// ListenerID identifies a connected listener for later Disconnect calls.
type ListenerID int

// Gateway is the capability set the orchestrators need from an external
// debugger. Every command has two dispatch modes: Exec runs synchronously
// now; Enqueue posts onto the debugger's own event queue, for commands that
// cannot run from inside a stop-event callback (notably `continue` and
// `thread N`). Both modes preserve command ordering independently.
type Gateway interface {
	SetBreakpoint(loc checkpoint.Location, opts BreakpointOpts) (BreakpointHandle, error)
	// SetWatchpoint installs a data watchpoint on the named shared-variable
	// symbol. The resulting StopEvent reports the PC the access occurred
	// at, not the variable's address — the checkpoint record's location is
	// always a program counter.
	SetWatchpoint(symbol string, class AccessClass, opts BreakpointOpts) (BreakpointHandle, error)
	DeleteBreakpoint(h BreakpointHandle) error
	DeleteAll() error

	// Exec issues cmd immediately and returns an error if it could not be
	// issued. Whether a debugger-side failure is also reported depends on
	// the implementation: gdbSubprocess returns a *CommandError only when
	// writing the command fails, and Fake never fails.
	Exec(cmd string) error
	// Enqueue posts cmd to the FIFO enqueue sink; it runs only after the
	// event handler that called Enqueue has returned.
	Enqueue(cmd string)

	Threads() ([]int, error)
	CurrentThread() (int, error)
	CurrentLocation() (checkpoint.Location, error)

	// ResolveSymbol returns the address of a named function or thread
	// start routine, so the orchestrators can breakpoint it by address
	// and record it the same way as any other location.
	ResolveSymbol(name string) (checkpoint.Location, error)

	ConnectStop(l StopListener, enqueued bool) ListenerID
	DisconnectStop(id ListenerID)
	ConnectNewThread(l NewThreadListener, enqueued bool) ListenerID
	DisconnectNewThread(id ListenerID)
	ConnectExited(l ExitedListener, enqueued bool) ListenerID
	DisconnectExited(id ListenerID)

	// Close tears down the underlying debugger session. Safe to call more
	// than once.
	Close() error
}
