package gdbgw

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

func TestBreakpointCmd(t *testing.T) {
	g := &gdbSubprocess{}
	thread2 := 2

	tests := []struct {
		name string
		loc  string
		opts BreakpointOpts
		want string
	}{
		{"plain break", "*0x1000", BreakpointOpts{}, "break *0x1000"},
		{"temporary break", "*0x1000", BreakpointOpts{Temporary: true}, "tbreak *0x1000"},
		{"thread scoped break", "*0x1000", BreakpointOpts{Thread: &thread2}, "break *0x1000 thread 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := checkpoint.ParseLocation(tt.loc)
			if err != nil {
				t.Fatalf("parse loc: %v", err)
			}
			got := g.breakpointCmd(loc, tt.opts)
			if got != tt.want {
				t.Errorf("breakpointCmd() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchpointCmd(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		class  AccessClass
		want   string
	}{
		{"write watchpoint", "counter", AccessWrite, "watch counter"},
		{"read watchpoint", "counter", AccessRead, "rwatch counter"},
		{"access watchpoint", "counter", AccessReadWrite, "awatch counter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := watchpointCmd(tt.symbol, tt.class)
			if got != tt.want {
				t.Errorf("watchpointCmd() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReBreakpointHit(t *testing.T) {
	tests := []struct {
		line    string
		matches bool
		addr    string
	}{
		{"Breakpoint 1, 0x0000000000401160 in main ()", true, "0x0000000000401160"},
		{"Temporary breakpoint 2, 0x0000000000401260 in worker_main ()", true, "0x0000000000401260"},
		{"Continuing.", false, ""},
	}
	for _, tt := range tests {
		got := reBreakpointHit.MatchString(tt.line)
		if got != tt.matches {
			t.Errorf("reBreakpointHit.MatchString(%q) = %v, want %v", tt.line, got, tt.matches)
		}
		if tt.matches {
			m := reBreakpointHit.FindStringSubmatch(tt.line)
			if m[1] != tt.addr {
				t.Errorf("captured addr = %q, want %q", m[1], tt.addr)
			}
		}
	}
}

func TestReNewThreadAndExited(t *testing.T) {
	if !reNewThread.MatchString("[New Thread 0x7ffff7d9f700 (LWP 12345)]") {
		t.Error("reNewThread did not match a well-formed new-thread line")
	}
	if !reExitedNormal.MatchString("[Inferior 1 (process 9999) exited normally]") {
		t.Error("reExitedNormal did not match a normal-exit line")
	}
	if !reExitedCode.MatchString("[Inferior 1 (process 9999) exited with code 01]") {
		t.Error("reExitedCode did not match a nonzero-exit line")
	}
}

// TestHandleSymbolAddrDeliversPendingQuery exercises the real reply-parsing
// path a ResolveSymbol call blocks on: a pending channel queued, then a
// matching "info address" reply fed through handleLine the way the reader
// goroutine would see it.
func TestHandleSymbolAddrDeliversPendingQuery(t *testing.T) {
	g := &gdbSubprocess{logger: zap.NewNop()}
	ch := make(chan symbolResult, 1)
	g.symbolPending = append(g.symbolPending, ch)

	g.handleLine(`Symbol "main" is a function at address 0x4011a9.`)

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		want, err := checkpoint.ParseLocation("0x4011a9")
		if err != nil {
			t.Fatalf("parse loc: %v", err)
		}
		if res.loc != want {
			t.Errorf("loc = %s, want %s", res.loc, want)
		}
	default:
		t.Fatal("pending symbol query was never delivered")
	}
}

// TestHandleSymbolAddrVariant covers gdb's "static storage" phrasing for
// global variables, not just the "is a function at" phrasing for entry
// points.
func TestHandleSymbolAddrVariant(t *testing.T) {
	g := &gdbSubprocess{logger: zap.NewNop()}
	ch := make(chan symbolResult, 1)
	g.symbolPending = append(g.symbolPending, ch)

	g.handleLine(`Symbol "counter" is static storage at address 0x601040.`)

	res := <-ch
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	want, _ := checkpoint.ParseLocation("0x601040")
	if res.loc != want {
		t.Errorf("loc = %s, want %s", res.loc, want)
	}
}

func TestHandleNoSymbolDeliversError(t *testing.T) {
	g := &gdbSubprocess{logger: zap.NewNop()}
	ch := make(chan symbolResult, 1)
	g.symbolPending = append(g.symbolPending, ch)

	g.handleLine(`No symbol "bogus" in current context.`)

	select {
	case res := <-ch:
		if res.err == nil {
			t.Fatal("expected an error for an unresolved symbol, got nil")
		}
	default:
		t.Fatal("pending symbol query was never delivered")
	}
}

// TestThreadsParsesInfoThreadsTable drives the same line sequence a real
// gdb session emits for "info threads": a header line that must not be
// mistaken for a row, one row per live thread (the current one marked with
// "*"), and a trailing prompt-ish line that is not itself a row.
func TestThreadsParsesInfoThreadsTable(t *testing.T) {
	g := &gdbSubprocess{logger: zap.NewNop()}
	ch := make(chan []int, 1)
	g.pendingThreads = append(g.pendingThreads, ch)
	g.collectingRows = true

	g.handleLine("  Id   Target Id         Frame")
	if g.collectingRows == false {
		t.Fatal("header line should not end collection before any row arrived")
	}
	g.handleLine(`* 1    Thread 0x7ffff7d9f700 (LWP 100) "prog" main () at prog.c:10`)
	g.handleLine(`  2    Thread 0x7ffff6d9f700 (LWP 101) "prog" worker () at prog.c:20`)
	g.handleLine("(gdb) ")

	select {
	case ids := <-ch:
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Fatalf("thread ids = %v, want [1 2]", ids)
		}
	default:
		t.Fatal("pending threads query was never delivered")
	}
}

// TestHandleNewThreadUsesParsedThreadsNotBreakpoints confirms the born
// thread id comes from a fresh info-threads query rather than from which
// thread-scoped breakpoints happen to already be installed: no breakpoint
// exists yet for thread 3, but it must still be reported as the newest.
func TestHandleNewThreadUsesParsedThreadsNotBreakpoints(t *testing.T) {
	// Threads() writes "info threads" to the pty before waiting for the
	// reply, so the fixture needs a writable stand-in for it.
	sink, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	defer sink.Close()

	g := &gdbSubprocess{
		ptmx:               sink,
		logger:             zap.NewNop(),
		currentThread:      1,
		breakpoints:        map[int]BreakpointHandle{},
		newThreadListeners: map[ListenerID]fakeListener[NewThreadListener]{},
	}

	gotCh := make(chan NewThreadEvent, 1)
	g.newThreadListeners[1] = fakeListener[NewThreadListener]{fn: func(ev NewThreadEvent) {
		gotCh <- ev
	}}

	go g.handleNewThread("[New Thread 0x7ffff7d9f700 (LWP 102)]")

	// Give handleNewThread's Threads() call time to queue its pending
	// request before feeding it the reply, the same pattern recorder_test.go
	// uses to sequence fake gdb events against a listener goroutine.
	time.Sleep(time.Millisecond)

	// Thread 3 has no breakpoint of its own yet; the parsed table is still
	// the only correct source for it.
	g.handleLine("  Id   Target Id         Frame")
	g.handleLine(`* 1    Thread 0x7ffff7d9f700 (LWP 100) "prog" main () at prog.c:10`)
	g.handleLine(`  3    Thread 0x7ffff5d9f700 (LWP 102) "prog" worker () at prog.c:20`)
	g.handleLine("(gdb) ")

	select {
	case got := <-gotCh:
		if got.InferiorThreadNum != 3 {
			t.Errorf("InferiorThreadNum = %d, want 3 (derived from live threads, not breakpoints)", got.InferiorThreadNum)
		}
		if got.CreatorThread != 1 {
			t.Errorf("CreatorThread = %d, want 1", got.CreatorThread)
		}
	case <-time.After(time.Second):
		t.Fatal("handleNewThread never dispatched a new-thread event")
	}
}
