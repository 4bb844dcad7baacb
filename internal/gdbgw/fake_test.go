package gdbgw

import (
	"testing"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

func TestFakeConnectAndFireStop(t *testing.T) {
	f := NewFake()
	var got StopEvent
	fired := false
	f.ConnectStop(func(ev StopEvent) {
		got = ev
		fired = true
	}, false)

	f.FireStop(StopEvent{Thread: 1, Location: 0x1000})
	if !fired {
		t.Fatal("stop listener never fired")
	}
	if got.Thread != 1 || got.Location != 0x1000 {
		t.Errorf("got %+v", got)
	}
}

func TestFakeDisconnectStop(t *testing.T) {
	f := NewFake()
	fired := false
	id := f.ConnectStop(func(ev StopEvent) { fired = true }, false)
	f.DisconnectStop(id)
	f.FireStop(StopEvent{Thread: 1})
	if fired {
		t.Fatal("disconnected listener fired")
	}
}

func TestFakeNewThreadRegistersChild(t *testing.T) {
	f := NewFake()
	f.FireNewThread(NewThreadEvent{CreatorThread: 1, InferiorThreadNum: 2})
	ids, err := f.Threads()
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("thread 2 not present in %v", ids)
	}
}

func TestFakeEnqueueRecordsFIFO(t *testing.T) {
	f := NewFake()
	f.Enqueue("thread 2")
	f.Enqueue("continue")
	got := f.Commands()
	want := []string{"thread 2", "continue"}
	if len(got) != len(want) {
		t.Fatalf("Commands() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Commands()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFakeSetBreakpointRoundTrip(t *testing.T) {
	f := NewFake()
	h, err := f.SetBreakpoint(0x401000, BreakpointOpts{Temporary: true})
	if err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	if h.Location != checkpoint.Location(0x401000) || !h.Temporary {
		t.Errorf("handle = %+v", h)
	}
	if err := f.DeleteBreakpoint(h); err != nil {
		t.Fatalf("DeleteBreakpoint: %v", err)
	}
}

func TestFakeClose(t *testing.T) {
	f := NewFake()
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
