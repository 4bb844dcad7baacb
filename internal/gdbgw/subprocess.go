package gdbgw

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/creack/pty"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

// Config controls how a gdbSubprocess is spawned.
type Config struct {
	// GDBPath is the debugger binary to invoke; defaults to "gdb".
	GDBPath string
	// TargetPath is the binary under test, passed as gdb's program argument.
	TargetPath string
	// Args are extra arguments passed through to the target program.
	Args []string
	// Interactive puts the controlling terminal into raw mode for
	// transparent pass-through; leave false for headless record/replay runs.
	Interactive bool
}

var (
	reBreakpointHit = regexp.MustCompile(`^(?:Temporary b|B)reakpoint \d+(?:\.\d+)?,\s+(0x[0-9a-fA-F]+)`)
	reNewThread     = regexp.MustCompile(`^\[New Thread[^\]]*\(LWP \d+\)\]`)
	reThreadSwitch  = regexp.MustCompile(`^\[Switching to Thread[^\]]*\]`)
	reExitedNormal  = regexp.MustCompile(`^\[Inferior \d+ \(process \d+\) exited normally\]`)
	reExitedCode    = regexp.MustCompile(`^\[Inferior \d+ \(process \d+\) exited with code (\d+)\]`)
	reInfoThreads   = regexp.MustCompile(`^(\*?)\s*(\d+)\s`)
	reGDBError      = regexp.MustCompile(`^(No symbol|Cannot access|Hardware watchpoints|Could not insert)`)
	reSymbolAddr    = regexp.MustCompile(`^Symbol "[^"]+" is .* address (0x[0-9a-fA-F]+)`)
	reNoSymbolInCtx = regexp.MustCompile(`^No symbol "([^"]+)" in current context\.`)
)

// symbolResult is what a pending ResolveSymbol call is waiting to receive.
type symbolResult struct {
	loc checkpoint.Location
	err error
}

// gdbSubprocess drives a real gdb binary over a pty. The reader goroutine
// parses gdb's annotated text output into the three event kinds the Gateway
// interface exposes; the enqueue pool is a single-worker ants.Pool so
// enqueued commands run strictly FIFO, off the reader goroutine, after the
// listener that posted them has returned.
type gdbSubprocess struct {
	cfg    Config
	logger *zap.Logger

	cmd  *exec.Cmd
	ptmx *os.File

	pool *ants.Pool
	eg   *errgroup.Group
	ctx  context.Context
	stop context.CancelFunc

	mu            sync.Mutex
	currentThread int
	currentLoc    checkpoint.Location
	breakpoints   map[int]BreakpointHandle
	nextBPID      int

	// symbolMu guards the FIFO queue of pending ResolveSymbol calls. Each
	// queues a reply channel before issuing "info address NAME"; handleLine
	// pops the oldest entry when it sees that command's reply line.
	symbolMu      sync.Mutex
	symbolPending []chan symbolResult

	// threadMu guards the FIFO queue of pending Threads calls plus the row
	// buffer the reader goroutine is currently accumulating for the oldest
	// one. Only one "info threads" reply is ever in flight on the pty at a
	// time, so a single buffer (not one per queued call) is enough.
	threadMu       sync.Mutex
	pendingThreads []chan []int
	threadRows     []int
	collectingRows bool

	stopListeners      map[ListenerID]fakeListener[StopListener]
	newThreadListeners map[ListenerID]fakeListener[NewThreadListener]
	exitedListeners    map[ListenerID]fakeListener[ExitedListener]
	nextListenerID     ListenerID

	oldTermState *term.State
	closeOnce    sync.Once
}

// New spawns gdb under a pty and starts the reader/dispatch goroutines.
func New(cfg Config, logger *zap.Logger) (*gdbSubprocess, error) {
	if cfg.GDBPath == "" {
		cfg.GDBPath = "gdb"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	args := []string{"--nx", "-q", "--interpreter=mi2"}
	args = append(args, "--args", cfg.TargetPath)
	args = append(args, cfg.Args...)

	cmd := exec.Command(cfg.GDBPath, args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("gdbgw: spawn %s: %w", cfg.GDBPath, err)
	}

	pool, err := ants.NewPool(1, ants.WithNonblocking(false))
	if err != nil {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("gdbgw: create enqueue pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, egctx := errgroup.WithContext(ctx)

	g := &gdbSubprocess{
		cfg:                 cfg,
		logger:              logger,
		cmd:                 cmd,
		ptmx:                ptmx,
		pool:                pool,
		eg:                  eg,
		ctx:                 ctx,
		stop:                cancel,
		breakpoints:         make(map[int]BreakpointHandle),
		stopListeners:       make(map[ListenerID]fakeListener[StopListener]),
		newThreadListeners:  make(map[ListenerID]fakeListener[NewThreadListener]),
		exitedListeners:     make(map[ListenerID]fakeListener[ExitedListener]),
		currentThread:       checkpoint.MainThreadID,
	}

	if cfg.Interactive && term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			logger.Warn("failed to set raw mode, continuing headless", zap.Error(err))
		} else {
			g.oldTermState = oldState
		}
	}

	eg.Go(func() error {
		return g.readLoop(egctx)
	})

	if err := g.Exec("set pagination off"); err != nil {
		return g, err
	}
	if err := g.Exec("set confirm off"); err != nil {
		return g, err
	}
	return g, nil
}

// readLoop scans gdb's pty output line by line, classifying each line into
// a stop/new-thread/exited event or ignoring it. It is the sole writer of
// currentThread/currentLoc outside of explicit Exec("thread N") calls.
func (g *gdbSubprocess) readLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(g.ptmx)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		g.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		g.logger.Debug("gdb pty read loop ended", zap.Error(err))
		return err
	}
	return nil
}

func (g *gdbSubprocess) handleLine(line string) {
	line = strings.TrimRight(line, "\r\n")

	if g.isCollectingThreadRows() {
		if reInfoThreads.MatchString(line) {
			g.appendThreadRow(line)
			return
		}
		if g.hasCollectedThreadRows() {
			// First non-row line after at least one row: the table ended.
			// Fall through so this line still gets normal classification
			// below — it may be a real event (gdb's prompt, the next stop).
			g.finishThreadQuery()
		}
		// Otherwise this is the "Id  Target Id  Frame" header gdb prints
		// before the first row; keep waiting for it.
	}

	switch {
	case reExitedNormal.MatchString(line):
		g.dispatchExited(ExitedEvent{ExitCode: 0})
		return
	case reExitedCode.MatchString(line):
		m := reExitedCode.FindStringSubmatch(line)
		code, _ := strconv.ParseInt(m[1], 8, 32) // gdb prints exit status in octal
		g.dispatchExited(ExitedEvent{ExitCode: int(code)})
		return
	case reNewThread.MatchString(line):
		g.handleNewThread(line)
		return
	case reBreakpointHit.MatchString(line):
		g.handleBreakpointHit(line)
		return
	case reSymbolAddr.MatchString(line):
		g.handleSymbolAddr(line)
		return
	case reNoSymbolInCtx.MatchString(line):
		g.handleNoSymbol(line)
		return
	case reGDBError.MatchString(line):
		g.logger.Debug("gdb reported an error line", zap.String("line", line))
		return
	default:
		g.logger.Debug("gdb output", zap.String("line", line))
	}
}

// handleSymbolAddr parses a successful "info address NAME" reply and
// delivers it to the oldest pending ResolveSymbol call.
func (g *gdbSubprocess) handleSymbolAddr(line string) {
	m := reSymbolAddr.FindStringSubmatch(line)
	loc, err := checkpoint.ParseLocation(m[1])
	ch, ok := g.popSymbolPending()
	if !ok {
		return
	}
	if err != nil {
		ch <- symbolResult{err: fmt.Errorf("unparseable symbol address in %q: %w", line, err)}
		return
	}
	ch <- symbolResult{loc: loc}
}

// handleNoSymbol delivers gdb's "no such symbol" reply to the oldest
// pending ResolveSymbol call.
func (g *gdbSubprocess) handleNoSymbol(line string) {
	m := reNoSymbolInCtx.FindStringSubmatch(line)
	name := ""
	if len(m) > 1 {
		name = m[1]
	}
	ch, ok := g.popSymbolPending()
	if !ok {
		return
	}
	ch <- symbolResult{err: fmt.Errorf("no symbol %q in current context", name)}
}

func (g *gdbSubprocess) popSymbolPending() (chan symbolResult, bool) {
	g.symbolMu.Lock()
	defer g.symbolMu.Unlock()
	if len(g.symbolPending) == 0 {
		return nil, false
	}
	ch := g.symbolPending[0]
	g.symbolPending = g.symbolPending[1:]
	return ch, true
}

func (g *gdbSubprocess) isCollectingThreadRows() bool {
	g.threadMu.Lock()
	defer g.threadMu.Unlock()
	return g.collectingRows
}

func (g *gdbSubprocess) hasCollectedThreadRows() bool {
	g.threadMu.Lock()
	defer g.threadMu.Unlock()
	return len(g.threadRows) > 0
}

func (g *gdbSubprocess) appendThreadRow(line string) {
	m := reInfoThreads.FindStringSubmatch(line)
	if len(m) < 3 {
		return
	}
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return
	}
	g.threadMu.Lock()
	g.threadRows = append(g.threadRows, id)
	g.threadMu.Unlock()
}

// finishThreadQuery delivers the accumulated row ids to the oldest pending
// Threads call and resets collection state.
func (g *gdbSubprocess) finishThreadQuery() {
	g.threadMu.Lock()
	ids := g.threadRows
	g.threadRows = nil
	g.collectingRows = false
	var ch chan []int
	if len(g.pendingThreads) > 0 {
		ch = g.pendingThreads[0]
		g.pendingThreads = g.pendingThreads[1:]
	}
	g.threadMu.Unlock()
	if ch != nil {
		ch <- ids
	}
}

func (g *gdbSubprocess) handleBreakpointHit(line string) {
	m := reBreakpointHit.FindStringSubmatch(line)
	loc, err := checkpoint.ParseLocation(m[1])
	if err != nil {
		g.logger.Warn("unparseable breakpoint address", zap.String("line", line), zap.Error(err))
		return
	}

	g.mu.Lock()
	g.currentLoc = loc
	thread := g.currentThread
	var bp *BreakpointHandle
	for _, h := range g.breakpoints {
		if h.Location == loc && (h.Thread == nil || *h.Thread == thread) {
			hc := h
			bp = &hc
			break
		}
	}
	g.mu.Unlock()

	g.dispatchStop(StopEvent{Thread: thread, Location: loc, Breakpoint: bp})
}

// handleNewThread fires on gdb's "[New Thread ...]" announcement, which
// lands only after the child is already live in the inferior, so a fresh
// Threads query is guaranteed to include it; gdb numbers threads
// monotonically within a session, so the highest id among the live set is
// the one that was just born.
func (g *gdbSubprocess) handleNewThread(line string) {
	g.mu.Lock()
	creator := g.currentThread
	g.mu.Unlock()

	threads, err := g.Threads()
	if err != nil {
		g.logger.Warn("failed to list threads after new-thread event", zap.Error(err))
		return
	}
	newest := 0
	for _, t := range threads {
		if t > newest {
			newest = t
		}
	}
	g.dispatchNewThread(NewThreadEvent{CreatorThread: creator, InferiorThreadNum: newest})
}

func (g *gdbSubprocess) dispatchStop(ev StopEvent) {
	g.mu.Lock()
	listeners := make([]fakeListener[StopListener], 0, len(g.stopListeners))
	for _, l := range g.stopListeners {
		listeners = append(listeners, l)
	}
	g.mu.Unlock()
	for _, l := range listeners {
		fn := l.fn
		if l.enqueued {
			_ = g.pool.Submit(func() { fn(ev) })
			continue
		}
		fn(ev)
	}
}

func (g *gdbSubprocess) dispatchNewThread(ev NewThreadEvent) {
	g.mu.Lock()
	listeners := make([]fakeListener[NewThreadListener], 0, len(g.newThreadListeners))
	for _, l := range g.newThreadListeners {
		listeners = append(listeners, l)
	}
	g.mu.Unlock()
	for _, l := range listeners {
		fn := l.fn
		if l.enqueued {
			_ = g.pool.Submit(func() { fn(ev) })
			continue
		}
		fn(ev)
	}
}

func (g *gdbSubprocess) dispatchExited(ev ExitedEvent) {
	g.mu.Lock()
	listeners := make([]fakeListener[ExitedListener], 0, len(g.exitedListeners))
	for _, l := range g.exitedListeners {
		listeners = append(listeners, l)
	}
	g.mu.Unlock()
	for _, l := range listeners {
		fn := l.fn
		if l.enqueued {
			_ = g.pool.Submit(func() { fn(ev) })
			continue
		}
		fn(ev)
	}
}

func (g *gdbSubprocess) breakpointCmd(loc checkpoint.Location, opts BreakpointOpts) string {
	var verb string
	if opts.Temporary {
		verb = "tbreak"
	} else {
		verb = "break"
	}
	cmd := fmt.Sprintf("%s %s", verb, loc)
	if opts.Thread != nil {
		cmd = fmt.Sprintf("%s thread %d", cmd, *opts.Thread)
	}
	return cmd
}

func watchpointCmd(symbol string, class AccessClass) string {
	var verb string
	switch class {
	case AccessRead:
		verb = "rwatch"
	case AccessReadWrite:
		verb = "awatch"
	default:
		verb = "watch"
	}
	return fmt.Sprintf("%s %s", verb, symbol)
}

func (g *gdbSubprocess) SetBreakpoint(loc checkpoint.Location, opts BreakpointOpts) (BreakpointHandle, error) {
	cmd := g.breakpointCmd(loc, opts)
	if err := g.Exec(cmd); err != nil {
		return BreakpointHandle{}, err
	}
	return g.registerBreakpoint(loc, "", opts, false), nil
}

func (g *gdbSubprocess) SetWatchpoint(symbol string, class AccessClass, opts BreakpointOpts) (BreakpointHandle, error) {
	cmd := watchpointCmd(symbol, class)
	if err := g.Exec(cmd); err != nil {
		return BreakpointHandle{}, err
	}
	return g.registerBreakpoint(0, symbol, opts, true), nil
}

func (g *gdbSubprocess) registerBreakpoint(loc checkpoint.Location, symbol string, opts BreakpointOpts, watch bool) BreakpointHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextBPID++
	h := BreakpointHandle{ID: g.nextBPID, Location: loc, Symbol: symbol, Thread: opts.Thread, Temporary: opts.Temporary, IsWatch: watch}
	g.breakpoints[h.ID] = h
	return h
}

func (g *gdbSubprocess) DeleteBreakpoint(h BreakpointHandle) error {
	g.mu.Lock()
	delete(g.breakpoints, h.ID)
	g.mu.Unlock()
	return g.Exec(fmt.Sprintf("delete %d", h.ID))
}

func (g *gdbSubprocess) DeleteAll() error {
	g.mu.Lock()
	g.breakpoints = make(map[int]BreakpointHandle)
	g.mu.Unlock()
	return g.Exec("delete")
}

// Exec writes cmd to the pty and returns as soon as the write completes,
// without waiting for gdb's reply. It returns a *CommandError only when the
// write itself fails; error lines gdb prints in reply (reGDBError) are
// logged by the reader goroutine and are not returned to the caller.
func (g *gdbSubprocess) Exec(cmd string) error {
	g.logger.Debug("gdb exec", zap.String("cmd", cmd))
	if _, err := fmt.Fprintf(g.ptmx, "%s\n", cmd); err != nil {
		return &CommandError{Command: cmd, Err: err}
	}
	return nil
}

// Enqueue posts cmd to the single-worker pool so it runs strictly after the
// listener that called Enqueue returns, and strictly FIFO relative to any
// other enqueued command.
func (g *gdbSubprocess) Enqueue(cmd string) {
	_ = g.pool.Submit(func() {
		if err := g.Exec(cmd); err != nil {
			g.logger.Error("enqueued command failed", zap.String("cmd", cmd), zap.Error(err))
		}
	})
}

// Threads issues "info threads" and parses gdb's reply table into the set
// of live thread ids, rather than inferring liveness from which
// thread-scoped breakpoints happen to be installed — a thread with no
// breakpoint of its own yet (the common case right after birth) is still a
// real row in this table.
func (g *gdbSubprocess) Threads() ([]int, error) {
	ch := make(chan []int, 1)
	g.threadMu.Lock()
	g.pendingThreads = append(g.pendingThreads, ch)
	g.collectingRows = true
	g.threadMu.Unlock()

	if err := g.Exec("info threads"); err != nil {
		g.cancelThreadQuery(ch)
		return nil, err
	}
	return <-ch, nil
}

// cancelThreadQuery removes target from the pending queue if Exec failed
// before gdb ever had a chance to reply to it.
func (g *gdbSubprocess) cancelThreadQuery(target chan []int) {
	g.threadMu.Lock()
	defer g.threadMu.Unlock()
	for i, ch := range g.pendingThreads {
		if ch == target {
			g.pendingThreads = append(g.pendingThreads[:i], g.pendingThreads[i+1:]...)
			break
		}
	}
	if len(g.pendingThreads) == 0 {
		g.collectingRows = false
		g.threadRows = nil
	}
}

func (g *gdbSubprocess) CurrentThread() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentThread, nil
}

func (g *gdbSubprocess) CurrentLocation() (checkpoint.Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentLoc, nil
}

// ResolveSymbol issues "info address NAME" and parses the hex address out
// of gdb's reply, which for a function symbol is its entry point. The
// reply is matched off the reader goroutine and delivered back here
// through a queued channel, since Exec itself is fire-and-forget.
func (g *gdbSubprocess) ResolveSymbol(name string) (checkpoint.Location, error) {
	ch := make(chan symbolResult, 1)
	g.symbolMu.Lock()
	g.symbolPending = append(g.symbolPending, ch)
	g.symbolMu.Unlock()

	if err := g.Exec("info address " + name); err != nil {
		g.cancelSymbolQuery(ch)
		return 0, err
	}

	res := <-ch
	if res.err != nil {
		return 0, fmt.Errorf("gdbgw: resolve symbol %q: %w", name, res.err)
	}
	return res.loc, nil
}

// cancelSymbolQuery removes target from the pending queue if Exec failed
// before gdb ever had a chance to reply to it.
func (g *gdbSubprocess) cancelSymbolQuery(target chan symbolResult) {
	g.symbolMu.Lock()
	defer g.symbolMu.Unlock()
	for i, ch := range g.symbolPending {
		if ch == target {
			g.symbolPending = append(g.symbolPending[:i], g.symbolPending[i+1:]...)
			return
		}
	}
}

func (g *gdbSubprocess) ConnectStop(l StopListener, enqueued bool) ListenerID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextListenerID++
	g.stopListeners[g.nextListenerID] = fakeListener[StopListener]{fn: l, enqueued: enqueued}
	return g.nextListenerID
}

func (g *gdbSubprocess) DisconnectStop(id ListenerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.stopListeners, id)
}

func (g *gdbSubprocess) ConnectNewThread(l NewThreadListener, enqueued bool) ListenerID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextListenerID++
	g.newThreadListeners[g.nextListenerID] = fakeListener[NewThreadListener]{fn: l, enqueued: enqueued}
	return g.nextListenerID
}

func (g *gdbSubprocess) DisconnectNewThread(id ListenerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.newThreadListeners, id)
}

func (g *gdbSubprocess) ConnectExited(l ExitedListener, enqueued bool) ListenerID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextListenerID++
	g.exitedListeners[g.nextListenerID] = fakeListener[ExitedListener]{fn: l, enqueued: enqueued}
	return g.nextListenerID
}

func (g *gdbSubprocess) DisconnectExited(id ListenerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.exitedListeners, id)
}

// Close stops the enqueue pool, restores the controlling terminal if it was
// put into raw mode, and kills the gdb process. Safe to call more than once.
func (g *gdbSubprocess) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.stop()
		g.pool.Release()
		if g.oldTermState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), g.oldTermState)
		}
		_ = g.ptmx.Close()
		if g.cmd.Process != nil {
			_ = g.cmd.Process.Kill()
		}
		err = g.eg.Wait()
	})
	return err
}

var _ Gateway = (*gdbSubprocess)(nil)
