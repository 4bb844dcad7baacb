// Package record implements the Record Orchestrator: the two-pass recorder
// that discovers thread-creation sites, then re-runs the target under
// watchpoints and breakpoints to capture the checkpoint log, before handing
// the raw sequence to the Creation Matcher for reordering.
package record

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/otley-syrup/syrup/internal/checkpoint"
	"github.com/otley-syrup/syrup/internal/gdbgw"
	"github.com/otley-syrup/syrup/internal/matcher"
	"github.com/otley-syrup/syrup/internal/threadtracker"
)

// Config declares the symbols the recorder instruments: the shared
// variables to watch and the thread start routines to breakpoint during
// pass 2, mirroring the target-description fields of syrup.yaml.
type Config struct {
	SharedVariables     []string
	ThreadStartRoutines []string
	CloneSyscallName    string // defaults to "clone"
}

// Recorder runs both passes and the Creation Matcher, producing a
// checkpoint.Log ready to write to disk.
type Recorder struct {
	gw     gdbgw.Gateway
	cfg    Config
	logger *zap.Logger
}

// New returns a Recorder driving gw according to cfg.
func New(gw gdbgw.Gateway, cfg Config, logger *zap.Logger) *Recorder {
	if cfg.CloneSyscallName == "" {
		cfg.CloneSyscallName = "clone"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{gw: gw, cfg: cfg, logger: logger}
}

// Run executes pass 1, pass 2, and the matcher in sequence and returns the
// final, matched checkpoint log.
func (r *Recorder) Run() (*checkpoint.Log, error) {
	creationPCs, err := r.runPass1()
	if err != nil {
		return nil, err
	}
	r.logger.Info("pass 1 complete", zap.Int("creation_pc_count", len(creationPCs)))

	rawRecords, creations, err := r.runPass2(creationPCs)
	if err != nil {
		return nil, err
	}
	r.logger.Info("pass 2 complete", zap.Int("record_count", len(rawRecords)), zap.Int("creation_count", len(creations)))

	matched, err := matcher.Match(rawRecords, creations, creationPCs)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	return &checkpoint.Log{
		Records:             matched,
		ThreadStartRoutines: r.cfg.ThreadStartRoutines,
		EntryPoints:         r.entryPointLocations(),
	}, nil
}

// entryPointLocations resolves each declared thread start routine to the
// address pass 2 breakpointed it at, skipping duplicates.
func (r *Recorder) entryPointLocations() []checkpoint.Location {
	seen := make(map[checkpoint.Location]bool)
	var out []checkpoint.Location
	for _, sym := range r.cfg.ThreadStartRoutines {
		loc, err := r.gw.ResolveSymbol(sym)
		if err != nil {
			r.logger.Warn("entry points: failed to resolve start routine", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		if !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}
	return out
}

// newThreadTracker is split out so each pass 2 run gets a fresh tracker
// rather than reusing state from an earlier run.
func newThreadTracker() *threadtracker.Tracker {
	return threadtracker.New()
}
