// Package verify checks round-trip idempotence between two checkpoint
// logs: recording the same target twice, or recording then replaying and
// re-recording, should reproduce the identical interleaving. Grounded on
// a line-diff approach to comparing two recorded
// artifacts (manual_commit_attribution.go's diffLines), generalized from
// diffing file contents to diffing checkpoint records.
package verify

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

// Report is the result of comparing two checkpoint logs.
type Report struct {
	Equal bool

	// FirstMismatch is the earliest record (by position) present in Expected
	// but differing from (or absent from) Actual's record at the same
	// position; when Expected is a strict prefix of Actual, it is Actual's
	// first record past the end of Expected. Nil when Equal is true.
	FirstMismatch *checkpoint.Record

	// Patch is a human-readable line diff between the two logs' record
	// sequences, for display by `syrup verify`.
	Patch string

	// EntryPointViolations holds every created_thread record, from either
	// log, whose location is not among that log's own EntryPoints — a
	// created thread observed somewhere pass 2 never installed a
	// thread-start-routine breakpoint.
	EntryPointViolations []checkpoint.Record
}

// recordLine renders a record the way it is compared: everything except
// Hit, which is replay-only state with no bearing on whether the recorded
// interleaving itself round-tripped.
func recordLine(r checkpoint.Record) string {
	return fmt.Sprintf("%d\tthread=%d\tloc=%s\taction=%s", r.ID, r.Thread, r.Location, r.Action)
}

func recordLines(log *checkpoint.Log) string {
	var b strings.Builder
	for _, r := range log.Records {
		b.WriteString(recordLine(r))
		b.WriteByte('\n')
	}
	return b.String()
}

// entryPointViolations returns log's created_thread records whose location
// is absent from log's own EntryPoints, i.e. recorded locations that are
// not a subset of what pass 2 actually instrumented. A log with no
// EntryPoints (predecessor logs, or runs with no thread-start-routine
// declared) has nothing to check against and never violates.
func entryPointViolations(log *checkpoint.Log) []checkpoint.Record {
	if len(log.EntryPoints) == 0 {
		return nil
	}
	entry := make(map[checkpoint.Location]bool, len(log.EntryPoints))
	for _, loc := range log.EntryPoints {
		entry[loc] = true
	}
	var bad []checkpoint.Record
	for _, r := range log.Records {
		if r.Action == checkpoint.ActionCreatedThread && !entry[r.Location] {
			bad = append(bad, r)
		}
	}
	return bad
}

// Compare diffs expected against actual, both pass-2 outputs of the same
// target, and reports whether they match. It also sanity-checks each log's
// created_thread locations against its own EntryPoints set.
func Compare(expected, actual *checkpoint.Log) Report {
	violations := append(entryPointViolations(expected), entryPointViolations(actual)...)

	elines := recordLines(expected)
	alines := recordLines(actual)

	if elines == alines {
		return Report{Equal: len(violations) == 0, EntryPointViolations: violations}
	}

	dmp := diffmatchpatch.New()
	t1, t2, lineArray := dmp.DiffLinesToChars(elines, alines)
	diffs := dmp.DiffMain(t1, t2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	rep := Report{
		Equal:                false,
		Patch:                dmp.DiffPrettyText(diffs),
		EntryPointViolations: violations,
	}

	for i := range expected.Records {
		if i >= len(actual.Records) || recordLine(expected.Records[i]) != recordLine(actual.Records[i]) {
			r := expected.Records[i]
			rep.FirstMismatch = &r
			break
		}
	}
	if rep.FirstMismatch == nil && len(actual.Records) != len(expected.Records) {
		// expected is a strict prefix of actual, or vice versa; point at
		// the first record past the shorter log.
		if len(expected.Records) < len(actual.Records) {
			r := actual.Records[len(expected.Records)]
			rep.FirstMismatch = &r
		}
	}

	return rep
}
