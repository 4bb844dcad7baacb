package verify

import (
	"testing"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

func sampleLog() *checkpoint.Log {
	return &checkpoint.Log{
		Records: []checkpoint.Record{
			{ID: 0, Thread: 1, Location: 0x1000, Action: checkpoint.ActionSharedAccess},
			{ID: 1, Thread: 1, Location: 0x1010, Action: checkpoint.ActionSharedAccess},
			{ID: 2, Thread: 1, Location: 0x1020, Action: checkpoint.ActionSharedAccess},
		},
	}
}

func TestCompareIdenticalLogs(t *testing.T) {
	rep := Compare(sampleLog(), sampleLog())
	if !rep.Equal {
		t.Fatalf("Compare(identical) = %+v, want Equal", rep)
	}
	if rep.FirstMismatch != nil {
		t.Errorf("FirstMismatch = %+v, want nil", rep.FirstMismatch)
	}
}

func TestCompareIdenticalIgnoresHitField(t *testing.T) {
	a := sampleLog()
	b := sampleLog()
	b.Records[0].Hit = true
	rep := Compare(a, b)
	if !rep.Equal {
		t.Fatalf("Compare should ignore Hit field, got %+v", rep)
	}
}

func TestCompareDivergingLocation(t *testing.T) {
	expected := sampleLog()
	actual := sampleLog()
	actual.Records[1].Location = 0x2010

	rep := Compare(expected, actual)
	if rep.Equal {
		t.Fatal("Compare(diverging) = Equal, want mismatch")
	}
	if rep.FirstMismatch == nil || rep.FirstMismatch.ID != 1 {
		t.Fatalf("FirstMismatch = %+v, want record id 1", rep.FirstMismatch)
	}
	if rep.Patch == "" {
		t.Error("Patch is empty, want a rendered diff")
	}
}

func TestCompareDivergingLength(t *testing.T) {
	expected := sampleLog()
	actual := &checkpoint.Log{Records: expected.Records[:2]}

	rep := Compare(expected, actual)
	if rep.Equal {
		t.Fatal("Compare(shorter actual) = Equal, want mismatch")
	}
	if rep.FirstMismatch == nil || rep.FirstMismatch.ID != 2 {
		t.Fatalf("FirstMismatch = %+v, want record id 2", rep.FirstMismatch)
	}
}

func threadCreationLog() *checkpoint.Log {
	return &checkpoint.Log{
		Records: []checkpoint.Record{
			{ID: 0, Thread: 1, Location: 0x1000, Action: checkpoint.ActionSharedAccess},
			{ID: 1, Thread: 1, Location: 0x1010, Action: checkpoint.ActionCreatorThread},
			{ID: 2, Thread: 2, Location: 0x2000, Action: checkpoint.ActionCreatedThread},
		},
		EntryPoints: []checkpoint.Location{0x2000},
	}
}

func TestCompareNoEntryPointViolationWhenLocationInstrumented(t *testing.T) {
	rep := Compare(threadCreationLog(), threadCreationLog())
	if !rep.Equal {
		t.Fatalf("Compare(identical, consistent entry points) = %+v, want Equal", rep)
	}
	if len(rep.EntryPointViolations) != 0 {
		t.Errorf("EntryPointViolations = %+v, want none", rep.EntryPointViolations)
	}
}

func TestCompareReportsEntryPointViolation(t *testing.T) {
	expected := threadCreationLog()
	actual := threadCreationLog()
	// actual's child thread started somewhere pass 2 never instrumented.
	actual.Records[2].Location = 0x3000

	rep := Compare(expected, actual)
	if rep.Equal {
		t.Fatal("Compare(entry point violation) = Equal, want mismatch")
	}
	if len(rep.EntryPointViolations) != 1 {
		t.Fatalf("EntryPointViolations = %+v, want exactly one", rep.EntryPointViolations)
	}
	if rep.EntryPointViolations[0].Location != 0x3000 {
		t.Errorf("violation location = %s, want 0x3000", rep.EntryPointViolations[0].Location)
	}
}

func TestCompareSkipsEntryPointCheckWhenAbsent(t *testing.T) {
	a := sampleLog()
	b := sampleLog()
	// Neither log declares EntryPoints; nothing to sanity-check against.
	rep := Compare(a, b)
	if !rep.Equal || len(rep.EntryPointViolations) != 0 {
		t.Fatalf("Compare(no entry points declared) = %+v, want Equal with no violations", rep)
	}
}
