package matcher

import (
	"errors"
	"testing"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

func rec(id, thread int, loc checkpoint.Location) checkpoint.Record {
	return checkpoint.Record{ID: id, Thread: thread, Location: loc}
}

func TestMatchSimpleInOrderPair(t *testing.T) {
	records := []checkpoint.Record{
		rec(0, 1, 0xA),
		rec(1, 1, 0xB), // creator PC
		rec(2, 2, 0xC), // child's first instruction
		rec(3, 2, 0xD),
		rec(4, 1, 0xE),
	}
	creations := []ThreadCreation{{Creator: 1, Created: 2}}
	creationPCs := map[checkpoint.Location]bool{0xB: true}

	out, err := Match(records, creations, creationPCs)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if out[1].Action != checkpoint.ActionCreatorThread {
		t.Errorf("record 1 action = %v, want ActionCreatorThread", out[1].Action)
	}
	if out[2].Action != checkpoint.ActionCreatedThread {
		t.Errorf("record 2 action = %v, want ActionCreatedThread", out[2].Action)
	}
	for i, r := range out {
		if r.ID != i {
			t.Errorf("out[%d].ID = %d, want %d", i, r.ID, i)
		}
	}
}

// TestMatchReordersChildBeforeCreator exercises S3: the raw pass-2 log has
// the child's first observation arrive before the creator's creation-PC
// stop, because watchpoint delivery on the child beat the parent's
// creation-PC stop. The matcher must reorder so the creator immediately
// precedes the created record.
func TestMatchReordersChildBeforeCreator(t *testing.T) {
	records := []checkpoint.Record{
		rec(0, 1, 0xA),
		rec(1, 1, 0xF),
		rec(2, 2, 0xC), // created, arrives before its creator below
		rec(3, 1, 0xB), // creator PC, arrives after the child
	}
	creations := []ThreadCreation{{Creator: 1, Created: 2}}
	creationPCs := map[checkpoint.Location]bool{0xB: true}

	out, err := Match(records, creations, creationPCs)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	var creatorIdx, createdIdx = -1, -1
	for i, r := range out {
		if r.Action == checkpoint.ActionCreatorThread {
			creatorIdx = i
		}
		if r.Action == checkpoint.ActionCreatedThread {
			createdIdx = i
		}
	}
	if creatorIdx == -1 || createdIdx == -1 {
		t.Fatalf("missing tagged records: creatorIdx=%d createdIdx=%d", creatorIdx, createdIdx)
	}
	if createdIdx != creatorIdx+1 {
		t.Errorf("created record at %d, want immediately after creator at %d", createdIdx, creatorIdx)
	}
	// P4: creator.id < created.id in the final, renumbered sequence.
	if out[creatorIdx].ID >= out[createdIdx].ID {
		t.Errorf("creator.id=%d not < created.id=%d", out[creatorIdx].ID, out[createdIdx].ID)
	}
}

func TestMatchUnmatchedCreatorIsRejected(t *testing.T) {
	records := []checkpoint.Record{
		rec(0, 1, 0xA),
		rec(1, 1, 0xB), // creator PC, but no matching creation event supplied
	}
	creationPCs := map[checkpoint.Location]bool{0xB: true}

	_, err := Match(records, nil, creationPCs)
	var unmatched *UnmatchedError
	if !errors.As(err, &unmatched) {
		t.Fatalf("err = %v, want *UnmatchedError", err)
	}
	if len(unmatched.UnmatchedCreators) != 1 {
		t.Errorf("UnmatchedCreators = %v, want 1 entry", unmatched.UnmatchedCreators)
	}
}

func TestMatchUnmatchedCreatedIsRejected(t *testing.T) {
	records := []checkpoint.Record{
		rec(0, 1, 0xA),
		rec(1, 2, 0xC), // thread 2 appears with no creator recorded at all
	}
	_, err := Match(records, nil, map[checkpoint.Location]bool{})
	var unmatched *UnmatchedError
	if !errors.As(err, &unmatched) {
		t.Fatalf("err = %v, want *UnmatchedError", err)
	}
	if len(unmatched.UnmatchedCreated) != 1 {
		t.Errorf("UnmatchedCreated = %v, want 1 entry", unmatched.UnmatchedCreated)
	}
}

func TestMatchMultipleChildrenSameCreatorOrderedByRecordingOrder(t *testing.T) {
	records := []checkpoint.Record{
		rec(0, 1, 0xB), // creator PC (first spawn)
		rec(1, 2, 0xC), // child A created
		rec(2, 1, 0xB), // creator PC (second spawn, same PC)
		rec(3, 3, 0xC), // child B created
	}
	creations := []ThreadCreation{
		{Creator: 1, Created: 2},
		{Creator: 1, Created: 3},
	}
	creationPCs := map[checkpoint.Location]bool{0xB: true}

	out, err := Match(records, creations, creationPCs)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if out[0].Thread != 1 || out[1].Thread != 2 {
		t.Errorf("pair 1 out of order: %+v, %+v", out[0], out[1])
	}
	if out[2].Thread != 1 || out[3].Thread != 3 {
		t.Errorf("pair 2 out of order: %+v, %+v", out[2], out[3])
	}
}
