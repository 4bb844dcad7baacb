// Package matcher implements the Creation Matcher: the offline pass that
// repairs the ambiguity between a thread's creation syscall and the first
// recorded instruction of the child thread it spawned.
package matcher

import (
	"fmt"

	"github.com/otley-syrup/syrup/internal/checkpoint"
)

// ThreadCreation is one (creator, created) pairing observed live during
// recording, as reported by a new-thread event.
type ThreadCreation struct {
	Creator int
	Created int
}

// UnmatchedError is returned when one of the matcher's pending queues is
// non-empty after the walk — a load-bearing post-condition failure that
// rejects the whole recording.
type UnmatchedError struct {
	UnmatchedCreators []checkpoint.Record
	UnmatchedCreated  []checkpoint.Record
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("matcher: %d unmatched creator record(s), %d unmatched created record(s)",
		len(e.UnmatchedCreators), len(e.UnmatchedCreated))
}

type reorder struct {
	from int
	to   int
}

// Match walks records linearly, tags creator_thread/created_thread actions,
// pairs them against the live (creator, created) observations, and applies
// any reordering a pairing needs so that every creator_thread record ends up
// immediately before its created_thread record in the returned slice.
//
// creationPCs is the set of program-counter locations pass 1 identified as
// thread-creation syscall sites found in an earlier pass; any record whose
// location is in this set is a creator_thread candidate.
func Match(records []checkpoint.Record, creations []ThreadCreation, creationPCs map[checkpoint.Location]bool) ([]checkpoint.Record, error) {
	out := append([]checkpoint.Record(nil), records...)

	seenThreads := map[int]bool{checkpoint.MainThreadID: true}

	// pendingCreations holds, per creator thread, the queue of children it
	// has spawned that have not yet been matched to a created_thread record.
	pendingCreations := make(map[int][]int)
	for _, c := range creations {
		pendingCreations[c.Creator] = append(pendingCreations[c.Creator], c.Created)
	}

	var unmatchedCreator []int // indices into out
	var unmatchedCreated []int // indices into out
	var reorders []reorder

	tryMatch := func() {
		for {
			matchedThisPass := false
			for ci := 0; ci < len(unmatchedCreator); ci++ {
				creatorIdx := unmatchedCreator[ci]
				creatorThread := out[creatorIdx].Thread
				queue := pendingCreations[creatorThread]
				if len(queue) == 0 {
					continue
				}
				childThread := queue[0]

				createdPos := -1
				for di, createdIdx := range unmatchedCreated {
					if out[createdIdx].Thread == childThread {
						createdPos = di
						break
					}
				}
				if createdPos == -1 {
					continue
				}
				createdIdx := unmatchedCreated[createdPos]

				if out[creatorIdx].ID > out[createdIdx].ID {
					reorders = append(reorders, reorder{from: createdIdx, to: creatorIdx})
				}

				pendingCreations[creatorThread] = queue[1:]
				unmatchedCreator = append(unmatchedCreator[:ci], unmatchedCreator[ci+1:]...)
				unmatchedCreated = append(unmatchedCreated[:createdPos], unmatchedCreated[createdPos+1:]...)
				matchedThisPass = true
				break
			}
			if !matchedThisPass {
				return
			}
		}
	}

	for i, r := range out {
		switch {
		case !seenThreads[r.Thread]:
			out[i].Action = checkpoint.ActionCreatedThread
			seenThreads[r.Thread] = true
			unmatchedCreated = append(unmatchedCreated, i)
		case creationPCs[r.Location]:
			out[i].Action = checkpoint.ActionCreatorThread
			unmatchedCreator = append(unmatchedCreator, i)
		}
		tryMatch()
	}

	if len(unmatchedCreator) > 0 || len(unmatchedCreated) > 0 {
		var uc, ud []checkpoint.Record
		for _, i := range unmatchedCreator {
			uc = append(uc, out[i])
		}
		for _, i := range unmatchedCreated {
			ud = append(ud, out[i])
		}
		return nil, &UnmatchedError{UnmatchedCreators: uc, UnmatchedCreated: ud}
	}

	out = applyReorders(out, reorders)
	renumber(out)
	return out, nil
}

// applyReorders moves each created_thread record to immediately follow its
// matched creator_thread record. Reorders are applied one at a time against
// the current slice state so later moves see earlier ones' effects.
func applyReorders(records []checkpoint.Record, reorders []reorder) []checkpoint.Record {
	// Reorders reference original indices, which shift as earlier reorders
	// are applied; resolve by record identity (ID) instead of index.
	result := records
	for _, ro := range reorders {
		fromID := idAt(records, ro.from)
		toID := idAt(records, ro.to)
		result = moveAfter(result, fromID, toID)
	}
	return result
}

// idAt is only meaningful at the moment a reorder was recorded; it is kept
// as a snapshot of the record's ID (stable identity) rather than its index.
func idAt(records []checkpoint.Record, idx int) int {
	if idx < 0 || idx >= len(records) {
		return -1
	}
	return records[idx].ID
}

func indexOfID(records []checkpoint.Record, id int) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// moveAfter removes the record with ID fromID and reinserts it immediately
// after the record with ID toID.
func moveAfter(records []checkpoint.Record, fromID, toID int) []checkpoint.Record {
	fromIdx := indexOfID(records, fromID)
	if fromIdx == -1 {
		return records
	}
	rec := records[fromIdx]
	rest := append(records[:fromIdx:fromIdx], records[fromIdx+1:]...)

	toIdx := indexOfID(rest, toID)
	if toIdx == -1 {
		return records
	}
	out := make([]checkpoint.Record, 0, len(rest)+1)
	out = append(out, rest[:toIdx+1]...)
	out = append(out, rec)
	out = append(out, rest[toIdx+1:]...)
	return out
}

// renumber reassigns IDs 0..N-1 in final sequence order, the contiguous
// id invariant a well-formed log requires.
func renumber(records []checkpoint.Record) {
	for i := range records {
		records[i].ID = i
	}
}
