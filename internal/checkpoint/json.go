package checkpoint

import (
	stdjson "encoding/json"
	"fmt"
	"runtime"

	"github.com/bytedance/sonic"
)

// jsonAPI lets the checkpoint codec switch marshal/unmarshal implementations
// without the call sites caring which one is active.
type jsonAPI struct {
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

// codec picks sonic on the architectures it supports and falls back to the
// standard library elsewhere — sonic.Marshal has historically required cgo
// assembly stubs unavailable off amd64/arm64, and a checkpoint log is read
// once per orchestrator run, not hot-path traffic, so correctness on every
// platform matters more than shaving the decode here.
var codec = newCodec()

func newCodec() jsonAPI {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		return jsonAPI{marshal: sonic.Marshal, unmarshal: sonic.Unmarshal}
	}
	return jsonAPI{marshal: stdjson.Marshal, unmarshal: stdjson.Unmarshal}
}

// diskRecord is the on-disk shape: action is one of "",
// "creator_thread", "created_thread", unknown keys are ignored, and a
// missing action defaults to shared_access.
type diskRecord struct {
	ID       int    `json:"id"`
	Thread   int    `json:"thread"`
	Location string `json:"location"`
	Action   string `json:"action"`
}

type diskLog struct {
	Checkpoints         []diskRecord `json:"checkpoints"`
	ThreadStartRoutines []string     `json:"thread_start_routines"`
	EntryPoints         []string     `json:"entry_points,omitempty"`
	SessionID           string       `json:"session_id,omitempty"`
}

func actionFromTag(tag string) Action {
	switch tag {
	case "creator_thread":
		return ActionCreatorThread
	case "created_thread":
		return ActionCreatedThread
	default:
		return ActionSharedAccess
	}
}

func actionToTag(a Action) string {
	switch a {
	case ActionCreatorThread:
		return "creator_thread"
	case ActionCreatedThread:
		return "created_thread"
	default:
		return ""
	}
}

// Marshal encodes a Log to its on-disk JSON form.
func Marshal(l *Log) ([]byte, error) {
	d := diskLog{
		ThreadStartRoutines: append([]string(nil), l.ThreadStartRoutines...),
		EntryPoints:         locationStrings(l.EntryPoints),
		SessionID:           l.SessionID,
	}
	d.Checkpoints = make([]diskRecord, len(l.Records))
	for i, r := range l.Records {
		d.Checkpoints[i] = diskRecord{
			ID:       r.ID,
			Thread:   r.Thread,
			Location: r.Location.String(),
			Action:   actionToTag(r.Action),
		}
	}
	return codec.marshal(d)
}

// Unmarshal decodes a Log from its on-disk JSON form.
func Unmarshal(data []byte) (*Log, error) {
	var d diskLog
	if err := codec.unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("checkpoint: decode log: %w", err)
	}

	l := &Log{
		ThreadStartRoutines: d.ThreadStartRoutines,
		SessionID:           d.SessionID,
		Records:             make([]Record, len(d.Checkpoints)),
	}
	for i, c := range d.Checkpoints {
		loc, err := ParseLocation(c.Location)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: record %d: %w", c.ID, err)
		}
		l.Records[i] = Record{
			ID:       c.ID,
			Thread:   c.Thread,
			Location: loc,
			Action:   actionFromTag(c.Action),
		}
	}
	for _, ep := range d.EntryPoints {
		loc, err := ParseLocation(ep)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: entry point %q: %w", ep, err)
		}
		l.EntryPoints = append(l.EntryPoints, loc)
	}
	return l, nil
}

func locationStrings(locs []Location) []string {
	if len(locs) == 0 {
		return nil
	}
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.String()
	}
	return out
}
