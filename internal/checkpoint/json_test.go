package checkpoint

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	l := &Log{
		Records: []Record{
			{ID: 0, Thread: 1, Location: 0x401000, Action: ActionSharedAccess},
			{ID: 1, Thread: 1, Location: 0x401010, Action: ActionCreatorThread},
			{ID: 2, Thread: 2, Location: 0x401020, Action: ActionCreatedThread},
		},
		ThreadStartRoutines: []string{"worker_main"},
		EntryPoints:         []Location{0x401000},
		SessionID:           "01HZXYZ",
	}

	data, err := Marshal(l)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(got.Records) != len(l.Records) {
		t.Fatalf("got %d records, want %d", len(got.Records), len(l.Records))
	}
	for i, r := range got.Records {
		if r != l.Records[i] {
			t.Errorf("record %d = %+v, want %+v", i, r, l.Records[i])
		}
	}
	if got.SessionID != l.SessionID {
		t.Errorf("SessionID = %q, want %q", got.SessionID, l.SessionID)
	}
	if len(got.EntryPoints) != 1 || got.EntryPoints[0] != 0x401000 {
		t.Errorf("EntryPoints = %v, want [0x401000]", got.EntryPoints)
	}
}

func TestUnmarshalDefaultsActionToSharedAccess(t *testing.T) {
	data := []byte(`{"checkpoints":[{"id":0,"thread":1,"location":"*0x1000"}],"thread_start_routines":[]}`)
	l, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(l.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(l.Records))
	}
	if l.Records[0].Action != ActionSharedAccess {
		t.Errorf("Action = %v, want ActionSharedAccess", l.Records[0].Action)
	}
}

func TestUnmarshalIgnoresUnknownKeys(t *testing.T) {
	data := []byte(`{"checkpoints":[{"id":0,"thread":1,"location":"*0x1000","extra_field":"ignored"}],"thread_start_routines":[],"future_field":123}`)
	if _, err := Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal with unknown keys: %v", err)
	}
}

func TestUnmarshalBadLocation(t *testing.T) {
	data := []byte(`{"checkpoints":[{"id":0,"thread":1,"location":"not-hex"}],"thread_start_routines":[]}`)
	if _, err := Unmarshal(data); err == nil {
		t.Fatal("expected error for malformed location")
	}
}
