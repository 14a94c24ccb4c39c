package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/papapumpkin/pares/internal/diag"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var decoded []Event
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			t.Fatalf("invalid JSON line: %v\nline: %s", err, line)
		}
		decoded = append(decoded, evt)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner: %v", err)
	}
	return decoded
}

func TestNewEmitter_ErrorOnBadPath(t *testing.T) {
	t.Parallel()
	_, err := NewEmitter("/nonexistent/dir/events.jsonl")
	if err == nil {
		t.Fatal("expected error for bad path, got nil")
	}
	if !strings.Contains(err.Error(), "telemetry: open") {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}

func TestRecord_StampsAndOrders(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	em.now = func() time.Time { return fixed }

	if err := em.Record(KindRunStart, "r1", "", map[string]string{"input": "/data"}); err != nil {
		t.Fatal(err)
	}
	if err := em.Record(KindStageDone, "r1", "network", map[string]int{"actors": 4}); err != nil {
		t.Fatal(err)
	}
	if err := em.Record(KindRunDone, "r1", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readEvents(t, path)
	wantKinds := []string{KindRunStart, KindStageDone, KindRunDone}
	if len(got) != len(wantKinds) {
		t.Fatalf("expected %d events, got %d", len(wantKinds), len(got))
	}
	for i, evt := range got {
		if evt.Kind != wantKinds[i] {
			t.Errorf("event %d: kind=%q, want %q", i, evt.Kind, wantKinds[i])
		}
		if evt.RunID != "r1" {
			t.Errorf("event %d: run=%q, want r1", i, evt.RunID)
		}
		if !evt.Timestamp.Equal(fixed) {
			t.Errorf("event %d: ts=%v, want %v", i, evt.Timestamp, fixed)
		}
	}
	if got[1].Stage != "network" {
		t.Errorf("stage = %q, want network", got[1].Stage)
	}
}

func TestDiagnostics_OneEventEach(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	var ds diag.List
	ds.Add("join", "TIDY_5_1_ACTORES", diag.KindUnresolvedJoin, "1 of 2 rows have no grupo")
	ds.Add("conflict", "", diag.KindFutureEvent, "event c9 is after as-of")
	if err := em.Diagnostics("r1", ds); err != nil {
		t.Fatal(err)
	}
	em.Close()

	got := readEvents(t, path)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for i, evt := range got {
		if evt.Kind != KindDiagnostic || evt.Stage != ds[i].Stage {
			t.Errorf("event %d = %+v", i, evt)
		}
		data, _ := evt.Data.(map[string]any)
		if data["kind"] != string(ds[i].Kind) {
			t.Errorf("event %d data kind = %v, want %s", i, data["kind"], ds[i].Kind)
		}
	}
}

func TestEmit_ConcurrentSafety(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")

	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func(idx int) {
			defer wg.Done()
			if err := em.Record(KindStageDone, "r1", "composite", map[string]int{"idx": idx}); err != nil {
				t.Errorf("Record from goroutine %d: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readEvents(t, path); len(got) != n {
		t.Fatalf("expected %d events, got %d", n, len(got))
	}
}

func TestNilEmitter_NoOp(t *testing.T) {
	t.Parallel()
	var em *Emitter

	if err := em.Emit(Event{Kind: KindRunStart}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := em.Record(KindRunDone, "r1", "", nil); err != nil {
		t.Errorf("nil Record: %v", err)
	}
	if err := em.Diagnostics("r1", diag.List{{Stage: "x", Kind: diag.KindMissingValue}}); err != nil {
		t.Errorf("nil Diagnostics: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestEmit_AppendsToExistingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "append.jsonl")

	for _, kind := range []string{KindRunStart, KindRunDone} {
		em, err := NewEmitter(path)
		if err != nil {
			t.Fatalf("NewEmitter: %v", err)
		}
		if err := em.Record(kind, "r1", "", nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
		em.Close()
	}

	if got := readEvents(t, path); len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
}

func TestEvent_OmitsEmptyFields(t *testing.T) {
	t.Parallel()
	evt := Event{
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Kind:      KindRunStart,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"run"`, `"stage"`, `"data"`} {
		if strings.Contains(s, key) {
			t.Errorf("expected %s to be omitted, got: %s", key, s)
		}
	}
}
