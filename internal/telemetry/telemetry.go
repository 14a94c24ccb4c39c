// Package telemetry provides a JSONL event stream for a pares run. Run and
// stage boundaries and every diagnostic are recorded as structured JSON
// events, so a batch can be audited after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/papapumpkin/pares/internal/diag"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart   = "run_start"
	KindRunDone    = "run_done"
	KindRunFailed  = "run_failed"
	KindStageStart = "stage_start"
	KindStageDone  = "stage_done"
	KindDiagnostic = "diagnostic"
	KindPersisted  = "persisted"
)

// Event represents a single telemetry record. Each event carries a
// timestamp, a kind tag, the run and optional stage it belongs to, and
// arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
	now  func() time.Time
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. The file is created if it does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file: f,
		enc:  json.NewEncoder(f),
		now:  time.Now,
	}, nil
}

// Emit writes a single event to the JSONL file. A zero Timestamp is set to
// the current time. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Record emits an event stamped with the current time.
func (e *Emitter) Record(kind, runID, stage string, data any) error {
	return e.Emit(Event{Kind: kind, RunID: runID, Stage: stage, Data: data})
}

// Diagnostics emits one diagnostic event per entry, in order.
func (e *Emitter) Diagnostics(runID string, ds diag.List) error {
	for _, d := range ds {
		if err := e.Record(KindDiagnostic, runID, d.Stage, d); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
