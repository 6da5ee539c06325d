// Package audit records authorization decisions on a trail separate from the
// request liveness log. The sink is an injected port, not a process-wide
// singleton, and recording never blocks the request path.
package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Outcome marks whether the audited action was permitted.
type Outcome string

const (
	OutcomeGranted  Outcome = "granted"
	OutcomeRejected Outcome = "rejected"
)

// Event is one audit record: one per authorization decision.
type Event struct {
	At         time.Time `json:"ts"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	CallerID   string    `json:"caller_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
}

// Sink accepts audit events. Implementations must not block the caller.
type Sink interface {
	Record(e Event)
}

// JSONSink writes one JSON object per event to w from a background goroutine.
// Events are dropped if the buffer is full rather than stalling a request.
type JSONSink struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewJSONSink starts a sink draining into w.
func NewJSONSink(w io.Writer) *JSONSink {
	s := &JSONSink{
		ch:   make(chan Event, 256),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		enc := json.NewEncoder(w)
		for e := range s.ch {
			_ = enc.Encode(e)
		}
	}()
	return s
}

// Record enqueues the event, stamping the time if unset.
func (s *JSONSink) Record(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case s.ch <- e:
	default:
	}
}

// Close flushes buffered events and stops the drain goroutine.
func (s *JSONSink) Close() {
	s.once.Do(func() { close(s.ch) })
	<-s.done
}

// NopSink discards all events. Useful in tests.
type NopSink struct{}

func (NopSink) Record(Event) {}
