// Package audit keeps an append-only record of everything the pilot was
// asked to do on the clinician's screen.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event classifies a record.
type Event string

const (
	// EventPlan is written for every plan that reaches the executor, before dispatch.
	EventPlan Event = "plan"
	// EventRedactionDegraded is written when a frame could not be redacted.
	EventRedactionDegraded Event = "redaction_degraded"
	// EventSessionEnd closes a session with its final outcome.
	EventSessionEnd Event = "session_end"
)

// Record is one audit entry.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Iteration  int       `json:"iteration"`
	Event      Event     `json:"event"`
	Action     string    `json:"action,omitempty"`
	Coordinate []int     `json:"coordinate,omitempty"`
	Text       string    `json:"text,omitempty"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Thought    string    `json:"thought,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Time       time.Time `json:"time"`
}

// Trail accepts records. Implementations must be safe for sequential use
// from the control goroutine; Append returning an error means the record
// was not persisted.
type Trail interface {
	Append(ctx context.Context, r Record) error
	Close() error
}

// stamp fills in the ID and timestamp when the caller left them empty.
func stamp(r Record) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}
	return r
}

// Multi fans a record out to several trails. A failure in any of them fails
// the append, so the executor never dispatches an action that was only
// partially recorded.
type Multi []Trail

var _ Trail = Multi(nil)

func (m Multi) Append(ctx context.Context, r Record) error {
	r = stamp(r)
	var errs []error
	for _, t := range m {
		if err := t.Append(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
