// Package pilot runs the perception, cognition and execution control loop.
package pilot

import (
	"strings"

	"github.com/google/uuid"
)

// Session is the mutable state of one run. Only the loop touches it.
type Session struct {
	ID            string
	TaskContext   string
	Iteration     int
	MaxIterations int
}

// NewSession starts a session for the given task. A non-positive bound
// falls back to DefaultMaxIterations.
func NewSession(taskContext string, maxIterations int) *Session {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Session{
		ID:            uuid.NewString(),
		TaskContext:   strings.TrimSpace(taskContext),
		MaxIterations: maxIterations,
	}
}

// Record appends a completed step to the task context so the model can see
// what has already been done.
func (s *Session) Record(summary string) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}
	if !strings.Contains(s.TaskContext, completedHeader) {
		s.TaskContext += "\n\n" + completedHeader
	}
	s.TaskContext += "\n- " + summary
}

const completedHeader = "Completed steps:"

// OutcomeKind is how a cycle or a session ended.
type OutcomeKind string

const (
	OutcomeContinue     OutcomeKind = "continue"
	OutcomeFinished     OutcomeKind = "finished"
	OutcomeBoundReached OutcomeKind = "bound_reached"
	OutcomeAborted      OutcomeKind = "aborted"
)

// CycleOutcome tells the loop what to do after one cycle.
type CycleOutcome struct {
	Kind   OutcomeKind
	Reason string
}

// Report summarises a finished session.
type Report struct {
	SessionID  string      `json:"session_id" yaml:"session_id"`
	Outcome    OutcomeKind `json:"outcome" yaml:"outcome"`
	Iterations int         `json:"iterations" yaml:"iterations"`
	Reason     string      `json:"reason,omitempty" yaml:"reason,omitempty"`
}
