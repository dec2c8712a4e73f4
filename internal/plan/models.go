// internal/plan/models.go
package plan

import (
	"fmt"
	"strings"
	"time"
)

// ActionType names an action on the wire ("click", "type", ...).
type ActionType string

const (
	// -- Input actions --
	ActionClick    ActionType = "click"  // Moves the pointer to a coordinate and clicks.
	ActionTypeText ActionType = "type"   // Focuses a coordinate and types text.
	ActionScroll   ActionType = "scroll" // Scrolls the focused view.
	ActionWait     ActionType = "wait"   // Pauses for the page to settle.

	// -- Control --
	ActionFinish ActionType = "finish" // The task is complete.
	ActionError  ActionType = "error"  // Produced locally when inference failed.
)

const (
	DefaultScrollAmount = -500
	DefaultWaitDuration = 2 * time.Second
)

// ErrorKind classifies why inference did not produce a usable plan.
type ErrorKind string

const (
	ErrRateLimit         ErrorKind = "rateLimit"
	ErrConnection        ErrorKind = "connection"
	ErrAPIFault          ErrorKind = "apiFault"
	ErrMalformedResponse ErrorKind = "malformedResponse"
	ErrUnknown           ErrorKind = "unknown"
)

// ParseErrorKind maps a wire value onto the closed set of kinds.
// Both camelCase and snake_case spellings are accepted; anything else is ErrUnknown.
func ParseErrorKind(s string) ErrorKind {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "ratelimit":
		return ErrRateLimit
	case "connection":
		return ErrConnection
	case "apifault", "apierror":
		return ErrAPIFault
	case "malformedresponse", "parseerror":
		return ErrMalformedResponse
	default:
		return ErrUnknown
	}
}

// Transient reports whether the failure is expected to clear on its own.
func (k ErrorKind) Transient() bool {
	return k == ErrRateLimit || k == ErrConnection
}

// Coordinate is an (x, y) pair exactly as the model sent it. Its length and
// range are only checked by the executor against the live screen.
type Coordinate []int

func (c Coordinate) String() string {
	if c == nil {
		return "<none>"
	}
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Step is the closed set of things a plan can ask for.
type Step interface {
	Action() ActionType
	isStep()
}

type Click struct {
	At Coordinate
	// Cell is set instead of At when the model answered with a grid label.
	Cell string
}

type TypeText struct {
	At   Coordinate
	Cell string
	Text string
}

type Scroll struct {
	Amount int
	// Explicit is false when Amount is the default.
	Explicit bool
}

type Wait struct {
	Duration time.Duration
	Explicit bool
}

type Finish struct{}

// Failure carries an inference failure through the loop as data.
type Failure struct {
	Kind   ErrorKind
	Reason string
}

// Unrecognized is an action name outside the known set (or no action at all).
type Unrecognized struct {
	Name string
}

// FindingsOnly is a response that carried extracted values but no action.
type FindingsOnly struct{}

func (Click) Action() ActionType          { return ActionClick }
func (TypeText) Action() ActionType       { return ActionTypeText }
func (Scroll) Action() ActionType         { return ActionScroll }
func (Wait) Action() ActionType           { return ActionWait }
func (Finish) Action() ActionType         { return ActionFinish }
func (Failure) Action() ActionType        { return ActionError }
func (u Unrecognized) Action() ActionType { return ActionType(u.Name) }
func (FindingsOnly) Action() ActionType   { return "" }

func (Click) isStep()        {}
func (TypeText) isStep()     {}
func (Scroll) isStep()       {}
func (Wait) isStep()         {}
func (Finish) isStep()       {}
func (Failure) isStep()      {}
func (Unrecognized) isStep() {}
func (FindingsOnly) isStep() {}

// Finding is a single lab value read off the source document.
type Finding struct {
	Metric          string  `json:"metric"`
	Value           string  `json:"value"`
	Unit            string  `json:"unit,omitempty"`
	TargetFieldHint string  `json:"target_field_hint,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// Plan is the decoded, typed form of one model response.
type Plan struct {
	Thought   string
	Reasoning string
	Step      Step
	Findings  []Finding
	// ScanQuality is the model's self-reported legibility of the source ("good", "blurry", ...).
	ScanQuality string
	// Warnings collects non-fatal problems found while decoding.
	Warnings []string
	// Suspect is set when the response carried neither an action nor findings.
	Suspect bool
}

// Fail builds the plan returned when inference could not complete.
func Fail(kind ErrorKind, reason string) Plan {
	return Plan{Reasoning: reason, Step: Failure{Kind: kind, Reason: reason}}
}

// Failed returns the failure step, if the plan is one.
func (p Plan) Failed() (Failure, bool) {
	f, ok := p.Step.(Failure)
	return f, ok
}

// Summary is the text appended to the task context after the step ran.
func (p Plan) Summary() string {
	if s := strings.TrimSpace(p.Thought); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.Reasoning); s != "" {
		return s
	}
	if p.Step == nil {
		return ""
	}
	return string(p.Step.Action())
}

// Describe renders the step for logs and audit records.
func Describe(s Step) (action string, coord Coordinate, text string) {
	switch v := s.(type) {
	case Click:
		return string(ActionClick), v.At, ""
	case TypeText:
		return string(ActionTypeText), v.At, v.Text
	case Scroll:
		return string(ActionScroll), nil, fmt.Sprint(v.Amount)
	case Wait:
		return string(ActionWait), nil, v.Duration.String()
	case Finish:
		return string(ActionFinish), nil, ""
	case Failure:
		return string(ActionError), nil, string(v.Kind)
	case Unrecognized:
		return v.Name, nil, ""
	case FindingsOnly:
		return "findings", nil, ""
	default:
		return "", nil, ""
	}
}
