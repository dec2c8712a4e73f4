// Package executor turns a validated plan into input primitives.
package executor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/audit"
	"github.com/xkilldash9x/medipilot/internal/clock"
	"github.com/xkilldash9x/medipilot/internal/humanoid"
	"github.com/xkilldash9x/medipilot/internal/input"
	"github.com/xkilldash9x/medipilot/internal/plan"
)

// Status is the outcome of one Execute call.
type Status string

const (
	// StatusExecuted means an action was dispatched to the desktop.
	StatusExecuted Status = "executed"
	// StatusFinished means the plan declared the task complete.
	StatusFinished Status = "finished"
	// StatusSkipped means nothing was dispatched because the plan was unusable.
	StatusSkipped Status = "skipped"
	// StatusFailed means dispatch started but a primitive returned an error.
	StatusFailed Status = "failed"
)

// Result is the structured report for a single plan.
type Result struct {
	Status    Status
	Action    plan.ActionType
	ErrorCode ErrorCode
	Message   string
}

// Meta identifies the cycle a plan belongs to, for the audit record.
type Meta struct {
	SessionID string
	Iteration int
}

// Options tunes timing.
type Options struct {
	// PauseInterval is observed after every dispatched primitive group.
	PauseInterval time.Duration
	// FocusSettle separates the focus click from typing.
	FocusSettle time.Duration
}

// FinishBanner is logged when the model declares the task complete.
const FinishBanner = "Task complete. A clinician must review every entered value before saving."

// stepHandler dispatches one kind of step on a context that is never cancelled.
type stepHandler func(ctx context.Context, step plan.Step) (Result, error)

// Executor validates a plan against the live screen, records it, and
// performs it through the input driver.
type Executor struct {
	driver   input.Driver
	humanoid *humanoid.Humanoid
	trail    audit.Trail
	sleeper  clock.Sleeper
	opts     Options
	logger   *zap.Logger
	handlers map[plan.ActionType]stepHandler
}

// New builds an executor. trail must be non-nil; use audit.Multi{} to disable auditing explicitly.
func New(driver input.Driver, h *humanoid.Humanoid, trail audit.Trail, sleeper clock.Sleeper, opts Options, logger *zap.Logger) *Executor {
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	e := &Executor{
		driver:   driver,
		humanoid: h,
		trail:    trail,
		sleeper:  sleeper,
		opts:     opts,
		logger:   logger.Named("executor"),
		handlers: make(map[plan.ActionType]stepHandler),
	}
	e.registerHandlers()
	return e
}

func (e *Executor) registerHandlers() {
	e.handlers[plan.ActionClick] = e.handleClick
	e.handlers[plan.ActionTypeText] = e.handleType
	e.handlers[plan.ActionScroll] = e.handleScroll
	e.handlers[plan.ActionWait] = e.handleWait
	e.handlers[plan.ActionFinish] = e.handleFinish
}

// Execute audits p and then dispatches it. The returned error is non-nil
// only for conditions that must end the session: an operator abort, a
// cancelled context or a recovered panic. Everything else is reported
// through Result.
func (e *Executor) Execute(ctx context.Context, p plan.Plan, meta Meta) (res Result, err error) {
	step := p.Step
	if step == nil {
		step = plan.Unrecognized{}
	}
	res.Action = step.Action()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Executor panicked while dispatching a step.", zap.Any("panic_value", r), zap.String("action", string(res.Action)))
			res = Result{Status: StatusFailed, Action: step.Action(), ErrorCode: ErrCodeExecutorPanic, Message: fmt.Sprint(r)}
			err = fmt.Errorf("executor panic during %s: %v", step.Action(), r)
		}
	}()

	action, coord, text := plan.Describe(step)
	rec := audit.Record{
		SessionID:  meta.SessionID,
		Iteration:  meta.Iteration,
		Event:      audit.EventPlan,
		Action:     action,
		Coordinate: coord,
		Text:       text,
		Reasoning:  p.Reasoning,
		Thought:    p.Thought,
	}
	if err := e.trail.Append(ctx, rec); err != nil {
		if ctx.Err() != nil {
			return Result{Status: StatusSkipped, Action: res.Action}, ctx.Err()
		}
		e.logger.Error("Audit record could not be written; the action will not be dispatched.", zap.String("action", action), zap.Error(err))
		return Result{Status: StatusSkipped, Action: res.Action, ErrorCode: ErrCodeAuditFailure, Message: err.Error()}, nil
	}

	e.logger.Info("Executing action.", zap.String("action", strings.ToUpper(action)), zap.String("reasoning", p.Reasoning))

	switch v := step.(type) {
	case plan.Failure:
		return Result{Status: StatusSkipped, Action: res.Action, ErrorCode: ErrCodeInferenceFailure, Message: v.Reason}, nil
	case plan.FindingsOnly:
		e.logger.Warn("Response carried findings but no action; nothing to dispatch.", zap.Int("findings", len(p.Findings)))
		return Result{Status: StatusSkipped, Action: res.Action, ErrorCode: ErrCodeNoAction}, nil
	case plan.Unrecognized:
		e.logger.Warn("Unknown action type; skipping.", zap.String("action", v.Name))
		return Result{Status: StatusSkipped, Action: res.Action, ErrorCode: ErrCodeUnrecognizedAction, Message: fmt.Sprintf("unrecognized action %q", v.Name)}, nil
	}

	handler, ok := e.handlers[step.Action()]
	if !ok {
		return Result{Status: StatusSkipped, Action: res.Action, ErrorCode: ErrCodeUnrecognizedAction, Message: fmt.Sprintf("no handler for %q", step.Action())}, nil
	}

	// Primitives run detached so a signal never leaves a half-typed value behind.
	res, err = handler(context.WithoutCancel(ctx), step)
	res.Action = step.Action()
	if err != nil {
		if errors.Is(err, input.ErrOperatorAbort) {
			e.logger.Warn("Operator triggered the fail-safe.", zap.String("action", action))
			return Result{Status: StatusFailed, Action: res.Action, ErrorCode: ErrCodeOperatorAbort, Message: err.Error()}, err
		}
		e.logger.Error("Error while executing action.", zap.String("action", action), zap.Error(err))
		return Result{Status: StatusFailed, Action: res.Action, ErrorCode: ErrCodeExecutionFailure, Message: err.Error()}, nil
	}

	if w, ok := step.(plan.Wait); ok {
		// Waits replace the post-action pause and stay interruptible.
		return res, e.sleeper.Sleep(ctx, w.Duration)
	}
	if res.Status == StatusExecuted {
		if err := e.pause(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// screenPoint validates coord against the live screen size.
func (e *Executor) screenPoint(ctx context.Context, coord plan.Coordinate, cell string) (image.Point, *Result) {
	screen, err := e.driver.ScreenSize(ctx)
	if err != nil {
		return image.Point{}, &Result{Status: StatusFailed, ErrorCode: ErrCodeScreenUnknown, Message: err.Error()}
	}
	p, err := ValidateCoordinate(coord, screen)
	if err != nil {
		e.logger.Error("Coordinate is invalid; skipping.", zap.Stringer("coordinate", coord), zap.String("cell", cell), zap.Error(err))
		return image.Point{}, &Result{Status: StatusSkipped, ErrorCode: ErrCodeInvalidCoordinate, Message: err.Error()}
	}
	return p, nil
}

func (e *Executor) moveTo(ctx context.Context, p image.Point) error {
	d := e.humanoid.PlanMove(humanoid.FromPoint(p))
	return e.driver.MoveTo(ctx, p.X, p.Y, d)
}

func (e *Executor) handleClick(ctx context.Context, step plan.Step) (Result, error) {
	s := step.(plan.Click)
	p, bad := e.screenPoint(ctx, s.At, s.Cell)
	if bad != nil {
		return *bad, nil
	}
	if err := e.moveTo(ctx, p); err != nil {
		return Result{}, err
	}
	if err := e.driver.Click(ctx); err != nil {
		return Result{}, err
	}
	e.logger.Info("Clicked.", zap.Int("x", p.X), zap.Int("y", p.Y))
	return Result{Status: StatusExecuted}, nil
}

func (e *Executor) handleType(ctx context.Context, step plan.Step) (Result, error) {
	s := step.(plan.TypeText)
	p, bad := e.screenPoint(ctx, s.At, s.Cell)
	if bad != nil {
		return *bad, nil
	}
	if s.Text == "" {
		e.logger.Warn("Type action is missing its text; skipping.", zap.Int("x", p.X), zap.Int("y", p.Y))
		return Result{Status: StatusSkipped, ErrorCode: ErrCodeMissingText, Message: "type action without text"}, nil
	}

	// Focus the field with exactly one click.
	if err := e.moveTo(ctx, p); err != nil {
		return Result{}, err
	}
	if err := e.driver.Click(ctx); err != nil {
		return Result{}, err
	}
	if err := e.sleeper.Sleep(ctx, e.opts.FocusSettle); err != nil {
		return Result{}, err
	}

	runes := []rune(s.Text)
	intervals := e.humanoid.KeyIntervals(s.Text)
	for i, r := range runes {
		if err := e.driver.TypeText(ctx, string(r), 0); err != nil {
			return Result{}, err
		}
		if err := e.sleeper.Sleep(ctx, intervals[i]); err != nil {
			return Result{}, err
		}
	}
	e.logger.Info("Typed text.", zap.Int("chars", len(runes)), zap.Int("x", p.X), zap.Int("y", p.Y))
	return Result{Status: StatusExecuted}, nil
}

func (e *Executor) handleScroll(ctx context.Context, step plan.Step) (Result, error) {
	s := step.(plan.Scroll)
	if err := e.driver.ScrollBy(ctx, s.Amount); err != nil {
		return Result{}, err
	}
	e.logger.Info("Scrolled.", zap.Int("amount", s.Amount))
	return Result{Status: StatusExecuted}, nil
}

func (e *Executor) handleWait(_ context.Context, step plan.Step) (Result, error) {
	s := step.(plan.Wait)
	e.logger.Info("Waiting.", zap.Duration("duration", s.Duration))
	return Result{Status: StatusExecuted, Message: s.Duration.String()}, nil
}

func (e *Executor) handleFinish(context.Context, plan.Step) (Result, error) {
	e.logger.Info(strings.Repeat("=", 60))
	e.logger.Info(FinishBanner)
	e.logger.Info(strings.Repeat("=", 60))
	return Result{Status: StatusFinished}, nil
}

// pause observes the post-action interval.
func (e *Executor) pause(ctx context.Context) error {
	d := e.humanoid.CognitivePause(e.opts.PauseInterval, e.opts.PauseInterval/4)
	return e.sleeper.Sleep(ctx, d)
}
