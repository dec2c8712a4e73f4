package pilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/audit"
	"github.com/xkilldash9x/medipilot/internal/clock"
	"github.com/xkilldash9x/medipilot/internal/config"
	"github.com/xkilldash9x/medipilot/internal/executor"
	"github.com/xkilldash9x/medipilot/internal/frame"
	"github.com/xkilldash9x/medipilot/internal/input"
	"github.com/xkilldash9x/medipilot/internal/metrics"
	"github.com/xkilldash9x/medipilot/internal/plan"
	"github.com/xkilldash9x/medipilot/internal/terminology"
)

const (
	DefaultMaxIterations      = 100
	DefaultInterCycleDelay    = time.Second
	DefaultPerceptionBackoff  = 3 * time.Second
	DefaultCognitionBackoff   = 5 * time.Second
	DefaultExtractionAttempts = 3
)

// Perceiver produces the frame for one cycle.
type Perceiver interface {
	Perceive(ctx context.Context, sessionID string, iteration int) (frame.Frame, error)
}

// Reasoner asks the model for the next step or for the source findings.
type Reasoner interface {
	Infer(ctx context.Context, f frame.Frame, instruction string) plan.Plan
	Extract(ctx context.Context, f frame.Frame) plan.Plan
}

// Dispatcher performs a plan on the desktop.
type Dispatcher interface {
	Execute(ctx context.Context, p plan.Plan, meta executor.Meta) (executor.Result, error)
}

// Options holds the loop bound and backoffs.
type Options struct {
	MaxIterations      int
	InterCycleDelay    time.Duration
	PerceptionBackoff  time.Duration
	CognitionBackoff   time.Duration
	ExtractionAttempts int
}

// OptionsFromConfig maps the loop config section onto Options.
func OptionsFromConfig(cfg config.LoopConfig) Options {
	return Options{
		MaxIterations:      cfg.MaxIterations,
		InterCycleDelay:    cfg.InterCycleDelay,
		PerceptionBackoff:  cfg.PerceptionBackoff,
		CognitionBackoff:   cfg.CognitionBackoff,
		ExtractionAttempts: cfg.ExtractionAttempts,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.InterCycleDelay < 0 {
		o.InterCycleDelay = DefaultInterCycleDelay
	}
	if o.PerceptionBackoff <= 0 {
		o.PerceptionBackoff = DefaultPerceptionBackoff
	}
	if o.CognitionBackoff <= 0 {
		o.CognitionBackoff = DefaultCognitionBackoff
	}
	if o.ExtractionAttempts <= 0 {
		o.ExtractionAttempts = DefaultExtractionAttempts
	}
	return o
}

// Deps are the collaborators of a Pilot. Trail, Recorder, Terms and Sleeper are optional.
type Deps struct {
	Perceiver  Perceiver
	Reasoner   Reasoner
	Dispatcher Dispatcher
	Trail      audit.Trail
	Recorder   *metrics.Recorder
	Terms      *terminology.Translator
	Sleeper    clock.Sleeper
}

// Pilot owns the control loop. It is not safe for concurrent Run calls.
type Pilot struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New validates deps and returns a Pilot.
func New(deps Deps, opts Options, logger *zap.Logger) (*Pilot, error) {
	if deps.Perceiver == nil || deps.Reasoner == nil || deps.Dispatcher == nil {
		return nil, errors.New("pilot requires a perceiver, a reasoner and a dispatcher")
	}
	if deps.Sleeper == nil {
		deps.Sleeper = clock.Real{}
	}
	if deps.Terms == nil {
		deps.Terms = terminology.New(nil)
	}
	return &Pilot{deps: deps, opts: opts.withDefaults(), logger: logger.Named("pilot")}, nil
}

// NewSession starts a session bounded by the configured iteration limit.
func (p *Pilot) NewSession(task string) *Session {
	return NewSession(task, p.opts.MaxIterations)
}

// Run drives s until the model finishes, the bound is reached, or a fatal
// error occurs. On a fatal error the report is "aborted" and the error is
// returned alongside it.
func (p *Pilot) Run(ctx context.Context, s *Session) (Report, error) {
	logger := p.logger.With(zap.String("session_id", s.ID))
	logger.Info("Session starting.", zap.Int("max_iterations", s.MaxIterations))
	p.deps.Recorder.SessionStarted()

	report, err := p.loop(ctx, s, logger)
	p.endSession(ctx, report, err, logger)
	return report, err
}

func (p *Pilot) loop(ctx context.Context, s *Session, logger *zap.Logger) (Report, error) {
	report := Report{SessionID: s.ID}
	for s.Iteration < s.MaxIterations {
		if err := ctx.Err(); err != nil {
			return p.abort(report, s, err), err
		}
		s.Iteration++

		out, err := p.cycle(ctx, s, logger.With(zap.Int("iteration", s.Iteration)))
		if err != nil {
			return p.abort(report, s, err), err
		}
		if out.Kind == OutcomeFinished {
			report.Outcome = OutcomeFinished
			report.Iterations = s.Iteration
			report.Reason = out.Reason
			return report, nil
		}
	}

	report.Outcome = OutcomeBoundReached
	report.Iterations = s.Iteration
	report.Reason = fmt.Sprintf("iteration limit of %d reached", s.MaxIterations)
	return report, nil
}

func (p *Pilot) abort(report Report, s *Session, err error) Report {
	report.Outcome = OutcomeAborted
	report.Iterations = s.Iteration
	switch {
	case errors.Is(err, input.ErrOperatorAbort):
		report.Reason = "operator abort"
	case errors.Is(err, context.Canceled):
		report.Reason = "interrupted"
	default:
		report.Reason = err.Error()
	}
	return report
}

// cycle runs perception, cognition and execution once. A non-nil error is fatal.
func (p *Pilot) cycle(ctx context.Context, s *Session, logger *zap.Logger) (CycleOutcome, error) {
	start := time.Now()
	p.deps.Recorder.CycleStarted()
	defer func() { p.deps.Recorder.CycleFinished(time.Since(start)) }()

	f, err := p.deps.Perceiver.Perceive(ctx, s.ID, s.Iteration)
	if err != nil {
		if ctx.Err() != nil {
			return CycleOutcome{}, ctx.Err()
		}
		fault := newPerceptionFault(err)
		p.deps.Recorder.StageFault("perception", string(fault.Stage))
		logger.Warn("Perception failed; skipping cycle.", zap.Error(fault), zap.Duration("backoff", p.opts.PerceptionBackoff))
		return p.backoff(ctx, p.opts.PerceptionBackoff)
	}

	inferStart := time.Now()
	pl := p.deps.Reasoner.Infer(ctx, f, s.TaskContext)
	p.deps.Recorder.Inference("operation", time.Since(inferStart))

	if failure, failed := pl.Failed(); failed {
		if ctx.Err() != nil {
			return CycleOutcome{}, ctx.Err()
		}
		p.deps.Recorder.StageFault("cognition", string(failure.Kind))
		fields := []zap.Field{
			zap.String("kind", string(failure.Kind)),
			zap.String("reason", failure.Reason),
			zap.Duration("backoff", p.opts.CognitionBackoff),
		}
		if failure.Kind.Transient() {
			logger.Warn("Inference failed; backing off.", fields...)
		} else {
			logger.Error("Inference failed; backing off.", fields...)
		}
		return p.backoff(ctx, p.opts.CognitionBackoff)
	}

	res, err := p.deps.Dispatcher.Execute(ctx, pl, executor.Meta{SessionID: s.ID, Iteration: s.Iteration})
	p.deps.Recorder.Dispatch(string(res.Action), string(res.Status), string(res.ErrorCode))
	if err != nil {
		logger.Error("Execution aborted the session.", zap.Error(err), zap.String("action", string(res.Action)))
		return CycleOutcome{Kind: OutcomeAborted, Reason: err.Error()}, err
	}

	switch res.Status {
	case executor.StatusFinished:
		logger.Info("Model declared the task finished.")
		return CycleOutcome{Kind: OutcomeFinished, Reason: pl.Summary()}, nil
	case executor.StatusSkipped:
		logger.Debug("Plan skipped.", zap.String("code", string(res.ErrorCode)), zap.String("message", res.Message))
		return CycleOutcome{Kind: OutcomeContinue}, nil
	case executor.StatusExecuted:
		s.Record(pl.Summary())
	case executor.StatusFailed:
		logger.Warn("Action failed; continuing.", zap.String("code", string(res.ErrorCode)), zap.String("message", res.Message))
	}
	return p.backoff(ctx, p.opts.InterCycleDelay)
}

func (p *Pilot) backoff(ctx context.Context, d time.Duration) (CycleOutcome, error) {
	if err := p.deps.Sleeper.Sleep(ctx, d); err != nil {
		return CycleOutcome{}, err
	}
	return CycleOutcome{Kind: OutcomeContinue}, nil
}

// endSession logs the outcome distinctly per kind and writes the closing audit record.
func (p *Pilot) endSession(ctx context.Context, r Report, runErr error, logger *zap.Logger) {
	fields := []zap.Field{zap.Int("iterations", r.Iterations), zap.String("reason", r.Reason)}
	switch r.Outcome {
	case OutcomeFinished:
		logger.Info("Session finished.", fields...)
	case OutcomeBoundReached:
		logger.Info("Session stopped at the iteration limit.", fields...)
	default:
		logger.Warn("Session aborted.", append(fields, zap.Error(runErr))...)
	}
	p.deps.Recorder.SessionEnded(string(r.Outcome))

	if p.deps.Trail == nil {
		return
	}
	rec := audit.Record{
		SessionID: r.SessionID,
		Iteration: r.Iterations,
		Event:     audit.EventSessionEnd,
		Detail:    fmt.Sprintf("%s: %s", r.Outcome, r.Reason),
	}
	if err := p.deps.Trail.Append(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("Could not audit the end of the session.", zap.Error(err))
	}
}

// Extract perceives the source document and asks the extraction model for
// its values, retrying with the usual stage backoffs. On success the
// findings are rendered into the session's task context.
func (p *Pilot) Extract(ctx context.Context, s *Session) ([]plan.Finding, error) {
	logger := p.logger.With(zap.String("session_id", s.ID), zap.String("phase", "extraction"))

	for attempt := 1; attempt <= p.opts.ExtractionAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		alog := logger.With(zap.Int("attempt", attempt))

		f, err := p.deps.Perceiver.Perceive(ctx, s.ID, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fault := newPerceptionFault(err)
			p.deps.Recorder.StageFault("perception", string(fault.Stage))
			alog.Warn("Perception failed during extraction.", zap.Error(fault))
			if err := p.retryPause(ctx, attempt, p.opts.PerceptionBackoff); err != nil {
				return nil, err
			}
			continue
		}

		start := time.Now()
		pl := p.deps.Reasoner.Extract(ctx, f)
		p.deps.Recorder.Inference("extraction", time.Since(start))

		if failure, failed := pl.Failed(); failed {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.deps.Recorder.StageFault("cognition", string(failure.Kind))
			alog.Warn("Extraction call failed.", zap.String("kind", string(failure.Kind)), zap.String("reason", failure.Reason))
			if err := p.retryPause(ctx, attempt, p.opts.CognitionBackoff); err != nil {
				return nil, err
			}
			continue
		}

		if len(pl.Findings) == 0 {
			alog.Warn("Extraction returned no findings.", zap.String("scan_quality", pl.ScanQuality), zap.Strings("warnings", pl.Warnings))
			if err := p.retryPause(ctx, attempt, p.opts.CognitionBackoff); err != nil {
				return nil, err
			}
			continue
		}

		for _, fd := range pl.Findings {
			alog.Info("Extracted value.",
				zap.String("metric", fd.Metric),
				zap.String("value", fd.Value),
				zap.String("unit", fd.Unit),
				zap.String("field", p.deps.Terms.TargetField(fd)),
				zap.Float64("confidence", fd.Confidence))
		}
		s.TaskContext = p.deps.Terms.TaskContext(s.TaskContext, pl.Findings)
		return pl.Findings, nil
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrNoFindings, p.opts.ExtractionAttempts)
}

// retryPause sleeps between extraction attempts but not after the last one.
func (p *Pilot) retryPause(ctx context.Context, attempt int, d time.Duration) error {
	if attempt >= p.opts.ExtractionAttempts {
		return nil
	}
	return p.deps.Sleeper.Sleep(ctx, d)
}
