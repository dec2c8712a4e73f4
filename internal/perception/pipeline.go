package perception

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/audit"
	"github.com/xkilldash9x/medipilot/internal/config"
	"github.com/xkilldash9x/medipilot/internal/frame"
)

// Stage names a step of the perception pipeline.
type Stage string

const (
	StageCapture Stage = "capture"
	StageRedact  Stage = "redact"
	StageOverlay Stage = "overlay"
)

// StageError identifies which transform failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("perception %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Options configures the transforms applied after capture.
type Options struct {
	Display string

	Redact       bool
	Region       frame.Region
	BlurRadius   int
	BlurPasses   int
	StrictRedact bool

	Grid     bool
	CellSize int
}

// OptionsFromConfig maps the perception config section onto pipeline options.
func OptionsFromConfig(cfg config.PerceptionConfig) Options {
	return Options{
		Display:      cfg.Display,
		Redact:       cfg.Redaction.Enabled,
		Region:       cfg.Redaction.Region,
		BlurRadius:   cfg.Redaction.BlurRadius,
		BlurPasses:   cfg.Redaction.BlurPasses,
		StrictRedact: cfg.Redaction.Strict,
		Grid:         cfg.Grid.Enabled,
		CellSize:     cfg.Grid.CellSize,
	}
}

// Pipeline composes capture, redaction and the grid overlay.
type Pipeline struct {
	capturer Capturer
	redactor frame.Redactor
	opts     Options
	trail    audit.Trail
	logger   *zap.Logger

	warnedEmpty atomic.Bool
}

// NewPipeline builds a pipeline. trail receives a record for every degraded redaction.
func NewPipeline(capturer Capturer, trail audit.Trail, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		capturer: capturer,
		redactor: frame.NewRedactor(opts.BlurRadius, opts.BlurPasses),
		opts:     opts,
		trail:    trail,
		logger:   logger.Named("perception"),
	}
}

// Perceive captures one frame and prepares it for the model. Any returned
// error is a *StageError; the frame is only valid when the error is nil.
func (p *Pipeline) Perceive(ctx context.Context, sessionID string, iteration int) (frame.Frame, error) {
	f, err := p.capturer.Capture(ctx, p.opts.Display)
	if err != nil {
		return frame.Frame{}, &StageError{Stage: StageCapture, Err: err}
	}

	if p.opts.Redact {
		f, err = p.redact(ctx, f, sessionID, iteration)
		if err != nil {
			return frame.Frame{}, &StageError{Stage: StageRedact, Err: err}
		}
	}

	if p.opts.Grid {
		f, err = frame.Overlay(f, p.opts.CellSize)
		if err != nil {
			return frame.Frame{}, &StageError{Stage: StageOverlay, Err: err}
		}
	}
	return f, nil
}

// redact applies the privacy blur. A degraded redaction is always logged and
// audited; it only fails the cycle in strict mode.
func (p *Pipeline) redact(ctx context.Context, f frame.Frame, sessionID string, iteration int) (frame.Frame, error) {
	out, err := p.redactor.Redact(f, p.opts.Region)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, frame.ErrEmptyRegion):
		if p.warnedEmpty.CompareAndSwap(false, true) {
			p.logger.Warn("Redaction region lies outside the captured frame; nothing is blurred. Check perception.redaction.region.",
				zap.Stringer("region", p.opts.Region),
				zap.Int("width", f.Width()),
				zap.Int("height", f.Height()))
		}
		return out, nil
	}

	p.logger.Error("Redaction degraded; the frame is not privacy-safe.",
		zap.Error(err),
		zap.Bool("strict", p.opts.StrictRedact),
		zap.String("session_id", sessionID),
		zap.Int("iteration", iteration))

	if p.trail != nil {
		rec := audit.Record{
			SessionID: sessionID,
			Iteration: iteration,
			Event:     audit.EventRedactionDegraded,
			Detail:    err.Error(),
		}
		if aerr := p.trail.Append(ctx, rec); aerr != nil {
			p.logger.Error("Could not audit degraded redaction.", zap.Error(aerr))
			return frame.Frame{}, errors.Join(err, fmt.Errorf("auditing degraded redaction: %w", aerr))
		}
	}

	if p.opts.StrictRedact {
		return frame.Frame{}, err
	}
	return out, nil
}
