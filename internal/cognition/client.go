// Package cognition asks a vision model what to do next with the current screen.
package cognition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/frame"
	"github.com/xkilldash9x/medipilot/internal/llmclient"
	"github.com/xkilldash9x/medipilot/internal/plan"
)

// Options configures encoding and request limits.
type Options struct {
	JPEGQuality    int
	MaxUploadWidth int
	// Timeout bounds each model call. Zero leaves it to the transport.
	Timeout time.Duration
	// GridCellSize is the overlay cell size used to resolve label coordinates. Zero disables labels.
	GridCellSize int
	// Persona overrides DefaultPersona when set.
	Persona string
	// Metrics are the abbreviations the extraction prompt asks for.
	Metrics []string
}

// Client turns a frame plus task context into a Plan.
type Client struct {
	llm    llmclient.VisionClient
	opts   Options
	logger *zap.Logger
}

// New returns a cognition client over llm.
func New(llm llmclient.VisionClient, opts Options, logger *zap.Logger) (*Client, error) {
	if llm == nil {
		return nil, errors.New("cognition requires a vision client")
	}
	if opts.Persona == "" {
		opts.Persona = DefaultPersona
	}
	return &Client{llm: llm, opts: opts, logger: logger.Named("cognition")}, nil
}

// Infer asks the operation model for the next step. It never returns an
// error: transport and decoding problems come back as a Failure step.
func (c *Client) Infer(ctx context.Context, f frame.Frame, instruction string) plan.Plan {
	prompt := operationPrompt(instruction, f.Width(), f.Height(), c.opts.GridCellSize)
	p := c.ask(ctx, llmclient.TierOperation, f, prompt)
	if _, failed := p.Failed(); !failed {
		c.logger.Debug("Inferred plan.",
			zap.String("action", string(p.Step.Action())),
			zap.String("thought", p.Thought),
			zap.Strings("warnings", p.Warnings))
	}
	return p
}

// Extract asks the extraction model to read lab values off the frame.
func (c *Client) Extract(ctx context.Context, f frame.Frame) plan.Plan {
	return c.ask(ctx, llmclient.TierExtraction, f, extractionPrompt(c.opts.Metrics))
}

func (c *Client) ask(ctx context.Context, tier llmclient.Tier, f frame.Frame, prompt string) plan.Plan {
	enc, err := frame.EncodeJPEG(f, c.opts.JPEGQuality, c.opts.MaxUploadWidth)
	if err != nil {
		c.logger.Error("Could not encode frame for upload.", zap.Error(err))
		return plan.Fail(plan.ErrUnknown, fmt.Sprintf("encoding frame: %v", err))
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	raw, err := c.llm.Generate(ctx, llmclient.VisionRequest{
		Tier:      tier,
		System:    c.opts.Persona,
		Prompt:    prompt + "\nJSON output required.",
		Image:     enc.Data,
		MIMEType:  enc.MIMEType,
		ForceJSON: true,
	})
	if err != nil {
		kind := Classify(err)
		return plan.Fail(kind, err.Error())
	}

	p := plan.Decode(raw)
	if p.Suspect {
		c.logger.Warn("Model response carried neither an action nor findings.", zap.Strings("warnings", p.Warnings))
	} else if len(p.Warnings) > 0 {
		c.logger.Debug("Plan decoded with warnings.", zap.Strings("warnings", p.Warnings))
	}
	p.Step = c.toScreen(p.Step, f, enc.Scale, &p)
	return p
}

// toScreen resolves grid labels and rescales coordinates from the uploaded image back to the screen.
func (c *Client) toScreen(step plan.Step, f frame.Frame, scale float64, p *plan.Plan) plan.Step {
	switch s := step.(type) {
	case plan.Click:
		s.At = c.resolve(s.At, s.Cell, f, scale, p)
		return s
	case plan.TypeText:
		s.At = c.resolve(s.At, s.Cell, f, scale, p)
		return s
	default:
		return step
	}
}

func (c *Client) resolve(at plan.Coordinate, cell string, f frame.Frame, scale float64, p *plan.Plan) plan.Coordinate {
	if cell != "" {
		if c.opts.GridCellSize <= 0 {
			p.Warnings = append(p.Warnings, fmt.Sprintf("grid label %q given but the grid overlay is disabled", cell))
			return nil
		}
		g := frame.NewGrid(f.Width(), f.Height(), c.opts.GridCellSize)
		pt, err := g.Center(cell)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("grid label %q: %v", cell, err))
			return nil
		}
		return plan.Coordinate{pt.X, pt.Y}
	}
	if at == nil || scale == 1 {
		return at
	}
	out := make(plan.Coordinate, len(at))
	for i, v := range at {
		out[i] = int(math.Round(float64(v) * scale))
	}
	return out
}
