package input

import (
	"context"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FailSafe wraps a Driver and checks the pointer before every primitive.
// If the operator has pushed the pointer into any screen corner, the
// primitive is refused with ErrOperatorAbort. A corner the pointer was
// moved to by the guarded driver itself does not count.
type FailSafe struct {
	Driver
	locator PointerLocator
	margin  int
	logger  *zap.Logger

	mu        sync.Mutex
	commanded *image.Point
}

// NewFailSafe guards d. margin is the corner tolerance in pixels.
func NewFailSafe(d Driver, locator PointerLocator, margin int, logger *zap.Logger) *FailSafe {
	if margin < 0 {
		margin = 0
	}
	return &FailSafe{Driver: d, locator: locator, margin: margin, logger: logger.Named("failsafe")}
}

// Check returns ErrOperatorAbort when the pointer sits in a corner. A
// pointer query failure is logged and does not abort.
func (f *FailSafe) Check(ctx context.Context) error {
	p, err := f.locator.Pointer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("Could not read pointer position for fail-safe check.", zap.Error(err))
		return nil
	}
	screen, err := f.Driver.ScreenSize(ctx)
	if err != nil {
		f.logger.Warn("Could not read screen size for fail-safe check.", zap.Error(err))
		return nil
	}
	if inCorner(p, screen, f.margin) && !f.wasCommanded(p) {
		f.logger.Error("Fail-safe triggered: pointer is in a screen corner.", zap.Int("x", p.X), zap.Int("y", p.Y))
		return ErrOperatorAbort
	}
	return nil
}

// wasCommanded reports whether p is where the last MoveTo left the pointer,
// give or take a pixel of driver rounding.
func (f *FailSafe) wasCommanded(p image.Point) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commanded == nil {
		return false
	}
	d := p.Sub(*f.commanded)
	return abs(d.X) <= 1 && abs(d.Y) <= 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func inCorner(p, screen image.Point, margin int) bool {
	nearLeft := p.X <= margin
	nearRight := p.X >= screen.X-1-margin
	nearTop := p.Y <= margin
	nearBottom := p.Y >= screen.Y-1-margin
	return (nearLeft || nearRight) && (nearTop || nearBottom)
}

func (f *FailSafe) MoveTo(ctx context.Context, x, y int, d time.Duration) error {
	if err := f.Check(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.commanded = nil
	f.mu.Unlock()
	if err := f.Driver.MoveTo(ctx, x, y, d); err != nil {
		return err
	}
	f.mu.Lock()
	f.commanded = &image.Point{X: x, Y: y}
	f.mu.Unlock()
	return nil
}

func (f *FailSafe) Click(ctx context.Context) error {
	if err := f.Check(ctx); err != nil {
		return err
	}
	return f.Driver.Click(ctx)
}

func (f *FailSafe) TypeText(ctx context.Context, text string, perChar time.Duration) error {
	if err := f.Check(ctx); err != nil {
		return err
	}
	return f.Driver.TypeText(ctx, text, perChar)
}

func (f *FailSafe) ScrollBy(ctx context.Context, amount int) error {
	if err := f.Check(ctx); err != nil {
		return err
	}
	return f.Driver.ScrollBy(ctx, amount)
}
