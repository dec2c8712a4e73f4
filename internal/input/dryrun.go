package input

import (
	"context"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind names a recorded primitive.
type EventKind string

const (
	EventMove   EventKind = "move"
	EventClick  EventKind = "click"
	EventType   EventKind = "type"
	EventScroll EventKind = "scroll"
)

// Event is one primitive the dry-run driver received.
type Event struct {
	Kind     EventKind
	At       image.Point
	Text     string
	Amount   int
	Duration time.Duration
}

// DryRunDriver logs and records primitives without touching the desktop.
// It backs the "dryrun" execution driver and doubles as a test recorder.
type DryRunDriver struct {
	screen image.Point
	logger *zap.Logger

	mu     sync.Mutex
	pos    image.Point
	events []Event
}

var (
	_ Driver         = (*DryRunDriver)(nil)
	_ PointerLocator = (*DryRunDriver)(nil)
)

func NewDryRunDriver(width, height int, logger *zap.Logger) *DryRunDriver {
	return &DryRunDriver{
		screen: image.Pt(width, height),
		// Park the pointer in the middle so the fail-safe stays quiet.
		pos:    image.Pt(width/2, height/2),
		logger: logger.Named("dryrun_driver"),
	}
}

func (d *DryRunDriver) ScreenSize(context.Context) (image.Point, error) { return d.screen, nil }

func (d *DryRunDriver) Pointer(context.Context) (image.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos, nil
}

// Warp moves the recorded pointer without logging an event, e.g. to simulate the operator.
func (d *DryRunDriver) Warp(p image.Point) {
	d.mu.Lock()
	d.pos = p
	d.mu.Unlock()
}

func (d *DryRunDriver) MoveTo(_ context.Context, x, y int, dur time.Duration) error {
	d.record(Event{Kind: EventMove, At: image.Pt(x, y), Duration: dur})
	d.mu.Lock()
	d.pos = image.Pt(x, y)
	d.mu.Unlock()
	d.logger.Info("[dry-run] move", zap.Int("x", x), zap.Int("y", y), zap.Duration("duration", dur))
	return nil
}

func (d *DryRunDriver) Click(context.Context) error {
	d.mu.Lock()
	at := d.pos
	d.mu.Unlock()
	d.record(Event{Kind: EventClick, At: at})
	d.logger.Info("[dry-run] click", zap.Int("x", at.X), zap.Int("y", at.Y))
	return nil
}

func (d *DryRunDriver) TypeText(_ context.Context, text string, perChar time.Duration) error {
	d.record(Event{Kind: EventType, Text: text, Duration: perChar})
	d.logger.Info("[dry-run] type", zap.Int("chars", len([]rune(text))))
	return nil
}

func (d *DryRunDriver) ScrollBy(_ context.Context, amount int) error {
	d.record(Event{Kind: EventScroll, Amount: amount})
	d.logger.Info("[dry-run] scroll", zap.Int("amount", amount))
	return nil
}

// Events returns a copy of everything recorded so far.
func (d *DryRunDriver) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Typed concatenates all typed text in order.
func (d *DryRunDriver) Typed() string {
	var s string
	for _, e := range d.Events() {
		if e.Kind == EventType {
			s += e.Text
		}
	}
	return s
}

func (d *DryRunDriver) record(e Event) {
	d.mu.Lock()
	d.events = append(d.events, e)
	d.mu.Unlock()
}
