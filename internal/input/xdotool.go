package input

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/clock"
)

// frameInterval is the spacing of intermediate pointer positions during a glide.
const frameInterval = 16 * time.Millisecond

// runFunc executes a command and returns its stdout. Swapped in tests.
type runFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// XdoDriver drives an X11 session through the xdotool binary.
type XdoDriver struct {
	path    string
	display string
	sleeper clock.Sleeper
	logger  *zap.Logger
	run     runFunc

	last image.Point
}

var (
	_ Driver         = (*XdoDriver)(nil)
	_ PointerLocator = (*XdoDriver)(nil)
)

// NewXdoDriver creates a driver for the given X display (e.g. ":0").
func NewXdoDriver(path, display string, sleeper clock.Sleeper, logger *zap.Logger) *XdoDriver {
	if path == "" {
		path = "xdotool"
	}
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	return &XdoDriver{
		path:    path,
		display: display,
		sleeper: sleeper,
		logger:  logger.Named("xdotool"),
		run:     execRun,
	}
}

func (x *XdoDriver) exec(ctx context.Context, args ...string) ([]byte, error) {
	var env []string
	if x.display != "" {
		env = []string{"DISPLAY=" + x.display}
	}
	return x.run(ctx, env, x.path, args...)
}

func (x *XdoDriver) ScreenSize(ctx context.Context) (image.Point, error) {
	out, err := x.exec(ctx, "getdisplaygeometry")
	if err != nil {
		return image.Point{}, err
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return image.Point{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(string(out)))
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return image.Point{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(string(out)))
	}
	return image.Pt(w, h), nil
}

func (x *XdoDriver) Pointer(ctx context.Context) (image.Point, error) {
	out, err := x.exec(ctx, "getmouselocation", "--shell")
	if err != nil {
		return image.Point{}, err
	}
	var p image.Point
	var gotX, gotY bool
	for _, line := range strings.Split(string(out), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		switch k {
		case "X":
			p.X, gotX = n, true
		case "Y":
			p.Y, gotY = n, true
		}
	}
	if !gotX || !gotY {
		return image.Point{}, fmt.Errorf("unexpected mouse location output %q", strings.TrimSpace(string(out)))
	}
	x.last = p
	return p, nil
}

// MoveTo glides along an eased straight line, issuing one mousemove per frame.
func (x *XdoDriver) MoveTo(ctx context.Context, tx, ty int, d time.Duration) error {
	start := x.last
	if p, err := x.Pointer(ctx); err == nil {
		start = p
	}

	steps := int(d / frameInterval)
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		t := computeEaseInOutCubic(float64(i) / float64(steps))
		px := start.X + int(float64(tx-start.X)*t+0.5)
		py := start.Y + int(float64(ty-start.Y)*t+0.5)
		if i == steps {
			px, py = tx, ty
		}
		if _, err := x.exec(ctx, "mousemove", "--sync", strconv.Itoa(px), strconv.Itoa(py)); err != nil {
			return err
		}
		if i < steps {
			if err := x.sleeper.Sleep(ctx, frameInterval); err != nil {
				return err
			}
		}
	}
	x.last = image.Pt(tx, ty)
	return nil
}

func (x *XdoDriver) Click(ctx context.Context) error {
	_, err := x.exec(ctx, "click", "1")
	return err
}

func (x *XdoDriver) TypeText(ctx context.Context, text string, perChar time.Duration) error {
	if text == "" {
		return nil
	}
	ms := perChar.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	_, err := x.exec(ctx, "type", "--delay", strconv.FormatInt(ms, 10), "--", text)
	return err
}

func (x *XdoDriver) ScrollBy(ctx context.Context, amount int) error {
	n := notches(amount)
	if n == 0 {
		return nil
	}
	// X11 wheel: button 4 scrolls up, button 5 scrolls down.
	button := "4"
	if n < 0 {
		button, n = "5", -n
	}
	_, err := x.exec(ctx, "click", "--repeat", strconv.Itoa(n), button)
	return err
}
