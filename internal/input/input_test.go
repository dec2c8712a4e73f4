// internal/input/input_test.go
package input

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/medipilot/internal/clock"
)

type fakeRunner struct {
	calls   [][]string
	env     []string
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeRunner) run(_ context.Context, env []string, name string, args ...string) ([]byte, error) {
	f.env = env
	f.calls = append(f.calls, append([]string{name}, args...))
	if err, ok := f.fail[args[0]]; ok {
		return nil, err
	}
	return []byte(f.outputs[args[0]]), nil
}

func newFakeXdo(t *testing.T, r *fakeRunner, sleeper clock.Sleeper) *XdoDriver {
	t.Helper()
	d := NewXdoDriver("", ":1", sleeper, zaptest.NewLogger(t))
	d.run = r.run
	return d
}

func TestXdoDriver(t *testing.T) {
	ctx := context.Background()

	t.Run("ScreenSize parses geometry", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"getdisplaygeometry": "1920 1080\n"}}
		d := newFakeXdo(t, r, &clock.Recorder{})
		size, err := d.ScreenSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(1920, 1080), size)
		assert.Equal(t, []string{"DISPLAY=:1"}, r.env)
	})

	t.Run("ScreenSize rejects garbage", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"getdisplaygeometry": "no display"}}
		_, err := newFakeXdo(t, r, &clock.Recorder{}).ScreenSize(ctx)
		assert.Error(t, err)
	})

	t.Run("Pointer parses shell output", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"getmouselocation": "X=12\nY=34\nSCREEN=0\nWINDOW=999\n"}}
		p, err := newFakeXdo(t, r, &clock.Recorder{}).Pointer(ctx)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(12, 34), p)
	})

	t.Run("MoveTo glides and lands exactly", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"getmouselocation": "X=0\nY=0\n"}}
		sleeper := &clock.Recorder{}
		d := newFakeXdo(t, r, sleeper)
		require.NoError(t, d.MoveTo(ctx, 450, 600, 80*time.Millisecond))

		var moves [][]string
		for _, c := range r.calls {
			if c[1] == "mousemove" {
				moves = append(moves, c)
			}
		}
		require.Len(t, moves, 5)
		assert.Equal(t, []string{"xdotool", "mousemove", "--sync", "450", "600"}, moves[len(moves)-1])
		assert.Len(t, sleeper.Sleeps(), 4)
	})

	t.Run("Type and scroll arguments", func(t *testing.T) {
		r := &fakeRunner{}
		d := newFakeXdo(t, r, &clock.Recorder{})
		require.NoError(t, d.TypeText(ctx, "7.2", 90*time.Millisecond))
		require.NoError(t, d.ScrollBy(ctx, -500))
		require.NoError(t, d.ScrollBy(ctx, 30))
		require.NoError(t, d.Click(ctx))
		assert.Equal(t, [][]string{
			{"xdotool", "type", "--delay", "90", "--", "7.2"},
			{"xdotool", "click", "--repeat", "5", "5"},
			{"xdotool", "click", "--repeat", "1", "4"},
			{"xdotool", "click", "1"},
		}, r.calls)
	})

	t.Run("Errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		r := &fakeRunner{fail: map[string]error{"click": boom}}
		assert.ErrorIs(t, newFakeXdo(t, r, &clock.Recorder{}).Click(ctx), boom)
	})
}

func TestDryRunDriver(t *testing.T) {
	ctx := context.Background()
	d := NewDryRunDriver(800, 600, zaptest.NewLogger(t))

	p, err := d.Pointer(ctx)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(400, 300), p)

	require.NoError(t, d.MoveTo(ctx, 10, 20, time.Millisecond))
	require.NoError(t, d.Click(ctx))
	require.NoError(t, d.TypeText(ctx, "7", 0))
	require.NoError(t, d.TypeText(ctx, ".2", 0))
	require.NoError(t, d.ScrollBy(ctx, -500))

	events := d.Events()
	require.Len(t, events, 5)
	assert.Equal(t, EventClick, events[1].Kind)
	assert.Equal(t, image.Pt(10, 20), events[1].At)
	assert.Equal(t, "7.2", d.Typed())
	assert.Equal(t, -500, events[4].Amount)
}

func TestFailSafe(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		at    image.Point
		abort bool
	}{
		{"centre", image.Pt(400, 300), false},
		{"top left", image.Pt(0, 0), true},
		{"bottom right", image.Pt(799, 599), true},
		{"near top right", image.Pt(797, 2), true},
		{"edge but not corner", image.Pt(0, 300), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDryRunDriver(800, 600, zaptest.NewLogger(t))
			guard := NewFailSafe(d, d, 2, zaptest.NewLogger(t))
			d.Warp(tt.at)

			err := guard.Click(ctx)
			if tt.abort {
				assert.ErrorIs(t, err, ErrOperatorAbort)
				assert.Empty(t, d.Events())
			} else {
				assert.NoError(t, err)
				assert.Len(t, d.Events(), 1)
			}
		})
	}
}

func TestFailSafe_CommandedCorner(t *testing.T) {
	ctx := context.Background()

	t.Run("Own move into a corner is not an abort", func(t *testing.T) {
		d := NewDryRunDriver(800, 600, zaptest.NewLogger(t))
		d.Warp(image.Pt(400, 300))
		guard := NewFailSafe(d, d, 2, zaptest.NewLogger(t))

		require.NoError(t, guard.MoveTo(ctx, 0, 0, 0))
		require.NoError(t, guard.Click(ctx))
		require.NoError(t, guard.TypeText(ctx, "7", 0))
		require.NoError(t, guard.MoveTo(ctx, 400, 300, 0))
		assert.Len(t, d.Events(), 4)
	})

	t.Run("Operator move after a commanded move still aborts", func(t *testing.T) {
		d := NewDryRunDriver(800, 600, zaptest.NewLogger(t))
		guard := NewFailSafe(d, d, 2, zaptest.NewLogger(t))
		d.Warp(image.Pt(400, 300))

		require.NoError(t, guard.MoveTo(ctx, 0, 0, 0))
		d.Warp(image.Pt(799, 599))
		assert.ErrorIs(t, guard.Click(ctx), ErrOperatorAbort)
		assert.Len(t, d.Events(), 1)
	})
}

func TestEaseAndNotches(t *testing.T) {
	assert.Equal(t, 0.0, computeEaseInOutCubic(0))
	assert.Equal(t, 1.0, computeEaseInOutCubic(1))
	assert.Equal(t, 0.5, computeEaseInOutCubic(0.5))
	assert.Equal(t, -5, notches(-500))
	assert.Equal(t, -1, notches(-20))
	assert.Equal(t, 0, notches(0))
	assert.True(t, strings.HasPrefix(ErrOperatorAbort.Error(), "operator abort"))
}
