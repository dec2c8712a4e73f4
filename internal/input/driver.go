// Package input performs mouse and keyboard primitives on the desktop.
package input

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrOperatorAbort is raised when the operator triggers the fail-safe.
// It is the only input error that ends a session.
var ErrOperatorAbort = errors.New("operator abort: pointer moved into a screen corner")

// Driver is the set of input primitives the executor relies on.
type Driver interface {
	// ScreenSize returns the logical screen dimensions in pixels.
	ScreenSize(ctx context.Context) (image.Point, error)
	// MoveTo glides the pointer to (x, y) over roughly d.
	MoveTo(ctx context.Context, x, y int, d time.Duration) error
	// Click presses and releases the primary button at the current position.
	Click(ctx context.Context) error
	// TypeText sends text to the focused control, pausing perChar between keys.
	TypeText(ctx context.Context, text string, perChar time.Duration) error
	// ScrollBy scrolls the view under the pointer. Negative amounts scroll down.
	ScrollBy(ctx context.Context, amount int) error
}

// PointerLocator reports where the pointer currently is.
type PointerLocator interface {
	Pointer(ctx context.Context) (image.Point, error)
}

// ScrollUnitsPerNotch converts scroll amounts into wheel notches.
const ScrollUnitsPerNotch = 100

// notches converts an amount to a signed notch count, never rounding a non-zero amount to zero.
func notches(amount int) int {
	n := amount / ScrollUnitsPerNotch
	if n == 0 && amount != 0 {
		if amount > 0 {
			return 1
		}
		return -1
	}
	return n
}

// computeEaseInOutCubic shapes pointer travel so it accelerates then decelerates.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}
