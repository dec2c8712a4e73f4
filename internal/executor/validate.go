package executor

import (
	"errors"
	"fmt"
	"image"

	"github.com/xkilldash9x/medipilot/internal/plan"
)

// ErrInvalidCoordinate is wrapped by every ValidateCoordinate rejection.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ValidateCoordinate checks that c is an (x, y) pair inside the screen.
// Both edges are inclusive: x in [0, W], y in [0, H].
func ValidateCoordinate(c plan.Coordinate, screen image.Point) (image.Point, error) {
	if c == nil {
		return image.Point{}, fmt.Errorf("%w: missing", ErrInvalidCoordinate)
	}
	if len(c) != 2 {
		return image.Point{}, fmt.Errorf("%w: expected 2 values, got %d", ErrInvalidCoordinate, len(c))
	}
	x, y := c[0], c[1]
	if x < 0 || x > screen.X || y < 0 || y > screen.Y {
		return image.Point{}, fmt.Errorf("%w: (%d, %d) outside screen %dx%d", ErrInvalidCoordinate, x, y, screen.X, screen.Y)
	}
	return image.Pt(x, y), nil
}
