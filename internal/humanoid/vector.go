// internal/humanoid/vector.go
package humanoid

import (
	"image"
	"math"
)

// Vector2D represents a point or vector in screen space.
type Vector2D struct {
	X, Y float64
}

// FromPoint converts an integer pixel position.
func FromPoint(p image.Point) Vector2D {
	return Vector2D{X: float64(p.X), Y: float64(p.Y)}
}

// Sub returns the vector difference of v and other.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mag calculates the magnitude (length) of the vector.
func (v Vector2D) Mag() float64 {
	// Use math.Hypot for numerical stability.
	return math.Hypot(v.X, v.Y)
}

// Dist calculates the Euclidean distance between v and other (treated as points).
func (v Vector2D) Dist(other Vector2D) float64 {
	return v.Sub(other).Mag()
}
