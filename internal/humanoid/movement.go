package humanoid

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// maxMoveDuration caps travel time so a huge jump never stalls the loop.
const maxMoveDuration = 2 * time.Second

// PlanMove returns how long the pointer should take to travel from its
// current position to target, and records target as the new position.
func (h *Humanoid) PlanMove(target Vector2D) time.Duration {
	h.mu.Lock()
	start := h.currentPos
	h.mu.Unlock()

	distance := start.Dist(target)
	var d time.Duration
	if h.baseConfig.Enabled {
		h.updateFatigue(math.Min(1.0, distance/1000.0))
		d = h.calculateFittsLaw(distance)
	} else {
		d = h.baseConfig.MoveDuration
	}

	h.mu.Lock()
	h.currentPos = target
	h.lastMovementDistance = distance
	h.mu.Unlock()

	h.logger.Debug("Planned pointer movement",
		zap.Float64("distance", distance),
		zap.Duration("duration", d))
	return d
}

// calculateFittsLaw determines a realistic movement duration based on Fitts's Law,
// which models the time required to move to a target area.
// MT = A + B * log2(1 + D/W).
func (h *Humanoid) calculateFittsLaw(distance float64) time.Duration {
	h.mu.Lock()
	A := h.dynamicConfig.FittsA
	B := h.dynamicConfig.FittsB
	W := h.dynamicConfig.FittsW
	rng := h.rng
	jitter := rng.Float64()*0.3 - 0.15
	h.mu.Unlock()

	if W <= 0 {
		W = 30.0
	}

	// Index of Difficulty (ID)
	id := math.Log2(1.0 + distance/W)

	// Movement Time (MT) in milliseconds
	mt := A + B*id

	// Add slight randomization (+/- 15%)
	mt += mt * jitter

	if mt < 0 {
		mt = 0
	}
	d := time.Duration(mt * float64(time.Millisecond))
	if d > maxMoveDuration {
		d = maxMoveDuration
	}
	return d
}
