package humanoid

import (
	"math"
	"time"
)

// CognitivePause returns a pause modelling the time a user takes to think
// before the next action. Disabled humanoids return the mean unchanged.
func (h *Humanoid) CognitivePause(mean, stdDev time.Duration) time.Duration {
	if !h.baseConfig.Enabled {
		return mean
	}

	h.mu.Lock()
	// Fatigue makes cognitive processes slower.
	fatigueFactor := 1.0 + h.fatigueLevel
	randNorm := h.rng.NormFloat64()
	h.mu.Unlock()

	duration := time.Duration(fatigueFactor * (float64(mean) + randNorm*float64(stdDev)))
	if duration < 0 {
		duration = 0
	}

	// Recover from fatigue during the pause.
	h.recoverFatigue(duration)
	return duration
}

// applyFatigueEffects adjusts the dynamic configuration based on the current fatigue level.
// As fatigue increases, movements become slower.
func (h *Humanoid) applyFatigueEffects() {
	// fatigueFactor ranges from 1.0 (rested) to 2.0 (exhausted).
	fatigueFactor := 1.0 + h.fatigueLevel
	h.dynamicConfig.FittsA = h.baseConfig.FittsA * fatigueFactor
}

// updateFatigue modifies the fatigue level based on action intensity.
func (h *Humanoid) updateFatigue(intensity float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Intensity represents the cognitive/physical load (typically normalized from 0.0 to 1.0).
	increase := h.baseConfig.FatigueIncreaseRate * intensity
	h.fatigueLevel += increase
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel) // Clamp fatigue at 1.0.

	h.applyFatigueEffects()
}

// recoverFatigue simulates recovery from fatigue during pauses or inactivity.
func (h *Humanoid) recoverFatigue(duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Recovery is proportional to the duration of the pause.
	recovery := h.baseConfig.FatigueRecoveryRate * duration.Seconds()
	h.fatigueLevel -= recovery
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel) // Clamp fatigue at 0.0.

	h.applyFatigueEffects()
}
