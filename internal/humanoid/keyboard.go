// -- internal/humanoid/keyboard.go --
package humanoid

import (
	"math"
	"strings"
	"time"
)

// -- commonNgrams --
// Stored as strings for easy lookup. Digit runs and decimal points are
// included because lab values are mostly numbers.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
	"10": true, "00": true, "0.": true, ".0": true, ".5": true,
}

// KeyIntervals returns the pause to take before each rune of text
// (inter-key delay, or flight time). The slice has one entry per rune.
func (h *Humanoid) KeyIntervals(text string) []time.Duration {
	runes := []rune(text)
	out := make([]time.Duration, len(runes))
	if !h.baseConfig.Enabled {
		for i := range out {
			out[i] = h.baseConfig.KeyInterval
		}
		return out
	}

	// Update fatigue based on the intensity (length).
	h.updateFatigue(float64(len(runes)) * 0.05)
	for i := range runes {
		out[i] = h.keyPause(runes, i)
	}
	return out
}

// keyPause computes a human-like inter-key delay for runes[index].
func (h *Humanoid) keyPause(runes []rune, index int) time.Duration {
	mean := msFloat(h.baseConfig.KeyInterval)
	stdDev := msFloat(h.baseConfig.KeyIntervalStdDev)
	minDelay := msFloat(h.baseConfig.KeyIntervalMin)
	ngramFactor := 1.0

	// Adjust for N-grams (Rhythmic typing).
	if index > 0 && index < len(runes) {
		// Check Trigram (Previous 2 + Current)
		if index >= 2 {
			trigraph := strings.ToLower(string(runes[index-2 : index+1]))
			if commonNgrams[trigraph] {
				ngramFactor = 0.55
			}
		}

		// Check Digram (Previous 1 + Current)
		if ngramFactor == 1.0 {
			digraph := strings.ToLower(string(runes[index-1 : index+1]))
			if commonNgrams[digraph] {
				ngramFactor = 0.7
			}
		}
	}

	mean *= ngramFactor
	minDelay *= ngramFactor

	h.mu.Lock()
	randNorm := h.rng.NormFloat64()
	// Fatigue increases inter-key delays.
	fatigueFactor := 1.0 + h.fatigueLevel*0.3
	h.mu.Unlock()

	mean *= fatigueFactor

	delay := randNorm*stdDev + mean
	finalDelay := math.Max(minDelay, delay) // Ensure delay is at least the minimum.
	duration := time.Duration(finalDelay * float64(time.Millisecond))

	// Recover fatigue during the pause.
	h.recoverFatigue(duration)
	return duration
}

func msFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
