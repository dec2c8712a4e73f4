// -- internal/humanoid/humanoid.go --
package humanoid

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/config"
)

// Humanoid decides the timing of input primitives so that pointer travel and
// typing look like a person at the keyboard. It never touches the input
// device itself; drivers perform the motions with the durations it returns.
type Humanoid struct {
	// Base configuration (defines the session persona)
	baseConfig config.HumanoidConfig
	// Dynamic configuration (current state, affected by fatigue)
	dynamicConfig config.HumanoidConfig

	logger *zap.Logger

	// Internal state synchronization
	mu sync.Mutex

	// Last known pointer position, used as the start of the next movement.
	currentPos Vector2D

	// Fatigue modeling
	fatigueLevel float64 // Ranges from 0.0 (rested) to 1.0 (exhausted)

	lastMovementDistance float64
	rng                  *rand.Rand
}

// New creates a new Humanoid. A nil rng seeds one from the clock.
func New(cfg config.HumanoidConfig, rng *rand.Rand, logger *zap.Logger) *Humanoid {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Humanoid{
		baseConfig:    cfg,
		dynamicConfig: cfg,
		logger:        logger.Named("humanoid"),
		rng:           rng,
	}
}

// Enabled reports whether durations are randomized at all.
func (h *Humanoid) Enabled() bool { return h.baseConfig.Enabled }

// SetPosition records where the pointer actually is, e.g. after querying the driver.
func (h *Humanoid) SetPosition(p Vector2D) {
	h.mu.Lock()
	h.currentPos = p
	h.mu.Unlock()
}

// Position returns the last recorded pointer position.
func (h *Humanoid) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// FatigueLevel is exposed for diagnostics and tests.
func (h *Humanoid) FatigueLevel() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatigueLevel
}
