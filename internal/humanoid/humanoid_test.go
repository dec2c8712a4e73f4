// internal/humanoid/humanoid_test.go
package humanoid

import (
	"image"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/medipilot/internal/config"
)

func testConfig(enabled bool) config.HumanoidConfig {
	return config.HumanoidConfig{
		Enabled:             enabled,
		FittsA:              120,
		FittsB:              150,
		FittsW:              30,
		MoveDuration:        500 * time.Millisecond,
		KeyInterval:         100 * time.Millisecond,
		KeyIntervalStdDev:   28 * time.Millisecond,
		KeyIntervalMin:      35 * time.Millisecond,
		FatigueIncreaseRate: 0.01,
		FatigueRecoveryRate: 0.02,
	}
}

func newTestHumanoid(t *testing.T, enabled bool) *Humanoid {
	t.Helper()
	return New(testConfig(enabled), rand.New(rand.NewSource(1)), zaptest.NewLogger(t))
}

func TestVector(t *testing.T) {
	a := FromPoint(image.Pt(3, 4))
	assert.Equal(t, 5.0, a.Mag())
	assert.Equal(t, 5.0, a.Dist(Vector2D{}))
	assert.Equal(t, Vector2D{X: 2, Y: 3}, a.Sub(Vector2D{X: 1, Y: 1}))
}

func TestPlanMove(t *testing.T) {
	t.Run("Disabled uses fixed duration", func(t *testing.T) {
		h := newTestHumanoid(t, false)
		assert.Equal(t, 500*time.Millisecond, h.PlanMove(Vector2D{X: 900, Y: 700}))
		assert.Equal(t, Vector2D{X: 900, Y: 700}, h.Position())
	})

	t.Run("Fitts law grows with distance", func(t *testing.T) {
		h := newTestHumanoid(t, true)
		short := h.calculateFittsLaw(10)
		long := h.calculateFittsLaw(1500)
		// Jitter is +/-15%, so compare against the jitter-free bounds.
		assert.Less(t, short, time.Duration(1.15*(120+150*1.0)*float64(time.Millisecond)))
		assert.Greater(t, long, time.Duration(0.85*(120+150*5.6)*float64(time.Millisecond)))
	})

	t.Run("Tracks position and caps duration", func(t *testing.T) {
		cfg := testConfig(true)
		cfg.FittsA = 5000
		h := New(cfg, rand.New(rand.NewSource(2)), nil)
		h.SetPosition(Vector2D{X: 10, Y: 10})
		d := h.PlanMove(Vector2D{X: 20, Y: 10})
		assert.Equal(t, maxMoveDuration, d)
		assert.Equal(t, 10.0, h.lastMovementDistance)
	})
}

func TestKeyIntervals(t *testing.T) {
	t.Run("Disabled is uniform", func(t *testing.T) {
		h := newTestHumanoid(t, false)
		got := h.KeyIntervals("7.2")
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond}, got)
	})

	t.Run("Enabled respects minimum and length", func(t *testing.T) {
		h := newTestHumanoid(t, true)
		got := h.KeyIntervals("血红蛋白 135")
		require.Len(t, got, len([]rune("血红蛋白 135")))
		for _, d := range got {
			assert.GreaterOrEqual(t, d, time.Duration(0.55*35*float64(time.Millisecond)))
		}
	})

	t.Run("Common ngrams are faster on average", func(t *testing.T) {
		h := newTestHumanoid(t, true)
		var fast, slow time.Duration
		for i := 0; i < 200; i++ {
			fast += h.keyPause([]rune("th"), 1)
			slow += h.keyPause([]rune("qz"), 1)
		}
		assert.Less(t, fast, slow)
	})
}

func TestFatigue(t *testing.T) {
	h := newTestHumanoid(t, true)
	for i := 0; i < 50; i++ {
		h.updateFatigue(1.0)
	}
	tired := h.FatigueLevel()
	assert.InDelta(t, 0.5, tired, 1e-9)
	assert.InDelta(t, 120*1.5, h.dynamicConfig.FittsA, 1e-9)

	h.recoverFatigue(10 * time.Second)
	assert.InDelta(t, 0.3, h.FatigueLevel(), 1e-9)

	h.recoverFatigue(time.Hour)
	assert.Equal(t, 0.0, h.FatigueLevel())
}

func TestCognitivePause(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, newTestHumanoid(t, false).CognitivePause(200*time.Millisecond, 80*time.Millisecond))

	h := newTestHumanoid(t, true)
	for i := 0; i < 20; i++ {
		assert.GreaterOrEqual(t, h.CognitivePause(10*time.Millisecond, 50*time.Millisecond), time.Duration(0))
	}
}
