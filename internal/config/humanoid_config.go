// File: internal/config/humanoid_config.go
// This file defines the HumanoidConfig struct, which contains the tunable
// parameters for the humanoid input cadence. These settings control pointer
// travel time (Fitts's law) and typing rhythm. When disabled, fixed durations
// are used instead so behaviour is fully predictable.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HumanoidConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// -- Pointer travel (Fitts's law: MT = A + B * log2(1 + D/W), milliseconds) --
	FittsA float64 `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB float64 `mapstructure:"fitts_b" yaml:"fitts_b"`
	FittsW float64 `mapstructure:"fitts_w" yaml:"fitts_w"`
	// MoveDuration is the fixed travel time used when Enabled is false.
	MoveDuration time.Duration `mapstructure:"move_duration" yaml:"move_duration"`

	// -- Typing --
	KeyInterval       time.Duration `mapstructure:"key_interval" yaml:"key_interval"`
	KeyIntervalStdDev time.Duration `mapstructure:"key_interval_stddev" yaml:"key_interval_stddev"`
	KeyIntervalMin    time.Duration `mapstructure:"key_interval_min" yaml:"key_interval_min"`

	// -- Fatigue --
	FatigueIncreaseRate float64 `mapstructure:"fatigue_increase_rate" yaml:"fatigue_increase_rate"`
	FatigueRecoveryRate float64 `mapstructure:"fatigue_recovery_rate" yaml:"fatigue_recovery_rate"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("execution.humanoid.enabled", true)
	v.SetDefault("execution.humanoid.fitts_a", 120.0)
	v.SetDefault("execution.humanoid.fitts_b", 150.0)
	v.SetDefault("execution.humanoid.fitts_w", 30.0)
	v.SetDefault("execution.humanoid.move_duration", "500ms")
	v.SetDefault("execution.humanoid.key_interval", "100ms")
	v.SetDefault("execution.humanoid.key_interval_stddev", "28ms")
	v.SetDefault("execution.humanoid.key_interval_min", "35ms")
	v.SetDefault("execution.humanoid.fatigue_increase_rate", 0.01)
	v.SetDefault("execution.humanoid.fatigue_recovery_rate", 0.02)
}

// Validate checks the cadence parameters.
func (h *HumanoidConfig) Validate() error {
	if h.MoveDuration < 0 || h.KeyInterval < 0 {
		return fmt.Errorf("humanoid.move_duration and humanoid.key_interval must not be negative")
	}
	if !h.Enabled {
		return nil
	}
	if h.FittsW <= 0 {
		return fmt.Errorf("humanoid.fitts_w must be positive")
	}
	if h.FittsA < 0 || h.FittsB < 0 {
		return fmt.Errorf("humanoid.fitts_a and humanoid.fitts_b must not be negative")
	}
	if h.KeyIntervalMin < 0 || h.KeyIntervalStdDev < 0 {
		return fmt.Errorf("humanoid key interval bounds must not be negative")
	}
	return nil
}
