// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/audit"
	"github.com/xkilldash9x/medipilot/internal/cognition"
	"github.com/xkilldash9x/medipilot/internal/executor"
	"github.com/xkilldash9x/medipilot/internal/input"
	"github.com/xkilldash9x/medipilot/internal/metrics"
	"github.com/xkilldash9x/medipilot/internal/perception"
	"github.com/xkilldash9x/medipilot/internal/pilot"
)

// Components holds everything built for one session and owns its teardown.
type Components struct {
	Pilot      *pilot.Pilot
	Perception *perception.Pipeline
	Cognition  *cognition.Client
	Executor   *executor.Executor
	Driver     input.Driver

	Trail audit.Trail
	// AuditDB is also part of Trail; it is exposed for queries.
	AuditDB *audit.SQLiteTrail

	Recorder *metrics.Recorder
	// MetricsServer is nil when metrics are disabled.
	MetricsServer *metrics.Server

	logger *zap.Logger
}

// Shutdown releases resources in dependency order. The loop and the metrics
// server must already have returned; the audit trail is closed last so the
// session-end record is never lost.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	if c.Trail != nil {
		if err := c.Trail.Close(); err != nil {
			logger.Warn("Error closing the audit trail.", zap.Error(err))
		} else {
			logger.Debug("Audit trail closed.")
		}
		c.Trail = nil
		c.AuditDB = nil
	}

	logger.Info("All pilot components shut down.")
}
