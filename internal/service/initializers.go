// File: internal/service/initializers.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/audit"
	"github.com/xkilldash9x/medipilot/internal/clock"
	"github.com/xkilldash9x/medipilot/internal/config"
	"github.com/xkilldash9x/medipilot/internal/input"
	"github.com/xkilldash9x/medipilot/internal/llmclient"
	"github.com/xkilldash9x/medipilot/internal/perception"
)

// ErrNoAuditSink is returned when neither an audit file nor an audit database is configured.
var ErrNoAuditSink = errors.New("no audit sink configured: set audit.log_file or audit.sqlite_path")

// InitializeAuditTrail opens every configured audit sink. The returned
// SQLite handle is nil when no database is configured; it is also part of
// the returned trail and must not be closed separately.
func InitializeAuditTrail(cfg config.AuditConfig, logger *zap.Logger) (audit.Trail, *audit.SQLiteTrail, error) {
	var trails audit.Multi
	var db *audit.SQLiteTrail

	if cfg.LogFile != "" {
		ft, err := audit.NewFileTrail(cfg.LogFile, cfg.MaxSize, cfg.MaxBackups)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit file: %w", err)
		}
		trails = append(trails, ft)
		logger.Debug("Audit file opened.", zap.String("path", cfg.LogFile))
	}

	if cfg.SQLitePath != "" {
		var err error
		db, err = audit.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			_ = trails.Close()
			return nil, nil, fmt.Errorf("opening audit database: %w", err)
		}
		trails = append(trails, db)
		logger.Debug("Audit database opened.", zap.String("path", cfg.SQLitePath))
	}

	if len(trails) == 0 {
		return nil, nil, ErrNoAuditSink
	}
	return trails, db, nil
}

// InitializeCapturer picks the replay directory when one is configured and
// the screen grabber command otherwise.
func InitializeCapturer(cfg config.PerceptionConfig, logger *zap.Logger) (perception.Capturer, error) {
	if cfg.ReplayDir != "" {
		logger.Info("Replaying frames from disk instead of capturing the screen.", zap.String("dir", cfg.ReplayDir))
		return perception.NewFileCapturer(cfg.ReplayDir, logger)
	}
	return perception.NewCommandCapturer(cfg.CaptureCommand, cfg.CaptureTimeout, logger), nil
}

// InitializeDriver builds the input driver, wrapped in the corner fail-safe when enabled.
func InitializeDriver(ctx context.Context, cfg config.ExecutionConfig, display string, logger *zap.Logger) (input.Driver, error) {
	var base interface {
		input.Driver
		input.PointerLocator
	}
	switch cfg.Driver {
	case "dryrun":
		logger.Warn("Dry-run driver selected; no input will reach the desktop.")
		base = input.NewDryRunDriver(cfg.ScreenWidth, cfg.ScreenHeight, logger)
	case "xdotool":
		x := input.NewXdoDriver(cfg.XdotoolPath, display, clock.Real{}, logger)
		if _, err := x.ScreenSize(ctx); err != nil {
			return nil, fmt.Errorf("probing display %q with xdotool: %w", display, err)
		}
		base = x
	default:
		return nil, fmt.Errorf("unknown execution driver %q", cfg.Driver)
	}

	if !cfg.FailSafe {
		logger.Warn("Fail-safe is disabled; slamming the pointer into a corner will not stop the session.")
		return base, nil
	}
	return input.NewFailSafe(base, base, cfg.FailSafeMargin, logger), nil
}

// InitializeLLMClient builds the throttled, tier-routed vision client.
func InitializeLLMClient(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (llmclient.VisionClient, error) {
	client, err := llmclient.NewFromConfig(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}
