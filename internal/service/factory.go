// File: internal/service/factory.go
package service

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/clock"
	"github.com/xkilldash9x/medipilot/internal/cognition"
	"github.com/xkilldash9x/medipilot/internal/config"
	"github.com/xkilldash9x/medipilot/internal/executor"
	"github.com/xkilldash9x/medipilot/internal/humanoid"
	"github.com/xkilldash9x/medipilot/internal/metrics"
	"github.com/xkilldash9x/medipilot/internal/perception"
	"github.com/xkilldash9x/medipilot/internal/pilot"
	"github.com/xkilldash9x/medipilot/internal/terminology"
)

// ComponentFactory builds everything a session needs. Commands depend on
// this interface so they can be tested without a display or a model.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the pilot from configuration. Any failure is returned as a
// *StartupFault and every component built so far is shut down.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{logger: logger}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Credentials and the vision model.
	if err := cfg.RequireCredentials(); err != nil {
		initializationErr = fault("llm", err)
		return nil, initializationErr
	}
	llm, err := InitializeLLMClient(ctx, cfg.Agent(), logger)
	if err != nil {
		initializationErr = fault("llm", err)
		return nil, initializationErr
	}
	logger.Debug("Vision client initialized.")

	// 2. Terminology and cognition.
	terms := terminology.New(cfg.Task().FieldMap)
	opModel := cfg.Agent().LLM.Models[cfg.Agent().LLM.OperationModel]
	grid := 0
	if cfg.Perception().Grid.Enabled {
		grid = cfg.Perception().Grid.CellSize
	}
	brain, err := cognition.New(llm, cognition.Options{
		JPEGQuality:    cfg.Perception().JPEGQuality,
		MaxUploadWidth: cfg.Perception().MaxUploadWidth,
		Timeout:        opModel.APITimeout,
		GridCellSize:   grid,
		Persona:        cfg.Agent().LLM.SystemPrompt,
		Metrics:        terms.Known(),
	}, logger)
	if err != nil {
		initializationErr = fault("cognition", err)
		return nil, initializationErr
	}
	components.Cognition = brain
	logger.Debug("Cognition client initialized.")

	// 3. Audit trail. Nothing is dispatched without one.
	trail, db, err := InitializeAuditTrail(cfg.Audit(), logger)
	if err != nil {
		initializationErr = fault("audit", err)
		return nil, initializationErr
	}
	components.Trail = trail
	components.AuditDB = db

	// 4. Perception.
	capturer, err := InitializeCapturer(cfg.Perception(), logger)
	if err != nil {
		initializationErr = fault("perception", err)
		return nil, initializationErr
	}
	components.Perception = perception.NewPipeline(capturer, trail, perception.OptionsFromConfig(cfg.Perception()), logger)
	logger.Debug("Perception pipeline initialized.")

	// 5. Input driver and executor.
	driver, err := InitializeDriver(ctx, cfg.Execution(), cfg.Perception().Display, logger)
	if err != nil {
		initializationErr = fault("input", err)
		return nil, initializationErr
	}
	components.Driver = driver

	h := humanoid.New(cfg.Execution().Humanoid, rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	components.Executor = executor.New(driver, h, trail, clock.Real{}, executor.Options{
		PauseInterval: cfg.Execution().PauseInterval,
		FocusSettle:   cfg.Execution().FocusSettle,
	}, logger)
	logger.Debug("Executor initialized.", zap.String("driver", cfg.Execution().Driver))

	// 6. Metrics.
	components.Recorder = metrics.New()
	if cfg.Metrics().Enabled {
		components.MetricsServer = metrics.NewServer(cfg.Metrics().ListenAddress, components.Recorder, logger)
	}

	// 7. The loop itself.
	p, err := pilot.New(pilot.Deps{
		Perceiver:  components.Perception,
		Reasoner:   brain,
		Dispatcher: components.Executor,
		Trail:      trail,
		Recorder:   components.Recorder,
		Terms:      terms,
		Sleeper:    clock.Real{},
	}, pilot.OptionsFromConfig(cfg.Loop()), logger)
	if err != nil {
		initializationErr = fault("pilot", err)
		return nil, initializationErr
	}
	components.Pilot = p

	logger.Info("All pilot components initialized successfully.")
	return components, nil
}
