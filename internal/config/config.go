// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/medipilot/internal/frame"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	Perception() PerceptionConfig
	Execution() ExecutionConfig
	Loop() LoopConfig
	Audit() AuditConfig
	Metrics() MetricsConfig
	Task() TaskConfig

	// RequireCredentials reports a missing API key for a model that needs one.
	RequireCredentials() error

	// Task Setters
	SetTaskInstruction(string)
	SetTaskExtract(bool)

	// Loop Setters
	SetLoopMaxIterations(int)

	// Execution Setters
	SetExecutionDriver(string)

	// Perception Setters
	SetPerceptionReplayDir(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	AgentCfg      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	PerceptionCfg PerceptionConfig `mapstructure:"perception" yaml:"perception"`
	ExecutionCfg  ExecutionConfig  `mapstructure:"execution" yaml:"execution"`
	LoopCfg       LoopConfig       `mapstructure:"loop" yaml:"loop"`
	AuditCfg      AuditConfig      `mapstructure:"audit" yaml:"audit"`
	MetricsCfg    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	// TaskCfg mostly gets its marching orders from CLI flags.
	TaskCfg TaskConfig `mapstructure:"task" yaml:"task"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig           { return c.AgentCfg }
func (c *Config) Perception() PerceptionConfig { return c.PerceptionCfg }
func (c *Config) Execution() ExecutionConfig   { return c.ExecutionCfg }
func (c *Config) Loop() LoopConfig             { return c.LoopCfg }
func (c *Config) Audit() AuditConfig           { return c.AuditCfg }
func (c *Config) Metrics() MetricsConfig       { return c.MetricsCfg }
func (c *Config) Task() TaskConfig             { return c.TaskCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetTaskInstruction(s string)     { c.TaskCfg.Instruction = s }
func (c *Config) SetTaskExtract(b bool)           { c.TaskCfg.Extract = b }
func (c *Config) SetLoopMaxIterations(n int)      { c.LoopCfg.MaxIterations = n }
func (c *Config) SetExecutionDriver(d string)     { c.ExecutionCfg.Driver = d }
func (c *Config) SetPerceptionReplayDir(d string) { c.PerceptionCfg.ReplayDir = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig holds settings related to the model-facing side of the pilot.
type AgentConfig struct {
	LLM LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
	// ProviderOllama speaks the OpenAI wire format and needs no key.
	ProviderOllama LLMProvider = "ollama"
)

// LLMRouterConfig configures which model serves which phase.
type LLMRouterConfig struct {
	OperationModel  string `mapstructure:"operation_model" yaml:"operation_model"`
	ExtractionModel string `mapstructure:"extraction_model" yaml:"extraction_model"`
	// APIKey and BaseURL are shared by every model that does not set its own.
	APIKey            string                    `mapstructure:"api_key" yaml:"-"`
	BaseURL           string                    `mapstructure:"base_url" yaml:"base_url"`
	RequestsPerMinute float64                   `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	SystemPrompt      string                    `mapstructure:"system_prompt" yaml:"system_prompt"`
	Models            map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// PerceptionConfig controls screen capture and the privacy/grounding transforms.
type PerceptionConfig struct {
	Display string `mapstructure:"display" yaml:"display"`
	// CaptureCommand must write a PNG of the whole screen to stdout.
	CaptureCommand []string      `mapstructure:"capture_command" yaml:"capture_command"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	// ReplayDir, when set, replaces live capture with the images in the directory.
	ReplayDir      string          `mapstructure:"replay_dir" yaml:"replay_dir"`
	JPEGQuality    int             `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	MaxUploadWidth int             `mapstructure:"max_upload_width" yaml:"max_upload_width"`
	Redaction      RedactionConfig `mapstructure:"redaction" yaml:"redaction"`
	Grid           GridConfig      `mapstructure:"grid" yaml:"grid"`
}

type RedactionConfig struct {
	Enabled    bool         `mapstructure:"enabled" yaml:"enabled"`
	Region     frame.Region `mapstructure:"region" yaml:"region"`
	BlurRadius int          `mapstructure:"blur_radius" yaml:"blur_radius"`
	BlurPasses int          `mapstructure:"blur_passes" yaml:"blur_passes"`
	// Strict turns a degraded redaction into a skipped cycle instead of sending the raw frame.
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

type GridConfig struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled"`
	CellSize int  `mapstructure:"cell_size" yaml:"cell_size"`
}

// ExecutionConfig controls how plans become input events.
type ExecutionConfig struct {
	// Driver is "xdotool" for a live X11 session or "dryrun" to log actions only.
	Driver      string `mapstructure:"driver" yaml:"driver"`
	XdotoolPath string `mapstructure:"xdotool_path" yaml:"xdotool_path"`
	// FailSafe aborts the session when the operator slams the pointer into a screen corner.
	FailSafe       bool          `mapstructure:"failsafe" yaml:"failsafe"`
	FailSafeMargin int           `mapstructure:"failsafe_margin" yaml:"failsafe_margin"`
	PauseInterval  time.Duration `mapstructure:"pause_interval" yaml:"pause_interval"`
	FocusSettle    time.Duration `mapstructure:"focus_settle" yaml:"focus_settle"`
	// ScreenWidth and ScreenHeight size the dry-run screen.
	ScreenWidth  int            `mapstructure:"screen_width" yaml:"screen_width"`
	ScreenHeight int            `mapstructure:"screen_height" yaml:"screen_height"`
	Humanoid     HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// LoopConfig holds the control loop bound and its per-stage backoffs.
type LoopConfig struct {
	MaxIterations      int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	InterCycleDelay    time.Duration `mapstructure:"inter_cycle_delay" yaml:"inter_cycle_delay"`
	PerceptionBackoff  time.Duration `mapstructure:"perception_backoff" yaml:"perception_backoff"`
	CognitionBackoff   time.Duration `mapstructure:"cognition_backoff" yaml:"cognition_backoff"`
	ExtractionAttempts int           `mapstructure:"extraction_attempts" yaml:"extraction_attempts"`
}

// AuditConfig selects where dispatch records are written.
type AuditConfig struct {
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
}

// TaskConfig describes the work for one session.
type TaskConfig struct {
	Instruction string `mapstructure:"instruction" yaml:"instruction"`
	// Extract runs the findings extraction phase before the operation loop.
	Extract bool `mapstructure:"extract" yaml:"extract"`
	// FieldMap adds or overrides lab abbreviation -> EMR field name entries.
	FieldMap map[string]string `mapstructure:"field_map" yaml:"field_map"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "medipilot")
	v.SetDefault("logger.log_file", "logs/medipilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 14)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Agent --
	v.SetDefault("agent.llm.operation_model", "vision")
	v.SetDefault("agent.llm.extraction_model", "extraction")
	v.SetDefault("agent.llm.requests_per_minute", 20.0)
	v.SetDefault("agent.llm.system_prompt", "")
	v.SetDefault("agent.llm.models.vision.provider", string(ProviderOpenAI))
	v.SetDefault("agent.llm.models.vision.model", "gpt-4o")
	v.SetDefault("agent.llm.models.vision.api_timeout", "60s")
	v.SetDefault("agent.llm.models.vision.temperature", 0.1)
	v.SetDefault("agent.llm.models.vision.max_tokens", 1024)
	v.SetDefault("agent.llm.models.extraction.provider", string(ProviderOpenAI))
	v.SetDefault("agent.llm.models.extraction.model", "gpt-4o")
	v.SetDefault("agent.llm.models.extraction.api_timeout", "90s")
	v.SetDefault("agent.llm.models.extraction.temperature", 0.0)
	v.SetDefault("agent.llm.models.extraction.max_tokens", 2048)

	// -- Perception --
	v.SetDefault("perception.display", ":0")
	v.SetDefault("perception.capture_command", []string{"import", "-window", "root", "png:-"})
	v.SetDefault("perception.capture_timeout", "10s")
	v.SetDefault("perception.replay_dir", "")
	v.SetDefault("perception.jpeg_quality", frame.DefaultJPEGQuality)
	v.SetDefault("perception.max_upload_width", 0)
	v.SetDefault("perception.redaction.enabled", true)
	v.SetDefault("perception.redaction.region.row_start", 0)
	v.SetDefault("perception.redaction.region.row_end", 150)
	v.SetDefault("perception.redaction.region.col_start", 0)
	v.SetDefault("perception.redaction.region.col_end", 400)
	v.SetDefault("perception.redaction.blur_radius", frame.DefaultBlurRadius)
	v.SetDefault("perception.redaction.blur_passes", frame.DefaultBlurPasses)
	v.SetDefault("perception.redaction.strict", false)
	v.SetDefault("perception.grid.enabled", true)
	v.SetDefault("perception.grid.cell_size", frame.DefaultCellSize)

	// -- Execution --
	v.SetDefault("execution.driver", "xdotool")
	v.SetDefault("execution.xdotool_path", "xdotool")
	v.SetDefault("execution.failsafe", true)
	v.SetDefault("execution.failsafe_margin", 2)
	v.SetDefault("execution.pause_interval", "800ms")
	v.SetDefault("execution.focus_settle", "200ms")
	v.SetDefault("execution.screen_width", 1920)
	v.SetDefault("execution.screen_height", 1080)
	// Initialize all Humanoid defaults using the centralized function in humanoid_config.go.
	setHumanoidDefaults(v)

	// -- Loop --
	v.SetDefault("loop.max_iterations", 100)
	v.SetDefault("loop.inter_cycle_delay", "1s")
	v.SetDefault("loop.perception_backoff", "3s")
	v.SetDefault("loop.cognition_backoff", "5s")
	v.SetDefault("loop.extraction_attempts", 3)

	// -- Audit --
	v.SetDefault("audit.log_file", "logs/audit.jsonl")
	v.SetDefault("audit.max_size", 50)
	v.SetDefault("audit.max_backups", 0)
	v.SetDefault("audit.sqlite_path", "")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_address", "127.0.0.1:9464")

	// -- Task --
	v.SetDefault("task.instruction", "Transcribe the lab results shown on screen into the matching EMR fields.")
	v.SetDefault("task.extract", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data and the conventional provider names.
	_ = v.BindEnv("agent.llm.api_key", "MEDIPILOT_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("agent.llm.base_url", "MEDIPILOT_BASE_URL", "OPENAI_BASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.applySharedCredentials()
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applySharedCredentials copies the router-level key and base URL into models that lack their own.
func (c *Config) applySharedCredentials() {
	for name, m := range c.AgentCfg.LLM.Models {
		if m.APIKey == "" {
			m.APIKey = c.AgentCfg.LLM.APIKey
		}
		if m.Endpoint == "" {
			m.Endpoint = c.AgentCfg.LLM.BaseURL
		}
		c.AgentCfg.LLM.Models[name] = m
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.LoggerCfg.LogFile, &c.AuditCfg.LogFile, &c.AuditCfg.SQLitePath, &c.PerceptionCfg.ReplayDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "dpanic": true, "panic": true, "fatal": true,
}

// Validate checks the configuration for required fields and sane values.
// Credentials are checked separately by RequireCredentials so read-only
// commands work without a key.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.LoggerCfg.Level)] {
		return fmt.Errorf("logger.level %q is not a valid level", c.LoggerCfg.Level)
	}
	if err := c.AgentCfg.LLM.Validate(); err != nil {
		return fmt.Errorf("agent.llm configuration invalid: %w", err)
	}
	if err := c.PerceptionCfg.Validate(); err != nil {
		return fmt.Errorf("perception configuration invalid: %w", err)
	}
	if err := c.ExecutionCfg.Validate(); err != nil {
		return fmt.Errorf("execution configuration invalid: %w", err)
	}
	if err := c.LoopCfg.Validate(); err != nil {
		return fmt.Errorf("loop configuration invalid: %w", err)
	}
	return nil
}

// RequireCredentials reports a missing API key for any model that needs one.
func (c *Config) RequireCredentials() error {
	for _, name := range []string{c.AgentCfg.LLM.OperationModel, c.AgentCfg.LLM.ExtractionModel} {
		m, ok := c.AgentCfg.LLM.Models[name]
		if !ok || m.Provider == ProviderOllama {
			continue
		}
		if m.APIKey == "" {
			return fmt.Errorf("no API key for model %q: set MEDIPILOT_API_KEY (or OPENAI_API_KEY / GEMINI_API_KEY)", name)
		}
	}
	return nil
}

// Validate checks the router references resolve to configured models.
func (l *LLMRouterConfig) Validate() error {
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	for _, name := range []string{l.OperationModel, l.ExtractionModel} {
		m, ok := l.Models[name]
		if !ok {
			return fmt.Errorf("model %q is referenced but not configured under agent.llm.models", name)
		}
		switch m.Provider {
		case ProviderGemini, ProviderOpenAI, ProviderOllama:
		default:
			return fmt.Errorf("model %q has unsupported provider %q", name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("model %q has no model name", name)
		}
	}
	return nil
}

// Validate checks capture and transform settings.
func (p *PerceptionConfig) Validate() error {
	if p.ReplayDir == "" && len(p.CaptureCommand) == 0 {
		return fmt.Errorf("capture_command is required when replay_dir is not set")
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}
	if p.MaxUploadWidth < 0 {
		return fmt.Errorf("max_upload_width must not be negative")
	}
	if p.Redaction.Enabled {
		if err := p.Redaction.Region.Validate(); err != nil {
			return fmt.Errorf("redaction.%w", err)
		}
	}
	return nil
}

// Validate checks the driver choice and timing values.
func (e *ExecutionConfig) Validate() error {
	switch e.Driver {
	case "xdotool", "dryrun":
	default:
		return fmt.Errorf("driver must be \"xdotool\" or \"dryrun\", got %q", e.Driver)
	}
	if e.PauseInterval < 0 || e.FocusSettle < 0 {
		return fmt.Errorf("pause_interval and focus_settle must not be negative")
	}
	if e.Driver == "dryrun" && (e.ScreenWidth <= 0 || e.ScreenHeight <= 0) {
		return fmt.Errorf("screen_width and screen_height must be positive for the dry-run driver")
	}
	return e.Humanoid.Validate()
}

// Validate checks the loop bound and backoffs.
func (l *LoopConfig) Validate() error {
	if l.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be a positive integer")
	}
	if l.InterCycleDelay <= 0 {
		return fmt.Errorf("inter_cycle_delay must be a positive duration")
	}
	if l.PerceptionBackoff <= 0 || l.CognitionBackoff <= 0 {
		return fmt.Errorf("perception_backoff and cognition_backoff must be positive durations")
	}
	if l.ExtractionAttempts <= 0 {
		return fmt.Errorf("extraction_attempts must be a positive integer")
	}
	return nil
}
