// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/config"
	"github.com/xkilldash9x/medipilot/internal/observability"
	"github.com/xkilldash9x/medipilot/internal/service"
)

const envPrefix = "MEDIPILOT"

// app is the state shared by one command tree. Every tree gets its own
// viper instance so repeated executions never see each other's flags.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	factory service.ComponentFactory

	cfgFile string
	envFile string
}

// NewRootCommand builds the command tree with the production component factory.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCmd(service.NewComponentFactory())
	return root
}

func newRootCmd(factory service.ComponentFactory) (*cobra.Command, *app) {
	a := &app{v: viper.New(), factory: factory}

	rootCmd := &cobra.Command{
		Use:   "medipilot",
		Short: "MediPilot transcribes lab results into an EMR by driving the desktop.",
		Long: `MediPilot watches the screen, asks a vision model for the next step and
drives the mouse and keyboard to enter lab values into an EMR form.

Every value it enters must be reviewed by a clinician before it is signed.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initializeConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.SetVersionTemplate(`{{printf "medipilot version %s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(a),
		newExtractCmd(a),
		newAuditCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd, a
}

// initializeConfig loads the dotenv file, the config file and the
// environment into the tree's viper instance. Commands bind their flags in
// PreRunE and then call loadConfig.
func (a *app) initializeConfig() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading env file %q: %w", a.envFile, err)
		}
	}

	config.SetDefaults(a.v)
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}

// loadConfig resolves the final configuration, flags included, and starts
// the logger from it.
func (a *app) loadConfig() error {
	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		// Initialize a fallback logger so the failure is still reported.
		_ = observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "medipilot"})
		return err
	}
	a.cfg = cfg

	if err := observability.InitializeLogger(cfg.Logger()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	observability.GetLogger().Debug("Configuration loaded.",
		zap.String("version", Version),
		zap.String("config_file", a.v.ConfigFileUsed()))
	return nil
}

// bindFlags binds command flags to their viper keys.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Warn("Command interrupted.", zap.Error(err))
	} else {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}
