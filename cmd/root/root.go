// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"
	"sync"

	"fjacquet/statement-import/internal/config"
	"fjacquet/statement-import/internal/container"
	"fjacquet/statement-import/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input      string
	ConfigFile string
	LogLevel   string
	LogFormat  string
}

var (
	// Version is set at build time with -ldflags "-X fjacquet/statement-import/cmd/root.Version=...".
	Version = "dev"

	// Log is the shared logger instance for commands
	Log = logging.GetLogger()

	// AppConfig is loaded before any subcommand runs.
	AppConfig *config.Config

	// AppContainer is created on first use by GetContainer.
	AppContainer *container.Container

	containerMu sync.Mutex

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "statement-import",
		Short: "Import bank statements into a ledger after review.",
		Long: `statement-import detects the issuing bank of a statement, extracts its
transactions, lets them be reviewed and commits the confirmed ones to a ledger.
It runs as a CLI or as an HTTP service (serve).`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to statement-import!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			CloseContainer()
		},
	}

	// SharedFlags holds flags accessible to all commands
	SharedFlags = CommonFlags{}

	initOnce sync.Once
)

// Init registers the persistent flags. It is safe to call more than once.
func Init() {
	initOnce.Do(func() {
		Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input file")
		Cmd.PersistentFlags().StringVar(&SharedFlags.ConfigFile, "config", "", "Config file (default is $HOME/.statement-import/config.yaml)")
		Cmd.PersistentFlags().StringVar(&SharedFlags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
		Cmd.PersistentFlags().StringVar(&SharedFlags.LogFormat, "log-format", "", "Log format (text, json)")
	})
}

// initialize loads the configuration and configures logging. Flags win over
// the config file and the environment.
func initialize(cmd *cobra.Command) error {
	envFile := config.LoadEnv()

	cfg, err := config.InitializeConfig(SharedFlags.ConfigFile)
	if err != nil {
		return err
	}
	if SharedFlags.LogLevel != "" {
		cfg.Log.Level = SharedFlags.LogLevel
	}
	if SharedFlags.LogFormat != "" {
		cfg.Log.Format = SharedFlags.LogFormat
	}

	Log = config.ConfigureLoggingFromConfig(cfg)
	logging.SetLogger(Log)
	AppConfig = cfg

	Log.Debug("Configuration loaded",
		logging.Field{Key: logging.FieldOperation, Value: cmd.Name()},
		logging.Field{Key: logging.FieldPath, Value: envFile},
		logging.Field{Key: logging.FieldExtractor, Value: cfg.Extraction.Provider})
	return nil
}

// GetContainer returns the application container, creating it from AppConfig on
// first use.
func GetContainer(ctx context.Context) (*container.Container, error) {
	containerMu.Lock()
	defer containerMu.Unlock()

	if AppContainer != nil {
		return AppContainer, nil
	}
	if AppConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	c, err := container.NewContainer(ctx, AppConfig, container.WithLogger(Log))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	AppContainer = c
	return c, nil
}

// CloseContainer releases the container created by GetContainer, if any.
func CloseContainer() {
	containerMu.Lock()
	defer containerMu.Unlock()

	if AppContainer == nil {
		return
	}
	if err := AppContainer.Close(); err != nil {
		Log.WithError(err).Warn("Failed to close container")
	}
	AppContainer = nil
}
