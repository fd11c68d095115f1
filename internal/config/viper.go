// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by the application.
const EnvPrefix = "STMT"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Import struct {
		MaxFileSizeBytes  int64    `mapstructure:"max_file_size_bytes" yaml:"max_file_size_bytes"`
		MaxTransactions   int      `mapstructure:"max_transactions" yaml:"max_transactions"`
		SessionTTLMinutes int      `mapstructure:"session_ttl_minutes" yaml:"session_ttl_minutes"`
		AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`
		AllowedMIMETypes  []string `mapstructure:"allowed_mime_types" yaml:"allowed_mime_types"`
	} `mapstructure:"import" yaml:"import"`

	Confidence models.ConfidenceThresholds `mapstructure:"confidence" yaml:"confidence"`

	Extraction struct {
		Provider       string `mapstructure:"provider" yaml:"provider"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"extraction" yaml:"extraction"`

	Ledger struct {
		File           string `mapstructure:"file" yaml:"file"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"ledger" yaml:"ledger"`

	AI struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		Model   string `mapstructure:"model" yaml:"model"`
		APIKey  string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	} `mapstructure:"ai" yaml:"ai"`

	Catalog struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"catalog" yaml:"catalog"`

	Server struct {
		Address              string `mapstructure:"address" yaml:"address"`
		SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
	} `mapstructure:"server" yaml:"server"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading.
// An empty configFile searches the standard locations.
func InitializeConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.statement-import")
		v.AddConfigPath(".statement-import")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	// 5. API key always comes from the unprefixed variable
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the built-in configuration without reading files or the environment.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("import.max_file_size_bytes", models.DefaultMaxFileSizeBytes)
	v.SetDefault("import.max_transactions", models.DefaultMaxTransactions)
	v.SetDefault("import.session_ttl_minutes", models.DefaultSessionTTLMinutes)
	v.SetDefault("import.allowed_extensions", models.DefaultAllowedExtensions)
	v.SetDefault("import.allowed_mime_types", models.DefaultAllowedMIMETypes)

	th := models.DefaultThresholds()
	v.SetDefault("confidence.unknown_gate", th.UnknownGate)
	v.SetDefault("confidence.content_authoritative", th.ContentAuthoritative)
	v.SetDefault("confidence.filename_fallback", th.FilenameFallback)
	v.SetDefault("confidence.duplicate_below", th.DuplicateBelow)
	v.SetDefault("confidence.reliable_from", th.ReliableFrom)
	v.SetDefault("confidence.max_detection_confidence", th.MaxDetectionConfidence)

	v.SetDefault("extraction.provider", "auto")
	v.SetDefault("extraction.timeout_seconds", 60)

	v.SetDefault("ledger.file", "ledger.csv")
	v.SetDefault("ledger.timeout_seconds", 15)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.api_key", "")

	v.SetDefault("catalog.file", "")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.sweep_interval_seconds", 60)
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Import.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("import.max_file_size_bytes must be positive, got: %d", config.Import.MaxFileSizeBytes)
	}
	if config.Import.MaxTransactions <= 0 {
		return fmt.Errorf("import.max_transactions must be positive, got: %d", config.Import.MaxTransactions)
	}
	if config.Import.SessionTTLMinutes <= 0 {
		return fmt.Errorf("import.session_ttl_minutes must be positive, got: %d", config.Import.SessionTTLMinutes)
	}
	if len(config.Import.AllowedExtensions) == 0 || len(config.Import.AllowedMIMETypes) == 0 {
		return fmt.Errorf("import.allowed_extensions and import.allowed_mime_types must not be empty")
	}

	if err := config.Confidence.Validate(); err != nil {
		return err
	}

	switch config.Extraction.Provider {
	case "auto", "csv", "gemini":
	default:
		return fmt.Errorf("extraction.provider must be one of auto, csv, gemini, got: %s", config.Extraction.Provider)
	}
	if config.Extraction.TimeoutSeconds < 1 || config.Extraction.TimeoutSeconds > 600 {
		return fmt.Errorf("extraction.timeout_seconds must be between 1 and 600, got: %d", config.Extraction.TimeoutSeconds)
	}
	if config.Ledger.TimeoutSeconds < 1 || config.Ledger.TimeoutSeconds > 300 {
		return fmt.Errorf("ledger.timeout_seconds must be between 1 and 300, got: %d", config.Ledger.TimeoutSeconds)
	}

	if (config.AI.Enabled || config.Extraction.Provider == "gemini") && config.AI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY required when AI extraction is enabled")
	}

	return nil
}

// ConfigureLoggingFromConfig builds the application logger from the Config struct
func ConfigureLoggingFromConfig(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(config.Log.Level, config.Log.Format)
}
