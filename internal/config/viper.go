// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Pipeline struct {
		Workers             int     `mapstructure:"workers" yaml:"workers"`
		ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	} `mapstructure:"pipeline" yaml:"pipeline"`

	Dedup struct {
		WindowDays        int     `mapstructure:"window_days" yaml:"window_days"`
		DateToleranceDays int     `mapstructure:"date_tolerance_days" yaml:"date_tolerance_days"`
		AmountEpsilon     string  `mapstructure:"amount_epsilon" yaml:"amount_epsilon"`
		ConflictBand      float64 `mapstructure:"conflict_band" yaml:"conflict_band"`
	} `mapstructure:"dedup" yaml:"dedup"`

	Oracle struct {
		Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
		Model          string  `mapstructure:"model" yaml:"model"`
		TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
		DegradePenalty float64 `mapstructure:"degrade_penalty" yaml:"degrade_penalty"`
		APIKey         string  `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	} `mapstructure:"oracle" yaml:"oracle"`

	Store struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"store" yaml:"store"`

	Data struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
	} `mapstructure:"data" yaml:"data"`

	Categorization struct {
		AutoLearn     bool `mapstructure:"auto_learn" yaml:"auto_learn"`
		CaseSensitive bool `mapstructure:"case_sensitive" yaml:"case_sensitive"`
	} `mapstructure:"categorization" yaml:"categorization"`

	Export struct {
		Delimiter      string `mapstructure:"delimiter" yaml:"delimiter"`
		IncludeHeaders bool   `mapstructure:"include_headers" yaml:"include_headers"`
	} `mapstructure:"export" yaml:"export"`
}

// OracleTimeout returns the oracle call timeout as a duration.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.mail-ledger")
	v.AddConfigPath(".mail-ledger")
	v.AddConfigPath(".")

	// 3. Environment variables
	v.SetEnvPrefix("MAILLEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Log the error but don't fail - continue with defaults and env vars
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
		// Config file not found or invalid is OK, we'll use defaults and env vars
	}

	// 5. Handle special case for API key (always from env, not prefixed)
	if err := v.BindEnv("oracle.api_key", "GEMINI_API_KEY"); err != nil {
		fmt.Printf("Warning: failed to bind GEMINI_API_KEY environment variable: %v\n", err)
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

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.confidence_threshold", 0.5)

	// Dedup defaults
	v.SetDefault("dedup.window_days", 35)
	v.SetDefault("dedup.date_tolerance_days", 3)
	v.SetDefault("dedup.amount_epsilon", "0.01")
	v.SetDefault("dedup.conflict_band", 0.01)

	// Oracle defaults
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.model", "gemini-2.0-flash")
	v.SetDefault("oracle.timeout_seconds", 20)
	v.SetDefault("oracle.max_retries", 2)
	v.SetDefault("oracle.degrade_penalty", 0.1)

	// Store defaults
	v.SetDefault("store.path", "ledger.db")

	// Data defaults
	v.SetDefault("data.directory", "")

	// Categorization defaults
	v.SetDefault("categorization.auto_learn", true)
	v.SetDefault("categorization.case_sensitive", false)

	// Export defaults
	v.SetDefault("export.delimiter", ",")
	v.SetDefault("export.include_headers", true)
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Pipeline.Workers < 1 || config.Pipeline.Workers > 64 {
		return fmt.Errorf("pipeline.workers must be between 1 and 64, got: %d", config.Pipeline.Workers)
	}

	if config.Pipeline.ConfidenceThreshold < 0.0 || config.Pipeline.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("pipeline.confidence_threshold must be between 0.0 and 1.0, got: %f", config.Pipeline.ConfidenceThreshold)
	}

	if config.Dedup.WindowDays < 1 {
		return fmt.Errorf("dedup.window_days must be positive, got: %d", config.Dedup.WindowDays)
	}

	if config.Dedup.DateToleranceDays < 0 || config.Dedup.DateToleranceDays > config.Dedup.WindowDays {
		return fmt.Errorf("dedup.date_tolerance_days must be between 0 and window_days, got: %d", config.Dedup.DateToleranceDays)
	}

	// Validate oracle configuration
	if config.Oracle.Enabled {
		if config.Oracle.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required when oracle is enabled")
		}

		if config.Oracle.TimeoutSeconds < 1 || config.Oracle.TimeoutSeconds > 300 {
			return fmt.Errorf("oracle.timeout_seconds must be between 1 and 300, got: %d", config.Oracle.TimeoutSeconds)
		}

		if config.Oracle.MaxRetries < 0 || config.Oracle.MaxRetries > 10 {
			return fmt.Errorf("oracle.max_retries must be between 0 and 10, got: %d", config.Oracle.MaxRetries)
		}
	}

	if config.Oracle.DegradePenalty < 0.0 || config.Oracle.DegradePenalty > 1.0 {
		return fmt.Errorf("oracle.degrade_penalty must be between 0.0 and 1.0, got: %f", config.Oracle.DegradePenalty)
	}

	// Validate export delimiter
	if len(config.Export.Delimiter) != 1 {
		return fmt.Errorf("export delimiter must be a single character, got: %s", config.Export.Delimiter)
	}

	return nil
}

// ConfigureLoggingFromConfig configures logging based on the Config struct
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	// Parse and set log level
	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Configure log format
	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
