// Package config loads runtime configuration from a config file, environment
// variables, and built-in defaults, in viper precedence order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"evoplan/internal/models"
)

// Defaults applied when neither the config file nor the environment sets a
// value.
const (
	DefaultModel          = "claude-3-haiku-20240307"
	DefaultMode           = "sequential"
	DefaultMaxIterations  = 3
	DefaultTimeoutSeconds = 600
	DefaultListen         = ":8080"
	DefaultDB             = "evoplan.db"
)

// Config is the resolved runtime configuration.
type Config struct {
	APIKey        string
	Model         string
	Mode          models.RunMode
	MaxIterations int
	Timeout       time.Duration
	Listen        string
	DB            string
	AgentsFile    string
	Verbose       bool
}

// Load resolves configuration from $HOME/.evoplan/config.yaml, EVOPLAN_*
// environment variables, and defaults. The Anthropic key additionally falls
// back to ANTHROPIC_API_KEY.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".evoplan"))
	}

	v.SetEnvPrefix("EVOPLAN")
	v.AutomaticEnv()

	v.SetDefault("model", DefaultModel)
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("max_iterations", DefaultMaxIterations)
	v.SetDefault("timeout", DefaultTimeoutSeconds)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("db", DefaultDB)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{
		APIKey:        v.GetString("api_key"),
		Model:         v.GetString("model"),
		Mode:          models.RunMode(v.GetString("mode")),
		MaxIterations: v.GetInt("max_iterations"),
		Timeout:       time.Duration(v.GetInt("timeout")) * time.Second,
		Listen:        v.GetString("listen"),
		DB:            v.GetString("db"),
		AgentsFile:    v.GetString("agents_file"),
		Verbose:       v.GetBool("verbose"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option values that have a constrained domain.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("config: max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	return nil
}
