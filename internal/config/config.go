// Package config resolves runtime settings from defaults, REDTHREAD_*
// environment variables, and CLI flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values.
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Browser
	UserAgent string
	Proxy     string

	// Pagination
	Timeout       time.Duration
	MaxIterations int
	SettleDelay   time.Duration

	// Output
	OutputDir    string
	ImageWorkers int
}

// Load combines defaults, environment variables, and the command's flags.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:      DefaultLogLevel,
		JSONLog:       DefaultJSONLog,
		UserAgent:     DefaultUserAgent,
		Timeout:       DefaultHTTPTimeout,
		MaxIterations: DefaultMaxIterations,
		SettleDelay:   DefaultSettleDelay,
		OutputDir:     DefaultOutputDir,
		ImageWorkers:  DefaultImageWorkers,
	}

	if v := os.Getenv("REDTHREAD_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("REDTHREAD_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("REDTHREAD_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}

	if cmd != nil {
		if f := cmd.Flags().Lookup("user-agent"); f != nil && f.Value.String() != "" {
			cfg.UserAgent = f.Value.String()
		}
		if f := cmd.Flags().Lookup("proxy"); f != nil && f.Value.String() != "" {
			cfg.Proxy = f.Value.String()
		}
		if f := cmd.Flags().Lookup("timeout"); f != nil && f.Value.String() != "" {
			if d, err := time.ParseDuration(f.Value.String()); err == nil {
				cfg.Timeout = d
			}
		}
		if f := cmd.Flags().Lookup("json"); f != nil && f.Value.String() == "true" {
			cfg.JSONLog = true
		}
		if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
			cfg.LogLevel = "debug"
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
