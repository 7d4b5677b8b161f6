// Package cli defines the redthread command tree.
package cli

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/redthread-tools/redthread/internal/config"
)

var (
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "redthread",
	Short:   "Extract the full comment thread of a xiaohongshu post",
	Long:    `Redthread drives a real browser to load a post's dynamically paginated comments, pulls them out of the page's client state, and writes them to disk with their images.`,
	Version: "0.1.0",
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)
	cobra.OnInitialize(initConfig)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// initConfig reads flags and environment, then configures global logging.
func initConfig() {
	cfg, err := config.Load(rootCmd)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load configuration, using defaults")
		cfg = &config.Config{LogLevel: config.DefaultLogLevel}
	}

	if q, _ := rootCmd.PersistentFlags().GetBool("quiet"); q {
		quiet = true
		cfg.LogLevel = "error"
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.JSONLog {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		jsonOutput = true
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// loadConfig re-reads config for a command after flag parsing.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(cmd.Root())
	if err != nil {
		log.Warn().Err(err).Msg("failed to load configuration, using defaults")
		cfg = &config.Config{
			LogLevel:      config.DefaultLogLevel,
			Timeout:       config.DefaultHTTPTimeout,
			MaxIterations: config.DefaultMaxIterations,
			SettleDelay:   config.DefaultSettleDelay,
			OutputDir:     config.DefaultOutputDir,
			ImageWorkers:  config.DefaultImageWorkers,
		}
	}
	return cfg
}
