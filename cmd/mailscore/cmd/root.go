package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/config"
	"github.com/solatis/mailscore/internal/core/logger"
)

// Version is the mailscore release.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	cfg     *config.Config
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "mailscore",
	Short: "Pattern-based email scoring",
	Long: `mailscore compiles mutt-style patterns, scores Maildir messages with an
ordered rule list and applies delete/read/flag thresholds.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
			logFile = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, text)")
}

// setup loads the configuration with changed flags on top and initializes
// the global logger.
func setup(cmd *cobra.Command, args []string) error {
	var overrides []config.Override
	flags := cmd.Flags()
	if flags.Changed("db-url") {
		overrides = append(overrides, config.Override{Key: "database.url", Value: dbURL})
	}
	if flags.Changed("log-level") {
		overrides = append(overrides, config.Override{Key: "logging.level", Value: logLevel})
	}
	if flags.Changed("log-format") {
		overrides = append(overrides, config.Override{Key: "logging.format", Value: logFormat})
	}

	c, err := config.LoadConfigWithOverrides(configFile, overrides...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = c

	f, err := logger.Initialize(cfg.Logging)
	if err != nil {
		return err
	}
	logFile = f
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
