// Package cli implements the ordzaar command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/ordzaar/internal/app/runtime"
	"github.com/R3E-Network/ordzaar/internal/config"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
}

// Config loads configuration, applying the global flags.
func (o *RootOptions) Config() (*config.Config, error) {
	if o.ConfigFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.ConfigFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	return cfg, nil
}

// Logger builds the process logger for cfg.
func (o *RootOptions) Logger(cfg *config.Config) *logger.Logger {
	return runtime.NewLogger(cfg.Logging)
}

// NewRootCommand creates the root command of the ordzaar CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ordzaar",
		Short:         "Ordinal NFT marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(opts.LogLevel) {
			case "", "trace", "debug", "info", "warn", "warning", "error":
				return nil
			}
			return fmt.Errorf("invalid log level %q", opts.LogLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML configuration file (overrides CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}
