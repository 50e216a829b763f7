// Package cmd implements the listener command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedlabs/relay-listener/internal/config"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCmd builds the listener command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "listener",
		Short: "Follow a relay channel and log its messages",
		Long: `listener keeps one connection open to a message relay, asks for recent
history every time it connects, logs every message it receives and
reconnects after any disconnect.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default: built-in settings)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override log.format: text or json")

	root.AddCommand(
		newRunCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// load reads the config file, applies flag overrides and validates.
func (o *options) load() (*config.ListenerConfig, error) {
	cfg, err := config.LoadWithDefaults(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
