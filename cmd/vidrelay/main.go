package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwygoda/vidrelay/internal/config"
)

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "vidrelay",
		Short:         "Relay videos from social media links posted in Telegram chats",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./"+config.DefaultConfigFile+" if present)")
	flags.StringVar(&opts.envFile, "env-file", "", "env file (default ./"+config.DefaultEnvFile+" if present)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "send progress and failure notices to the chat")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(opts), newFetchCmd(opts), newPatternsCmd(opts), newPrepareCmd(opts))
	return root
}

// load reads the configuration and applies command-line overrides.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return cfg, nil, err
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Relay.Verbose = o.verbose
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return cfg, nil, err
		}
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
