package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cwygoda/vidrelay/internal/adapter/pattern"
	"github.com/cwygoda/vidrelay/internal/adapter/workspace"
	"github.com/cwygoda/vidrelay/internal/domain"
)

func newFetchCmd(opts *rootOptions) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download one supported URL to a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			registry, err := pattern.Default().WithFlags(cfg.PatternFlags())
			if err != nil {
				return err
			}
			p := registry.Match(args[0])
			if p == nil {
				return fmt.Errorf("unsupported URL: %s", args[0])
			}

			dir, err := filepath.Abs(outDir)
			if err != nil {
				return err
			}
			ws, err := workspace.New(dir, logger)
			if err != nil {
				return err
			}
			rc := runnerConfig(cfg, nil)
			rc.Limiter = nil
			runner := domain.NewRunner(newTool(cfg, logger), ws, rc, logger)

			outcome := runner.Run(cmd.Context(), domain.Match{URL: args[0], Pattern: p})
			if outcome.Err != nil {
				return outcome.Err
			}

			caption := outcome.Caption
			if caption == "" {
				caption = domain.MetadataUnavailable
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pattern: %s\n", p.ID)
			fmt.Fprintf(out, "file:    %s\n", outcome.Job.FilePath())
			fmt.Fprintf(out, "caption: %s\n", caption)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "directory to save the video in")
	return cmd
}
