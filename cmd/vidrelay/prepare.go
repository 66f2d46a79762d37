package main

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwygoda/vidrelay/internal/adapter/ytdlp"
)

func newPrepareCmd(opts *rootOptions) *cobra.Command {
	var install bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Install or update the yt-dlp binary",
		Long: "Updates the configured yt-dlp in place. When it is missing, or with --install,\n" +
			"the latest release is downloaded to ytdlp.binary, which must then be a file path.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			binary := cfg.YtDlp.Binary

			_, lookErr := exec.LookPath(binary)
			if lookErr == nil && !install {
				status, err := newTool(cfg, logger).Update(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, status)
				return nil
			}

			if !strings.ContainsRune(binary, filepath.Separator) {
				return fmt.Errorf("ytdlp.binary %q is not a file path; set it to where yt-dlp should be installed", binary)
			}
			dest, err := filepath.Abs(binary)
			if err != nil {
				return err
			}
			if err := ytdlp.NewInstaller(cfg.YtDlp.ReleaseURL, logger).Install(ctx, dest); err != nil {
				return err
			}
			version, err := newTool(cfg, logger).Version(ctx)
			if err != nil {
				return fmt.Errorf("installed binary does not run: %w", err)
			}
			fmt.Fprintf(out, "yt-dlp %s installed at %s\n", version, dest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "download the latest release even if yt-dlp is present")
	return cmd
}
