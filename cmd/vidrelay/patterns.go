package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwygoda/vidrelay/internal/adapter/pattern"
)

func newPatternsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List supported sites and their extraction flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			registry, err := pattern.Default().WithFlags(cfg.PatternFlags())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFLAGS")
			for _, p := range registry.Patterns() {
				flags := strings.Join(p.Flags, " ")
				if flags == "" {
					flags = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, flags)
			}
			return w.Flush()
		},
	}
}
