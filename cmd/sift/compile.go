package main

import (
	"flag"
	"fmt"

	"github.com/brimdata/sift/cli/queryflags"
	"github.com/brimdata/sift/cli/serviceflags"
	"github.com/brimdata/sift/compiler/sfmt"
	"github.com/spf13/cobra"
)

func newCompileCmd() *cobra.Command {
	var (
		serviceFlags serviceflags.Flags
		queryFlags   queryflags.Flags
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "compile [flags] [query]",
		Short: "compile a query and print its execution plan",
		Long: `
The compile command compiles a query without running it and prints the
resulting execution plan, one command per line.  With --json the plan is
printed in the canonical JSON form its cache key is computed from.

This command is mostly useful for understanding how a query is planned
and for checking that two queries compile to the same plan.
`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceFlags.Changed = cmd.Flags().Changed
			text, err := queryFlags.Text(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, cfg, logger, err := serviceFlags.Open(ctx, nil)
			if err != nil {
				return err
			}
			defer logger.Sync()
			req, err := queryFlags.Request(text, cfg.Timezone)
			if err != nil {
				return err
			}
			job, err := s.Compile(ctx, req)
			if err != nil {
				return err
			}
			if !req.NoWarnings {
				for _, w := range job.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
				}
			}
			if asJSON {
				b, err := job.Plan.Canonical()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), sfmt.Plan(job.Plan))
			return nil
		},
	}
	goFlags(cmd, serviceFlags.SetFlags, queryFlags.SetFlags, func(fs *flag.FlagSet) {
		fs.BoolVar(&asJSON, "json", false, "print the plan as canonical JSON")
	})
	return cmd
}
