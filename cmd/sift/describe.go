package main

import (
	"encoding/json"

	"github.com/brimdata/sift/cli/queryflags"
	"github.com/brimdata/sift/cli/serviceflags"
	"github.com/spf13/cobra"
)

func newDescribeCmd() *cobra.Command {
	var (
		serviceFlags serviceflags.Flags
		queryFlags   queryflags.Flags
	)
	cmd := &cobra.Command{
		Use:   "describe [flags] [query]",
		Short: "describe the datasets, shards, and cache key of a query",
		Long: `
The describe command compiles a query and reports, as JSON, the time
range and shards of each dataset it reads, the groupings keying its
rows, its output columns, and its cache key.  The query is not run.
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
			info, err := s.Describe(ctx, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	goFlags(cmd, serviceFlags.SetFlags, queryFlags.SetFlags)
	return cmd
}
