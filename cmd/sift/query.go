package main

import (
	"fmt"

	"github.com/brimdata/sift/cli/queryflags"
	"github.com/brimdata/sift/cli/serviceflags"
	"github.com/brimdata/sift/sio/tsvio"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		serviceFlags serviceflags.Flags
		queryFlags   queryflags.Flags
	)
	cmd := &cobra.Command{
		Use:   "query [flags] [query]",
		Short: "run a query and print its rows",
		Long: `
The query command runs a query and writes its rows to standard output as
tab-separated values.  Warnings are written to standard error.

The query text may be given as an argument, with -c, or read from files
with -I.  These are concatenated in command line order.
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
			resp, err := s.Run(ctx, req)
			if err != nil {
				return err
			}
			for _, w := range resp.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			var opts tsvio.WriterOpts
			if queryFlags.Header {
				opts.Header = resp.Names
			}
			w := tsvio.NewWriter(tsvio.NopCloser(cmd.OutOrStdout()), opts)
			for _, row := range resp.Rows {
				if err := w.Write(row); err != nil {
					w.Close()
					return err
				}
			}
			if err := w.Close(); err != nil {
				return err
			}
			queryFlags.PrintStats(cmd.ErrOrStderr(), resp)
			return nil
		},
	}
	goFlags(cmd, serviceFlags.SetFlags, queryFlags.SetFlags)
	return cmd
}
