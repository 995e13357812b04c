package main

import (
	"flag"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sift",
		Short: "compile and run analytic queries over time-sharded datasets",
		Long: `
The "sift" command compiles IQL queries into execution plans, computes
the cache key of each plan, and runs the plan against an index of
time-sharded documents.  Results are written as tab-separated rows,
one key column per GROUP BY element followed by one column per SELECT
expression.

The datasets queried are described by a YAML field catalog (--catalog)
and their documents are loaded from YAML (--data).  Both may instead be
given in a service config file (--config).  The --demo flag queries the
built-in "organic" dataset.

Flags given on the command line override the config file.
`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newQueryCmd(), newCompileCmd(), newDescribeCmd())
	return root
}

// goFlags mounts the flag set built by setFlags onto cmd.
func goFlags(cmd *cobra.Command, setFlags ...func(*flag.FlagSet)) {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	for _, set := range setFlags {
		set(fs)
	}
	cmd.Flags().AddGoFlagSet(fs)
}
