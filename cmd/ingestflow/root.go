package main

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/ingestflow/driver"
	"github.com/randalmurphal/ingestflow/lifecycle"
)

type rootFlags struct {
	config   string
	debug    bool
	listOnly bool
	pattern  string
	states   []string
	verbose  bool
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "ingestflow",
		Short:         "Move staged tarballs through review and ingestion",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return run(cmd.Context(), flags, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "ingestflow.yaml", "Configuration file path")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "Log at debug level")
	cmd.Flags().BoolVarP(&flags.listOnly, "list-only", "l", false, "Only list tarballs, change nothing")
	cmd.Flags().StringVarP(&flags.pattern, "pattern", "p", "", "Only process tarballs whose key matches this regular expression from the start")
	cmd.Flags().StringSliceVarP(&flags.states, "state", "s", nil, "Only process tarballs in these states (repeatable)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log every tarball record before processing it")

	return cmd
}

// options turns the flags into driver options.
func (f rootFlags) options() (driver.Options, error) {
	opts := driver.Options{ListOnly: f.listOnly, Verbose: f.verbose}

	for _, name := range f.states {
		state, err := lifecycle.ParseState(name)
		if err != nil {
			return opts, err
		}
		opts.States = append(opts.States, state)
	}

	pattern, err := driver.CompilePattern(f.pattern)
	if err != nil {
		return opts, err
	}
	opts.Pattern = pattern
	return opts, nil
}
