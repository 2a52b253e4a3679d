// Package cli implements the sluice command line: loading CUE plan
// manifests, compiling and running them against a local or remote
// cluster, and inspecting the job history.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Storage is the storage root for local execution.
	Storage string

	// Coordinator is the job coordinator endpoint; "local" runs jobs in
	// process.
	Coordinator string

	// ClusterConf is an optional YAML cluster configuration file merged
	// over the defaults.
	ClusterConf string

	// History is the path of the SQLite job-history database. Empty
	// disables history.
	History string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sluice CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sluice",
		Short: "Sluice data-flow query engine",
		Long:  "Compile and run data-flow plans against a local or distributed cluster.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Storage, "storage", ".", "storage root for local execution")
	cmd.PersistentFlags().StringVar(&opts.Coordinator, "coordinator", "local", "job coordinator endpoint, or \"local\"")
	cmd.PersistentFlags().StringVar(&opts.ClusterConf, "cluster-conf", "", "YAML cluster configuration file")
	cmd.PersistentFlags().StringVar(&opts.History, "history", "", "job history database path")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
