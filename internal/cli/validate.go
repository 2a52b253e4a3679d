package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sluicedata/sluice/internal/plan"
)

// ValidationSummary reports a well-formed manifest.
type ValidationSummary struct {
	Manifest string `json:"manifest"`
	Alias    string `json:"alias"`
	Nodes    int    `json:"nodes"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <manifest.cue>",
		Short:         "Check that a plan manifest is well formed",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, err := LoadManifest(path)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "manifest invalid", Err: err}
	}
	if _, err := BuildPlan(m, plan.NewIDGenerator(), "validate"); err != nil {
		return &ExitError{Code: ExitFailure, Message: "plan invalid", Err: err}
	}

	summary := ValidationSummary{Manifest: path, Alias: m.Alias, Nodes: len(m.Nodes)}
	return formatter.Emit(summary, func(w io.Writer) {
		fmt.Fprintf(w, "ok: %s (alias %q, %d nodes)\n", path, m.Alias, len(m.Nodes))
	})
}
