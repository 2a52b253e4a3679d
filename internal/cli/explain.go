package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/translate"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "explain <manifest.cue>",
		Short:         "Dump the logical and physical plans of a manifest",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}
}

func runExplain(opts *RootOptions, path string, cmd *cobra.Command) error {
	m, err := LoadManifest(path)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "manifest invalid", Err: err}
	}
	ids := plan.NewIDGenerator()
	lp, err := BuildPlan(m, ids, m.Alias)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "plan invalid", Err: err}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "logical plan:")
	lp.Explain(w)

	res, err := translate.Translate(lp, ids)
	if err != nil {
		fmt.Fprintf(w, "physical plan: does not compile: %v\n", err)
		return nil
	}
	fmt.Fprintln(w, "physical plan:")
	res.Plan.Explain(w)
	return nil
}
