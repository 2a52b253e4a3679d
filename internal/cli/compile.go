package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/translate"
)

// CompileSummary reports the outcome of a compilation.
type CompileSummary struct {
	Alias         string `json:"alias"`
	LogicalNodes  int    `json:"logical_nodes"`
	PhysicalNodes int    `json:"physical_nodes"`
	PhysicalRoot  string `json:"physical_root"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "compile <manifest.cue>",
		Short:         "Compile a plan manifest to a physical plan",
		Long:          "Load a CUE plan manifest, build the logical plan, and translate it to a physical plan without executing anything.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompilation(rootOpts, args[0], cmd)
		},
	}
}

func runCompilation(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, err := LoadManifest(path)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "manifest invalid", Err: err}
	}
	formatter.VerboseLog("loaded %s: alias %q, %d nodes", path, m.Alias, len(m.Nodes))

	ids := plan.NewIDGenerator()
	lp, err := BuildPlan(m, ids, m.Alias)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "plan invalid", Err: err}
	}

	res, err := translate.Translate(lp, ids)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "compilation failed", Err: err}
	}

	root := lp.Alias(m.Alias)
	summary := CompileSummary{
		Alias:         m.Alias,
		LogicalNodes:  lp.Size(),
		PhysicalNodes: res.Plan.Size(),
		PhysicalRoot:  res.KeyMap[root.Key()].String(),
	}
	return formatter.Emit(summary, func(w io.Writer) {
		fmt.Fprintf(w, "alias %q: %d logical nodes -> %d physical nodes (root %s)\n",
			summary.Alias, summary.LogicalNodes, summary.PhysicalNodes, summary.PhysicalRoot)
	})
}
