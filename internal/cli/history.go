package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sluicedata/sluice/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Scope string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List executed jobs from the history database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scope, "scope", "", "only list jobs from this scope")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.History == "" {
		return &ExitError{Code: ExitCommandError, Message: "no history database configured (--history)"}
	}
	store, err := history.Open(opts.History)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "history database unavailable", Err: err}
	}
	defer store.Close()

	ctx := cmd.Context()
	var recs []history.Record
	if opts.Scope != "" {
		recs, err = store.ByScope(ctx, opts.Scope)
	} else {
		recs, err = store.All(ctx)
	}
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "history query failed", Err: err}
	}

	return formatter.Emit(recs, func(w io.Writer) {
		if len(recs) == 0 {
			fmt.Fprintln(w, "no jobs recorded")
			return
		}
		for _, r := range recs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%dms\n",
				r.ID, r.Scope, r.Alias, r.Status, r.OutputLocation, r.OutputFormat, r.WallTime.Milliseconds())
		}
	})
}
