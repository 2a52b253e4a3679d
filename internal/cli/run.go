package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sluicedata/sluice/internal/config"
	"github.com/sluicedata/sluice/internal/engine"
	"github.com/sluicedata/sluice/internal/history"
	"github.com/sluicedata/sluice/internal/plan"
)

// RunResult reports one executed job.
type RunResult struct {
	Alias      string `json:"alias"`
	Status     string `json:"status"`
	Output     string `json:"output"`
	Format     string `json:"format"`
	WallMillis int64  `json:"wall_millis"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "run <manifest.cue>",
		Short:         "Compile a plan manifest and execute it as one job",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, args[0], cmd)
		},
	}
}

func runRun(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	m, err := LoadManifest(path)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "manifest invalid", Err: err}
	}

	conf := config.Defaults()
	conf.Set(config.KeyFilesystem, opts.Storage)
	conf.Set(config.KeyCoordinator, opts.Coordinator)
	if opts.ClusterConf != "" {
		if err := conf.LoadClusterFile(opts.ClusterConf); err != nil {
			return &ExitError{Code: ExitCommandError, Message: "cluster configuration invalid", Err: err}
		}
	}

	scope := "cli-" + uuid.NewString()
	ids := plan.NewIDGenerator()
	lp, err := BuildPlan(m, ids, scope)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "plan invalid", Err: err}
	}

	eng := engine.NewCluster(engine.Options{Scope: scope, Conf: conf, IDs: ids})
	if err := eng.Init(ctx); err != nil {
		return &ExitError{Code: ExitCommandError, Message: "engine init failed", Err: err}
	}
	defer eng.Close()

	var hist *history.Store
	if opts.History != "" {
		hist, err = history.Open(opts.History)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "history database unavailable", Err: err}
		}
		defer hist.Close()
	}

	pp, err := eng.Compile(lp)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "compilation failed", Err: err}
	}
	formatter.VerboseLog("compiled alias %q: %d physical nodes", m.Alias, pp.Size())

	start := time.Now()
	job, err := eng.Execute(ctx, pp, m.Alias)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "execution failed", Err: err}
	}
	wall := time.Since(start)

	if hist != nil {
		rec := history.Record{
			Scope:          scope,
			Alias:          m.Alias,
			JobName:        m.Alias,
			Status:         job.Status(),
			OutputLocation: job.OutputLocation(),
			OutputFormat:   job.OutputFormat(),
			WallTime:       wall,
		}
		if err := hist.Append(ctx, rec); err != nil {
			formatter.VerboseLog("history append failed: %v", err)
		}
	}

	result := RunResult{
		Alias:      m.Alias,
		Status:     string(job.Status()),
		Output:     job.OutputLocation(),
		Format:     job.OutputFormat(),
		WallMillis: wall.Milliseconds(),
	}
	if err := formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s -> %s (%s, %dms)\n",
			result.Alias, result.Status, result.Output, result.Format, result.WallMillis)
	}); err != nil {
		return err
	}
	if !job.Succeeded() {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("job finished %s", job.Status())}
	}
	return nil
}
