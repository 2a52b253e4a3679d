package engine

import (
	"context"
	"io"

	"github.com/sluicedata/sluice/internal/logical"
	"github.com/sluicedata/sluice/internal/physical"
)

// Engine compiles logical plans and runs physical plans as jobs.
//
// The introspection surface (Statistics, RunningJobs, ActiveScopes,
// ReclaimScope) and asynchronous submission are part of the contract but
// deliberately unimplemented here; they fail with an unsupported-operation
// error rather than no-opping.
type Engine interface {
	// Init resolves endpoints and opens connections. The engine is
	// unusable before Init succeeds.
	Init(ctx context.Context) error

	// Close releases connections. Idempotent.
	Close() error

	// Compile translates lp into a physical plan. A nil plan is a
	// compilation error. A failed Compile leaves engine state unchanged.
	Compile(lp *logical.Plan) (*physical.Plan, error)

	// Execute runs pp as one job under jobName and blocks until the job
	// is terminal. A failed Execute leaves engine state unchanged.
	Execute(ctx context.Context, pp *physical.Plan, jobName string) (*Job, error)

	// Submit would launch without blocking. Always unsupported.
	Submit(ctx context.Context, pp *physical.Plan, jobName string) (*Job, error)

	// Configuration returns a snapshot of the engine's configuration.
	Configuration() map[string]string

	// UpdateConfiguration merges props over the configuration. Overwrite
	// on key match, insert otherwise; unknown keys are not validated.
	UpdateConfiguration(props map[string]string)

	// Statistics, RunningJobs, ActiveScopes and ReclaimScope are always
	// unsupported.
	Statistics() (map[string]string, error)
	RunningJobs() ([]*Job, error)
	ActiveScopes() ([]string, error)
	ReclaimScope(scope string) error

	// Explain writes a best-effort diagnostic dump of lp. It never fails
	// on a well-formed plan; compilation problems are reported in the
	// dump itself.
	Explain(lp *logical.Plan, w io.Writer) error
}
