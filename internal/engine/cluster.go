package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sluicedata/sluice/internal/config"
	"github.com/sluicedata/sluice/internal/coordinator"
	"github.com/sluicedata/sluice/internal/format"
	"github.com/sluicedata/sluice/internal/logical"
	"github.com/sluicedata/sluice/internal/physical"
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/provision"
	"github.com/sluicedata/sluice/internal/storage"
	"github.com/sluicedata/sluice/internal/translate"
)

// State is the engine lifecycle phase.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateConnecting    State = "CONNECTING"
	StateReady         State = "READY"
	StateClosed        State = "CLOSED"
)

// MaterializedResult records an alias's most recent execution outcome.
// Re-executing the same alias overwrites the entry.
type MaterializedResult struct {
	Status   coordinator.Status
	Location string
	Format   string
}

// Options configure a ClusterEngine.
type Options struct {
	// Scope is the session identifier fresh sink keys are allocated
	// under.
	Scope string

	// Conf is the engine's configuration bag. Required.
	Conf *config.Bag

	// IDs allocates operator ids. Required; shared with whoever built
	// the logical plan so sink keys never collide.
	IDs *plan.IDGenerator

	// Formats resolves serialization formats. Nil gets the built-ins.
	Formats *format.Registry

	// Provisioner runs the cluster handshake when a provisioning server
	// is configured. May be nil when no handshake is configured.
	Provisioner *provision.Provisioner

	// Logger defaults to slog's default.
	Logger *slog.Logger

	// OpenStorage connects to the filesystem endpoint. Nil opens a local
	// store rooted at the endpoint path.
	OpenStorage func(endpoint string) (storage.Storage, error)

	// DialCoordinator connects to a remote coordinator endpoint. Nil
	// uses the HTTP client.
	DialCoordinator func(ctx context.Context, endpoint string) (coordinator.Client, error)

	// TempLocation generates fresh temporary output locations. Nil uses
	// UUID-suffixed paths under /tmp.
	TempLocation func() string
}

// ClusterEngine is the concrete engine bound to a storage backend and a
// job coordinator. A per-instance mutex serializes calls; concurrent use
// of one engine is safe but unsynchronized work sees states in call order.
type ClusterEngine struct {
	mu    sync.Mutex
	state State

	scope   string
	conf    *config.Bag
	ids     *plan.IDGenerator
	formats *format.Registry
	prov    *provision.Provisioner
	logger  *slog.Logger

	store  storage.Storage
	client coordinator.Client

	// keyMap accumulates logical-root to physical-root mappings from
	// successful compiles; results and physOps are updated only after a
	// successful execute.
	keyMap  map[plan.OperatorKey]plan.OperatorKey
	results map[plan.OperatorKey]MaterializedResult
	physOps map[plan.OperatorKey]physical.Operator

	openStorage     func(endpoint string) (storage.Storage, error)
	dialCoordinator func(ctx context.Context, endpoint string) (coordinator.Client, error)
	tempLocation    func() string
}

var _ Engine = (*ClusterEngine)(nil)

// NewCluster creates an engine in the UNINITIALIZED state.
func NewCluster(opts Options) *ClusterEngine {
	e := &ClusterEngine{
		state:           StateUninitialized,
		scope:           opts.Scope,
		conf:            opts.Conf,
		ids:             opts.IDs,
		formats:         opts.Formats,
		prov:            opts.Provisioner,
		logger:          opts.Logger,
		keyMap:          make(map[plan.OperatorKey]plan.OperatorKey),
		results:         make(map[plan.OperatorKey]MaterializedResult),
		physOps:         make(map[plan.OperatorKey]physical.Operator),
		openStorage:     opts.OpenStorage,
		dialCoordinator: opts.DialCoordinator,
		tempLocation:    opts.TempLocation,
	}
	if e.conf == nil {
		e.conf = config.Defaults()
	}
	if e.ids == nil {
		e.ids = plan.NewIDGenerator()
	}
	if e.formats == nil {
		e.formats = format.NewRegistry()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.openStorage == nil {
		e.openStorage = func(endpoint string) (storage.Storage, error) {
			return storage.OpenLocal(endpoint)
		}
	}
	if e.dialCoordinator == nil {
		e.dialCoordinator = func(ctx context.Context, endpoint string) (coordinator.Client, error) {
			return coordinator.Dial(ctx, endpoint)
		}
	}
	if e.tempLocation == nil {
		e.tempLocation = func() string {
			return "/tmp/sluice-" + uuid.NewString()
		}
	}
	return e
}

// State returns the current lifecycle phase.
func (e *ClusterEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Init resolves the filesystem and coordinator endpoints, connects to
// storage, and dials the coordinator unless the endpoint is local. A
// failed Init leaves the engine UNINITIALIZED and retryable.
func (e *ClusterEngine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateReady:
		return nil
	case StateClosed:
		return newError(ErrCodeState, "init", "engine is closed")
	}
	e.state = StateConnecting

	fsEndpoint, coordEndpoint, err := e.resolveEndpoints(ctx)
	if err != nil {
		e.state = StateUninitialized
		return err
	}

	store, err := e.openStorage(fsEndpoint)
	if err != nil {
		e.state = StateUninitialized
		return &Error{Code: ErrCodeConnection, Op: "init",
			Message: fmt.Sprintf("connect storage at %s: %v", fsEndpoint, err), Cause: err}
	}

	var client coordinator.Client
	if coordEndpoint == config.LocalMode {
		client = coordinator.NewLocalRunner(store, e.formats)
	} else {
		client, err = e.dialCoordinator(ctx, coordEndpoint)
		if err != nil {
			e.state = StateUninitialized
			return &Error{Code: ErrCodeConnection, Op: "init",
				Message: fmt.Sprintf("connect coordinator at %s: %v", coordEndpoint, err), Cause: err}
		}
	}

	e.store = store
	e.client = client
	e.state = StateReady
	e.logger.Info("engine ready",
		"scope", e.scope, "filesystem", fsEndpoint, "coordinator", coordEndpoint)
	return nil
}

// resolveEndpoints applies the resolution priority: provisioning handshake
// when a server is configured, then explicit overrides with default-port
// fixup, then whatever defaults the configuration already carries.
func (e *ClusterEngine) resolveEndpoints(ctx context.Context) (fs, coord string, err error) {
	if server := e.conf.Get(config.KeyProvisionServer); server != "" {
		if e.prov == nil {
			return "", "", newError(ErrCodeConnection, "init",
				"provisioning server %s configured but no provisioner attached", server)
		}
		eps, err := e.prov.Provision(ctx)
		if err != nil {
			return "", "", err
		}
		e.conf.Set(config.KeyFilesystem, eps.Filesystem)
		e.conf.Set(config.KeyCoordinator, eps.Coordinator)
		return eps.Filesystem, eps.Coordinator, nil
	}

	fs = e.conf.Get(config.KeyFilesystem)
	coord = e.conf.Get(config.KeyCoordinator)
	if fs == "" || coord == "" {
		return "", "", newError(ErrCodeConnection, "init",
			"no filesystem or coordinator endpoint configured")
	}
	fs = withDefaultPort(fs, e.conf.Get(config.KeyFilesystemPort))
	if coord != config.LocalMode {
		coord = withDefaultPort(coord, e.conf.Get(config.KeyCoordinatorPort))
	}
	return fs, coord, nil
}

// withDefaultPort appends port to a bare hostname override. Endpoints
// that already carry a port, and path-style local roots, pass through.
func withDefaultPort(endpoint, port string) string {
	if port == "" || strings.Contains(endpoint, ":") || strings.Contains(endpoint, "/") {
		return endpoint
	}
	return endpoint + ":" + port
}

// Close releases connections. Idempotent; a closed engine stays closed.
func (e *ClusterEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return nil
	}
	e.store = nil
	e.client = nil
	e.state = StateClosed
	return nil
}

// Compile translates lp. On success the logical-root to physical-root
// mapping is recorded for materialized-result bookkeeping; on failure the
// engine is untouched.
func (e *ClusterEngine) Compile(lp *logical.Plan) (*physical.Plan, error) {
	res, err := translate.Translate(lp, e.ids)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	for lk, pk := range res.KeyMap {
		e.keyMap[lk] = pk
	}
	e.mu.Unlock()
	return res.Plan, nil
}

// Execute launches pp as one job and blocks until the job is terminal.
//
// The plan's single leaf is inspected: an existing store leaf keeps its
// declared location; otherwise exactly one synthetic store leaf is
// appended, keyed fresh in the engine scope, targeting a new temporary
// location in the default intermediate format. State (materialized
// results, the debug operator table) is updated only after the launch
// returns, so a failed Execute leaves the engine as it was.
func (e *ClusterEngine) Execute(ctx context.Context, pp *physical.Plan, jobName string) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		return nil, newError(ErrCodeState, "execute", "engine is %s, not READY", e.state)
	}
	if pp == nil {
		return nil, newError(ErrCodeExecution, "execute", "no plan to execute")
	}

	leaf, err := pp.Leaf()
	if err != nil {
		return nil, wrapExecution("execute", err)
	}

	var location, formatName string
	if st, ok := leaf.(*physical.Store); ok {
		location, formatName = st.Location, st.Format
	} else {
		location = e.tempLocation()
		formatName = e.formats.Default().Name()
		sink := physical.NewStore(e.ids.NextKey(e.scope), leaf, location, formatName)
		pp.AddAsLeaf(sink)
		e.logger.Info("synthesized output sink",
			"key", sink.Key(), "location", location, "format", formatName)
	}

	status, err := e.client.Launch(ctx, jobName, pp)
	if err != nil {
		return nil, wrapExecution("execute", err)
	}

	for k, op := range pp.Operators() {
		e.physOps[k] = op
	}
	for lk, pk := range e.keyMap {
		if pp.Operator(pk) != nil {
			e.results[lk] = MaterializedResult{Status: status, Location: location, Format: formatName}
		}
	}

	e.logger.Info("job finished", "job", jobName, "status", status, "output", location)
	return NewJob(status, location, formatName), nil
}

// Submit is asynchronous submission. Always unsupported.
func (e *ClusterEngine) Submit(ctx context.Context, pp *physical.Plan, jobName string) (*Job, error) {
	return nil, unsupported("submit")
}

// Configuration returns a snapshot of the configuration bag.
func (e *ClusterEngine) Configuration() map[string]string {
	return e.conf.Snapshot()
}

// UpdateConfiguration merges props over the bag, last writer wins.
func (e *ClusterEngine) UpdateConfiguration(props map[string]string) {
	e.conf.Merge(props)
}

// Statistics is always unsupported.
func (e *ClusterEngine) Statistics() (map[string]string, error) {
	return nil, unsupported("statistics")
}

// RunningJobs is always unsupported.
func (e *ClusterEngine) RunningJobs() ([]*Job, error) {
	return nil, unsupported("running jobs")
}

// ActiveScopes is always unsupported.
func (e *ClusterEngine) ActiveScopes() ([]string, error) {
	return nil, unsupported("active scopes")
}

// ReclaimScope is always unsupported.
func (e *ClusterEngine) ReclaimScope(scope string) error {
	return unsupported("reclaim scope")
}

// MaterializedResultFor returns the cached outcome for a logical alias
// root key.
func (e *ClusterEngine) MaterializedResultFor(key plan.OperatorKey) (MaterializedResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, ok := e.results[key]
	return res, ok
}

// PhysicalOperator returns the debug operator-table entry for key.
func (e *ClusterEngine) PhysicalOperator(key plan.OperatorKey) physical.Operator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.physOps[key]
}

// Explain dumps lp and, when it compiles, its physical translation. It
// reports compilation problems inside the dump instead of failing.
func (e *ClusterEngine) Explain(lp *logical.Plan, w io.Writer) error {
	if lp == nil {
		return newError(ErrCodeExecution, "explain", "no plan to explain")
	}
	fmt.Fprintln(w, "logical plan:")
	lp.Explain(w)
	res, err := translate.Translate(lp, e.ids)
	if err != nil {
		fmt.Fprintf(w, "physical plan: does not compile: %v\n", err)
		return nil
	}
	fmt.Fprintln(w, "physical plan:")
	res.Plan.Explain(w)
	return nil
}
