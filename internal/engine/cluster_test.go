package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicedata/sluice/internal/config"
	"github.com/sluicedata/sluice/internal/coordinator"
	"github.com/sluicedata/sluice/internal/logical"
	"github.com/sluicedata/sluice/internal/physical"
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/provision"
	"github.com/sluicedata/sluice/internal/row"
	"github.com/sluicedata/sluice/internal/schema"
	"github.com/sluicedata/sluice/internal/storage"
	"github.com/sluicedata/sluice/internal/translate"
)

// fakeCoordinator records launches and answers with a fixed status.
type fakeCoordinator struct {
	mu       sync.Mutex
	launches []string
	plans    []*physical.Plan
	status   coordinator.Status
	err      error
}

func (f *fakeCoordinator) Launch(ctx context.Context, jobName string, p *physical.Plan) (coordinator.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.launches = append(f.launches, jobName)
	f.plans = append(f.plans, p)
	return f.status, nil
}

type fakeStorage struct{ storage.Storage }

func testEngine(t *testing.T, coord coordinator.Client) (*ClusterEngine, *plan.IDGenerator) {
	t.Helper()
	conf := config.Defaults()
	conf.Set(config.KeyFilesystem, "/data")
	conf.Set(config.KeyCoordinator, "jobs.example.org:50020")

	ids := plan.NewIDGenerator()
	seq := 0
	e := NewCluster(Options{
		Scope:  "s",
		Conf:   conf,
		IDs:    ids,
		Logger: slog.New(slog.DiscardHandler),
		OpenStorage: func(endpoint string) (storage.Storage, error) {
			return fakeStorage{}, nil
		},
		DialCoordinator: func(ctx context.Context, endpoint string) (coordinator.Client, error) {
			return coord, nil
		},
		TempLocation: func() string {
			seq++
			return fmt.Sprintf("/tmp/out-%d", seq)
		},
	})
	require.NoError(t, e.Init(context.Background()))
	require.Equal(t, StateReady, e.State())
	return e, ids
}

// filterPlan builds load -> filter(age >= 21) -> store bound to alias
// "adults". withStore controls whether the sink is present.
func filterPlan(ids *plan.IDGenerator, withStore bool) (*logical.Plan, plan.OperatorKey) {
	sc := func() plan.OperatorKey { return ids.NextKey("s") }
	declared := schema.New(
		schema.Field{Name: "name", Type: schema.TypeString},
		schema.Field{Name: "age", Type: schema.TypeInt},
	)
	load := logical.NewLoad(sc(), "/data/people", "text", declared)
	col := logical.NewColumn(sc(), load, "age")
	lim := logical.NewConst(sc(), row.Int(21))
	cond := logical.NewBinary(sc(), logical.OpGe, col, lim)
	filter := logical.NewFilter(sc(), load, cond)

	lp := logical.NewPlan()
	var root logical.Operator = filter
	if withStore {
		root = logical.NewStore(sc(), filter, "/data/adults", "text")
	}
	lp.Add(root)
	lp.Bind("adults", root)
	return lp, root.Key()
}

func TestInitFailsWithoutEndpoints(t *testing.T) {
	e := NewCluster(Options{Scope: "s", Conf: config.Defaults(),
		Logger: slog.New(slog.DiscardHandler)})
	err := e.Init(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnection(err))
	assert.Equal(t, StateUninitialized, e.State())
}

func TestInitStorageFailureIsConnectionError(t *testing.T) {
	conf := config.Defaults()
	conf.Set(config.KeyFilesystem, "/data")
	conf.Set(config.KeyCoordinator, config.LocalMode)
	e := NewCluster(Options{Scope: "s", Conf: conf,
		Logger: slog.New(slog.DiscardHandler),
		OpenStorage: func(endpoint string) (storage.Storage, error) {
			return nil, errors.New("mount failed")
		}})

	err := e.Init(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnection(err))
	assert.Equal(t, StateUninitialized, e.State(), "engine must not reach READY")
}

func TestInitCoordinatorFailureIsConnectionError(t *testing.T) {
	conf := config.Defaults()
	conf.Set(config.KeyFilesystem, "/data")
	conf.Set(config.KeyCoordinator, "jobs.example.org")
	e := NewCluster(Options{Scope: "s", Conf: conf,
		Logger: slog.New(slog.DiscardHandler),
		OpenStorage: func(endpoint string) (storage.Storage, error) {
			return fakeStorage{}, nil
		},
		DialCoordinator: func(ctx context.Context, endpoint string) (coordinator.Client, error) {
			return nil, errors.New("refused")
		}})

	err := e.Init(context.Background())
	assert.True(t, IsConnection(err))
	assert.Equal(t, StateUninitialized, e.State())
}

func TestInitAppendsDefaultPorts(t *testing.T) {
	conf := config.Defaults()
	conf.Set(config.KeyFilesystem, "fs.example.org")
	conf.Set(config.KeyCoordinator, "jobs.example.org")

	var gotFS, gotCoord string
	e := NewCluster(Options{Scope: "s", Conf: conf,
		Logger: slog.New(slog.DiscardHandler),
		OpenStorage: func(endpoint string) (storage.Storage, error) {
			gotFS = endpoint
			return fakeStorage{}, nil
		},
		DialCoordinator: func(ctx context.Context, endpoint string) (coordinator.Client, error) {
			gotCoord = endpoint
			return &fakeCoordinator{status: coordinator.StatusCompleted}, nil
		}})

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, "fs.example.org:8020", gotFS)
	assert.Equal(t, "jobs.example.org:50020", gotCoord)
}

// streamTransport replays a canned handshake stream.
type streamTransport struct{ stream string }

func (s streamTransport) Open(ctx context.Context, command string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.stream)), nil
}

func TestInitAdoptsProvisionedEndpoints(t *testing.T) {
	confFile := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(confFile, []byte("queue: batch\n"), 0o644))

	conf := config.Defaults()
	conf.Set(config.KeyProvisionServer, "local")
	conf.Set(config.KeyProvisionCommand, "start-cluster")

	stream := "hdfs:fs.example.org:8020\nhadoopConf:" + confFile + "\nmapred:jobs.example.org:50020\n"
	prov := provision.New(streamTransport{stream}, conf,
		func(ctx context.Context, host string) error { return nil },
		slog.New(slog.DiscardHandler))

	var gotFS, gotCoord string
	e := NewCluster(Options{Scope: "s", Conf: conf, Provisioner: prov,
		Logger: slog.New(slog.DiscardHandler),
		OpenStorage: func(endpoint string) (storage.Storage, error) {
			gotFS = endpoint
			return fakeStorage{}, nil
		},
		DialCoordinator: func(ctx context.Context, endpoint string) (coordinator.Client, error) {
			gotCoord = endpoint
			return &fakeCoordinator{status: coordinator.StatusCompleted}, nil
		}})

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, "fs.example.org:8020", gotFS)
	assert.Equal(t, "jobs.example.org:50020", gotCoord)
	assert.Equal(t, "batch", conf.Get("queue"), "discovered cluster configuration merged")
	assert.Equal(t, "fs.example.org:8020", conf.Get(config.KeyFilesystem))
}

func TestInitProvisioningFailurePassesThrough(t *testing.T) {
	conf := config.Defaults()
	conf.Set(config.KeyProvisionServer, "local")
	conf.Set(config.KeyProvisionCommand, "start-cluster")

	// Stream closes before the coordinator endpoint appears.
	prov := provision.New(streamTransport{"hdfs:fs.example.org:8020\n"}, conf,
		func(ctx context.Context, host string) error { return nil },
		slog.New(slog.DiscardHandler))

	e := NewCluster(Options{Scope: "s", Conf: conf, Provisioner: prov,
		Logger: slog.New(slog.DiscardHandler)})
	err := e.Init(context.Background())
	require.Error(t, err)
	var pe *provision.Error
	require.ErrorAs(t, err, &pe, "provisioning errors cross Init unchanged")
	assert.Equal(t, provision.ErrCodeIncomplete, pe.Code)
	assert.Equal(t, StateUninitialized, e.State())
}

func TestInitKeepsExplicitPorts(t *testing.T) {
	assert.Equal(t, "h:9", withDefaultPort("h:9", "50020"))
	assert.Equal(t, "/data/root", withDefaultPort("/data/root", "8020"))
	assert.Equal(t, "h:50020", withDefaultPort("h", "50020"))
}

func TestCompileNilPlan(t *testing.T) {
	e, _ := testEngine(t, &fakeCoordinator{status: coordinator.StatusCompleted})
	_, err := e.Compile(nil)
	require.Error(t, err)
	assert.True(t, translate.IsCompileError(err))
}

func TestExecuteReusesExistingStoreLeaf(t *testing.T) {
	coord := &fakeCoordinator{status: coordinator.StatusCompleted}
	e, ids := testEngine(t, coord)
	lp, _ := filterPlan(ids, true)

	pp, err := e.Compile(lp)
	require.NoError(t, err)
	before := pp.Size()

	job, err := e.Execute(context.Background(), pp, "adults-job")
	require.NoError(t, err)
	assert.Equal(t, "/data/adults", job.OutputLocation())
	assert.Equal(t, "text", job.OutputFormat())
	assert.True(t, job.Succeeded())
	assert.Equal(t, before, pp.Size(), "store leaf must be reused, not duplicated")
	assert.Equal(t, []string{"adults-job"}, coord.launches)
}

func TestExecuteSynthesizesSinkLeaf(t *testing.T) {
	coord := &fakeCoordinator{status: coordinator.StatusCompleted}
	e, ids := testEngine(t, coord)
	lp, _ := filterPlan(ids, false)

	pp, err := e.Compile(lp)
	require.NoError(t, err)
	before := pp.Size()

	job, err := e.Execute(context.Background(), pp, "adults-job")
	require.NoError(t, err)
	assert.Equal(t, before+1, pp.Size(), "exactly one synthetic sink")
	assert.Equal(t, "/tmp/out-1", job.OutputLocation())
	assert.Equal(t, "rows", job.OutputFormat(), "synthetic sink uses the default intermediate format")

	leaf, err := pp.Leaf()
	require.NoError(t, err)
	sink, ok := leaf.(*physical.Store)
	require.True(t, ok)
	assert.Equal(t, "/tmp/out-1", sink.Location)
}

func TestExecuteTwiceUsesDistinctTempLocations(t *testing.T) {
	coord := &fakeCoordinator{status: coordinator.StatusCompleted}
	e, ids := testEngine(t, coord)

	lp1, _ := filterPlan(ids, false)
	pp1, err := e.Compile(lp1)
	require.NoError(t, err)
	job1, err := e.Execute(context.Background(), pp1, "first")
	require.NoError(t, err)

	lp2, _ := filterPlan(ids, false)
	pp2, err := e.Compile(lp2)
	require.NoError(t, err)
	job2, err := e.Execute(context.Background(), pp2, "second")
	require.NoError(t, err)

	assert.NotEqual(t, job1.OutputLocation(), job2.OutputLocation())
}

func TestExecuteRecordsMaterializedResult(t *testing.T) {
	coord := &fakeCoordinator{status: coordinator.StatusCompleted}
	e, ids := testEngine(t, coord)
	lp, rootKey := filterPlan(ids, true)

	pp, err := e.Compile(lp)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), pp, "adults-job")
	require.NoError(t, err)

	res, ok := e.MaterializedResultFor(rootKey)
	require.True(t, ok)
	assert.Equal(t, coordinator.StatusCompleted, res.Status)
	assert.Equal(t, "/data/adults", res.Location)

	// Re-execution overwrites, never accumulates.
	lp2, rootKey2 := filterPlan(ids, false)
	require.Equal(t, rootKey.Scope, rootKey2.Scope)
	pp2, err := e.Compile(lp2)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), pp2, "again")
	require.NoError(t, err)
	res2, ok := e.MaterializedResultFor(rootKey2)
	require.True(t, ok)
	assert.Equal(t, "/tmp/out-1", res2.Location)
}

func TestExecuteUpdatesOperatorTable(t *testing.T) {
	coord := &fakeCoordinator{status: coordinator.StatusCompleted}
	e, ids := testEngine(t, coord)
	lp, _ := filterPlan(ids, true)

	pp, err := e.Compile(lp)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), pp, "adults-job")
	require.NoError(t, err)

	leaf, err := pp.Leaf()
	require.NoError(t, err)
	assert.Same(t, leaf, e.PhysicalOperator(leaf.Key()))
}

func TestExecuteFailureLeavesStateUntouched(t *testing.T) {
	coord := &fakeCoordinator{err: errors.New("cluster down")}
	e, ids := testEngine(t, coord)
	lp, rootKey := filterPlan(ids, true)

	pp, err := e.Compile(lp)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), pp, "adults-job")
	require.Error(t, err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeExecution, ee.Code)
	assert.ErrorContains(t, err, "cluster down")

	_, ok := e.MaterializedResultFor(rootKey)
	assert.False(t, ok, "failed execute must not record a result")
	leaf, _ := pp.Leaf()
	assert.Nil(t, e.PhysicalOperator(leaf.Key()))
}

func TestExecuteBeforeInit(t *testing.T) {
	e := NewCluster(Options{Scope: "s", Conf: config.Defaults(),
		Logger: slog.New(slog.DiscardHandler)})
	_, err := e.Execute(context.Background(), physical.NewPlan(), "job")
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeState, ee.Code)
}

func TestUnsupportedOperations(t *testing.T) {
	e, _ := testEngine(t, &fakeCoordinator{status: coordinator.StatusCompleted})

	_, err := e.Submit(context.Background(), physical.NewPlan(), "job")
	assert.True(t, IsUnsupported(err))
	_, err = e.Statistics()
	assert.True(t, IsUnsupported(err))
	_, err = e.RunningJobs()
	assert.True(t, IsUnsupported(err))
	_, err = e.ActiveScopes()
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsUnsupported(e.ReclaimScope("s")))
}

func TestConfigurationMerge(t *testing.T) {
	e, _ := testEngine(t, &fakeCoordinator{status: coordinator.StatusCompleted})

	e.UpdateConfiguration(map[string]string{"queue": "batch", config.KeyProvisionDomain: "corp.net"})
	got := e.Configuration()
	assert.Equal(t, "batch", got["queue"])
	assert.Equal(t, "corp.net", got[config.KeyProvisionDomain])

	e.UpdateConfiguration(map[string]string{"queue": "interactive"})
	assert.Equal(t, "interactive", e.Configuration()["queue"], "last writer wins")
}

func TestCloseIsIdempotent(t *testing.T) {
	e, _ := testEngine(t, &fakeCoordinator{status: coordinator.StatusCompleted})
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, StateClosed, e.State())

	err := e.Init(context.Background())
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeState, ee.Code)
}

func TestExplainNeverFailsOnWellFormedPlan(t *testing.T) {
	e, ids := testEngine(t, &fakeCoordinator{status: coordinator.StatusCompleted})
	lp, _ := filterPlan(ids, true)

	var buf strings.Builder
	require.NoError(t, e.Explain(lp, &buf))
	out := buf.String()
	assert.Contains(t, out, "logical plan:")
	assert.Contains(t, out, "physical plan:")
	assert.Contains(t, out, "Store")
}

func TestExplainReportsCompileProblemInDump(t *testing.T) {
	e, ids := testEngine(t, &fakeCoordinator{status: coordinator.StatusCompleted})

	// A column referencing a field the load does not declare cannot be
	// translated, but explain still succeeds.
	sc := func() plan.OperatorKey { return ids.NextKey("s") }
	load := logical.NewLoad(sc(), "/data/people", "text",
		schema.New(schema.Field{Name: "name", Type: schema.TypeString}))
	col := logical.NewColumn(sc(), load, "missing")
	cond := logical.NewBinary(sc(), logical.OpEq, col, logical.NewConst(sc(), row.String("x")))
	filter := logical.NewFilter(sc(), load, cond)
	lp := logical.NewPlan()
	lp.Add(filter)
	lp.Bind("broken", filter)

	var buf strings.Builder
	require.NoError(t, e.Explain(lp, &buf))
	assert.Contains(t, buf.String(), "does not compile")
}
