package provision

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/sluicedata/sluice/internal/config"
)

// Endpoints is the discovered pair the engine connects to.
type Endpoints struct {
	Filesystem  string // host:port
	Coordinator string // host:port
}

// Resolver performs the forward address resolution used as a reachability
// check on discovered hosts.
type Resolver func(ctx context.Context, host string) error

// NetResolver checks hosts against the system resolver.
func NetResolver(ctx context.Context, host string) error {
	_, err := net.DefaultResolver.LookupHost(ctx, host)
	return err
}

// Provisioner runs the handshake at most once per process and caches the
// result. The check-then-populate sequence is guarded by a mutex, so
// concurrent initializations share one handshake run and the first
// success wins permanently: no re-provisioning, no expiry.
type Provisioner struct {
	mu     sync.Mutex
	cached *Endpoints

	transport Transport
	conf      *config.Bag
	resolver  Resolver
	logger    *slog.Logger

	// loadConf merges a discovered cluster-configuration file into conf.
	// Overridable for tests.
	loadConf func(path string) error
}

// New creates a provisioner over transport and conf. A nil resolver uses
// the system resolver; a nil logger uses slog's default.
func New(transport Transport, conf *config.Bag, resolver Resolver, logger *slog.Logger) *Provisioner {
	if resolver == nil {
		resolver = NetResolver
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		transport: transport,
		conf:      conf,
		resolver:  resolver,
		logger:    logger,
		loadConf:  conf.LoadClusterFile,
	}
}

// Provision returns the discovered endpoints, running the handshake on
// first use. Later calls return the cached pair without opening a stream.
func (p *Provisioner) Provision(ctx context.Context) (Endpoints, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached, nil
	}

	eps, err := p.run(ctx)
	if err != nil {
		return Endpoints{}, err
	}
	p.cached = &eps
	return eps, nil
}

func (p *Provisioner) run(ctx context.Context) (Endpoints, error) {
	command := p.conf.Get(config.KeyProvisionCommand)
	if command == "" {
		return Endpoints{}, newError(ErrCodeIO, "no provisioning command configured")
	}

	p.logger.Info("running cluster-provisioning handshake", "command", command)
	stream, err := p.transport.Open(ctx, command)
	if err != nil {
		return Endpoints{}, newError(ErrCodeIO, "open provisioning stream: %v", err).withCause(err)
	}
	defer stream.Close()

	fields, err := ParseStream(stream, p.markers(), p.logger)
	if err != nil {
		return Endpoints{}, err
	}

	// A stream that closed before the coordinator endpoint was captured
	// is an incomplete handshake, never a nil-valued endpoint pair.
	if fields.Coordinator == "" || fields.Filesystem == "" {
		return Endpoints{}, newError(ErrCodeIncomplete,
			"incomplete handshake: stream closed before endpoints were captured (filesystem=%q coordinator=%q)",
			fields.Filesystem, fields.Coordinator)
	}

	domain := p.conf.Get(config.KeyProvisionDomain)
	fs, err := p.fixUpDomain(ctx, fields.Filesystem, domain)
	if err != nil {
		return Endpoints{}, err
	}
	coord, err := p.fixUpDomain(ctx, fields.Coordinator, domain)
	if err != nil {
		return Endpoints{}, err
	}

	// The engine cannot safely run against a provisioned cluster without
	// its configuration; absence is a hard failure.
	if fields.ClusterConf == "" {
		return Endpoints{}, newError(ErrCodeMissingConf, "missing cluster configuration")
	}
	if err := p.loadConf(fields.ClusterConf); err != nil {
		return Endpoints{}, newError(ErrCodeMissingConf,
			"load cluster configuration %s: %v", fields.ClusterConf, err).withCause(err)
	}

	return Endpoints{Filesystem: fs, Coordinator: coord}, nil
}

func (p *Provisioner) markers() Markers {
	def := DefaultMarkers()
	return Markers{
		FilesystemUI:  p.conf.GetDefault(config.KeyMarkerFilesystemUI, def.FilesystemUI),
		Filesystem:    p.conf.GetDefault(config.KeyMarkerFilesystem, def.Filesystem),
		CoordinatorUI: p.conf.GetDefault(config.KeyMarkerCoordinatorUI, def.CoordinatorUI),
		Coordinator:   p.conf.GetDefault(config.KeyMarkerCoordinator, def.Coordinator),
		ClusterConf:   p.conf.GetDefault(config.KeyMarkerClusterConf, def.ClusterConf),
	}
}

// fixUpDomain appends the default domain suffix to a dotless host and
// resolves it as a reachability check.
func (p *Provisioner) fixUpDomain(ctx context.Context, hostPort, domain string) (string, error) {
	host, port, ok := strings.Cut(hostPort, ":")
	if !ok || host == "" || port == "" {
		return "", newError(ErrCodeMalformed, "endpoint %q is not host:port", hostPort)
	}
	if !strings.Contains(host, ".") && domain != "" {
		host = host + "." + domain
	}
	if err := p.resolver(ctx, host); err != nil {
		return "", newError(ErrCodeResolve, "resolve %s: %v", host, err).withCause(err)
	}
	return host + ":" + port, nil
}
