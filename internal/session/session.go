// Package session is the client-facing front end: it mints the scope that
// identifies one client's operator keys, keeps the alias table, and turns
// alias-level requests (store, explain) into engine calls. It also exposes
// the storage utility surface (file sizes, listings, renames) clients
// expect from a query shell.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/sluicedata/sluice/internal/config"
	"github.com/sluicedata/sluice/internal/engine"
	"github.com/sluicedata/sluice/internal/history"
	"github.com/sluicedata/sluice/internal/logical"
	"github.com/sluicedata/sluice/internal/plan"
	"github.com/sluicedata/sluice/internal/storage"
)

// Error is a session-level failure.
type Error struct {
	Op      string
	Alias   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Alias != "" {
		return fmt.Sprintf("session: %s %q: %s", e.Op, e.Alias, e.Message)
	}
	return fmt.Sprintf("session: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Options configure optional session collaborators.
type Options struct {
	// History records executed jobs. May be nil.
	History *history.Store

	// Logger defaults to slog's default.
	Logger *slog.Logger

	// ScopeSuffix generates the unique part of the scope id. Nil uses a
	// fresh UUID. Fixed generators keep tests deterministic.
	ScopeSuffix func() string
}

// Session is one client's connection to the engine.
//
// The scope id is minted once at construction; every operator key the
// session allocates carries it. Alias names are normalized to NFC before
// use so visually identical aliases cannot shadow each other.
type Session struct {
	user  string
	scope string

	eng   engine.Engine
	store storage.Storage
	ids   *plan.IDGenerator
	hist  *history.Store
	log   *slog.Logger

	mu      sync.Mutex
	aliases map[string]*logical.Plan
}

// New creates a session for user over an initialized engine.
func New(user string, eng engine.Engine, store storage.Storage, ids *plan.IDGenerator, opts Options) *Session {
	suffix := opts.ScopeSuffix
	if suffix == nil {
		suffix = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		user:    norm.NFC.String(user),
		scope:   norm.NFC.String(user) + "-" + suffix(),
		eng:     eng,
		store:   store,
		ids:     ids,
		hist:    opts.History,
		log:     logger,
		aliases: make(map[string]*logical.Plan),
	}
}

// Scope returns the session's scope id.
func (s *Session) Scope() string { return s.scope }

// IDs returns the session's key allocator, shared with the engine.
func (s *Session) IDs() *plan.IDGenerator { return s.ids }

func normalizeAlias(alias string) string {
	return norm.NFC.String(strings.TrimSpace(alias))
}

// Register binds alias to lp. The plan must itself bind the alias to a
// root; re-registering replaces the previous plan.
func (s *Session) Register(alias string, lp *logical.Plan) error {
	name := normalizeAlias(alias)
	if name == "" {
		return &Error{Op: "register", Message: "empty alias"}
	}
	if lp == nil {
		return &Error{Op: "register", Alias: name, Message: "no plan"}
	}
	if lp.Alias(name) == nil {
		return &Error{Op: "register", Alias: name, Message: "plan does not bind this alias"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[name] = lp
	return nil
}

// Plan returns the registered plan for alias.
func (s *Session) Plan(alias string) (*logical.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lp, ok := s.aliases[normalizeAlias(alias)]
	return lp, ok
}

// Aliases returns the registered alias names, normalized.
func (s *Session) Aliases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.aliases))
	for name := range s.aliases {
		out = append(out, name)
	}
	return out
}

// Store materializes alias to location in formatName and blocks until the
// job finishes. It refuses to overwrite an existing output element; the
// caller deletes explicitly first.
func (s *Session) Store(ctx context.Context, alias, location, formatName string) (*engine.Job, error) {
	name := normalizeAlias(alias)
	lp, ok := s.Plan(name)
	if !ok {
		return nil, &Error{Op: "store", Alias: name, Message: "alias is not registered"}
	}
	exists, err := s.store.Exists(location)
	if err != nil {
		return nil, &Error{Op: "store", Alias: name,
			Message: fmt.Sprintf("check output %s: %v", location, err), Cause: err}
	}
	if exists {
		return nil, &Error{Op: "store", Alias: name,
			Message: fmt.Sprintf("output location %s already exists", location)}
	}

	root := lp.Alias(name)
	sink := logical.NewStore(s.ids.NextKey(s.scope), root, location, formatName)
	slp := logical.NewPlan()
	slp.Add(sink)
	slp.Bind(name, sink)

	pp, err := s.eng.Compile(slp)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	job, err := s.eng.Execute(ctx, pp, name)
	if err != nil {
		return nil, err
	}
	s.record(ctx, name, job, time.Since(start))
	return job, nil
}

// record appends the finished job to the history store when one is
// attached. History failures are logged, not surfaced; the job already
// ran.
func (s *Session) record(ctx context.Context, alias string, job *engine.Job, wall time.Duration) {
	if s.hist == nil {
		return
	}
	err := s.hist.Append(ctx, history.Record{
		Scope:          s.scope,
		Alias:          alias,
		JobName:        alias,
		Status:         job.Status(),
		OutputLocation: job.OutputLocation(),
		OutputFormat:   job.OutputFormat(),
		WallTime:       wall,
	})
	if err != nil {
		s.log.Warn("job history append failed", "alias", alias, "error", err)
	}
}

// Explain writes the alias's plan dump to w.
func (s *Session) Explain(alias string, w io.Writer) error {
	name := normalizeAlias(alias)
	lp, ok := s.Plan(name)
	if !ok {
		return &Error{Op: "explain", Alias: name, Message: "alias is not registered"}
	}
	return s.eng.Explain(lp, w)
}

// Capacity returns the free capacity of cluster storage in bytes. Local
// execution mode has no meaningful cluster capacity and errors.
func (s *Session) Capacity() (int64, error) {
	if s.eng.Configuration()[config.KeyCoordinator] == config.LocalMode {
		return 0, &Error{Op: "capacity", Message: "not available in local execution mode"}
	}
	stats, err := s.store.Statistics()
	if err != nil {
		return 0, &Error{Op: "capacity", Message: err.Error(), Cause: err}
	}
	capacity, err := statInt(stats, storage.RawCapacityKey)
	if err != nil {
		return 0, &Error{Op: "capacity", Message: err.Error(), Cause: err}
	}
	used, err := statInt(stats, storage.RawUsedKey)
	if err != nil {
		return 0, &Error{Op: "capacity", Message: err.Error(), Cause: err}
	}
	return capacity - used, nil
}

// FileSize returns the replicated size of path in bytes: element length
// times the backend's default replication factor.
func (s *Session) FileSize(path string) (int64, error) {
	elemStats, err := s.store.AsElement(path).Statistics()
	if err != nil {
		return 0, &Error{Op: "file size", Message: err.Error(), Cause: err}
	}
	length, err := statInt(elemStats, storage.ElementLengthKey)
	if err != nil {
		return 0, &Error{Op: "file size", Message: err.Error(), Cause: err}
	}
	replication := int64(1)
	if stats, err := s.store.Statistics(); err == nil {
		if r, err := statInt(stats, storage.DefaultReplicationKey); err == nil && r > 0 {
			replication = r
		}
	}
	return length * replication, nil
}

func statInt(stats map[string]string, key string) (int64, error) {
	raw, ok := stats[key]
	if !ok {
		return 0, fmt.Errorf("statistic %q not reported", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("statistic %q is %q, not an integer", key, raw)
	}
	return v, nil
}

// ExistsFile reports whether path exists in storage.
func (s *Session) ExistsFile(path string) (bool, error) {
	return s.store.Exists(path)
}

// DeleteFile removes path from storage.
func (s *Session) DeleteFile(path string) error {
	return s.store.Delete(path)
}

// RenameFile moves src to dst in storage.
func (s *Session) RenameFile(src, dst string) error {
	return s.store.Rename(src, dst)
}

// Mkdirs creates the container at path, with parents.
func (s *Session) Mkdirs(path string) error {
	return s.store.CreateContainer(path)
}

// ListPaths returns the paths directly inside the container at path.
func (s *Session) ListPaths(path string) ([]string, error) {
	elems, err := s.store.ListElements(path)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(elems))
	for i, e := range elems {
		paths[i] = e.Path()
	}
	return paths, nil
}

// Shutdown closes the engine and the history store. Idempotent.
func (s *Session) Shutdown() error {
	err := s.eng.Close()
	if s.hist != nil {
		if herr := s.hist.Close(); err == nil {
			err = herr
		}
	}
	return err
}
