package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicedata/sluice/internal/config"
)

// fakeTransport replays a canned stream and counts opens.
type fakeTransport struct {
	mu      sync.Mutex
	streams []string
	opens   int
	openErr error
}

func (f *fakeTransport) Open(ctx context.Context, command string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	idx := f.opens
	f.opens++
	if idx >= len(f.streams) {
		idx = len(f.streams) - 1
	}
	return io.NopCloser(strings.NewReader(f.streams[idx])), nil
}

func (f *fakeTransport) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func okResolver(ctx context.Context, host string) error { return nil }

func testConf(t *testing.T) *config.Bag {
	t.Helper()
	conf := config.Defaults()
	conf.Set(config.KeyProvisionCommand, "start-cluster")
	conf.Set(config.KeyProvisionDomain, "example.org")
	return conf
}

func newTestProvisioner(t *testing.T, transport Transport, conf *config.Bag) *Provisioner {
	t.Helper()
	p := New(transport, conf, okResolver, slog.New(slog.DiscardHandler))
	p.loadConf = func(path string) error { return nil }
	return p
}

const handshakeStream = "provisioning virtual cluster\n" +
	"hdfsUI:uiA\n" +
	"hdfs:nodeA:1234\n" +
	"mapredUI:uiB\n" +
	"hadoopConf:/tmp/x\n" +
	"mapred:nodeB:5678\n" +
	"trailing noise that must never be read\n"

func TestProvisionDiscoversEndpointPair(t *testing.T) {
	transport := &fakeTransport{streams: []string{handshakeStream}}
	p := newTestProvisioner(t, transport, testConf(t))

	eps, err := p.Provision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nodeA.example.org:1234", eps.Filesystem)
	assert.Equal(t, "nodeB.example.org:5678", eps.Coordinator)
}

func TestProvisionKeepsDottedHosts(t *testing.T) {
	stream := "hdfs:fs.corp.net:1234\nhadoopConf:/tmp/x\nmapred:jt.corp.net:5678\n"
	transport := &fakeTransport{streams: []string{stream}}
	p := newTestProvisioner(t, transport, testConf(t))

	eps, err := p.Provision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fs.corp.net:1234", eps.Filesystem)
	assert.Equal(t, "jt.corp.net:5678", eps.Coordinator)
}

func TestProvisionCachesFirstSuccess(t *testing.T) {
	transport := &fakeTransport{streams: []string{handshakeStream}}
	p := newTestProvisioner(t, transport, testConf(t))

	first, err := p.Provision(context.Background())
	require.NoError(t, err)
	second, err := p.Provision(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, transport.openCount(), "second call must not reopen the stream")
}

func TestProvisionConcurrentCallsShareOneHandshake(t *testing.T) {
	transport := &fakeTransport{streams: []string{handshakeStream}}
	p := newTestProvisioner(t, transport, testConf(t))

	var wg sync.WaitGroup
	results := make([]Endpoints, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eps, err := p.Provision(context.Background())
			assert.NoError(t, err)
			results[i] = eps
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, transport.openCount())
	for _, eps := range results {
		assert.Equal(t, results[0], eps)
	}
}

func TestProvisionIncompleteStream(t *testing.T) {
	// Stream closes before the coordinator endpoint appears.
	stream := "hdfsUI:uiA\nhdfs:nodeA:1234\n"
	transport := &fakeTransport{streams: []string{stream}}
	p := newTestProvisioner(t, transport, testConf(t))

	_, err := p.Provision(context.Background())
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeIncomplete, pe.Code)

	// A failed handshake is not cached; the next call retries.
	_, err = p.Provision(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, transport.openCount())
}

func TestProvisionEmptyStream(t *testing.T) {
	transport := &fakeTransport{streams: []string{""}}
	p := newTestProvisioner(t, transport, testConf(t))

	_, err := p.Provision(context.Background())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeIncomplete, pe.Code)
}

func TestProvisionMalformedEndpoint(t *testing.T) {
	stream := "hdfs:nodeA\nhadoopConf:/tmp/x\nmapred:nodeB:5678\n"
	transport := &fakeTransport{streams: []string{stream}}
	p := newTestProvisioner(t, transport, testConf(t))

	_, err := p.Provision(context.Background())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeMalformed, pe.Code)
}

func TestProvisionUnresolvableHost(t *testing.T) {
	transport := &fakeTransport{streams: []string{handshakeStream}}
	p := newTestProvisioner(t, transport, testConf(t))
	p.resolver = func(ctx context.Context, host string) error {
		return fmt.Errorf("no such host %s", host)
	}

	_, err := p.Provision(context.Background())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeResolve, pe.Code)
	assert.Contains(t, pe.Message, "nodeA.example.org")
}

func TestProvisionMissingClusterConf(t *testing.T) {
	stream := "hdfs:nodeA:1234\nmapred:nodeB:5678\n"
	transport := &fakeTransport{streams: []string{stream}}
	p := newTestProvisioner(t, transport, testConf(t))

	_, err := p.Provision(context.Background())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeMissingConf, pe.Code)
	assert.Contains(t, pe.Message, "missing cluster configuration")
}

func TestProvisionClusterConfLoadFailure(t *testing.T) {
	transport := &fakeTransport{streams: []string{handshakeStream}}
	p := newTestProvisioner(t, transport, testConf(t))
	p.loadConf = func(path string) error {
		return errors.New("unreadable")
	}

	_, err := p.Provision(context.Background())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeMissingConf, pe.Code)
}

func TestProvisionClusterConfMergedIntoConfig(t *testing.T) {
	transport := &fakeTransport{streams: []string{handshakeStream}}
	conf := testConf(t)
	p := New(transport, conf, okResolver, slog.New(slog.DiscardHandler))
	var gotPath string
	p.loadConf = func(path string) error {
		gotPath = path
		conf.Set("cluster.queue", "default")
		return nil
	}

	_, err := p.Provision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", gotPath)
	assert.Equal(t, "default", conf.Get("cluster.queue"))
}

func TestProvisionNoCommandConfigured(t *testing.T) {
	transport := &fakeTransport{streams: []string{handshakeStream}}
	conf := config.Defaults()
	p := newTestProvisioner(t, transport, conf)

	_, err := p.Provision(context.Background())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeIO, pe.Code)
	assert.Equal(t, 0, transport.openCount())
}

func TestProvisionTransportFailure(t *testing.T) {
	transport := &fakeTransport{openErr: errors.New("ssh refused")}
	p := newTestProvisioner(t, transport, testConf(t))

	_, err := p.Provision(context.Background())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeIO, pe.Code)
	assert.ErrorContains(t, err, "provisioning")
}

func TestProvisionCustomMarkers(t *testing.T) {
	conf := testConf(t)
	conf.Set(config.KeyMarkerFilesystem, "fs=")
	conf.Set(config.KeyMarkerCoordinator, "coord=")
	conf.Set(config.KeyMarkerClusterConf, "conf=")
	stream := "fs=nodeA:1234\nconf=/tmp/x\ncoord=nodeB:5678\n"
	transport := &fakeTransport{streams: []string{stream}}
	p := newTestProvisioner(t, transport, conf)

	eps, err := p.Provision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nodeA.example.org:1234", eps.Filesystem)
	assert.Equal(t, "nodeB.example.org:5678", eps.Coordinator)
}
