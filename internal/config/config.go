// Package config holds the flat string-keyed configuration consumed by the
// engine and the provisioning handshake.
//
// Merge semantics are deliberately simple: overwrite on key match,
// otherwise insert. Unknown keys are preserved, not validated; callers
// own their namespaces.
package config

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Keys consumed by the engine core. Everything is overridable; nothing is
// hard-coded at call sites.
const (
	// KeyFilesystem is the distributed filesystem endpoint (host:port or
	// a storage root for local mode).
	KeyFilesystem = "filesystem.location"

	// KeyCoordinator is the job coordinator endpoint. The literal value
	// "local" selects in-process execution with no RPC connection.
	KeyCoordinator = "coordinator.location"

	// KeyProvisionServer names the cluster-provisioning server. Empty
	// means no provisioning handshake; "local" runs the provisioning
	// command as a subprocess; anything else is an SSH host.
	KeyProvisionServer = "provision.server"

	// KeyProvisionCommand is the provisioning command to execute.
	KeyProvisionCommand = "provision.command"

	// KeyProvisionDomain is the default domain suffix appended to
	// handshake hosts that lack one.
	KeyProvisionDomain = "provision.domain"

	// KeyFilesystemPort and KeyCoordinatorPort are the default ports
	// appended to bare hostnames supplied as endpoint overrides.
	KeyFilesystemPort  = "filesystem.default.port"
	KeyCoordinatorPort = "coordinator.default.port"

	// Handshake field markers. The provisioning command's output is
	// scanned for these five tokens.
	KeyMarkerFilesystemUI  = "provision.marker.hdfsui"
	KeyMarkerFilesystem    = "provision.marker.hdfs"
	KeyMarkerCoordinatorUI = "provision.marker.mapredui"
	KeyMarkerCoordinator   = "provision.marker.mapred"
	KeyMarkerClusterConf   = "provision.marker.hadoopconf"
)

// LocalMode is the coordinator endpoint value selecting in-process
// execution.
const LocalMode = "local"

// Bag is a flat string-keyed configuration map, safe for concurrent use.
type Bag struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty bag.
func New() *Bag {
	return &Bag{values: make(map[string]string)}
}

// Defaults returns a bag seeded with the deployment defaults: the default
// endpoint ports and the canonical handshake marker tokens.
func Defaults() *Bag {
	b := New()
	b.Set(KeyCoordinatorPort, "50020")
	b.Set(KeyFilesystemPort, "8020")
	b.Set(KeyMarkerFilesystemUI, "hdfsUI:")
	b.Set(KeyMarkerFilesystem, "hdfs:")
	b.Set(KeyMarkerCoordinatorUI, "mapredUI:")
	b.Set(KeyMarkerCoordinator, "mapred:")
	b.Set(KeyMarkerClusterConf, "hadoopConf:")
	return b
}

// Get returns the value for key, or "".
func (b *Bag) Get(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values[key]
}

// GetDefault returns the value for key, or fallback when unset.
func (b *Bag) GetDefault(key, fallback string) string {
	if v := b.Get(key); v != "" {
		return v
	}
	return fallback
}

// Set stores key=value.
func (b *Bag) Set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Merge copies every entry of other into b. Last writer wins on key
// match; keys absent from other are untouched.
func (b *Bag) Merge(other map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range other {
		b.values[k] = v
	}
}

// Snapshot returns a copy of the current contents.
func (b *Bag) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Keys returns the set keys in sorted order.
func (b *Bag) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadClusterFile reads a YAML cluster configuration file and merges its
// scalar entries over the bag. Non-scalar values are flattened one level
// as "parent.child" keys; deeper nesting is rejected.
func (b *Bag) LoadClusterFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cluster configuration %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse cluster configuration %s: %w", path, err)
	}
	flat := make(map[string]string)
	for k, v := range doc {
		switch val := v.(type) {
		case map[string]any:
			for ck, cv := range val {
				s, err := scalar(cv)
				if err != nil {
					return fmt.Errorf("cluster configuration %s: key %s.%s: %w", path, k, ck, err)
				}
				flat[k+"."+ck] = s
			}
		default:
			s, err := scalar(v)
			if err != nil {
				return fmt.Errorf("cluster configuration %s: key %s: %w", path, k, err)
			}
			flat[k] = s
		}
	}
	b.Merge(flat)
	return nil
}

func scalar(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case bool:
		return fmt.Sprintf("%t", val), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
