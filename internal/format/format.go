// Package format resolves serialization format names to reader/writer
// capabilities.
//
// Two formats ship with the engine: "text", the tab-delimited user-facing
// format, and "rows", the row-oriented JSON-lines format used for
// intermediate materializations. The engine core only ever asks for the
// default intermediate format or for a format by name.
package format

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sluicedata/sluice/internal/row"
)

// Reader decodes tuples from a byte stream.
type Reader interface {
	// Next returns the next tuple, or io.EOF when the stream ends.
	Next() (row.Tuple, error)
}

// Writer encodes tuples onto a byte stream.
type Writer interface {
	Write(t row.Tuple) error
	Flush() error
}

// Format is a named serialization codec.
type Format interface {
	Name() string
	NewReader(r io.Reader) Reader
	NewWriter(w io.Writer) Writer
}

// Registry maps format names to codecs.
type Registry struct {
	mu          sync.RWMutex
	formats     map[string]Format
	defaultName string
}

// NewRegistry returns a registry with the built-in formats registered and
// "rows" as the default intermediate format.
func NewRegistry() *Registry {
	r := &Registry{formats: make(map[string]Format)}
	r.Register(Text{})
	r.Register(Rows{})
	r.defaultName = Rows{}.Name()
	return r
}

// Register adds f, replacing any codec with the same name.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[f.Name()] = f
}

// Lookup resolves name to a codec.
func (r *Registry) Lookup(name string) (Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[name]
	if !ok {
		return nil, fmt.Errorf("unknown serialization format %q (have %v)", name, r.namesLocked())
	}
	return f, nil
}

// Default returns the default intermediate format.
func (r *Registry) Default() Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formats[r.defaultName]
}

// Names returns the registered format names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.formats))
	for n := range r.formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
