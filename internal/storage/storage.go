// Package storage defines the filesystem-like abstraction the engine reads
// and writes data through: element (file) and container (directory)
// descriptors over an opaque backend.
//
// The engine core treats storage as a dependency; the Local implementation
// here backs local execution mode, the session's file utilities, and
// tests. HDFS-style backends plug in behind the same interface.
package storage

import (
	"io"
)

// Statistics keys exposed by Storage.Statistics.
const (
	// RawCapacityKey is the backend's total capacity in bytes.
	RawCapacityKey = "raw.capacity.bytes"

	// RawUsedKey is the backend's used bytes.
	RawUsedKey = "raw.used.bytes"

	// DefaultReplicationKey is the backend's default replication factor.
	DefaultReplicationKey = "default.replication"
)

// ElementLengthKey is the per-element statistics key for byte length.
const ElementLengthKey = "length.bytes"

// Element describes one stored object.
type Element interface {
	// Path returns the element's path within the store.
	Path() string

	// Exists reports whether the element is present.
	Exists() (bool, error)

	// Open returns a reader over the element's bytes.
	Open() (io.ReadCloser, error)

	// Create returns a writer that replaces the element's contents.
	// Parent containers are created as needed.
	Create() (io.WriteCloser, error)

	// Delete removes the element.
	Delete() error

	// Statistics returns per-element properties (length, ...).
	Statistics() (map[string]string, error)
}

// Storage is the pluggable element/container store.
type Storage interface {
	// AsElement resolves path to an element descriptor. The element need
	// not exist yet.
	AsElement(path string) Element

	// Exists reports whether path names an existing element or container.
	Exists(path string) (bool, error)

	// Delete removes the element or container at path.
	Delete(path string) error

	// Rename moves src to dst.
	Rename(src, dst string) error

	// CreateContainer creates the container at path, with parents.
	CreateContainer(path string) error

	// ListElements returns the descriptors directly inside the container
	// at path, in name order.
	ListElements(path string) ([]Element, error)

	// Statistics returns backend-level properties (capacity, usage,
	// replication).
	Statistics() (map[string]string, error)
}
