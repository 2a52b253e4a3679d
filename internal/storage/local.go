package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Local is a Storage rooted at a directory on the local filesystem.
// Store paths are absolute-style ("/data/in") and resolved under the root.
type Local struct {
	root string
}

// OpenLocal validates root and returns a store over it. The root must
// exist and be a directory; this is the connection step cluster engines
// perform during init.
func OpenLocal(root string) (*Local, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open storage root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", root)
	}
	return &Local{root: root}, nil
}

// Root returns the backing directory.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(path string) string {
	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	return filepath.Join(l.root, clean)
}

// AsElement resolves path to a local element descriptor.
func (l *Local) AsElement(path string) Element {
	return &localElement{store: l, path: path}
}

// Exists reports whether path is present.
func (l *Local) Exists(path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the element or container at path.
func (l *Local) Delete(path string) error {
	return os.RemoveAll(l.resolve(path))
}

// Rename moves src to dst, creating dst's parent as needed.
func (l *Local) Rename(src, dst string) error {
	target := l.resolve(dst)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Rename(l.resolve(src), target)
}

// CreateContainer creates the directory at path, with parents.
func (l *Local) CreateContainer(path string) error {
	return os.MkdirAll(l.resolve(path), 0o755)
}

// ListElements returns descriptors for the entries directly inside path.
func (l *Local) ListElements(path string) ([]Element, error) {
	entries, err := os.ReadDir(l.resolve(path))
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]Element, 0, len(entries))
	base := strings.TrimSuffix("/"+strings.TrimPrefix(path, "/"), "/")
	for _, e := range entries {
		out = append(out, &localElement{store: l, path: base + "/" + e.Name()})
	}
	return out, nil
}

// Statistics reports capacity figures for the backing volume. The local
// backend reports used bytes by walking the root; capacity is the used
// figure plus free space is not portably available without syscalls per
// platform, so capacity mirrors a configured ceiling when present.
func (l *Local) Statistics() (map[string]string, error) {
	var used int64
	err := filepath.Walk(l.root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			used += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		RawCapacityKey:        strconv.FormatInt(used, 10),
		RawUsedKey:            strconv.FormatInt(used, 10),
		DefaultReplicationKey: "1",
	}, nil
}

type localElement struct {
	store *Local
	path  string
}

func (e *localElement) Path() string { return e.path }

func (e *localElement) Exists() (bool, error) {
	return e.store.Exists(e.path)
}

func (e *localElement) Open() (io.ReadCloser, error) {
	return os.Open(e.store.resolve(e.path))
}

func (e *localElement) Create() (io.WriteCloser, error) {
	full := e.store.resolve(e.path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

func (e *localElement) Delete() error {
	return os.Remove(e.store.resolve(e.path))
}

func (e *localElement) Statistics() (map[string]string, error) {
	info, err := os.Stat(e.store.resolve(e.path))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ElementLengthKey: strconv.FormatInt(info.Size(), 10),
	}, nil
}
