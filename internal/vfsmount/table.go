// Package vfsmount implements the process-wide mount table and VFS
// dispatch layer: path normalization, longest-prefix mount resolution,
// cross-mount rename fallback, and the file descriptor table.
package vfsmount

import (
	"sort"
	"strings"
	"sync"

	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
)

// availabilityChecker is implemented by backends that can report a
// transient unavailable state. Backends that don't implement it are
// always considered available.
type availabilityChecker interface {
	IsAvailable() bool
}

type mountEntry struct {
	prefix string
	fs     vfsfs.FileSystem
}

// Table is the process-wide mount table, resolved longest-prefix-first.
type Table struct {
	mu      sync.RWMutex
	entries []mountEntry
}

// NewTable builds a table with root mounted at "/".
func NewTable(root vfsfs.FileSystem) *Table {
	return &Table{entries: []mountEntry{{prefix: "/", fs: root}}}
}

// Initialize replaces the table wholesale with every entry in mounts. The
// current root is unmounted only if mounts has its own "/" entry;
// otherwise it stays mounted. A backend reporting IsAvailable() ==
// false is rejected with EINVAL.
func (t *Table) Initialize(mounts map[string]vfsfs.FileSystem) error {
	entries := make([]mountEntry, 0, len(mounts)+1)
	hasRoot := false
	for prefix, fs := range mounts {
		if checker, ok := fs.(availabilityChecker); ok && !checker.IsAvailable() {
			return verrno.NewPath(verrno.EINVAL, prefix, "backend not available")
		}
		p := normalizePrefix(prefix)
		hasRoot = hasRoot || p == "/"
		entries = append(entries, mountEntry{prefix: p, fs: fs})
	}
	sort.Slice(entries, func(i, j int) bool { return len(entries[i].prefix) > len(entries[j].prefix) })

	t.mu.Lock()
	if !hasRoot {
		for _, e := range t.entries {
			if e.prefix == "/" {
				entries = append(entries, e)
			}
		}
	}
	t.entries = entries
	t.mu.Unlock()
	return nil
}

// Mount adds or replaces a single mount point.
func (t *Table) Mount(prefix string, fs vfsfs.FileSystem) error {
	if checker, ok := fs.(availabilityChecker); ok && !checker.IsAvailable() {
		return verrno.NewPath(verrno.EINVAL, prefix, "backend not available")
	}
	prefix = normalizePrefix(prefix)

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.prefix == prefix {
			t.entries[i].fs = fs
			return nil
		}
	}
	t.entries = append(t.entries, mountEntry{prefix: prefix, fs: fs})
	sort.Slice(t.entries, func(i, j int) bool { return len(t.entries[i].prefix) > len(t.entries[j].prefix) })
	return nil
}

// Unmount removes a mount point. Unmounting "/" is a no-op: a root must
// always be present.
func (t *Table) Unmount(prefix string) {
	prefix = normalizePrefix(prefix)
	if prefix == "/" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.prefix == prefix {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

func normalizePrefix(p string) string {
	if p == "" {
		return "/"
	}
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// Resolve returns the FileSystem mounted for path, the mount's prefix,
// and the intra-filesystem path (the remainder after the mount prefix,
// or "/" for an exact match on a non-root mount, or the full path for
// root).
func (t *Table) Resolve(path string) (fs vfsfs.FileSystem, prefix, intraPath string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e.prefix == "/" {
			return e.fs, "/", path
		}
		if path == e.prefix {
			return e.fs, e.prefix, "/"
		}
		if strings.HasPrefix(path, e.prefix+"/") {
			return e.fs, e.prefix, strings.TrimPrefix(path, e.prefix)
		}
	}
	return nil, "", path // unreachable: "/" is always mounted
}

// MountPoints returns every mounted prefix other than "/".
func (t *Table) MountPoints() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	points := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		if e.prefix != "/" {
			points = append(points, e.prefix)
		}
	}
	return points
}
