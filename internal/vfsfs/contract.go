// Package vfsfs defines the FileSystem contract every backend (key-value
// engine, overlay, async-mirror, folder-adapter, locked wrapper)
// implements, plus the default read/write/open/realpath operations built
// on top of the minimal openFile/createFile primitives (§4.F).
package vfsfs

import (
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
)

// Metadata describes a backend's capabilities, reported once per mount.
type Metadata struct {
	Name               string
	ReadOnly           bool
	Synchronous        bool
	SupportsProperties bool
	SupportsLinks      bool
	TotalSpace         int64
	FreeSpace          int64
}

// FileSystem is the async contract every backend must implement. Sync
// variants are exposed separately by SyncFileSystem for backends that
// declare Metadata.Synchronous.
type FileSystem interface {
	Metadata() Metadata

	// OpenFile opens an existing file at path for the given flag, failing
	// ENOENT when the path is absent. It does not apply the flag's
	// exists/not-exists action table; callers route through Open, which
	// does.
	OpenFile(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error)

	// CreateFile creates a new file at path with the given mode, failing
	// EEXIST if it is already present.
	CreateFile(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error)

	Stat(path string, c cred.Cred) (stat.Stats, error)
	Unlink(path string, c cred.Cred) error

	Mkdir(path string, mode uint32, c cred.Cred) error
	Rmdir(path string, c cred.Cred) error
	Readdir(path string, c cred.Cred) ([]string, error)

	Rename(oldPath, newPath string, c cred.Cred) error
	Link(existingPath, newPath string, c cred.Cred) error

	Chmod(path string, mode uint32, c cred.Cred) error
	Chown(path string, uid, gid float64, c cred.Cred) error
	Utimes(path string, atimeMs, mtimeMs float64, c cred.Cred) error
}

// SyncFileSystem adds the Sync-suffixed methods. Backends implement it
// whatever their Metadata().Synchronous reports; every method has the
// identical signature as its async twin
// minus the possibility of blocking on I/O the caller cannot observe.
type SyncFileSystem interface {
	FileSystem

	OpenFileSync(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error)
	CreateFileSync(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error)
	StatSync(path string, c cred.Cred) (stat.Stats, error)
	UnlinkSync(path string, c cred.Cred) error
	MkdirSync(path string, mode uint32, c cred.Cred) error
	RmdirSync(path string, c cred.Cred) error
	ReaddirSync(path string, c cred.Cred) ([]string, error)
	RenameSync(oldPath, newPath string, c cred.Cred) error
	LinkSync(existingPath, newPath string, c cred.Cred) error
	ChmodSync(path string, mode uint32, c cred.Cred) error
	ChownSync(path string, uid, gid float64, c cred.Cred) error
	UtimesSync(path string, atimeMs, mtimeMs float64, c cred.Cred) error
}
