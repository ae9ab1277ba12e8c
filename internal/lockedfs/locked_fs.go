package lockedfs

import (
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
)

// LockedFS wraps a SyncFileSystem so its async and sync halves never race
// each other on the same path: an async call holds the per-path mutex for
// its whole duration, and a sync call on a held path is refused rather
// than let through to potentially observe a half-applied mutation.
type LockedFS struct {
	fs vfsfs.SyncFileSystem
	mu *PathMutex
}

func NewLockedFS(fs vfsfs.SyncFileSystem) *LockedFS {
	return &LockedFS{fs: fs, mu: NewPathMutex()}
}

func (l *LockedFS) Metadata() vfsfs.Metadata { return l.fs.Metadata() }

func errInvalidSyncCall(path string) error {
	return verrno.NewPath(verrno.EBUSY, path, "invalid sync call")
}

// --- async surface: acquire the primary path, delegate, release --------

func (l *LockedFS) OpenFile(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.OpenFile(path, flag, c)
}

func (l *LockedFS) CreateFile(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.CreateFile(path, flag, mode, c)
}

func (l *LockedFS) Stat(path string, c cred.Cred) (stat.Stats, error) {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Stat(path, c)
}

func (l *LockedFS) Unlink(path string, c cred.Cred) error {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Unlink(path, c)
}

func (l *LockedFS) Mkdir(path string, mode uint32, c cred.Cred) error {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Mkdir(path, mode, c)
}

func (l *LockedFS) Rmdir(path string, c cred.Cred) error {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Rmdir(path, c)
}

func (l *LockedFS) Readdir(path string, c cred.Cred) ([]string, error) {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Readdir(path, c)
}

// Rename locks the source path, matching the spec's choice of "primary
// path" for two-path operations.
func (l *LockedFS) Rename(oldPath, newPath string, c cred.Cred) error {
	l.mu.Lock(oldPath)
	defer l.mu.Unlock(oldPath)
	return l.fs.Rename(oldPath, newPath, c)
}

func (l *LockedFS) Link(existingPath, newPath string, c cred.Cred) error {
	l.mu.Lock(existingPath)
	defer l.mu.Unlock(existingPath)
	return l.fs.Link(existingPath, newPath, c)
}

func (l *LockedFS) Chmod(path string, mode uint32, c cred.Cred) error {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Chmod(path, mode, c)
}

func (l *LockedFS) Chown(path string, uid, gid float64, c cred.Cred) error {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Chown(path, uid, gid, c)
}

func (l *LockedFS) Utimes(path string, atimeMs, mtimeMs float64, c cred.Cred) error {
	l.mu.Lock(path)
	defer l.mu.Unlock(path)
	return l.fs.Utimes(path, atimeMs, mtimeMs, c)
}

// --- sync surface: refuse if held, else pass straight through ----------

func (l *LockedFS) OpenFileSync(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	if l.mu.IsLocked(path) {
		return nil, errInvalidSyncCall(path)
	}
	return l.fs.OpenFileSync(path, flag, c)
}

func (l *LockedFS) CreateFileSync(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	if l.mu.IsLocked(path) {
		return nil, errInvalidSyncCall(path)
	}
	return l.fs.CreateFileSync(path, flag, mode, c)
}

func (l *LockedFS) StatSync(path string, c cred.Cred) (stat.Stats, error) {
	if l.mu.IsLocked(path) {
		return stat.Stats{}, errInvalidSyncCall(path)
	}
	return l.fs.StatSync(path, c)
}

func (l *LockedFS) UnlinkSync(path string, c cred.Cred) error {
	if l.mu.IsLocked(path) {
		return errInvalidSyncCall(path)
	}
	return l.fs.UnlinkSync(path, c)
}

func (l *LockedFS) MkdirSync(path string, mode uint32, c cred.Cred) error {
	if l.mu.IsLocked(path) {
		return errInvalidSyncCall(path)
	}
	return l.fs.MkdirSync(path, mode, c)
}

func (l *LockedFS) RmdirSync(path string, c cred.Cred) error {
	if l.mu.IsLocked(path) {
		return errInvalidSyncCall(path)
	}
	return l.fs.RmdirSync(path, c)
}

func (l *LockedFS) ReaddirSync(path string, c cred.Cred) ([]string, error) {
	if l.mu.IsLocked(path) {
		return nil, errInvalidSyncCall(path)
	}
	return l.fs.ReaddirSync(path, c)
}

func (l *LockedFS) RenameSync(oldPath, newPath string, c cred.Cred) error {
	if l.mu.IsLocked(oldPath) {
		return errInvalidSyncCall(oldPath)
	}
	return l.fs.RenameSync(oldPath, newPath, c)
}

func (l *LockedFS) LinkSync(existingPath, newPath string, c cred.Cred) error {
	if l.mu.IsLocked(existingPath) {
		return errInvalidSyncCall(existingPath)
	}
	return l.fs.LinkSync(existingPath, newPath, c)
}

func (l *LockedFS) ChmodSync(path string, mode uint32, c cred.Cred) error {
	if l.mu.IsLocked(path) {
		return errInvalidSyncCall(path)
	}
	return l.fs.ChmodSync(path, mode, c)
}

func (l *LockedFS) ChownSync(path string, uid, gid float64, c cred.Cred) error {
	if l.mu.IsLocked(path) {
		return errInvalidSyncCall(path)
	}
	return l.fs.ChownSync(path, uid, gid, c)
}

func (l *LockedFS) UtimesSync(path string, atimeMs, mtimeMs float64, c cred.Cred) error {
	if l.mu.IsLocked(path) {
		return errInvalidSyncCall(path)
	}
	return l.fs.UtimesSync(path, atimeMs, mtimeMs, c)
}

var _ vfsfs.SyncFileSystem = (*LockedFS)(nil)
