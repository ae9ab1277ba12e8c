package vfsfs

import (
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
)

// SyncAdapter implements every FileSystem async method by delegating to
// the sync twin of a SyncFileSystem, per §4.F's "sync-implements-async
// adapter". Embed it to turn any synchronous backend into a usable async
// FileSystem without rewriting each method.
type SyncAdapter struct {
	SyncFileSystem
}

func NewSyncAdapter(s SyncFileSystem) FileSystem {
	return SyncAdapter{SyncFileSystem: s}
}

func (a SyncAdapter) OpenFile(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	return a.OpenFileSync(path, flag, c)
}

func (a SyncAdapter) CreateFile(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	return a.CreateFileSync(path, flag, mode, c)
}

func (a SyncAdapter) Stat(path string, c cred.Cred) (stat.Stats, error) {
	return a.StatSync(path, c)
}

func (a SyncAdapter) Unlink(path string, c cred.Cred) error {
	return a.UnlinkSync(path, c)
}

func (a SyncAdapter) Mkdir(path string, mode uint32, c cred.Cred) error {
	return a.MkdirSync(path, mode, c)
}

func (a SyncAdapter) Rmdir(path string, c cred.Cred) error {
	return a.RmdirSync(path, c)
}

func (a SyncAdapter) Readdir(path string, c cred.Cred) ([]string, error) {
	return a.ReaddirSync(path, c)
}

func (a SyncAdapter) Rename(oldPath, newPath string, c cred.Cred) error {
	return a.RenameSync(oldPath, newPath, c)
}

func (a SyncAdapter) Link(existingPath, newPath string, c cred.Cred) error {
	return a.LinkSync(existingPath, newPath, c)
}

func (a SyncAdapter) Chmod(path string, mode uint32, c cred.Cred) error {
	return a.ChmodSync(path, mode, c)
}

func (a SyncAdapter) Chown(path string, uid, gid float64, c cred.Cred) error {
	return a.ChownSync(path, uid, gid, c)
}

func (a SyncAdapter) Utimes(path string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return a.UtimesSync(path, atimeMs, mtimeMs, c)
}
