// Package folderfs scopes a FileSystem to a fixed subtree, joining every
// path argument to a folder prefix before delegating and rewriting any
// error that escapes back to the caller's unscoped path.
package folderfs

import (
	"strings"

	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
)

// FolderAdapter wraps an inner filesystem and a fixed folder path so the
// wrapped tree looks rooted at "/" to the caller. It never reports
// SupportsLinks, regardless of what the inner filesystem supports.
type FolderAdapter struct {
	inner  vfsfs.SyncFileSystem
	folder string
}

// New builds a FolderAdapter rooted at folder inside inner. If inner is
// read-only, folder must already exist; otherwise it is created.
func New(inner vfsfs.SyncFileSystem, folder string) (*FolderAdapter, error) {
	folder = normalizeFolder(folder)
	a := &FolderAdapter{inner: inner, folder: folder}
	if inner.Metadata().ReadOnly {
		if _, err := inner.StatSync(folder, cred.Root); err != nil {
			return nil, err
		}
		return a, nil
	}
	if err := inner.MkdirSync(folder, 0o777, cred.Root); err != nil {
		if apiErr, ok := verrno.As(err); !ok || apiErr.Code != verrno.EEXIST {
			return nil, err
		}
	}
	return a, nil
}

func normalizeFolder(folder string) string {
	folder = strings.TrimSuffix(folder, "/")
	if folder == "" {
		return "/"
	}
	return folder
}

func (a *FolderAdapter) scope(p string) string {
	if a.folder == "/" {
		return p
	}
	if p == "/" {
		return a.folder
	}
	return a.folder + p
}

// unscope reverses scope for paths embedded in errors that escape inner.
func (a *FolderAdapter) unscope(err error) error {
	apiErr, ok := verrno.As(err)
	if !ok || a.folder == "/" {
		return err
	}
	apiErr.RewritePath(a.folder, "")
	if apiErr.Path == "" {
		apiErr.Path = "/"
	}
	return apiErr
}

func (a *FolderAdapter) Metadata() vfsfs.Metadata {
	md := a.inner.Metadata()
	md.SupportsLinks = false
	md.Name = "folder(" + md.Name + "," + a.folder + ")"
	return md
}

func (a *FolderAdapter) OpenFile(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	return a.OpenFileSync(path, flag, c)
}

func (a *FolderAdapter) OpenFileSync(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	f, err := a.inner.OpenFileSync(a.scope(path), flag, c)
	if err != nil {
		return nil, a.unscope(err)
	}
	return f, nil
}

func (a *FolderAdapter) CreateFile(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	return a.CreateFileSync(path, flag, mode, c)
}

func (a *FolderAdapter) CreateFileSync(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	f, err := a.inner.CreateFileSync(a.scope(path), flag, mode, c)
	if err != nil {
		return nil, a.unscope(err)
	}
	return f, nil
}

func (a *FolderAdapter) Stat(path string, c cred.Cred) (stat.Stats, error) { return a.StatSync(path, c) }
func (a *FolderAdapter) StatSync(path string, c cred.Cred) (stat.Stats, error) {
	st, err := a.inner.StatSync(a.scope(path), c)
	if err != nil {
		return stat.Stats{}, a.unscope(err)
	}
	return st, nil
}

func (a *FolderAdapter) Unlink(path string, c cred.Cred) error { return a.UnlinkSync(path, c) }
func (a *FolderAdapter) UnlinkSync(path string, c cred.Cred) error {
	return a.unscope(a.inner.UnlinkSync(a.scope(path), c))
}

func (a *FolderAdapter) Mkdir(path string, mode uint32, c cred.Cred) error {
	return a.MkdirSync(path, mode, c)
}
func (a *FolderAdapter) MkdirSync(path string, mode uint32, c cred.Cred) error {
	return a.unscope(a.inner.MkdirSync(a.scope(path), mode, c))
}

func (a *FolderAdapter) Rmdir(path string, c cred.Cred) error { return a.RmdirSync(path, c) }
func (a *FolderAdapter) RmdirSync(path string, c cred.Cred) error {
	return a.unscope(a.inner.RmdirSync(a.scope(path), c))
}

func (a *FolderAdapter) Readdir(path string, c cred.Cred) ([]string, error) {
	return a.ReaddirSync(path, c)
}
func (a *FolderAdapter) ReaddirSync(path string, c cred.Cred) ([]string, error) {
	names, err := a.inner.ReaddirSync(a.scope(path), c)
	if err != nil {
		return nil, a.unscope(err)
	}
	return names, nil
}

func (a *FolderAdapter) Rename(oldPath, newPath string, c cred.Cred) error {
	return a.RenameSync(oldPath, newPath, c)
}
func (a *FolderAdapter) RenameSync(oldPath, newPath string, c cred.Cred) error {
	return a.unscope(a.inner.RenameSync(a.scope(oldPath), a.scope(newPath), c))
}

func (a *FolderAdapter) Link(existingPath, newPath string, c cred.Cred) error {
	return a.LinkSync(existingPath, newPath, c)
}
func (a *FolderAdapter) LinkSync(existingPath, newPath string, c cred.Cred) error {
	return a.unscope(a.inner.LinkSync(a.scope(existingPath), a.scope(newPath), c))
}

func (a *FolderAdapter) Chmod(path string, mode uint32, c cred.Cred) error {
	return a.ChmodSync(path, mode, c)
}
func (a *FolderAdapter) ChmodSync(path string, mode uint32, c cred.Cred) error {
	return a.unscope(a.inner.ChmodSync(a.scope(path), mode, c))
}

func (a *FolderAdapter) Chown(path string, uid, gid float64, c cred.Cred) error {
	return a.ChownSync(path, uid, gid, c)
}
func (a *FolderAdapter) ChownSync(path string, uid, gid float64, c cred.Cred) error {
	return a.unscope(a.inner.ChownSync(a.scope(path), uid, gid, c))
}

func (a *FolderAdapter) Utimes(path string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return a.UtimesSync(path, atimeMs, mtimeMs, c)
}
func (a *FolderAdapter) UtimesSync(path string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return a.unscope(a.inner.UtimesSync(a.scope(path), atimeMs, mtimeMs, c))
}

var _ vfsfs.SyncFileSystem = (*FolderAdapter)(nil)
