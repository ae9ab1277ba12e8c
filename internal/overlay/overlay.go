// Package overlay implements the union filesystem of §4.J: a read-only
// (or read-write) lower tree overlaid by a writable upper tree, with
// deletions against the lower tree recorded as whiteouts rather than
// mutating it.
package overlay

import (
	"path"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
)

// Overlay unions a read-only lower backend with a writable upper one.
type Overlay struct {
	lower, upper vfsfs.SyncFileSystem
	clock        clock.Clock
	log          *deletionLog
}

func New(lower, upper vfsfs.SyncFileSystem, clk clock.Clock) (*Overlay, error) {
	if upper.Metadata().ReadOnly {
		return nil, verrno.New(verrno.EINVAL, "overlay upper backend must be writable")
	}
	return &Overlay{lower: lower, upper: upper, clock: clk, log: newDeletionLog(upper)}, nil
}

func (o *Overlay) Metadata() vfsfs.Metadata {
	lm, um := o.lower.Metadata(), o.upper.Metadata()
	return vfsfs.Metadata{
		Name:               "overlay(" + lm.Name + "," + um.Name + ")",
		ReadOnly:           false,
		Synchronous:        lm.Synchronous && um.Synchronous,
		SupportsProperties: lm.SupportsProperties && um.SupportsProperties,
		SupportsLinks:      lm.SupportsLinks && um.SupportsLinks,
	}
}

func (o *Overlay) existsRoot(fs vfsfs.FileSystem, p string) bool {
	return vfsfs.Exists(fs, p, cred.Root)
}

// exists is upper.exists(p) || (lower.exists(p) && !deletedFiles[p]).
func (o *Overlay) exists(p string) bool {
	if o.existsRoot(o.upper, p) {
		return true
	}
	return o.existsRoot(o.lower, p) && !o.log.isDeleted(p)
}

func (o *Overlay) ensureUpperDirs(dir string, c cred.Cred) error {
	dir = path.Clean("/" + dir)
	if dir == "/" {
		return nil
	}
	if o.existsRoot(o.upper, dir) {
		return nil
	}
	if err := o.ensureUpperDirs(path.Dir(dir), c); err != nil {
		return err
	}
	mode := uint32(0o777)
	if st, err := o.lower.Stat(dir, cred.Root); err == nil {
		mode = st.Mode & stat.PermMask
	} else if st, err := o.upper.Stat(dir, cred.Root); err == nil {
		mode = st.Mode & stat.PermMask
	}
	return o.upper.Mkdir(dir, mode, c)
}

// copyUp materializes p onto upper if it currently exists only on lower.
func (o *Overlay) copyUp(p string, c cred.Cred) error {
	if o.existsRoot(o.upper, p) {
		return nil
	}
	st, err := o.lower.Stat(p, cred.Root)
	if err != nil {
		return err
	}
	if err := o.ensureUpperDirs(path.Dir(p), c); err != nil {
		return err
	}
	if st.IsDirectory() {
		return o.upper.Mkdir(p, st.Mode&stat.PermMask, c)
	}
	data, err := vfsfs.ReadFile(o.lower, p, cred.Root)
	if err != nil {
		return err
	}
	return vfsfs.WriteFile(o.upper, p, data, st.Mode&stat.PermMask, c)
}

// copyUpSyncer builds the Syncer for an overlay file opened straight from
// lower (never yet copied up): its first sync copies parent dirs onto
// upper and writes the buffer through.
func (o *Overlay) copyUpSyncer(p string, c cred.Cred) vfile.Syncer {
	return vfile.SyncerFunc(func(_ string, data []byte, st stat.Stats) error {
		if err := o.ensureUpperDirs(path.Dir(p), c); err != nil {
			return err
		}
		return vfsfs.WriteFile(o.upper, p, data, st.Mode&stat.PermMask, c)
	})
}

func (o *Overlay) OpenFile(p string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	return o.openFile(p, flag, c)
}
func (o *Overlay) OpenFileSync(p string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	return o.openFile(p, flag, c)
}

func (o *Overlay) openFile(p string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	if err := o.log.ensureInitialized(); err != nil {
		return nil, err
	}
	if p == deletionLogPath {
		return nil, verrno.NewPath(verrno.EPERM, p, "deletion log path is reserved")
	}
	if o.existsRoot(o.upper, p) {
		return o.upper.OpenFile(p, flag, c)
	}
	st, err := o.lower.Stat(p, c)
	if err != nil {
		return nil, err
	}
	if st.IsDirectory() {
		return nil, verrno.NewPath(verrno.EISDIR, p, "is a directory")
	}
	data, err := vfsfs.ReadFile(o.lower, p, c)
	if err != nil {
		return nil, err
	}
	return vfile.New(o.clock, o.copyUpSyncer(p, c), p, flag, st, data), nil
}

func (o *Overlay) CreateFile(p string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	return o.createFile(p, flag, mode, c)
}
func (o *Overlay) CreateFileSync(p string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	return o.createFile(p, flag, mode, c)
}

func (o *Overlay) createFile(p string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	if err := o.log.ensureInitialized(); err != nil {
		return nil, err
	}
	if p == deletionLogPath {
		return nil, verrno.NewPath(verrno.EPERM, p, "deletion log path is reserved")
	}
	if err := o.ensureUpperDirs(path.Dir(p), c); err != nil {
		return nil, err
	}
	return o.upper.CreateFile(p, flag, mode, c)
}

func (o *Overlay) Stat(p string, c cred.Cred) (stat.Stats, error)     { return o.stat(p, c) }
func (o *Overlay) StatSync(p string, c cred.Cred) (stat.Stats, error) { return o.stat(p, c) }

func (o *Overlay) stat(p string, c cred.Cred) (stat.Stats, error) {
	if err := o.log.ensureInitialized(); err != nil {
		return stat.Stats{}, err
	}
	if o.existsRoot(o.upper, p) {
		return o.upper.Stat(p, c)
	}
	if o.log.isDeleted(p) {
		return stat.Stats{}, verrno.NewPath(verrno.ENOENT, p, "no such file or directory")
	}
	st, err := o.lower.Stat(p, c)
	if err != nil {
		return stat.Stats{}, err
	}
	return st.Chmod(st.Mode | 0o222), nil
}

func (o *Overlay) Unlink(p string, c cred.Cred) error     { return o.unlink(p, c) }
func (o *Overlay) UnlinkSync(p string, c cred.Cred) error { return o.unlink(p, c) }

func (o *Overlay) unlink(p string, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	if p == deletionLogPath {
		return verrno.NewPath(verrno.EPERM, p, "deletion log path is reserved")
	}
	onUpper := o.existsRoot(o.upper, p)
	if onUpper {
		if err := o.upper.Unlink(p, c); err != nil {
			return err
		}
	}
	if o.existsRoot(o.lower, p) {
		o.log.markDeleted(p)
		return nil
	}
	if !onUpper {
		return verrno.NewPath(verrno.ENOENT, p, "no such file or directory")
	}
	return nil
}

func (o *Overlay) Mkdir(p string, mode uint32, c cred.Cred) error     { return o.mkdir(p, mode, c) }
func (o *Overlay) MkdirSync(p string, mode uint32, c cred.Cred) error { return o.mkdir(p, mode, c) }

func (o *Overlay) mkdir(p string, mode uint32, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	if o.exists(p) {
		return verrno.NewPath(verrno.EEXIST, p, "file already exists")
	}
	if err := o.ensureUpperDirs(path.Dir(p), c); err != nil {
		return err
	}
	return o.upper.Mkdir(p, mode, c)
}

func (o *Overlay) Rmdir(p string, c cred.Cred) error     { return o.rmdir(p, c) }
func (o *Overlay) RmdirSync(p string, c cred.Cred) error { return o.rmdir(p, c) }

func (o *Overlay) rmdir(p string, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	names, err := o.readdir(p, c)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return verrno.NewPath(verrno.ENOTEMPTY, p, "directory not empty")
	}
	onUpper := o.existsRoot(o.upper, p)
	if onUpper {
		if err := o.upper.Rmdir(p, c); err != nil {
			return err
		}
	}
	if o.existsRoot(o.lower, p) {
		o.log.markDeleted(p)
		return nil
	}
	if !onUpper {
		return verrno.NewPath(verrno.ENOENT, p, "no such file or directory")
	}
	return nil
}

func (o *Overlay) Readdir(p string, c cred.Cred) ([]string, error) {
	return o.readdir(p, c)
}
func (o *Overlay) ReaddirSync(p string, c cred.Cred) ([]string, error) {
	return o.readdir(p, c)
}

func (o *Overlay) readdir(p string, c cred.Cred) ([]string, error) {
	if err := o.log.ensureInitialized(); err != nil {
		return nil, err
	}
	upperHas := o.existsRoot(o.upper, p)
	lowerHas := o.existsRoot(o.lower, p) && !o.log.isDeleted(p)
	if !upperHas && !lowerHas {
		return nil, verrno.NewPath(verrno.ENOENT, p, "no such file or directory")
	}
	seen := make(map[string]bool)
	var out []string
	if upperHas {
		names, err := o.upper.Readdir(p, c)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	if lowerHas {
		names, err := o.lower.Readdir(p, c)
		if err == nil {
			for _, n := range names {
				if o.log.isDeleted(path.Join(p, n)) {
					continue
				}
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
	}
	return out, nil
}

func (o *Overlay) Chmod(p string, mode uint32, c cred.Cred) error     { return o.chmod(p, mode, c) }
func (o *Overlay) ChmodSync(p string, mode uint32, c cred.Cred) error { return o.chmod(p, mode, c) }

func (o *Overlay) chmod(p string, mode uint32, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	if err := o.copyUp(p, c); err != nil {
		return err
	}
	return o.upper.Chmod(p, mode, c)
}

func (o *Overlay) Chown(p string, uid, gid float64, c cred.Cred) error {
	return o.chown(p, uid, gid, c)
}
func (o *Overlay) ChownSync(p string, uid, gid float64, c cred.Cred) error {
	return o.chown(p, uid, gid, c)
}

func (o *Overlay) chown(p string, uid, gid float64, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	if err := o.copyUp(p, c); err != nil {
		return err
	}
	return o.upper.Chown(p, uid, gid, c)
}

func (o *Overlay) Utimes(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return o.utimes(p, atimeMs, mtimeMs, c)
}
func (o *Overlay) UtimesSync(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return o.utimes(p, atimeMs, mtimeMs, c)
}

func (o *Overlay) utimes(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	if err := o.copyUp(p, c); err != nil {
		return err
	}
	return o.upper.Utimes(p, atimeMs, mtimeMs, c)
}

func (o *Overlay) Link(existingPath, newPath string, c cred.Cred) error {
	return o.link(existingPath, newPath, c)
}
func (o *Overlay) LinkSync(existingPath, newPath string, c cred.Cred) error {
	return o.link(existingPath, newPath, c)
}

func (o *Overlay) link(existingPath, newPath string, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	if err := o.copyUp(existingPath, c); err != nil {
		return err
	}
	if err := o.ensureUpperDirs(path.Dir(newPath), c); err != nil {
		return err
	}
	return o.upper.Link(existingPath, newPath, c)
}

func (o *Overlay) Rename(oldPath, newPath string, c cred.Cred) error {
	return o.rename(oldPath, newPath, c)
}
func (o *Overlay) RenameSync(oldPath, newPath string, c cred.Cred) error {
	return o.rename(oldPath, newPath, c)
}

func (o *Overlay) rename(oldPath, newPath string, c cred.Cred) error {
	if err := o.log.ensureInitialized(); err != nil {
		return err
	}
	srcStat, err := o.stat(oldPath, c)
	if err != nil {
		return err
	}
	if srcStat.IsDirectory() {
		return o.renameDir(oldPath, newPath, srcStat, c)
	}
	return o.renameFile(oldPath, newPath, srcStat, c)
}

func (o *Overlay) renameFile(oldPath, newPath string, srcStat stat.Stats, c cred.Cred) error {
	if o.exists(newPath) {
		destStat, err := o.stat(newPath, c)
		if err == nil && destStat.IsDirectory() {
			return verrno.NewPath(verrno.EISDIR, newPath, "destination is a directory")
		}
	}
	data, err := vfsfs.ReadFile(o, oldPath, c)
	if err != nil {
		return err
	}
	if err := o.ensureUpperDirs(path.Dir(newPath), c); err != nil {
		return err
	}
	if err := vfsfs.WriteFile(o.upper, newPath, data, srcStat.Mode&stat.PermMask, c); err != nil {
		return err
	}
	return o.unlink(oldPath, c)
}

func (o *Overlay) renameDir(oldPath, newPath string, srcStat stat.Stats, c cred.Cred) error {
	if o.exists(newPath) {
		destStat, err := o.stat(newPath, c)
		if err != nil {
			return err
		}
		if !destStat.IsDirectory() {
			return verrno.NewPath(verrno.ENOTDIR, newPath, "destination is not a directory")
		}
		children, err := o.readdir(newPath, c)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return verrno.NewPath(verrno.ENOTEMPTY, newPath, "destination directory not empty")
		}
	} else {
		if err := o.ensureUpperDirs(path.Dir(newPath), c); err != nil {
			return err
		}
		if err := o.upper.Mkdir(newPath, 0o777, c); err != nil {
			if apiErr, ok := verrno.As(err); !ok || apiErr.Code != verrno.EEXIST {
				return err
			}
		}
	}

	if o.existsRoot(o.upper, oldPath) {
		if err := o.upper.Rename(oldPath, newPath, c); err != nil {
			if apiErr, ok := verrno.As(err); !ok || apiErr.Code != verrno.EEXIST {
				return err
			}
		}
	}

	children, err := o.readdir(oldPath, c)
	if err != nil {
		if apiErr, ok := verrno.As(err); !ok || apiErr.Code != verrno.ENOENT {
			return err
		}
		children = nil
	}
	for _, name := range children {
		if err := o.rename(path.Join(oldPath, name), path.Join(newPath, name), c); err != nil {
			return err
		}
	}

	if o.exists(oldPath) {
		return o.rmdir(oldPath, c)
	}
	return nil
}

var _ vfsfs.SyncFileSystem = (*Overlay)(nil)
