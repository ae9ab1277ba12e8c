package vfsmount

import (
	"path"
	"strings"

	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
)

// VFS is the top-level dispatch layer: it normalizes paths, resolves the
// owning backend via the mount table, dispatches the operation, rewrites
// any escaping error back to the caller's path, and owns the process-
// wide file descriptor table.
type VFS struct {
	table *Table
	fds   *fdTable
}

// NewVFS builds a VFS with root mounted at "/".
func NewVFS(root vfsfs.FileSystem) *VFS {
	return &VFS{table: NewTable(root), fds: newFDTable()}
}

// Initialize replaces the mount table with mounts; the current root stays
// mounted unless mounts has its own "/" entry.
func (v *VFS) Initialize(mounts map[string]vfsfs.FileSystem) error {
	return v.table.Initialize(mounts)
}

// Mount adds or replaces a single mount point.
func (v *VFS) Mount(prefix string, fs vfsfs.FileSystem) error { return v.table.Mount(prefix, fs) }

// Unmount removes a mount point ("/" is never removed).
func (v *VFS) Unmount(prefix string) { v.table.Unmount(prefix) }

func normalize(p string) (string, error) {
	if p == "" {
		return "", verrno.New(verrno.EINVAL, "path must not be empty")
	}
	if strings.IndexByte(p, 0) >= 0 {
		return "", verrno.NewPath(verrno.EINVAL, p, "path contains a NUL byte")
	}
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned, nil
}

// resolve normalizes path and looks up its owning backend.
func (v *VFS) resolve(p string) (fs vfsfs.FileSystem, norm, intra string, err error) {
	norm, err = normalize(p)
	if err != nil {
		return nil, "", "", err
	}
	fs, _, intra = v.table.Resolve(norm)
	return fs, norm, intra, nil
}

func rewriteErr(err error, intra, full string) error {
	apiErr, ok := verrno.As(err)
	if !ok {
		return err
	}
	apiErr.RewritePath(intra, full)
	return apiErr
}

// Realpath normalizes path, asks the resolved backend to stat it (so a
// missing path fails), and returns the normalized path. A symlink reported
// by a backend is not followed: its own path is returned. No backend in
// this kernel reports a symlink (see DESIGN.md).
func (v *VFS) Realpath(p string, c cred.Cred) (string, error) {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return "", err
	}
	st, err := fs.Stat(intra, c)
	if err != nil {
		return "", rewriteErr(err, intra, norm)
	}
	if !st.IsSymlink() {
		return norm, nil
	}
	return norm, nil
}

// Stat and Lstat are identical: nothing in this kernel ever reports a
// symlink, so there is no distinct "don't follow" behavior to implement.
func (v *VFS) Stat(p string, c cred.Cred) (stat.Stats, error) {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return stat.Stats{}, err
	}
	st, err := fs.Stat(intra, c)
	if err != nil {
		return stat.Stats{}, rewriteErr(err, intra, norm)
	}
	return st, nil
}

func (v *VFS) Lstat(p string, c cred.Cred) (stat.Stats, error) { return v.Stat(p, c) }

func (v *VFS) Exists(p string, c cred.Cred) bool {
	_, err := v.Stat(p, c)
	return err == nil
}

// Access checks want (POSIX R_OK/W_OK/X_OK bits) against path's owner,
// group, and mode, with the same root-bypass and owner/group/other
// shift logic as internal/stat.Inode.CheckAccess.
func (v *VFS) Access(p string, want uint32, c cred.Cred) error {
	st, err := v.Stat(p, c)
	if err != nil {
		return err
	}
	if c.IsRoot() {
		return nil
	}
	perm := st.Mode & stat.PermMask
	var shift uint
	switch {
	case c.EUID == st.UID:
		shift = 6
	case c.EGID == st.GID:
		shift = 3
	default:
		shift = 0
	}
	if (perm>>shift)&0o7&want != want {
		return verrno.NewPath(verrno.EACCES, p, "permission denied")
	}
	return nil
}

func (v *VFS) Truncate(p string, length int, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := vfsfs.Truncate(fs, intra, length, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) Unlink(p string, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := fs.Unlink(intra, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) Mkdir(p string, mode uint32, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := fs.Mkdir(intra, mode, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) Rmdir(p string, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := fs.Rmdir(intra, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

// Readdir augments the backend's listing with any mount points that sit
// directly under path (exactly one segment deeper).
func (v *VFS) Readdir(p string, c cred.Cred) ([]string, error) {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return nil, err
	}
	names, err := fs.Readdir(intra, c)
	if err != nil {
		return nil, rewriteErr(err, intra, norm)
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	prefix := norm
	if prefix != "/" {
		prefix += "/"
	}
	for _, mp := range v.table.MountPoints() {
		if !strings.HasPrefix(mp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(mp, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		if !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out, nil
}

func (v *VFS) ReadFile(p string, c cred.Cred) ([]byte, error) {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := vfsfs.ReadFile(fs, intra, c)
	if err != nil {
		return nil, rewriteErr(err, intra, norm)
	}
	return data, nil
}

func (v *VFS) WriteFile(p string, data []byte, mode uint32, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := vfsfs.WriteFile(fs, intra, data, mode, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) AppendFile(p string, data []byte, mode uint32, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := vfsfs.AppendFile(fs, intra, data, mode, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) Chmod(p string, mode uint32, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := fs.Chmod(intra, mode, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) Lchmod(p string, mode uint32, c cred.Cred) error { return v.Chmod(p, mode, c) }

func (v *VFS) Chown(p string, uid, gid float64, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := fs.Chown(intra, uid, gid, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) Lchown(p string, uid, gid float64, c cred.Cred) error { return v.Chown(p, uid, gid, c) }

func (v *VFS) Utimes(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return err
	}
	if err := fs.Utimes(intra, atimeMs, mtimeMs, c); err != nil {
		return rewriteErr(err, intra, norm)
	}
	return nil
}

func (v *VFS) Lutimes(p string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return v.Utimes(p, atimeMs, mtimeMs, c)
}

func (v *VFS) Link(existingPath, newPath string, c cred.Cred) error {
	existingFS, existingNorm, existingIntra, err := v.resolve(existingPath)
	if err != nil {
		return err
	}
	newFS, newNorm, newIntra, err := v.resolve(newPath)
	if err != nil {
		return err
	}
	if existingFS != newFS {
		return verrno.NewPath(verrno.ENOTSUP, existingPath, "cannot link across mount points")
	}
	if err := existingFS.Link(existingIntra, newIntra, c); err != nil {
		apiErr := rewriteErr(err, existingIntra, existingNorm)
		if ae, ok := verrno.As(apiErr); ok {
			ae.RewritePath(newIntra, newNorm)
		}
		return apiErr
	}
	return nil
}

// Symlink and Readlink have no backend to serve them: every backend in
// this kernel declares no symlink support.
func (v *VFS) Symlink(target, linkPath string, linkType string, c cred.Cred) error {
	return verrno.NewPath(verrno.ENOTSUP, linkPath, "symlinks are not supported")
}

func (v *VFS) Readlink(p string, c cred.Cred) (string, error) {
	return "", verrno.NewPath(verrno.ENOTSUP, p, "symlinks are not supported")
}

// Rename is special: crossing mount points has no atomic primitive, so
// it emulates via read+write+unlink; within one mount it delegates
// straight to the backend's rename.
func (v *VFS) Rename(oldPath, newPath string, c cred.Cred) error {
	oldFS, oldNorm, oldIntra, err := v.resolve(oldPath)
	if err != nil {
		return err
	}
	newFS, newNorm, newIntra, err := v.resolve(newPath)
	if err != nil {
		return err
	}
	if oldFS == newFS {
		if err := oldFS.Rename(oldIntra, newIntra, c); err != nil {
			apiErr := rewriteErr(err, oldIntra, oldNorm)
			if ae, ok := verrno.As(apiErr); ok {
				ae.RewritePath(newIntra, newNorm)
			}
			return apiErr
		}
		return nil
	}

	data, err := vfsfs.ReadFile(oldFS, oldIntra, c)
	if err != nil {
		return rewriteErr(err, oldIntra, oldNorm)
	}
	st, err := oldFS.Stat(oldIntra, c)
	if err != nil {
		return rewriteErr(err, oldIntra, oldNorm)
	}
	if err := vfsfs.WriteFile(newFS, newIntra, data, st.Mode&stat.PermMask, c); err != nil {
		return rewriteErr(err, newIntra, newNorm)
	}
	if err := oldFS.Unlink(oldIntra, c); err != nil {
		return rewriteErr(err, oldIntra, oldNorm)
	}
	return nil
}

// --- file descriptor table ---

// Open allocates a new fd for path opened with flag/mode.
func (v *VFS) Open(p string, flagStr string, mode uint32, c cred.Cred) (int, error) {
	flag, err := fsflag.Parse(flagStr)
	if err != nil {
		return 0, err
	}
	fs, norm, intra, err := v.resolve(p)
	if err != nil {
		return 0, err
	}
	f, err := vfsfs.Open(fs, intra, flag, mode, c)
	if err != nil {
		return 0, rewriteErr(err, intra, norm)
	}
	return v.fds.allocate(f), nil
}

func (v *VFS) Close(fd int) error {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return v.fds.release(fd)
}

func (v *VFS) Fstat(fd int) (stat.Stats, error) {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return stat.Stats{}, err
	}
	return f.Stat(), nil
}

func (v *VFS) Read(fd int, buf []byte, offset, length, position int) (int, error) {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return 0, err
	}
	return f.Read(buf, offset, length, position)
}

func (v *VFS) Write(fd int, buf []byte, offset, length, position int) (int, error) {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return 0, err
	}
	return f.Write(buf, offset, length, position)
}

func (v *VFS) Ftruncate(fd int, length int) error {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return err
	}
	return f.Truncate(length)
}

func (v *VFS) Fchmod(fd int, mode uint32) error {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return err
	}
	f.Chmod(mode)
	return f.Sync()
}

func (v *VFS) Fchown(fd int, uid, gid float64) error {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return err
	}
	f.Chown(uid, gid)
	return f.Sync()
}

func (v *VFS) Futimes(fd int, atimeMs, mtimeMs float64) error {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return err
	}
	f.Utimes(atimeMs, mtimeMs)
	return f.Sync()
}

func (v *VFS) Fsync(fd int) error {
	f, err := v.fds.lookup(fd)
	if err != nil {
		return err
	}
	return f.Sync()
}

// Fdatasync is identical to Fsync: PreloadFile has no separate metadata-
// only vs full-data flush path to distinguish.
func (v *VFS) Fdatasync(fd int) error { return v.Fsync(fd) }
