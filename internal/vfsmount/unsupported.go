package vfsmount

import "github.com/cloudnative-vfs/vfskernel/internal/verrno"

// The following exist only as surface: every one of them raises ENOTSUP.
// None of this kernel's backends implement change notification, byte
// streams, vectored I/O, or temp-directory/recursive-delete helpers.

func (v *VFS) Watch(p string) error {
	return verrno.NewPath(verrno.ENOTSUP, p, "watch is not supported")
}

func (v *VFS) WatchFile(p string) error {
	return verrno.NewPath(verrno.ENOTSUP, p, "watchFile is not supported")
}

func (v *VFS) UnwatchFile(p string) error {
	return verrno.NewPath(verrno.ENOTSUP, p, "unwatchFile is not supported")
}

func (v *VFS) CreateReadStream(p string) error {
	return verrno.NewPath(verrno.ENOTSUP, p, "streams are not supported")
}

func (v *VFS) CreateWriteStream(p string) error {
	return verrno.NewPath(verrno.ENOTSUP, p, "streams are not supported")
}

func (v *VFS) Rm(p string) error {
	return verrno.NewPath(verrno.ENOTSUP, p, "rm is not supported")
}

func (v *VFS) Mkdtemp(prefix string) (string, error) {
	return "", verrno.NewPath(verrno.ENOTSUP, prefix, "mkdtemp is not supported")
}

func (v *VFS) CopyFile(src, dst string) error {
	return verrno.NewPath(verrno.ENOTSUP, src, "copyFile is not supported")
}

func (v *VFS) Readv(fd int, buffers [][]byte, position int) (int, error) {
	return 0, verrno.New(verrno.ENOTSUP, "readv is not supported")
}

func (v *VFS) Writev(fd int, buffers [][]byte, position int) (int, error) {
	return 0, verrno.New(verrno.ENOTSUP, "writev is not supported")
}

func (v *VFS) Opendir(p string) error {
	return verrno.NewPath(verrno.ENOTSUP, p, "opendir is not supported")
}
