// Package verrno defines the POSIX errno-keyed error taxonomy shared by
// every vfskernel backend and the mount/dispatch layer.
package verrno

import "golang.org/x/sys/unix"

// Code is a libc-style errno name, e.g. "ENOENT".
type Code string

const (
	EPERM     Code = "EPERM"
	ENOENT    Code = "ENOENT"
	EIO       Code = "EIO"
	EBADF     Code = "EBADF"
	EACCES    Code = "EACCES"
	EBUSY     Code = "EBUSY"
	EEXIST    Code = "EEXIST"
	ENOTDIR   Code = "ENOTDIR"
	EISDIR    Code = "EISDIR"
	EINVAL    Code = "EINVAL"
	EFBIG     Code = "EFBIG"
	ENOSPC    Code = "ENOSPC"
	EROFS     Code = "EROFS"
	ENOTEMPTY Code = "ENOTEMPTY"
	ENOTSUP   Code = "ENOTSUP"
)

// errnoOf maps each Code to golang.org/x/sys/unix's integer constant for
// the subset of errnos this kernel surfaces.
var errnoOf = map[Code]int{
	EPERM:     int(unix.EPERM),
	ENOENT:    int(unix.ENOENT),
	EIO:       int(unix.EIO),
	EBADF:     int(unix.EBADF),
	EACCES:    int(unix.EACCES),
	EBUSY:     int(unix.EBUSY),
	EEXIST:    int(unix.EEXIST),
	ENOTDIR:   int(unix.ENOTDIR),
	EISDIR:    int(unix.EISDIR),
	EINVAL:    int(unix.EINVAL),
	EFBIG:     int(unix.EFBIG),
	ENOSPC:    int(unix.ENOSPC),
	EROFS:     int(unix.EROFS),
	ENOTEMPTY: int(unix.ENOTEMPTY),
	ENOTSUP:   int(unix.ENOTSUP),
}

// Errno returns the libc integer value for code, or 0 if code is unknown.
func (c Code) Errno() int {
	return errnoOf[c]
}
