package vfsfs

import (
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
)

// Open implements the default open() built on OpenFile/CreateFile and a
// stat probe, per §4.F: every backend gets this for free by implementing
// only OpenFile/CreateFile/Stat.
func Open(fs FileSystem, path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	_, err := fs.Stat(path, c)
	exists := err == nil
	if err != nil {
		if apiErr, ok := verrno.As(err); !ok || apiErr.Code != verrno.ENOENT {
			return nil, err
		}
	}

	if exists {
		switch flag.PathExistsAction() {
		case fsflag.THROW_EXCEPTION:
			return nil, verrno.NewPath(verrno.EEXIST, path, "file already exists")
		case fsflag.TRUNCATE_FILE:
			f, err := fs.OpenFile(path, flag, c)
			if err != nil {
				return nil, err
			}
			if err := f.Truncate(0); err != nil {
				return nil, err
			}
			return f, nil
		default: // NOP
			return fs.OpenFile(path, flag, c)
		}
	}

	switch flag.PathNotExistsAction() {
	case fsflag.CREATE_FILE:
		return fs.CreateFile(path, flag, mode, c)
	default:
		return nil, verrno.NewPath(verrno.ENOENT, path, "no such file or directory")
	}
}

// withFile opens path with flagStr, runs fn, and closes the handle on
// every exit path including when fn returns an error (§5 "scoped
// acquisition").
func withFile(fs FileSystem, path, flagStr string, mode uint32, c cred.Cred, fn func(*vfile.PreloadFile) error) error {
	flag, err := fsflag.Parse(flagStr)
	if err != nil {
		return err
	}
	f, err := Open(fs, path, flag, mode, c)
	if err != nil {
		return err
	}
	fnErr := fn(f)
	closeErr := f.Close()
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

// ReadFile reads the entire contents of path.
func ReadFile(fs FileSystem, path string, c cred.Cred) ([]byte, error) {
	var out []byte
	err := withFile(fs, path, "r", 0, c, func(f *vfile.PreloadFile) error {
		st := f.Stat()
		buf := make([]byte, st.Size)
		n, err := f.Read(buf, 0, len(buf), 0)
		if err != nil {
			return err
		}
		out = buf[:n]
		return nil
	})
	return out, err
}

// WriteFile truncates (or creates) path and writes data to it.
func WriteFile(fs FileSystem, path string, data []byte, mode uint32, c cred.Cred) error {
	return withFile(fs, path, "w", mode, c, func(f *vfile.PreloadFile) error {
		_, err := f.Write(data, 0, len(data), 0)
		return err
	})
}

// AppendFile opens (or creates) path and appends data to it.
func AppendFile(fs FileSystem, path string, data []byte, mode uint32, c cred.Cred) error {
	return withFile(fs, path, "a", mode, c, func(f *vfile.PreloadFile) error {
		_, err := f.Write(data, 0, len(data), f.GetPos())
		return err
	})
}

// Truncate resizes an existing file to length bytes.
func Truncate(fs FileSystem, path string, length int, c cred.Cred) error {
	return withFile(fs, path, "r+", 0, c, func(f *vfile.PreloadFile) error {
		return f.Truncate(length)
	})
}

// Exists reports whether Stat succeeds, swallowing any error.
func Exists(fs FileSystem, path string, c cred.Cred) bool {
	_, err := fs.Stat(path, c)
	return err == nil
}

// Realpath is the identity function for backends that declare no symlink
// support (§4.F: "the identity if the backend declares no symlink
// support"). Every keyed engine in this kernel falls into that category
// per the Non-goals; only a backend that overrides Realpath (none do, by
// design — symlink emulation in the overlay is explicitly optional and
// not implemented here, see DESIGN.md) would resolve further segments.
func Realpath(fs FileSystem, path string) string {
	return path
}
