// Package mirror implements the synchronous/asynchronous mirrored
// filesystem: a synchronous backend is authoritative and answers every
// call immediately, while a shadow asynchronous backend is kept
// eventually consistent by a background writer queue so it can be
// swapped in after a crash without replaying history.
package mirror

import (
	"context"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
)

// Mirror wraps a synchronous backend and an asynchronous shadow backend.
// It always answers from sync and declares Metadata().Synchronous true;
// every mutation is applied to sync immediately and then replayed onto
// async by a single background writer so the two trees converge. A
// caller waits on async I/O only when the writer queue is full (1024
// pending ops), and New waits for the initial copy-in.
type Mirror struct {
	sync  vfsfs.SyncFileSystem
	async vfsfs.FileSystem
	clock clock.Clock
	queue *writerQueue
}

// New builds a Mirror, recursively copying async's current tree onto
// sync before returning so the two start out identical. async must
// already contain whatever pre-existing state should survive the mirror
// being (re)built; sync is treated as disposable scratch space.
func New(sync vfsfs.SyncFileSystem, async vfsfs.FileSystem, clk clock.Clock) (*Mirror, error) {
	m := &Mirror{sync: sync, async: async, clock: clk, queue: newWriterQueue(1024)}
	if err := m.copyIn("/", cred.Root); err != nil {
		return nil, err
	}
	return m, nil
}

// FatalError reports the latched "filesystem desynchronized" error, if
// any mirrored write has ever failed.
func (m *Mirror) FatalError() error {
	return m.queue.FatalError()
}

func (m *Mirror) copyIn(p string, c cred.Cred) error {
	st, err := m.async.Stat(p, c)
	if err != nil {
		return err
	}
	if st.IsDirectory() {
		if p != "/" {
			if err := m.sync.MkdirSync(p, st.Mode&stat.PermMask, c); err != nil {
				if apiErr, ok := verrno.As(err); !ok || apiErr.Code != verrno.EEXIST {
					return err
				}
			}
		}
		names, err := m.async.Readdir(p, c)
		if err != nil {
			return err
		}
		g, _ := errgroup.WithContext(context.Background())
		for _, name := range names {
			child := path.Join(p, name)
			g.Go(func() error { return m.copyIn(child, c) })
		}
		return g.Wait()
	}
	data, err := vfsfs.ReadFile(m.async, p, c)
	if err != nil {
		return err
	}
	return vfsfs.WriteFile(m.sync, p, data, st.Mode&stat.PermMask, c)
}

func (m *Mirror) mirrorSyncer(p string) vfile.Syncer {
	return vfile.SyncerFunc(func(_ string, data []byte, st stat.Stats) error {
		if err := vfsfs.WriteFile(m.sync, p, data, st.Mode&stat.PermMask, cred.Root); err != nil {
			return err
		}
		m.queue.enqueue(func() error {
			return vfsfs.WriteFile(m.async, p, data, st.Mode&stat.PermMask, cred.Root)
		})
		return nil
	})
}

func (m *Mirror) Metadata() vfsfs.Metadata {
	md := m.sync.Metadata()
	md.Synchronous = true
	md.Name = "mirror(" + m.sync.Metadata().Name + "," + m.async.Metadata().Name + ")"
	return md
}

func (m *Mirror) OpenFile(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	return m.OpenFileSync(path, flag, c)
}

func (m *Mirror) OpenFileSync(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	f, err := m.sync.OpenFileSync(path, flag, c)
	if err != nil {
		return nil, err
	}
	return vfile.New(m.clock, m.mirrorSyncer(path), path, flag, f.Stat(), f.Bytes()), nil
}

func (m *Mirror) CreateFile(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	return m.CreateFileSync(path, flag, mode, c)
}

func (m *Mirror) CreateFileSync(path string, flag fsflag.FileFlag, mode uint32, c cred.Cred) (*vfile.PreloadFile, error) {
	f, err := m.sync.CreateFileSync(path, flag, mode, c)
	if err != nil {
		return nil, err
	}
	return vfile.New(m.clock, m.mirrorSyncer(path), path, flag, f.Stat(), f.Bytes()), nil
}

func (m *Mirror) Stat(path string, c cred.Cred) (stat.Stats, error) { return m.sync.StatSync(path, c) }
func (m *Mirror) StatSync(path string, c cred.Cred) (stat.Stats, error) {
	return m.sync.StatSync(path, c)
}

func (m *Mirror) Readdir(path string, c cred.Cred) ([]string, error) {
	return m.sync.ReaddirSync(path, c)
}
func (m *Mirror) ReaddirSync(path string, c cred.Cred) ([]string, error) {
	return m.sync.ReaddirSync(path, c)
}

func (m *Mirror) Unlink(path string, c cred.Cred) error { return m.UnlinkSync(path, c) }
func (m *Mirror) UnlinkSync(path string, c cred.Cred) error {
	if err := m.sync.UnlinkSync(path, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Unlink(path, c) })
	return nil
}

func (m *Mirror) Mkdir(path string, mode uint32, c cred.Cred) error { return m.MkdirSync(path, mode, c) }
func (m *Mirror) MkdirSync(path string, mode uint32, c cred.Cred) error {
	if err := m.sync.MkdirSync(path, mode, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Mkdir(path, mode, c) })
	return nil
}

func (m *Mirror) Rmdir(path string, c cred.Cred) error { return m.RmdirSync(path, c) }
func (m *Mirror) RmdirSync(path string, c cred.Cred) error {
	if err := m.sync.RmdirSync(path, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Rmdir(path, c) })
	return nil
}

func (m *Mirror) Rename(oldPath, newPath string, c cred.Cred) error {
	return m.RenameSync(oldPath, newPath, c)
}
func (m *Mirror) RenameSync(oldPath, newPath string, c cred.Cred) error {
	if err := m.sync.RenameSync(oldPath, newPath, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Rename(oldPath, newPath, c) })
	return nil
}

func (m *Mirror) Link(existingPath, newPath string, c cred.Cred) error {
	return m.LinkSync(existingPath, newPath, c)
}
func (m *Mirror) LinkSync(existingPath, newPath string, c cred.Cred) error {
	if err := m.sync.LinkSync(existingPath, newPath, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Link(existingPath, newPath, c) })
	return nil
}

func (m *Mirror) Chmod(path string, mode uint32, c cred.Cred) error { return m.ChmodSync(path, mode, c) }
func (m *Mirror) ChmodSync(path string, mode uint32, c cred.Cred) error {
	if err := m.sync.ChmodSync(path, mode, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Chmod(path, mode, c) })
	return nil
}

func (m *Mirror) Chown(path string, uid, gid float64, c cred.Cred) error {
	return m.ChownSync(path, uid, gid, c)
}
func (m *Mirror) ChownSync(path string, uid, gid float64, c cred.Cred) error {
	if err := m.sync.ChownSync(path, uid, gid, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Chown(path, uid, gid, c) })
	return nil
}

func (m *Mirror) Utimes(path string, atimeMs, mtimeMs float64, c cred.Cred) error {
	return m.UtimesSync(path, atimeMs, mtimeMs, c)
}
func (m *Mirror) UtimesSync(path string, atimeMs, mtimeMs float64, c cred.Cred) error {
	if err := m.sync.UtimesSync(path, atimeMs, mtimeMs, c); err != nil {
		return err
	}
	m.queue.enqueue(func() error { return m.async.Utimes(path, atimeMs, mtimeMs, c) })
	return nil
}

var _ vfsfs.SyncFileSystem = (*Mirror)(nil)
