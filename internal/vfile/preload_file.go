// Package vfile implements PreloadFile: an in-memory buffered open file
// handle shared by every backend in this kernel. A backend supplies
// persistence (the Syncer) and decides how its own PreloadFile subclass's
// sync pushes the buffer back to storage; vfile only owns the buffer,
// position, and dirty tracking.
package vfile

import (
	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
)

// Syncer persists a PreloadFile's current buffer and stat record. It is
// injected rather than held as a back-reference from the file to its
// filesystem, so a PreloadFile never needs to know which concrete backend
// it belongs to (per the design note on avoiding cyclic ownership: the
// filesystem is passed in explicitly at sync/close time, not stored).
type Syncer interface {
	SyncSync(path string, data []byte, st stat.Stats) error
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(path string, data []byte, st stat.Stats) error

func (f SyncerFunc) SyncSync(path string, data []byte, st stat.Stats) error {
	return f(path, data, st)
}

// PreloadFile is an open file handle holding the entire file contents in
// memory.
type PreloadFile struct {
	clock  clock.Clock
	syncer Syncer

	path  string
	flag  fsflag.FileFlag
	stat  stat.Stats
	buf   []byte
	pos   int
	dirty bool
}

// New constructs a PreloadFile. Per the §3 invariant: if flag is readable
// then len(buf) must equal st.Size; writable-only modes may diverge and
// the buffer is resized as writes demand.
func New(c clock.Clock, syncer Syncer, path string, flag fsflag.FileFlag, st stat.Stats, buf []byte) *PreloadFile {
	if flag.IsReadable() && uint32(len(buf)) != st.Size {
		st.Size = uint32(len(buf))
	}
	return &PreloadFile{clock: c, syncer: syncer, path: path, flag: flag, stat: st, buf: buf}
}

// Path returns the path this handle was opened against.
func (f *PreloadFile) Path() string { return f.path }

// Flag returns the parsed open flag this handle was opened with.
func (f *PreloadFile) Flag() fsflag.FileFlag { return f.flag }

// Stat returns the file's current metadata.
func (f *PreloadFile) Stat() stat.Stats { return f.stat }

// IsDirty reports whether the buffer or metadata has unsynced changes.
func (f *PreloadFile) IsDirty() bool { return f.dirty }

// Bytes returns the current buffer contents. Callers must not retain the
// returned slice past the next Write/Truncate call.
func (f *PreloadFile) Bytes() []byte { return f.buf }

// GetPos returns the effective position for the next read/write: the
// current size when the flag is appendable (POSIX O_APPEND semantics
// ignore a tracked position and always write at EOF), else the tracked
// position.
func (f *PreloadFile) GetPos() int {
	if f.flag.IsAppendable() {
		return int(f.stat.Size)
	}
	return f.pos
}

// SetPos seeks to an explicit offset. Ignored on the next write if the
// flag is appendable.
func (f *PreloadFile) SetPos(pos int) { f.pos = pos }

// Write writes buf[off:off+length] at position pos into the file. It
// requires the writable flag bit, grows the buffer if needed, marks the
// file dirty, and bumps mtime. When the flag is synchronous it flushes
// immediately via the injected Syncer and returns the new total buffer
// length (preserving the source's documented discrepancy from POSIX,
// which expects bytes-written always — see §9). Otherwise it advances the
// tracked position and returns the number of bytes written.
func (f *PreloadFile) Write(data []byte, off, length, pos int) (int, error) {
	if !f.flag.IsWritable() {
		return 0, verrno.NewPath(verrno.EPERM, f.path, "file not opened for writing")
	}
	f.dirty = true
	end := pos + length
	if end > len(f.buf) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
		f.stat.Size = uint32(end)
	}
	copy(f.buf[pos:end], data[off:off+length])
	f.stat.MtimeMs = nowMs(f.clock)

	if f.flag.IsSynchronous() {
		if err := f.syncSync(); err != nil {
			return 0, err
		}
		return len(f.buf), nil
	}
	f.pos = pos + length
	return length, nil
}

// Read reads up to length bytes starting at pos into data[off:], clamped
// so that pos+length never exceeds the current size. It requires the
// readable flag bit, updates atime, and advances the tracked position.
func (f *PreloadFile) Read(data []byte, off, length, pos int) (int, error) {
	if !f.flag.IsReadable() {
		return 0, verrno.NewPath(verrno.EPERM, f.path, "file not opened for reading")
	}
	size := int(f.stat.Size)
	if pos >= size {
		f.stat.AtimeMs = nowMs(f.clock)
		f.pos = pos
		return 0, nil
	}
	if pos+length > size {
		length = size - pos
	}
	n := copy(data[off:off+length], f.buf[pos:pos+length])
	f.stat.AtimeMs = nowMs(f.clock)
	f.pos = pos + n
	return n, nil
}

// Truncate resizes the file to len bytes, requiring the writable flag
// bit. Growing writes zero bytes through Write; shrinking truncates the
// buffer directly and updates Size.
func (f *PreloadFile) Truncate(length int) error {
	if !f.flag.IsWritable() {
		return verrno.NewPath(verrno.EPERM, f.path, "file not opened for writing")
	}
	cur := int(f.stat.Size)
	if length > cur {
		zeros := make([]byte, length-cur)
		_, err := f.Write(zeros, 0, len(zeros), cur)
		return err
	}
	f.dirty = true
	f.buf = f.buf[:length]
	f.stat.Size = uint32(length)
	f.stat.MtimeMs = nowMs(f.clock)
	return nil
}

// Chmod replaces the file's permission bits, preserving type bits, and
// marks the file dirty for the next sync.
func (f *PreloadFile) Chmod(perm uint32) {
	f.stat = f.stat.Chmod(perm)
	f.stat.CtimeMs = nowMs(f.clock)
	f.dirty = true
}

// Chown replaces the file's uid/gid and marks the file dirty.
func (f *PreloadFile) Chown(uid, gid float64) {
	f.stat = f.stat.Chown(uid, gid)
	f.stat.CtimeMs = nowMs(f.clock)
	f.dirty = true
}

// Utimes sets atime/mtime explicitly (for the utimes family of calls).
func (f *PreloadFile) Utimes(atimeMs, mtimeMs float64) {
	f.stat.AtimeMs = atimeMs
	f.stat.MtimeMs = mtimeMs
	f.stat.CtimeMs = nowMs(f.clock)
	f.dirty = true
}

// Sync flushes the buffer and, if metadata changed, the stat record, via
// the injected Syncer.
func (f *PreloadFile) Sync() error {
	return f.syncSync()
}

func (f *PreloadFile) syncSync() error {
	if f.syncer == nil {
		return nil
	}
	err := f.syncer.SyncSync(f.path, f.buf, f.stat)
	if err == nil {
		f.dirty = false
	}
	return err
}

// Close implies Sync, matching the default close-is-sync contract; a
// backend whose PreloadFile subclass has no extra close behavior (e.g.
// the in-memory backend) need not override this.
func (f *PreloadFile) Close() error {
	return f.Sync()
}

func nowMs(c clock.Clock) float64 {
	return float64(c.Now().UnixMilli())
}
