package overlay

import (
	"strings"
	"sync"

	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
)

const deletionLogPath = "/.deletedFiles.log"

// deletionLog tracks which lower-only paths have been shadow-deleted by
// the overlay, persisting marks to a log file on the writable side. Marks
// are applied to the in-memory map immediately so exists/stat/readdir see
// them right away; the log file itself is written by a single background
// writer that coalesces concurrent marks into one append rather than
// queuing one write per mark (§4.J's "needs-another-write flag").
type deletionLog struct {
	upper vfsfs.SyncFileSystem

	once    sync.Once
	initErr error

	mu       sync.Mutex
	deleted  map[string]bool
	pending  []string
	writing  bool
	needMore bool
	writeErr error
}

func newDeletionLog(upper vfsfs.SyncFileSystem) *deletionLog {
	return &deletionLog{upper: upper, deleted: make(map[string]bool)}
}

// ensureInitialized loads the log on first call. An error latched by a
// failed background write is returned once, by the next call, and then
// cleared.
func (d *deletionLog) ensureInitialized() error {
	d.once.Do(func() {
		d.initErr = d.load()
	})
	if d.initErr != nil {
		return verrno.New(verrno.EPERM, "overlay not initialized: %v", d.initErr)
	}
	d.mu.Lock()
	err := d.writeErr
	d.writeErr = nil
	d.mu.Unlock()
	return err
}

func (d *deletionLog) load() error {
	data, err := vfsfs.ReadFile(d.upper, deletionLogPath, cred.Root)
	if err != nil {
		if apiErr, ok := verrno.As(err); ok && apiErr.Code == verrno.ENOENT {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		d.deleted[line[1:]] = line[0] == 'd'
	}
	return nil
}

func (d *deletionLog) isDeleted(p string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleted[p]
}

// markDeleted flips p's in-memory state immediately and schedules the
// durable append.
func (d *deletionLog) markDeleted(p string) {
	d.mu.Lock()
	d.deleted[p] = true
	d.pending = append(d.pending, "d"+p+"\n")
	alreadyWriting := d.writing
	if alreadyWriting {
		d.needMore = true
		d.mu.Unlock()
		return
	}
	d.writing = true
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()
	go d.flush(batch)
}

func (d *deletionLog) flush(batch []string) {
	for {
		err := vfsfs.AppendFile(d.upper, deletionLogPath, []byte(strings.Join(batch, "")), 0o644, cred.Root)
		d.mu.Lock()
		if err != nil {
			d.writeErr = err
		}
		if !d.needMore {
			d.writing = false
			d.mu.Unlock()
			return
		}
		d.needMore = false
		batch = d.pending
		d.pending = nil
		d.mu.Unlock()
	}
}
