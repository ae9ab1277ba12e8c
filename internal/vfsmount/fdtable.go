package vfsmount

import (
	"sync"

	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
)

// fdTable is the process-wide file descriptor table. Allocation starts
// at 100 and is monotonically increasing; it never reuses a closed
// descriptor's number.
type fdTable struct {
	mu      sync.Mutex
	next    int
	handles map[int]*vfile.PreloadFile
}

func newFDTable() *fdTable {
	return &fdTable{next: 100, handles: make(map[int]*vfile.PreloadFile)}
}

func (t *fdTable) allocate(f *vfile.PreloadFile) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.handles[fd] = f
	return fd
}

func (t *fdTable) lookup(fd int) (*vfile.PreloadFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.handles[fd]
	if !ok {
		return nil, verrno.New(verrno.EBADF, "bad file descriptor %d", fd)
	}
	return f, nil
}

func (t *fdTable) release(fd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[fd]; !ok {
		return verrno.New(verrno.EBADF, "bad file descriptor %d", fd)
	}
	delete(t.handles, fd)
	return nil
}
