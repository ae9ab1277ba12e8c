package mirror

import (
	"sync"

	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
)

// writerQueue is the single-writer FIFO that drains mirrored operations
// onto the async backend in the order they were enqueued. Once any
// mirrored call fails, the queue latches a fatal "filesystem
// desynchronized" error and silently drops further enqueues: the sync
// side of the mirror keeps working, but nothing more reaches async until
// the mirror is rebuilt from scratch (there is no repair path for a
// sync/async tree that has drifted apart mid-queue).
type writerQueue struct {
	ops chan func() error

	mu    sync.Mutex
	fatal error
}

func newWriterQueue(capacity int) *writerQueue {
	q := &writerQueue{ops: make(chan func() error, capacity)}
	go q.drain()
	return q
}

func (q *writerQueue) enqueue(op func() error) {
	q.mu.Lock()
	desynced := q.fatal != nil
	q.mu.Unlock()
	if desynced {
		return
	}
	q.ops <- op
}

func (q *writerQueue) drain() {
	for op := range q.ops {
		q.mu.Lock()
		desynced := q.fatal != nil
		q.mu.Unlock()
		if desynced {
			continue
		}
		if err := op(); err != nil {
			q.mu.Lock()
			q.fatal = verrno.New(verrno.EIO, "filesystem desynchronized: %v", err)
			q.mu.Unlock()
		}
	}
}

// FatalError returns the latched desync error, if any mirrored operation
// has ever failed.
func (q *writerQueue) FatalError() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fatal
}
