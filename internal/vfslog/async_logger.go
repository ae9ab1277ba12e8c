package vfslog

import (
	"fmt"
	"io"
	"os"
)

// AsyncLogger decouples writers from a potentially slow sink (a rotating
// file on disk) behind a buffered channel drained by a single goroutine.
// A full buffer means the sink can't keep up; rather than block the
// caller, the message is dropped and a warning goes to stderr.
type AsyncLogger struct {
	w       io.Writer
	entries chan []byte
	done    chan struct{}
}

func NewAsyncLogger(w io.Writer, bufferSize int) *AsyncLogger {
	l := &AsyncLogger{
		w:       w,
		entries: make(chan []byte, bufferSize),
		done:    make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *AsyncLogger) drain() {
	defer close(l.done)
	for b := range l.entries {
		l.w.Write(b)
	}
}

func (l *AsyncLogger) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)
	select {
	case l.entries <- b:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains any buffered entries to the underlying writer and waits
// for the background goroutine to exit.
func (l *AsyncLogger) Close() error {
	close(l.entries)
	<-l.done
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
