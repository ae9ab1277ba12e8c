package vfslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudnative-vfs/vfskernel/cfg"
)

// wireHandler emits one of two fixed wire shapes, neither of which
// matches slog's stock text or JSON handlers:
//
//	text: time="2006-01-02T15:04:05Z" severity=INFO message="..."
//	json: {"timestamp":{"seconds":1,"nanos":0},"severity":"INFO","message":"..."}
type wireHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	format cfg.LogFormat
	prefix string
}

func newWireHandler(w io.Writer, level *slog.LevelVar, format cfg.LogFormat, prefix string) *wireHandler {
	return &wireHandler{mu: &sync.Mutex{}, w: w, level: level, format: format, prefix: prefix}
}

func (h *wireHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *wireHandler) Handle(_ context.Context, r slog.Record) error {
	sev := levelName(r.Level)
	msg := h.prefix + r.Message

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.format == cfg.LogFormatJSON {
		_, err := fmt.Fprintf(h.w, `{"timestamp":{"seconds":%d,"nanos":%d},"severity":%q,"message":%q}`+"\n",
			r.Time.Unix(), r.Time.Nanosecond(), sev, msg)
		return err
	}

	_, err := fmt.Fprintf(h.w, `time=%q severity=%s message=%q`+"\n", r.Time.Format(time.RFC3339), sev, msg)
	return err
}

func (h *wireHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *wireHandler) WithGroup(_ string) slog.Handler      { return h }
