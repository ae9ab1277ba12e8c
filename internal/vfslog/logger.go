package vfslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cloudnative-vfs/vfskernel/cfg"
)

const asyncBufferSize = 4096

type loggerFactory struct {
	mu sync.Mutex

	file   *lumberjack.Logger
	async  *AsyncLogger
	format cfg.LogFormat
	level  *slog.LevelVar
}

var (
	defaultLoggerFactory = &loggerFactory{level: &slog.LevelVar{}}
	defaultLogger        = slog.New(newWireHandler(os.Stderr, defaultLoggerFactory.level, cfg.LogFormatText, ""))
)

// Init configures the package-level logger from a fully rationalized
// cfg.LoggingConfig. If FilePath is empty, logs go to stderr directly
// (no async buffering needed for a stream that's already non-blocking
// from the kernel's point of view); otherwise writes go through an
// AsyncLogger backed by a rotating lumberjack file.
func Init(c cfg.LoggingConfig) error {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()

	if defaultLoggerFactory.async != nil {
		defaultLoggerFactory.async.Close()
		defaultLoggerFactory.async = nil
	}

	defaultLoggerFactory.level.Set(severityToLevel(c.Severity))
	defaultLoggerFactory.format = c.Format

	var w io.Writer = os.Stderr
	if c.FilePath != "" {
		defaultLoggerFactory.file = &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.LogRotate.MaxFileSizeMb,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
		defaultLoggerFactory.async = NewAsyncLogger(defaultLoggerFactory.file, asyncBufferSize)
		w = defaultLoggerFactory.async
	}

	defaultLogger = slog.New(newWireHandler(w, defaultLoggerFactory.level, defaultLoggerFactory.format, ""))
	return nil
}

// SetFormat swaps the wire format without touching the sink or level.
func SetFormat(format cfg.LogFormat) {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()
	defaultLoggerFactory.format = format

	var w io.Writer = os.Stderr
	if defaultLoggerFactory.async != nil {
		w = defaultLoggerFactory.async
	}
	defaultLogger = slog.New(newWireHandler(w, defaultLoggerFactory.level, format, ""))
}

// Close flushes and releases any async file sink. Safe to call when
// logging was never pointed at a file.
func Close() error {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()
	if defaultLoggerFactory.async == nil {
		return nil
	}
	err := defaultLoggerFactory.async.Close()
	defaultLoggerFactory.async = nil
	return err
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}
func Debugf(format string, args ...any) { defaultLogger.Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { defaultLogger.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { defaultLogger.Error(fmt.Sprintf(format, args...)) }
