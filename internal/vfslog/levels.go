// Package vfslog is the kernel's ambient logging layer: a small slog
// wrapper with a rotating file sink, a custom text/json wire format, and
// an async writer so a slow disk never stalls the call path that logged.
package vfslog

import (
	"log/slog"

	"github.com/cloudnative-vfs/vfskernel/cfg"
)

// Custom levels widen slog's default four so TRACE sits below DEBUG and
// OFF sits above ERROR, matching cfg.LogSeverity's six-step ranking.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

func severityToLevel(s cfg.LogSeverity) slog.Level {
	switch s {
	case cfg.TraceLogSeverity:
		return LevelTrace
	case cfg.DebugLogSeverity:
		return LevelDebug
	case cfg.WarningLogSeverity:
		return LevelWarn
	case cfg.ErrorLogSeverity:
		return LevelError
	case cfg.OffLogSeverity:
		return LevelOff
	case cfg.InfoLogSeverity:
		return LevelInfo
	default:
		return LevelInfo
	}
}

func levelName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	case l < LevelOff:
		return "ERROR"
	default:
		return "OFF"
	}
}
