package cfg

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Octal is the datatype for params such as file-mode and dir-mode which
// accept a base-8 value (e.g. "0755").
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return fmt.Errorf("invalid octal mode %q: %w", text, err)
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

func (o Octal) String() string {
	return fmt.Sprintf("%04o", int(o))
}

// LogSeverity is one of TRACE/DEBUG/INFO/WARNING/ERROR/OFF.
type LogSeverity string

const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity %q: must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

// Rank orders severities for filtering; -1 means unknown.
func (l LogSeverity) Rank() int {
	if r, ok := severityRanking[l]; ok {
		return r
	}
	return -1
}

// LogFormat selects the slog handler shape.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

func (f *LogFormat) UnmarshalText(text []byte) error {
	v := LogFormat(strings.ToLower(string(text)))
	if !slices.Contains([]LogFormat{LogFormatText, LogFormatJSON}, v) {
		return fmt.Errorf("invalid log format %q: must be \"text\" or \"json\"", text)
	}
	*f = v
	return nil
}

// BackendKind names a registered backend implementation, the shorthand
// form of a mount table entry (§6 "Configuration": "a backend name alone
// is shorthand for {fs: name}").
type BackendKind string

const (
	BackendMemory    BackendKind = "memory"
	BackendOverlay   BackendKind = "overlay"
	BackendMirror    BackendKind = "mirror"
	BackendFolder    BackendKind = "folder"
	BackendLocked    BackendKind = "locked"
)
