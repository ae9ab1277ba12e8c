package vfslog_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/cfg"
	"github.com/cloudnative-vfs/vfskernel/internal/vfslog"
)

func TestInitTextFormatWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.log")

	require.NoError(t, vfslog.Init(cfg.LoggingConfig{
		Severity: cfg.InfoLogSeverity,
		Format:   cfg.LogFormatText,
		FilePath: path,
		LogRotate: cfg.LogRotateConfig{
			MaxFileSizeMb:   10,
			BackupFileCount: 1,
		},
	}))
	defer vfslog.Close()

	vfslog.Infof("hello %s", "world")
	require.NoError(t, vfslog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`time="[^"]+" severity=INFO message="hello world"`), string(data))
}

func TestInitJSONFormatProducesValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.log")

	require.NoError(t, vfslog.Init(cfg.LoggingConfig{
		Severity:  cfg.InfoLogSeverity,
		Format:    cfg.LogFormatJSON,
		FilePath:  path,
		LogRotate: cfg.LogRotateConfig{MaxFileSizeMb: 10, BackupFileCount: 1},
	}))

	vfslog.Infof("message %d", 1)
	require.NoError(t, vfslog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var obj struct {
		Timestamp struct {
			Seconds int64 `json:"seconds"`
			Nanos   int   `json:"nanos"`
		} `json:"timestamp"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &obj))
	require.Equal(t, "INFO", obj.Severity)
	require.Equal(t, "message 1", obj.Message)
}

func TestSeverityFiltersBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.log")

	require.NoError(t, vfslog.Init(cfg.LoggingConfig{
		Severity:  cfg.WarningLogSeverity,
		Format:    cfg.LogFormatText,
		FilePath:  path,
		LogRotate: cfg.LogRotateConfig{MaxFileSizeMb: 10, BackupFileCount: 1},
	}))

	vfslog.Infof("should be dropped")
	vfslog.Warnf("should appear")
	require.NoError(t, vfslog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "should be dropped")
	require.Contains(t, string(data), "should appear")
}

func TestAsyncLoggerDropsWhenBufferFull(t *testing.T) {
	blocked := make(chan struct{})
	release := make(chan struct{})
	w := blockingWriter{blocked: blocked, release: release}

	l := vfslog.NewAsyncLogger(w, 0)
	_, _ = l.Write([]byte("first\n"))
	<-blocked

	_, err := l.Write([]byte("second\n"))
	require.NoError(t, err)
	_, err = l.Write([]byte("third\n"))
	require.NoError(t, err)

	close(release)
	require.NoError(t, l.Close())
}

type blockingWriter struct {
	blocked chan struct{}
	release chan struct{}
}

func (w blockingWriter) Write(p []byte) (int, error) {
	select {
	case w.blocked <- struct{}{}:
	default:
	}
	<-w.release
	return len(p), nil
}

func TestAsyncLoggerFlushesOnClose(t *testing.T) {
	var buf syncBuffer
	l := vfslog.NewAsyncLogger(&buf, 16)
	_, err := l.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.Eventually(t, func() bool {
		return buf.String() == "line\n"
	}, time.Second, time.Millisecond)
}

type syncBuffer struct {
	bytes.Buffer
}

