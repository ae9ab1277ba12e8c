package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/cfg"
	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
)

func testClock() clock.Clock {
	return clock.NewSimulatedClock(time.Unix(0, 0))
}

func TestBuildVFSDefaultsToMemoryRoot(t *testing.T) {
	vfs, err := buildVFS(cfg.DefaultConfig(), testClock())
	require.NoError(t, err)

	require.NoError(t, vfs.WriteFile("/hello.txt", []byte("hi"), 0o644, cred.Root))
	data, err := vfs.ReadFile("/hello.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), data)
}

func TestBuildVFSWiresNestedOverlayMount(t *testing.T) {
	c := cfg.Config{
		Mounts: map[string]cfg.BackendConfig{
			"/": {Backend: cfg.BackendMemory},
			"/data": {
				Backend: cfg.BackendOverlay,
				Lower:   &cfg.BackendConfig{Backend: cfg.BackendMemory},
				Upper:   &cfg.BackendConfig{Backend: cfg.BackendMemory},
			},
		},
		Logging:    cfg.GetDefaultLoggingConfig(),
		FileSystem: cfg.GetDefaultFileSystemConfig(),
	}

	vfs, err := buildVFS(c, testClock())
	require.NoError(t, err)

	require.NoError(t, vfs.WriteFile("/data/a.txt", []byte("x"), 0o644, cred.Root))
	data, err := vfs.ReadFile("/data/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), data)
}

func TestBuildVFSRejectsUnknownBackend(t *testing.T) {
	c := cfg.Config{
		Mounts: map[string]cfg.BackendConfig{
			"/": {Backend: "bogus"},
		},
	}
	_, err := buildVFS(c, testClock())
	require.Error(t, err)
}
