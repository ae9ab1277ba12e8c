package vfsfs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
	"github.com/cloudnative-vfs/vfskernel/internal/vfskv"
)

// The vfskv engine is the simplest concrete FileSystem in this kernel, so
// it doubles as the fixture for exercising the backend-agnostic default
// operations in base.go.
func newFixture(t *testing.T) vfsfs.FileSystem {
	t.Helper()
	store := vfskv.NewMemStore("fixture")
	eng, err := vfskv.NewEngine("fixture", store, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)
	return eng
}

func TestWriteFileThenReadFile(t *testing.T) {
	fs := newFixture(t)
	require.NoError(t, vfsfs.WriteFile(fs, "/a.txt", []byte("content"), 0o644, cred.Root))
	data, err := vfsfs.ReadFile(fs, "/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("content"), data)
}

func TestAppendFileAddsToExisting(t *testing.T) {
	fs := newFixture(t)
	require.NoError(t, vfsfs.WriteFile(fs, "/a.txt", []byte("ab"), 0o644, cred.Root))
	require.NoError(t, vfsfs.AppendFile(fs, "/a.txt", []byte("cd"), 0o644, cred.Root))
	data, err := vfsfs.ReadFile(fs, "/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), data)
}

func TestTruncateShrinksFile(t *testing.T) {
	fs := newFixture(t)
	require.NoError(t, vfsfs.WriteFile(fs, "/a.txt", []byte("abcdef"), 0o644, cred.Root))
	require.NoError(t, vfsfs.Truncate(fs, "/a.txt", 3, cred.Root))
	data, err := vfsfs.ReadFile(fs, "/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), data)
}

func TestExistsReflectsFileLifecycle(t *testing.T) {
	fs := newFixture(t)
	require.False(t, vfsfs.Exists(fs, "/a.txt", cred.Root))
	require.NoError(t, vfsfs.WriteFile(fs, "/a.txt", []byte("x"), 0o644, cred.Root))
	require.True(t, vfsfs.Exists(fs, "/a.txt", cred.Root))
	require.NoError(t, fs.Unlink("/a.txt", cred.Root))
	require.False(t, vfsfs.Exists(fs, "/a.txt", cred.Root))
}

func TestRealpathIsIdentity(t *testing.T) {
	fs := newFixture(t)
	require.Equal(t, "/some/path", vfsfs.Realpath(fs, "/some/path"))
}

func TestNewSyncAdapterDelegatesToSyncTwin(t *testing.T) {
	store := vfskv.NewMemStore("adapted")
	eng, err := vfskv.NewEngine("adapted", store, clock.NewSimulatedClock(time.Unix(0, 0)), vfskv.WithSynchronous())
	require.NoError(t, err)
	fs := vfsfs.NewSyncAdapter(eng)
	require.NoError(t, fs.Mkdir("/d", 0o755, cred.Root))
	st, err := fs.Stat("/d", cred.Root)
	require.NoError(t, err)
	require.True(t, st.IsDirectory())
}
