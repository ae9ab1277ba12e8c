package mirror_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/mirror"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
	"github.com/cloudnative-vfs/vfskernel/internal/vfskv"
)

func newEngine(t *testing.T, name string) *vfskv.Engine {
	t.Helper()
	eng, err := vfskv.NewEngine(name, vfskv.NewMemStore(name), clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)
	return eng
}

func TestNewCopiesExistingAsyncTreeIntoSync(t *testing.T) {
	async := newEngine(t, "async")
	require.NoError(t, async.Mkdir("/d", 0o755, cred.Root))
	require.NoError(t, vfsfs.WriteFile(async, "/d/a.txt", []byte("seed"), 0o644, cred.Root))

	sync := newEngine(t, "sync")
	m, err := mirror.New(sync, async, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)

	data, err := vfsfs.ReadFile(sync, "/d/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("seed"), data)
	require.NoError(t, m.FatalError())
}

func TestWriteAppliesToSyncImmediatelyAndMirrorsAsync(t *testing.T) {
	async := newEngine(t, "async2")
	sync := newEngine(t, "sync2")
	m, err := mirror.New(sync, async, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)

	require.NoError(t, vfsfs.WriteFile(m, "/a.txt", []byte("hi"), 0o644, cred.Root))

	data, err := vfsfs.ReadFile(sync, "/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), data)

	require.Eventually(t, func() bool {
		d, err := vfsfs.ReadFile(async, "/a.txt", cred.Root)
		return err == nil && string(d) == "hi"
	}, time.Second, time.Millisecond)
}

func TestMkdirMirrorsToAsync(t *testing.T) {
	async := newEngine(t, "async3")
	sync := newEngine(t, "sync3")
	m, err := mirror.New(sync, async, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)

	require.NoError(t, m.Mkdir("/d", 0o755, cred.Root))
	require.Eventually(t, func() bool {
		st, err := async.Stat("/d", cred.Root)
		return err == nil && st.IsDirectory()
	}, time.Second, time.Millisecond)
}

func TestReaddirAndStatServeFromSyncOnly(t *testing.T) {
	async := newEngine(t, "async4")
	sync := newEngine(t, "sync4")
	m, err := mirror.New(sync, async, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)

	require.NoError(t, vfsfs.WriteFile(m, "/a.txt", []byte("x"), 0o644, cred.Root))
	names, err := m.Readdir("/", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, names)
}

func TestMetadataDeclaresSynchronous(t *testing.T) {
	async := newEngine(t, "async5")
	sync := newEngine(t, "sync5")
	m, err := mirror.New(sync, async, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)
	require.True(t, m.Metadata().Synchronous)
}

func TestOpenFileSyncerMirrorsOnClose(t *testing.T) {
	async := newEngine(t, "async6")
	sync := newEngine(t, "sync6")
	m, err := mirror.New(sync, async, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)

	flag, err := fsflag.Parse("w")
	require.NoError(t, err)
	f, err := m.CreateFileSync("/f.txt", flag, 0o644, cred.Root)
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		d, err := vfsfs.ReadFile(async, "/f.txt", cred.Root)
		return err == nil && string(d) == "payload"
	}, time.Second, time.Millisecond)
}
