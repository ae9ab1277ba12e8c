package overlay_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/overlay"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
	"github.com/cloudnative-vfs/vfskernel/internal/vfskv"
)

func newEngine(t *testing.T, name string) *vfskv.Engine {
	t.Helper()
	eng, err := vfskv.NewEngine(name, vfskv.NewMemStore(name), clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)
	return eng
}

func newOverlay(t *testing.T) (*overlay.Overlay, *vfskv.Engine, *vfskv.Engine) {
	t.Helper()
	lower := newEngine(t, "lower")
	upper := newEngine(t, "upper")
	ov, err := overlay.New(lower, upper, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)
	return ov, lower, upper
}

func TestReadThroughToLower(t *testing.T) {
	ov, lower, _ := newOverlay(t)
	require.NoError(t, vfsfs.WriteFile(lower, "/a.txt", []byte("from-lower"), 0o644, cred.Root))
	data, err := vfsfs.ReadFile(ov, "/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("from-lower"), data)
}

func TestWritePrefersUpper(t *testing.T) {
	ov, lower, upper := newOverlay(t)
	require.NoError(t, vfsfs.WriteFile(lower, "/a.txt", []byte("lower"), 0o644, cred.Root))
	require.NoError(t, vfsfs.WriteFile(ov, "/a.txt", []byte("upper"), 0o644, cred.Root))
	data, err := vfsfs.ReadFile(ov, "/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("upper"), data)
	upperData, err := vfsfs.ReadFile(upper, "/a.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("upper"), upperData)
}

func TestUnlinkOfLowerOnlyFileMarksDeletedNotVisible(t *testing.T) {
	ov, lower, _ := newOverlay(t)
	require.NoError(t, vfsfs.WriteFile(lower, "/a.txt", []byte("x"), 0o644, cred.Root))
	require.True(t, vfsfs.Exists(ov, "/a.txt", cred.Root))
	require.NoError(t, ov.Unlink("/a.txt", cred.Root))
	require.False(t, vfsfs.Exists(ov, "/a.txt", cred.Root))

	_, err := ov.Stat("/a.txt", cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.ENOENT, apiErr.Code)
}

func TestReaddirUnionSkipsDeleted(t *testing.T) {
	ov, lower, upper := newOverlay(t)
	require.NoError(t, vfsfs.WriteFile(lower, "/a.txt", []byte("a"), 0o644, cred.Root))
	require.NoError(t, vfsfs.WriteFile(lower, "/b.txt", []byte("b"), 0o644, cred.Root))
	require.NoError(t, vfsfs.WriteFile(upper, "/c.txt", []byte("c"), 0o644, cred.Root))

	names, err := ov.Readdir("/", cred.Root)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "b.txt", "c.txt"}, names)

	require.NoError(t, ov.Unlink("/a.txt", cred.Root))
	names, err = ov.Readdir("/", cred.Root)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"b.txt", "c.txt"}, names)
}

func TestChmodCopiesUpFromLower(t *testing.T) {
	ov, lower, upper := newOverlay(t)
	require.NoError(t, vfsfs.WriteFile(lower, "/a.txt", []byte("x"), 0o644, cred.Root))
	require.False(t, vfsfs.Exists(upper, "/a.txt", cred.Root))
	require.NoError(t, ov.Chmod("/a.txt", 0o600, cred.Root))
	require.True(t, vfsfs.Exists(upper, "/a.txt", cred.Root))
	st, err := upper.Stat("/a.txt", cred.Root)
	require.NoError(t, err)
	require.EqualValues(t, 0o600, st.Mode&0o777)
}

func TestRenameFileFromLowerToUpper(t *testing.T) {
	ov, lower, _ := newOverlay(t)
	require.NoError(t, vfsfs.WriteFile(lower, "/a.txt", []byte("z"), 0o644, cred.Root))
	require.NoError(t, ov.Rename("/a.txt", "/b.txt", cred.Root))
	data, err := vfsfs.ReadFile(ov, "/b.txt", cred.Root)
	require.NoError(t, err)
	require.Equal(t, []byte("z"), data)
	require.False(t, vfsfs.Exists(ov, "/a.txt", cred.Root))
}

func TestDeletionLogPathReserved(t *testing.T) {
	ov, _, _ := newOverlay(t)
	flag, err := fsflag.Parse("r")
	require.NoError(t, err)
	_, err = ov.OpenFile("/.deletedFiles.log", flag, cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.EPERM, apiErr.Code)
}

func TestNewRejectsReadOnlyUpper(t *testing.T) {
	lower := newEngine(t, "lower2")
	ro, err := vfskv.NewEngine("ro", vfskv.NewMemStore("ro"), clock.NewSimulatedClock(time.Unix(0, 0)), vfskv.WithReadOnly())
	require.NoError(t, err)
	_, err = overlay.New(lower, ro, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.Error(t, err)
}
