package vfskv_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfskv"
)

func newTestEngine(t *testing.T) *vfskv.Engine {
	t.Helper()
	store := vfskv.NewMemStore("test")
	eng, err := vfskv.NewEngine("test", store, clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)
	return eng
}

func writeFile(t *testing.T, eng *vfskv.Engine, path string, data []byte) {
	t.Helper()
	flag, err := fsflag.Parse("w")
	require.NoError(t, err)
	f, err := eng.CreateFile(path, flag, 0o644, cred.Root)
	require.NoError(t, err)
	_, err = f.Write(data, 0, len(data), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t *testing.T, eng *vfskv.Engine, path string) []byte {
	t.Helper()
	flag, err := fsflag.Parse("r")
	require.NoError(t, err)
	f, err := eng.OpenFile(path, flag, cred.Root)
	require.NoError(t, err)
	st := f.Stat()
	buf := make([]byte, st.Size)
	n, err := f.Read(buf, 0, len(buf), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf[:n]
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	writeFile(t, eng, "/hello.txt", []byte("hello world"))
	require.Equal(t, []byte("hello world"), readFile(t, eng, "/hello.txt"))
}

func TestMkdirAndReaddir(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Mkdir("/dir", 0o755, cred.Root))
	writeFile(t, eng, "/dir/a.txt", []byte("a"))
	writeFile(t, eng, "/dir/b.txt", []byte("b"))
	names, err := eng.Readdir("/dir", cred.Root)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
}

func TestStatReportsSize(t *testing.T) {
	eng := newTestEngine(t)
	writeFile(t, eng, "/f", []byte("abcd"))
	st, err := eng.Stat("/f", cred.Root)
	require.NoError(t, err)
	require.EqualValues(t, 4, st.Size)
	require.True(t, st.IsFile())
}

func TestMkdirOnExistingPathFails(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Mkdir("/d", 0o755, cred.Root))
	err := eng.Mkdir("/d", 0o755, cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.EEXIST, apiErr.Code)
}

func TestUnlinkRejectsDirectory(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Mkdir("/d", 0o755, cred.Root))
	err := eng.Unlink("/d", cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.EISDIR, apiErr.Code)
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Mkdir("/d", 0o755, cred.Root))
	writeFile(t, eng, "/d/f", []byte("x"))
	err := eng.Rmdir("/d", cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.ENOTEMPTY, apiErr.Code)
}

func TestRenameWithinSameDirectory(t *testing.T) {
	eng := newTestEngine(t)
	writeFile(t, eng, "/a", []byte("x"))
	require.NoError(t, eng.Rename("/a", "/b", cred.Root))
	require.Equal(t, []byte("x"), readFile(t, eng, "/b"))
	_, err := eng.Stat("/a", cred.Root)
	require.Error(t, err)
}

func TestRenameAcrossDirectories(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Mkdir("/src", 0o755, cred.Root))
	require.NoError(t, eng.Mkdir("/dst", 0o755, cred.Root))
	writeFile(t, eng, "/src/f", []byte("y"))
	require.NoError(t, eng.Rename("/src/f", "/dst/f", cred.Root))
	require.Equal(t, []byte("y"), readFile(t, eng, "/dst/f"))
}

func TestRenameIntoOwnDescendantFails(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Mkdir("/a", 0o755, cred.Root))
	require.NoError(t, eng.Mkdir("/a/b", 0o755, cred.Root))
	err := eng.Rename("/a", "/a/b/c", cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.EBUSY, apiErr.Code)
}

func TestRenameOntoExistingFileOverwritesSameDirectory(t *testing.T) {
	eng := newTestEngine(t)
	writeFile(t, eng, "/a", []byte("new"))
	writeFile(t, eng, "/b", []byte("old"))
	require.NoError(t, eng.Rename("/a", "/b", cred.Root))
	require.Equal(t, []byte("new"), readFile(t, eng, "/b"))
	_, err := eng.Stat("/a", cred.Root)
	require.Error(t, err)
}

func TestRenameOntoExistingFileOverwritesAcrossDirectories(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Mkdir("/src", 0o755, cred.Root))
	require.NoError(t, eng.Mkdir("/dst", 0o755, cred.Root))
	writeFile(t, eng, "/src/f", []byte("new"))
	writeFile(t, eng, "/dst/f", []byte("old"))
	require.NoError(t, eng.Rename("/src/f", "/dst/f", cred.Root))
	require.Equal(t, []byte("new"), readFile(t, eng, "/dst/f"))
}

func TestRenameOntoExistingDirectoryFails(t *testing.T) {
	eng := newTestEngine(t)
	writeFile(t, eng, "/a", []byte("x"))
	require.NoError(t, eng.Mkdir("/b", 0o755, cred.Root))
	err := eng.Rename("/a", "/b", cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.EPERM, apiErr.Code)
}

func TestLinkAddsSecondName(t *testing.T) {
	eng := newTestEngine(t)
	writeFile(t, eng, "/a", []byte("z"))
	require.NoError(t, eng.Link("/a", "/b", cred.Root))
	require.Equal(t, []byte("z"), readFile(t, eng, "/b"))
}

func TestReadOnlyEngineRejectsWrites(t *testing.T) {
	store := vfskv.NewMemStore("ro")
	eng, err := vfskv.NewEngine("ro", store, clock.NewSimulatedClock(time.Unix(0, 0)), vfskv.WithReadOnly())
	require.NoError(t, err)
	err = eng.Mkdir("/d", 0o755, cred.Root)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.EROFS, apiErr.Code)
}

func TestPermissionDeniedOnForeignFile(t *testing.T) {
	eng := newTestEngine(t)
	owner := cred.Cred{UID: 1, GID: 1, EUID: 1, EGID: 1}
	stranger := cred.Cred{UID: 2, GID: 2, EUID: 2, EGID: 2}
	flag, err := fsflag.Parse("w")
	require.NoError(t, err)
	f, err := eng.CreateFile("/secret", flag, 0o600, owner)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	readFlag, err := fsflag.Parse("r")
	require.NoError(t, err)
	_, err = eng.OpenFile("/secret", readFlag, stranger)
	apiErr, ok := verrno.As(err)
	require.True(t, ok)
	require.Equal(t, verrno.EACCES, apiErr.Code)
}
