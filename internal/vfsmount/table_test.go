package vfsmount_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/vfskv"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsmount"
)

func newEngine(t *testing.T, name string) *vfskv.Engine {
	t.Helper()
	eng, err := vfskv.NewEngine(name, vfskv.NewMemStore(name), clock.NewSimulatedClock(time.Unix(0, 0)))
	require.NoError(t, err)
	return eng
}

func TestResolveFallsBackToRoot(t *testing.T) {
	root := newEngine(t, "root")
	table := vfsmount.NewTable(root)
	fs, prefix, intra := table.Resolve("/a/b")
	require.Same(t, root, fs)
	require.Equal(t, "/", prefix)
	require.Equal(t, "/a/b", intra)
}

func TestResolvePicksLongestPrefix(t *testing.T) {
	root := newEngine(t, "root2")
	mnt := newEngine(t, "mnt2")
	table := vfsmount.NewTable(root)
	require.NoError(t, table.Mount("/mnt", mnt))

	fs, prefix, intra := table.Resolve("/mnt/a")
	require.Same(t, mnt, fs)
	require.Equal(t, "/mnt", prefix)
	require.Equal(t, "/a", intra)

	fs, _, intra = table.Resolve("/mnt")
	require.Same(t, mnt, fs)
	require.Equal(t, "/", intra)

	fs, _, _ = table.Resolve("/mntfoo")
	require.Same(t, root, fs)
}

func TestMountPointsExcludesRoot(t *testing.T) {
	root := newEngine(t, "root3")
	mnt := newEngine(t, "mnt3")
	table := vfsmount.NewTable(root)
	require.NoError(t, table.Mount("/mnt", mnt))
	require.Equal(t, []string{"/mnt"}, table.MountPoints())
}
