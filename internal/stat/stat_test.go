package stat_test

import (
	"testing"

	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/stat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRoundTrip(t *testing.T) {
	s := stat.Stats{
		Size: 1234, Mode: stat.TypeFile | 0o644,
		AtimeMs: 1.5, MtimeMs: 2.5, CtimeMs: 3.5,
		UID: 1000, GID: 1000,
	}
	got, err := stat.DeserializeStats(s.Serialize())
	require.NoError(t, err)
	assert.Equal(t, s.Size, got.Size)
	assert.Equal(t, s.Mode, got.Mode)
	assert.Equal(t, s.AtimeMs, got.AtimeMs)
	assert.Equal(t, s.MtimeMs, got.MtimeMs)
	assert.Equal(t, s.CtimeMs, got.CtimeMs)
	assert.Equal(t, s.UID, got.UID)
	assert.Equal(t, s.GID, got.GID)
}

func TestChmodPreservesType(t *testing.T) {
	s := stat.Stats{Mode: stat.TypeDirectory | 0o755}
	s = s.Chmod(0o600)
	assert.True(t, s.IsDirectory())
	assert.Equal(t, uint32(0o600), s.Mode&stat.PermMask)
}

func TestChownIgnoresInvalid(t *testing.T) {
	s := stat.Stats{UID: 5, GID: 5}
	s = s.Chown(10, 20)
	assert.Equal(t, uint32(10), s.UID)
	assert.Equal(t, uint32(20), s.GID)

	s2 := stat.Stats{UID: 5, GID: 5}
	s2 = s2.Chown(-1, 1e30)
	assert.Equal(t, uint32(5), s2.UID)
	assert.Equal(t, uint32(5), s2.GID)
}

func TestInodeRoundTrip(t *testing.T) {
	n := stat.Inode{
		ID: "abc-def", Size: 42, Mode: uint16(stat.TypeFile | 0o644),
		AtimeMs: 1, MtimeMs: 2, CtimeMs: 3, UID: 7, GID: 8,
	}
	got, err := stat.DeserializeInode(n.Serialize())
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestInodeUpdateReportsChange(t *testing.T) {
	n := stat.Inode{Size: 10, Mode: uint16(stat.TypeFile | 0o644)}
	same := n.ToStats()
	assert.False(t, n.Update(same))

	grown := same
	grown.Size = 20
	assert.True(t, n.Update(grown))
	assert.Equal(t, uint32(20), n.Size)
}

func TestCheckAccess(t *testing.T) {
	n := stat.Inode{Mode: uint16(stat.TypeFile | 0o640), UID: 1, GID: 1}
	owner := cred.Cred{EUID: 1, EGID: 1}
	group := cred.Cred{EUID: 2, EGID: 1}
	other := cred.Cred{EUID: 2, EGID: 2}
	root := cred.Cred{EUID: 0, EGID: 0}

	assert.True(t, n.CheckAccess(owner, stat.Read|stat.Write))
	assert.True(t, n.CheckAccess(group, stat.Read))
	assert.False(t, n.CheckAccess(group, stat.Write))
	assert.False(t, n.CheckAccess(other, stat.Read))
	assert.True(t, n.CheckAccess(root, stat.Read|stat.Write))
}
