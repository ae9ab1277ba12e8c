package verrno_test

import (
	"testing"

	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormat(t *testing.T) {
	err := verrno.NewPath(verrno.ENOENT, "/a/b", "no such file or directory")
	assert.Equal(t, "Error: ENOENT: no such file or directory, '/a/b'", err.Error())
	assert.Equal(t, 2, err.Errno())
}

func TestErrorSerializeRoundTrip(t *testing.T) {
	err := verrno.NewPath(verrno.EEXIST, "/a", "file exists").WithStack()
	wire, serErr := err.Serialize()
	require.NoError(t, serErr)

	got, deserErr := verrno.Deserialize(wire)
	require.NoError(t, deserErr)
	assert.Equal(t, err.Code, got.Code)
	assert.Equal(t, err.Message, got.Message)
	assert.Equal(t, err.Path, got.Path)
}

func TestRewritePath(t *testing.T) {
	err := verrno.NewPath(verrno.ENOENT, "/inner/x", "no such file or directory, '/inner/x'")
	err.RewritePath("/inner", "/mnt")
	assert.Equal(t, "/mnt/x", err.Path)
	assert.Contains(t, err.Message, "'/mnt/x'")
}

func TestIsComparesByCode(t *testing.T) {
	a := verrno.New(verrno.EBUSY, "busy")
	b := verrno.New(verrno.EBUSY, "different message")
	c := verrno.New(verrno.EACCES, "denied")
	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}
