package fsflag_test

import (
	"testing"

	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllValidFlagStringsRoundTrip(t *testing.T) {
	valid := []string{"r", "r+", "rs", "rs+", "w", "wx", "w+", "wx+", "a", "ax", "a+", "ax+"}
	for _, s := range valid {
		f, err := fsflag.Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, f.FlagString())
	}
}

func TestInvalidFlagString(t *testing.T) {
	_, err := fsflag.Parse("bogus")
	require.Error(t, err)
	apiErr, ok := err.(*verrno.Error)
	require.True(t, ok)
	assert.Equal(t, verrno.EINVAL, apiErr.Code)
}

func TestActionTable(t *testing.T) {
	cases := []struct {
		flag                string
		existsAction        fsflag.Action
		notExistsAction     fsflag.Action
	}{
		{"ax", fsflag.THROW_EXCEPTION, fsflag.CREATE_FILE},
		{"w", fsflag.TRUNCATE_FILE, fsflag.CREATE_FILE},
		{"a", fsflag.NOP, fsflag.CREATE_FILE},
		{"r", fsflag.NOP, fsflag.THROW_EXCEPTION},
		{"r+", fsflag.NOP, fsflag.THROW_EXCEPTION},
	}
	for _, c := range cases {
		f, err := fsflag.Parse(c.flag)
		require.NoError(t, err)
		assert.Equal(t, c.existsAction, f.PathExistsAction(), c.flag)
		assert.Equal(t, c.notExistsAction, f.PathNotExistsAction(), c.flag)
	}
}

func TestModeBits(t *testing.T) {
	f, _ := fsflag.Parse("r+")
	assert.Equal(t, uint32(0o6), f.ModeBits())

	f, _ = fsflag.Parse("a")
	assert.Equal(t, uint32(0o2), f.ModeBits())
}

func TestParseNumberRDWRCreate(t *testing.T) {
	f, err := fsflag.ParseNumber(fsflag.O_RDWR | fsflag.O_CREAT | fsflag.O_TRUNC)
	require.NoError(t, err)
	assert.True(t, f.IsReadable())
	assert.True(t, f.IsWritable())
	assert.True(t, f.IsTruncating())
}
