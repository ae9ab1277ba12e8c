package cfg_test

import (
	"testing"

	"github.com/cloudnative-vfs/vfskernel/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	c := cfg.DefaultConfig()
	require.NoError(t, cfg.Rationalize(&c))
	require.NoError(t, cfg.ValidateConfig(&c))
}

func TestRationalizeInsertsRootMount(t *testing.T) {
	c := cfg.Config{}
	require.NoError(t, cfg.Rationalize(&c))
	_, ok := c.Mounts["/"]
	assert.True(t, ok)
}

func TestValidateRejectsBadMountPoint(t *testing.T) {
	c := cfg.DefaultConfig()
	c.Mounts["relative"] = cfg.BackendConfig{Backend: cfg.BackendMemory}
	err := cfg.ValidateConfig(&c)
	require.Error(t, err)
}

func TestValidateRejectsOverlayMissingLayers(t *testing.T) {
	c := cfg.DefaultConfig()
	c.Mounts["/data"] = cfg.BackendConfig{Backend: cfg.BackendOverlay}
	err := cfg.ValidateConfig(&c)
	require.Error(t, err)
}

func TestOctalRoundTrip(t *testing.T) {
	var o cfg.Octal
	require.NoError(t, o.UnmarshalText([]byte("0755")))
	assert.Equal(t, cfg.Octal(0o755), o)
	text, err := o.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "755", string(text))
}

func TestDecodeMountMapShorthand(t *testing.T) {
	raw := map[string]any{"/": "memory"}
	out, err := cfg.DecodeMountMap(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.BackendMemory, out["/"].Backend)
}

func TestDecodeMountMapUnknownKeySuggestion(t *testing.T) {
	raw := map[string]any{
		"/data": map[string]any{"backend": "memory", "optoins": map[string]any{}},
	}
	_, err := cfg.DecodeMountMap(raw, map[cfg.BackendKind][]string{cfg.BackendMemory: {"options"}})
	require.Error(t, err)
}
