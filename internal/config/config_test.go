package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "hci0", cfg.Adapter)
	assert.Equal(t, 3*time.Second, cfg.ProxyTimeout)
	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Empty(t, cfg.Socket)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "hci0", cfg.Adapter)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"adapter: hci1\n"+
			"proxy_timeout: 5s\n"+
			"sco_modes:\n"+
			"  \"AA:BB:CC:DD:EE:FF\": 2\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "hci1", cfg.Adapter)
	assert.Equal(t, 5*time.Second, cfg.ProxyTimeout)
	assert.Equal(t, 64, cfg.QueueCapacity, "untouched keys keep their defaults")

	mode, ok := cfg.LookupPreferredMode("AA:BB:CC:DD:EE:FF")
	assert.True(t, ok)
	assert.Equal(t, 2, mode)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: [unterminated"), 0o600))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestSocketPath(t *testing.T) {
	cfg := Default()
	cfg.Socket = "/run/custom.sock"
	assert.Equal(t, "/run/custom.sock", cfg.SocketPath())

	cfg.Socket = ""
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/scolink.sock", cfg.SocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Equal(t, "/tmp/scolink.sock", cfg.SocketPath())
}

func TestLookupPreferredModeUnset(t *testing.T) {
	cfg := Default()

	_, ok := cfg.LookupPreferredMode("AA:BB:CC:DD:EE:FF")

	assert.False(t, ok)
}
