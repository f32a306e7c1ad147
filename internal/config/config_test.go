package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3001", cfg.Server.Listen)
	assert.Equal(t, "http://127.0.0.1:3001", cfg.Server.HTTPURL)
	assert.Equal(t, "ws://127.0.0.1:3001/ws", cfg.Server.WSURL)
}

func TestMissingFileIsSkipped(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3001", cfg.Server.Listen)
}

func TestLoadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  listen: "0.0.0.0:9000"
  http_url: "http://chat.internal:9000"
  ws_url: "ws://chat.internal:9000/ws"
identity:
  id: "u1"
  display_name: "Me"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "http://chat.internal:9000", cfg.Server.HTTPURL)
	assert.Equal(t, "u1", cfg.Identity.ID)
	assert.Equal(t, "Me", cfg.Identity.DisplayName)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identity:\n  id: \"from-file\"\n"), 0o644))

	t.Setenv("WETALK_IDENTITY_ID", "from-env")
	t.Setenv("WETALK_HTTP_URL", "http://override:1234")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Identity.ID)
	assert.Equal(t, "http://override:1234", cfg.Server.HTTPURL)
}

func TestBadYamlFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
