package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServer(t *testing.T) {
	cfg := DefaultServer()
	assert.Equal(t, 6341, cfg.PortID)
	assert.Equal(t, []string{"GRABBER", "ACTUATOR"}, cfg.Roles)
	assert.Equal(t, 100*time.Millisecond, cfg.TickPeriod)
	assert.Equal(t, "127.0.0.1:6341", cfg.Addr())
}

func TestLoadServerMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServer().PortID, cfg.PortID)
}

func TestLoadServerOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labsync.yaml")
	body := "socket_ip: 0.0.0.0\nport_id: 7000\nroles: [GRABBER]\ntick_ms: 250\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.SocketIP)
	assert.Equal(t, 7000, cfg.PortID)
	assert.Equal(t, []string{"GRABBER"}, cfg.Roles)
	assert.Equal(t, 250*time.Millisecond, cfg.TickPeriod)
}

func TestLoadClientOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: ACTUATOR\nport_id: 7000\n"), 0o644))

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "ACTUATOR", cfg.Role)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr())
}
