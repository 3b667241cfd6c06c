package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(64*1024*1024), cfg.ChunkSize)
	assert.Equal(t, 3, cfg.ReplicationFactor)
	assert.Equal(t, 5000, cfg.MasterPort)
	assert.Equal(t, 5001, cfg.MasterHeartbeatPort)
}

func TestHeartbeatFailureThresholdIsFactorTimesInterval(t *testing.T) {
	cfg := Default()
	cfg.HeartbeatInterval = 2 * time.Second
	cfg.HeartbeatFailureFactor = 3
	assert.Equal(t, 6*time.Second, cfg.HeartbeatFailureThreshold())
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 12\nreplication_factor: 3\n"), 0644))

	cfg, err := Default().Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(12), cfg.ChunkSize)
	assert.Equal(t, 3, cfg.ReplicationFactor)
	// untouched fields keep their defaults
	assert.Equal(t, 5000, cfg.MasterPort)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Default().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsReceiverUnchanged(t *testing.T) {
	cfg, err := Default().Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
