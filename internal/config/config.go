// Package config loads the tunables the spec leaves as "default for
// tests"/"production target" values: chunk size, replication factor, the
// heartbeat and hot-chunk thresholds, and the master/chunk-server ports.
// The teacher hardcodes these as package constants; gastrolog's and
// zircon's examples both externalize equivalent tunables into a loadable
// file, so we do the same with a small YAML overlay (gopkg.in/yaml.v2,
// carried over from fengpf-zircon's dependency set).
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// Config holds every tunable named in §3/§4/§6. Zero value is invalid;
// use Default() and then apply overrides.
type Config struct {
	ChunkSize         int64         `yaml:"chunk_size"`
	ReplicationFactor int           `yaml:"replication_factor"`

	MasterPort          int `yaml:"master_port"`
	MasterHeartbeatPort int `yaml:"master_heartbeat_port"`

	HeartbeatInterval      time.Duration `yaml:"heartbeat_interval"`
	HeartbeatFailureFactor int           `yaml:"heartbeat_failure_factor"`

	MaxRequestThreshold   int           `yaml:"max_request_threshold"`
	ThresholdTimeout      time.Duration `yaml:"threshold_timeout"`
	MaxCSRequestThreshold int           `yaml:"max_chunk_server_request_threshold"`
	HotReplicaTarget      int           `yaml:"hot_replica_target"`

	StorageRoot string `yaml:"storage_root"`
}

// Default returns the production-shaped defaults from §3/§6.
func Default() Config {
	return Config{
		ChunkSize:              gfs.DefaultChunkSize,
		ReplicationFactor:      gfs.DefaultReplicationFactor,
		MasterPort:             gfs.DefaultMasterPort,
		MasterHeartbeatPort:    gfs.DefaultMasterHeartbeatPort,
		HeartbeatInterval:      gfs.DefaultHeartbeatInterval,
		HeartbeatFailureFactor: gfs.DefaultHeartbeatFailureFactor,
		MaxRequestThreshold:    gfs.DefaultMaxRequestThreshold,
		ThresholdTimeout:       gfs.DefaultThresholdTimeout,
		MaxCSRequestThreshold:  gfs.DefaultMaxCSRequestThreshold,
		HotReplicaTarget:       gfs.HotChunkModifiedReplicaTarget,
		StorageRoot:            ".",
	}
}

// HeartbeatFailureThreshold is the elapsed time after which a chunk server
// with no heartbeat is declared failed (§4.3).
func (c Config) HeartbeatFailureThreshold() time.Duration {
	return time.Duration(c.HeartbeatFailureFactor) * c.HeartbeatInterval
}

// Load overlays YAML from path onto the receiver's defaults. A missing file
// is not an error — callers typically call this with an optional
// --config flag.
func (c Config) Load(path string) (Config, error) {
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	out := c
	if err := yaml.Unmarshal(b, &out); err != nil {
		return c, err
	}
	return out, nil
}
