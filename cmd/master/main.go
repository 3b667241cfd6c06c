// Command master runs the metadata server: it takes no positional
// arguments and defaults to binding 127.0.0.1:5000 (§6).
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/config"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/master"
)

func main() {
	var (
		bindHost   string
		port       int
		configPath string
		storageDir string
	)

	root := &cobra.Command{
		Use:   "master",
		Short: "Run the GFS-style metadata server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.MasterPort = port
			cfg.MasterHeartbeatPort = port + 1
			if storageDir != "" {
				cfg.StorageRoot = storageDir
			}
			cfg, err := cfg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			m, err := master.New(cfg)
			if err != nil {
				return err
			}
			log.WithField("bind", bindHost).WithField("port", cfg.MasterPort).Info("starting master")
			return m.Serve(bindHost)
		},
	}

	root.Flags().StringVar(&bindHost, "host", "127.0.0.1", "bind address")
	root.Flags().IntVar(&port, "port", 5000, "main control port (heartbeat uses port+1)")
	root.Flags().StringVar(&configPath, "config", "", "optional YAML config overlay")
	root.Flags().StringVar(&storageDir, "storage", "", "directory for persisted metadata")

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
