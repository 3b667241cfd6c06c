// Command chunkserver runs a data-path node. It takes one positional
// argument: the data port to bind (control channel binds port+1, §6).
package main

import (
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/chunkserver"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/config"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

func main() {
	var (
		bindHost   string
		masterHost string
		masterPort int
		configPath string
		storageDir string
	)

	root := &cobra.Command{
		Use:   "chunkserver <port>",
		Short: "Run a GFS-style chunk server data-path node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[0], err)
			}

			cfg := config.Default()
			if storageDir != "" {
				cfg.StorageRoot = storageDir
			}
			cfg, err = cfg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			masterAddr := gfs.NewServerAddress(masterHost, masterPort)
			cs, err := chunkserver.New(cfg, masterAddr, bindHost, port)
			if err != nil {
				return err
			}
			log.WithField("port", port).WithField("master", masterAddr).Info("starting chunk server")
			return cs.Serve()
		},
	}

	root.Flags().StringVar(&bindHost, "host", "127.0.0.1", "bind address")
	root.Flags().StringVar(&masterHost, "master-host", "127.0.0.1", "master host")
	root.Flags().IntVar(&masterPort, "master-port", 5000, "master main port")
	root.Flags().StringVar(&configPath, "config", "", "optional YAML config overlay")
	root.Flags().StringVar(&storageDir, "storage", ".", "root directory for chunk payload files")

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
