package master

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// ControlChannels holds the master's one persistent connection per chunk
// server control channel (§4.2, §9: "the master uses this channel for all
// re-replication orders; it establishes the connection once per CS and
// reuses it"). Redialing only happens if the cached connection errors.
type ControlChannels struct {
	mu    sync.Mutex
	conns map[string]net.Conn
}

// NewControlChannels builds an empty pool.
func NewControlChannels() *ControlChannels {
	return &ControlChannels{conns: make(map[string]net.Conn)}
}

func (cc *ControlChannels) dial(donor gfs.ServerAddress) (net.Conn, error) {
	control := donor.ControlAddress()
	return net.DialTimeout("tcp", control.String(), 5*time.Second)
}

func (cc *ControlChannels) get(donor gfs.ServerAddress) (net.Conn, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	key := donor.String()
	if conn, ok := cc.conns[key]; ok {
		return conn, nil
	}
	conn, err := cc.dial(donor)
	if err != nil {
		return nil, err
	}
	cc.conns[key] = conn
	return conn, nil
}

func (cc *ControlChannels) invalidate(donor gfs.ServerAddress) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	key := donor.String()
	if conn, ok := cc.conns[key]; ok {
		conn.Close()
		delete(cc.conns, key)
	}
}

// IncreaseReplication sends INCREASE_REPLICATION(chunkID, available) to
// donor over its control channel (§4.2). On a stale/broken cached
// connection it redials once before giving up.
func (cc *ControlChannels) IncreaseReplication(donor gfs.ServerAddress, chunkID int64, available []gfs.ServerAddress) (gfs.ServerAddress, error) {
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := cc.get(donor)
		if err != nil {
			return gfs.ServerAddress{}, err
		}

		req := gfs.ControlRequest{Type: gfs.TypeIncreaseReplica, ChunkID: chunkID, AvailableServers: available}
		if err := gfs.WriteMessage(conn, req); err != nil {
			cc.invalidate(donor)
			continue
		}
		var resp gfs.ControlResponse
		if err := gfs.ReadMessage(conn, &resp); err != nil {
			cc.invalidate(donor)
			continue
		}
		if resp.Status != gfs.StatusOK || resp.NewServer == nil {
			log.WithField("donor", donor).WithField("chunk_id", chunkID).Warn("increase replication refused: ", resp.Message)
			return gfs.ServerAddress{}, fmt.Errorf("gfs: increase replication refused: %s", resp.Message)
		}
		return *resp.NewServer, nil
	}
	return gfs.ServerAddress{}, fmt.Errorf("gfs: donor %v unreachable on control channel", donor)
}

// CloseAll closes every cached control connection.
func (cc *ControlChannels) CloseAll() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for k, conn := range cc.conns {
		conn.Close()
		delete(cc.conns, k)
	}
}
