package master

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// ingestHeartbeats reads UDP datagrams on the heartbeat port and enqueues
// them on ch (§4.3: "messages are enqueued on an internal queue and
// drained by a processor task"). A malformed datagram is dropped, never
// fatal to the listener (ProtocolError, §7).
func (m *Master) ingestHeartbeats(ch chan<- gfs.HeartbeatMessage) {
	buf := make([]byte, gfs.RecvWindow)
	for {
		n, _, err := m.udpConn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-m.shutdownCh:
				return
			default:
				log.Debug("heartbeat ingest read error: ", err)
				continue
			}
		}
		var hb gfs.HeartbeatMessage
		if err := json.Unmarshal(buf[:n], &hb); err != nil {
			log.Debug("heartbeat ingest: malformed datagram: ", err)
			continue
		}
		select {
		case ch <- hb:
		default:
			log.Warn("heartbeat queue full, dropping datagram from ", hb.ChunkServerID)
		}
	}
}

// processHeartbeats drains ch in FIFO order (arrival order between chunk
// servers is arbitrary, but a single chunk server's heartbeats are
// processed in the order they were enqueued) and runs the three processor
// duties of §4.3.
func (m *Master) processHeartbeats(ch <-chan gfs.HeartbeatMessage) {
	for hb := range ch {
		m.processOneHeartbeat(hb)
	}
}

func (m *Master) processOneHeartbeat(hb gfs.HeartbeatMessage) {
	reAnimated := m.heartbeats.Record(hb.ChunkServerID, time.Now(), hb.NumRequests)
	if reAnimated {
		log.WithField("server", hb.ChunkServerID).Info("chunk server re-animated")
	}

	if hb.NumRequests > m.cfg.MaxCSRequestThreshold {
		addr, err := gfs.ParseHostPort(hb.ChunkServerID)
		if err != nil {
			log.Error("heartbeat: bad address ", hb.ChunkServerID, ": ", err)
			return
		}
		log.WithField("server", addr).WithField("num_requests", hb.NumRequests).Info("load-based re-replication triggered")
		m.reReplicateForServer(addr, false)
	}
}
