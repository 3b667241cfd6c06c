package chunkserver

import (
	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// acceptControl accepts exactly one connection from the master on the
// control listener and serves every subsequent INCREASE_REPLICATION
// request on it for the server's lifetime. §9 acknowledges this as a
// limitation: if the master restarts, this chunk server needs restarting
// too to accept a fresh control connection.
func (cs *ChunkServer) acceptControl() {
	conn, err := cs.controlListener.Accept()
	if err != nil {
		select {
		case <-cs.shutdownCh:
			return
		default:
			log.Error("chunkserver: control accept error: ", err)
			return
		}
	}
	defer conn.Close()

	for {
		var req gfs.ControlRequest
		if err := gfs.ReadMessage(conn, &req); err != nil {
			log.Debug("chunkserver: control channel closed: ", err)
			return
		}
		resp := cs.handleControl(req)
		if err := gfs.WriteMessage(conn, resp); err != nil {
			log.Debug("chunkserver: control write failed: ", err)
			return
		}
	}
}

func (cs *ChunkServer) handleControl(req gfs.ControlRequest) gfs.ControlResponse {
	switch req.Type {
	case gfs.TypeIncreaseReplica:
		return cs.handleIncreaseReplication(req)
	default:
		return gfs.ControlResponse{Status: gfs.StatusError, Message: "unknown control request type: " + req.Type}
	}
}

// handleIncreaseReplication implements §4.2's control-channel operation:
// read this chunk's content and push it to the first available_servers
// entry that accepts a plain WRITE.
func (cs *ChunkServer) handleIncreaseReplication(req gfs.ControlRequest) gfs.ControlResponse {
	content, ok := cs.readAll(req.ChunkID)
	if !ok {
		return gfs.ControlResponse{Status: gfs.StatusError, Message: gfs.ErrChunkNotFound.Error()}
	}

	for _, candidate := range req.AvailableServers {
		resp, err := callPeer(candidate, gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: req.ChunkID, Content: content})
		if err != nil {
			log.WithField("chunk_id", req.ChunkID).WithField("candidate", candidate).Debug("increase replication candidate unreachable: ", err)
			continue
		}
		if resp.Status == gfs.StatusOK {
			c := candidate
			return gfs.ControlResponse{Status: gfs.StatusOK, NewServer: &c}
		}
	}
	return gfs.ControlResponse{Status: gfs.StatusError, Message: gfs.ErrNoReplicaCandidate.Error()}
}
