package chunkserver

import (
	"bytes"
	"net"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// handleDataConn dispatches one accepted data-path connection: read one
// request, act, write one response, close (§6).
func (cs *ChunkServer) handleDataConn(conn net.Conn) {
	defer conn.Close()
	atomic.AddInt64(&cs.requestCount, 1)

	var req gfs.ChunkRequest
	if err := gfs.ReadMessage(conn, &req); err != nil {
		log.Debug("chunkserver: malformed request: ", err)
		return
	}

	resp := cs.dispatch(req)
	if err := gfs.WriteMessage(conn, resp); err != nil {
		log.Debug("chunkserver: write response failed: ", err)
	}
}

func (cs *ChunkServer) dispatch(req gfs.ChunkRequest) gfs.ChunkResponse {
	switch req.Type {
	case gfs.TypeRead:
		return cs.handleRead(req)
	case gfs.TypeWrite:
		return cs.handleWrite(req)
	case gfs.TypeWriteOffset:
		return cs.handleWriteOffset(req)
	case gfs.TypeAppend:
		return cs.handleAppend(req)
	case gfs.TypeDeleteChunk:
		return cs.handleDeleteChunk(req)
	case gfs.TypeGetChunkSize:
		return cs.handleGetChunkSize(req)
	default:
		return gfs.ChunkResponse{Status: gfs.StatusError, Message: "unknown request type: " + req.Type}
	}
}

func (cs *ChunkServer) handleRead(req gfs.ChunkRequest) gfs.ChunkResponse {
	content, ok := cs.readAll(req.ChunkID)
	if !ok {
		return gfs.ChunkResponse{Status: gfs.StatusError, Message: gfs.ErrChunkNotFound.Error()}
	}
	return gfs.ChunkResponse{Status: gfs.StatusOK, Content: content}
}

// handleWrite implements §4.2 WRITE: |replicas| == 0 means this call
// targets the replica file; a non-empty replica set means primary role,
// which after the local write fans out an empty-replica-list WRITE to
// every other address in the set, in order, awaiting each ack.
func (cs *ChunkServer) handleWrite(req gfs.ChunkRequest) gfs.ChunkResponse {
	isPrimary := len(req.Replicas) > 0

	lock := cs.chunkLock(req.ChunkID)
	lock.Lock()
	defer lock.Unlock()

	if err := cs.writeFull(req.ChunkID, req.Content, isPrimary); err != nil {
		return gfs.ChunkResponse{Status: gfs.StatusError, Message: err.Error()}
	}

	if isPrimary {
		for _, sec := range req.Replicas {
			if sec.String() == cs.addr.String() {
				continue
			}
			resp, err := callPeer(sec, gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: req.ChunkID, Content: req.Content})
			if err != nil || resp.Status != gfs.StatusOK {
				log.WithField("chunk_id", req.ChunkID).WithField("secondary", sec).Warn("write fan-out failed: ", err)
			}
		}
	}
	return gfs.ChunkResponse{Status: gfs.StatusOK, Message: "written"}
}

// handleWriteOffset implements §4.2 WRITE_OFFSET: splice content into the
// existing payload at chunk_offset, truncating anything beyond. If
// primary, fans out a WRITE (not WRITE_OFFSET) of the full resulting
// payload to each secondary.
func (cs *ChunkServer) handleWriteOffset(req gfs.ChunkRequest) gfs.ChunkResponse {
	isPrimary := len(req.Replicas) > 0

	lock := cs.chunkLock(req.ChunkID)
	lock.Lock()

	existing, _ := cs.readAll(req.ChunkID)
	prefixLen := req.ChunkOffset
	if prefixLen > int64(len(existing)) {
		prefixLen = int64(len(existing))
	}
	updated := append(append([]byte(nil), existing[:prefixLen]...), req.Content...)

	if err := cs.writeFull(req.ChunkID, updated, isPrimary); err != nil {
		lock.Unlock()
		return gfs.ChunkResponse{Status: gfs.StatusError, Message: err.Error()}
	}
	lock.Unlock()

	if isPrimary {
		for _, sec := range req.Replicas {
			if sec.String() == cs.addr.String() {
				continue
			}
			resp, err := callPeer(sec, gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: req.ChunkID, Content: updated})
			if err != nil || resp.Status != gfs.StatusOK {
				log.WithField("chunk_id", req.ChunkID).WithField("secondary", sec).Warn("write_offset fan-out failed: ", err)
			}
		}
	}
	return gfs.ChunkResponse{Status: gfs.StatusOK, Message: "written"}
}

// handleAppend is the boundary-aware operation of §4.2. Primary role is
// signaled by a non-empty secondary_servers list. A primary that would
// overflow chunk_size pads locally and fans the pad bytes out instead of
// the caller's content, then reports Insufficient Space so the client
// retries via RECORD_APPEND_RETRY. A secondary just appends whatever bytes
// it's handed (real content or pad) and reports Replica Padded when that
// leaves the chunk at its size ceiling, OK otherwise — this is how it
// distinguishes the two cases described in §4.2 without the primary having
// to say which one it's forwarding.
func (cs *ChunkServer) handleAppend(req gfs.ChunkRequest) gfs.ChunkResponse {
	isPrimary := len(req.SecondaryServers) > 0

	lock := cs.chunkLock(req.ChunkID)
	lock.Lock()
	defer lock.Unlock()

	cur := cs.currentSize(req.ChunkID, isPrimary)
	chunkSize := cs.cfg.ChunkSize

	if !isPrimary {
		newSize, err := cs.appendLocal(req.ChunkID, req.Content, false)
		if err != nil {
			return gfs.ChunkResponse{Status: gfs.StatusError, Message: err.Error()}
		}
		if newSize >= chunkSize {
			return gfs.ChunkResponse{Status: gfs.StatusReplicaPadded, Message: "padded"}
		}
		return gfs.ChunkResponse{Status: gfs.StatusOK, Message: "appended"}
	}

	if cur+int64(len(req.Content)) > chunkSize {
		padLen := chunkSize - cur
		if padLen < 0 {
			padLen = 0
		}
		pad := bytes.Repeat([]byte{gfs.PadByte}, int(padLen))
		if _, err := cs.appendLocal(req.ChunkID, pad, true); err != nil {
			return gfs.ChunkResponse{Status: gfs.StatusError, Message: err.Error()}
		}
		for _, sec := range req.SecondaryServers {
			if _, err := callPeer(sec, gfs.ChunkRequest{Type: gfs.TypeAppend, ChunkID: req.ChunkID, Content: pad}); err != nil {
				log.WithField("chunk_id", req.ChunkID).WithField("secondary", sec).Warn("append pad fan-out failed: ", err)
			}
		}
		return gfs.ChunkResponse{Status: gfs.StatusInsufficientSpc, Message: "chunk full"}
	}

	if _, err := cs.appendLocal(req.ChunkID, req.Content, true); err != nil {
		return gfs.ChunkResponse{Status: gfs.StatusError, Message: err.Error()}
	}
	for _, sec := range req.SecondaryServers {
		if _, err := callPeer(sec, gfs.ChunkRequest{Type: gfs.TypeAppend, ChunkID: req.ChunkID, Content: req.Content}); err != nil {
			log.WithField("chunk_id", req.ChunkID).WithField("secondary", sec).Warn("append fan-out failed: ", err)
		}
	}
	return gfs.ChunkResponse{Status: gfs.StatusOK, Message: "appended"}
}

func (cs *ChunkServer) handleDeleteChunk(req gfs.ChunkRequest) gfs.ChunkResponse {
	lock := cs.chunkLock(req.ChunkID)
	lock.Lock()
	defer lock.Unlock()

	removed := cs.deleteChunk(req.ChunkID)
	msg := "nothing to delete"
	if removed {
		msg = "deleted"
	}
	return gfs.ChunkResponse{Status: gfs.StatusOK, Message: msg}
}

func (cs *ChunkServer) handleGetChunkSize(req gfs.ChunkRequest) gfs.ChunkResponse {
	size, ok := cs.sizeOf(req.ChunkID)
	if !ok {
		return gfs.ChunkResponse{Status: gfs.StatusError, Message: gfs.ErrChunkNotFound.Error()}
	}
	return gfs.ChunkResponse{Status: gfs.StatusOK, ChunkSize: size}
}
