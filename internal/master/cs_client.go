package master

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// dialCS opens a short-lived connection to a chunk server's data port.
// Every data-path call here is one request/response then close (§6).
func dialCS(addr gfs.ServerAddress) (net.Conn, error) {
	return net.DialTimeout("tcp", addr.String(), 5*time.Second)
}

func callCS(addr gfs.ServerAddress, req gfs.ChunkRequest) (gfs.ChunkResponse, error) {
	conn, err := dialCS(addr)
	if err != nil {
		return gfs.ChunkResponse{}, err
	}
	defer conn.Close()

	if err := gfs.WriteMessage(conn, req); err != nil {
		return gfs.ChunkResponse{}, err
	}
	var resp gfs.ChunkResponse
	if err := gfs.ReadMessage(conn, &resp); err != nil {
		return gfs.ChunkResponse{}, err
	}
	return resp, nil
}

// deleteChunkEverywhere issues DELETE_CHUNK to every replica in turn
// (§4.1 DELETE, P5). Failures are logged and skipped — a missing replica
// on an unreachable CS is PeerUnavailable (§7), not a caller-visible error.
func deleteChunkEverywhere(chunkID int64, replicas []gfs.ServerAddress) {
	for _, addr := range replicas {
		resp, err := callCS(addr, gfs.ChunkRequest{Type: gfs.TypeDeleteChunk, ChunkID: chunkID})
		if err != nil {
			log.WithField("chunk_id", chunkID).WithField("server", addr).Warn("delete chunk: peer unavailable: ", err)
			continue
		}
		if resp.Status != gfs.StatusOK {
			log.WithField("chunk_id", chunkID).WithField("server", addr).Warn("delete chunk refused: ", resp.Message)
		}
	}
}

// chunkSize queries GET_CHUNK_SIZE against replicas in order, first
// success wins (§4.1 WRITE_OFFSET, §4.3.1 tie-breaking read fallback order
// — here "order" is the replica set's own order, primary first).
func chunkSize(replicas []gfs.ServerAddress, chunkID int64) (int64, error) {
	var lastErr error
	for _, addr := range replicas {
		resp, err := callCS(addr, gfs.ChunkRequest{Type: gfs.TypeGetChunkSize, ChunkID: chunkID})
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Status != gfs.StatusOK {
			lastErr = fmt.Errorf("gfs: %s", resp.Message)
			continue
		}
		return resp.ChunkSize, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("gfs: no replica responded for chunk %d", chunkID)
	}
	return 0, lastErr
}
