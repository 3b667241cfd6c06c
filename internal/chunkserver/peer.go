package chunkserver

import (
	"net"
	"time"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// callPeer issues one request/response call to another chunk server's data
// port — used for primary-to-secondary fan-out (§4.2 ordering guarantees:
// the primary awaits each secondary's ack before moving to the next).
func callPeer(addr gfs.ServerAddress, req gfs.ChunkRequest) (gfs.ChunkResponse, error) {
	conn, err := net.DialTimeout("tcp", addr.String(), 5*time.Second)
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
