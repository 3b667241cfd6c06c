package client

import (
	"net"
	"time"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

func dial(addr gfs.ServerAddress) (net.Conn, error) {
	return net.DialTimeout("tcp", addr.String(), 5*time.Second)
}

func callChunkServer(addr gfs.ServerAddress, req gfs.ChunkRequest) (gfs.ChunkResponse, error) {
	conn, err := dial(addr)
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
