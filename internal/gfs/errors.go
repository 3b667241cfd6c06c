package gfs

import "errors"

// Error taxonomy, §7. These are used internally; every RPC boundary
// converts them into a {status, message} response rather than tearing
// down the connection (propagation policy, §7).
var (
	ErrFileNotFound      = errors.New("File Not Found")
	ErrFileExists        = errors.New("file already exists")
	ErrNotEnoughServers  = errors.New("Not enough chunk servers available")
	ErrNoReplicaCandidate = errors.New("no candidate server available for replication")
	ErrChunkNotFound     = errors.New("chunk not found")
	ErrInsufficientSpace = errors.New("Insufficient Space")
)
