package gfs

// Message type discriminators, §6.
const (
	TypeRegisterChunkserver = "REGISTER_CHUNKSERVER"
	TypeRead                = "READ"
	TypeWrite               = "WRITE"
	TypeRecordAppend        = "RECORD_APPEND"
	TypeRecordAppendRetry   = "RECORD_APPEND_RETRY"
	TypeDelete              = "DELETE"
	TypeRename              = "RENAME"
	TypeWriteOffset         = "WRITE_OFFSET"

	TypeAppend          = "APPEND"
	TypeDeleteChunk     = "DELETE_CHUNK"
	TypeGetChunkSize    = "GET_CHUNK_SIZE"
	TypeIncreaseReplica = "INCREASE_REPLICATION"
	TypeHeartbeat       = "HEARTBEAT"
)

// Status values used across responses.
const (
	StatusOK               = "OK"
	StatusError            = "Error"
	StatusFileNotFound     = "File Not Found"
	StatusInsufficientSpc  = "Insufficient Space"
	StatusReplicaPadded    = "Replica Padded"
)

// MasterRequest is the envelope for every Client/ChunkServer→Master message.
// Only the fields relevant to Type are populated; the rest are zero.
type MasterRequest struct {
	Type        string        `json:"type"`
	Address     *ServerAddress `json:"address,omitempty"`
	Filename    string        `json:"filename,omitempty"`
	OldFilename string        `json:"old_filename,omitempty"`
	NewFilename string        `json:"new_filename,omitempty"`
	Data        []byte        `json:"data,omitempty"`
	Offset      int64         `json:"offset,omitempty"`
}

// ChunkPlanEntry is one element of a WRITE_OFFSET plan (§4.1).
type ChunkPlanEntry struct {
	ChunkID       int64           `json:"chunk_id"`
	ChunkOffset   int64           `json:"chunk_offset"`
	PrimaryServer ServerAddress   `json:"primary_server"`
	Servers       []ServerAddress `json:"servers"`
}

// MasterResponse is the envelope for every Master→Client/ChunkServer reply.
type MasterResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`

	// READ
	Chunks    []int64           `json:"chunks,omitempty"`
	Locations [][]ServerAddress `json:"locations,omitempty"`

	// WRITE / RECORD_APPEND_RETRY
	ChunkIDs       []int64           `json:"chunk_ids,omitempty"`
	PrimaryServers []ServerAddress   `json:"primary_servers,omitempty"`

	// RECORD_APPEND
	LastChunkID      int64           `json:"last_chunk_id,omitempty"`
	PrimaryServer    *ServerAddress  `json:"primary_server,omitempty"`
	SecondaryServers []ServerAddress `json:"secondary_servers,omitempty"`

	// WRITE_OFFSET
	ChunkInfo []ChunkPlanEntry `json:"chunk_info,omitempty"`
}

// ChunkRequest is the envelope for every Client/Master→ChunkServer data-path message.
type ChunkRequest struct {
	Type             string          `json:"type"`
	ChunkID          int64           `json:"chunk_id"`
	Content          []byte          `json:"content,omitempty"`
	Replicas         []ServerAddress `json:"replicas,omitempty"`
	ChunkOffset      int64           `json:"chunk_offset,omitempty"`
	SecondaryServers []ServerAddress `json:"secondary_servers,omitempty"`
}

// ChunkResponse is the envelope for every ChunkServer→Client/Master data-path reply.
type ChunkResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Content   []byte `json:"content,omitempty"`
	ChunkSize int64  `json:"chunk_size,omitempty"`
}

// ControlRequest is the envelope for Master→ChunkServer control-channel messages.
type ControlRequest struct {
	Type             string          `json:"type"`
	ChunkID          int64           `json:"chunk_id"`
	AvailableServers []ServerAddress `json:"available_servers,omitempty"`
}

// ControlResponse is the envelope for ChunkServer→Master control-channel replies.
type ControlResponse struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	NewServer *ServerAddress `json:"new_server,omitempty"`
	Server    *ServerAddress `json:"server,omitempty"`
	Type      string         `json:"type,omitempty"`
	ChunkID   int64          `json:"chunk_id,omitempty"`
}

// HeartbeatMessage is the UDP datagram a chunk server sends to the master.
type HeartbeatMessage struct {
	Type            string  `json:"type"`
	ChunkServerID   string  `json:"chunk_server_id"`
	Timestamp       float64 `json:"timestamp"`
	NumRequests     int     `json:"num_requests"`
}
