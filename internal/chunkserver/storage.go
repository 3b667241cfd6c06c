package chunkserver

import (
	"fmt"
	"os"
	"path/filepath"
)

// primaryPath and replicaPath implement §4.2's naming convention:
// chunk_{id}.dat when this server holds the primary role for the chunk,
// chunk_{id}_replica.dat when it holds a secondary role.
func (cs *ChunkServer) primaryPath(chunkID int64) string {
	return filepath.Join(cs.storageDir, fmt.Sprintf("chunk_%d.dat", chunkID))
}

func (cs *ChunkServer) replicaPath(chunkID int64) string {
	return filepath.Join(cs.storageDir, fmt.Sprintf("chunk_%d_replica.dat", chunkID))
}

// resolveReadPath tries the primary file, then the replica file (§4.2 read
// fallback tie-break).
func (cs *ChunkServer) resolveReadPath(chunkID int64) (string, bool) {
	p := cs.primaryPath(chunkID)
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	r := cs.replicaPath(chunkID)
	if _, err := os.Stat(r); err == nil {
		return r, true
	}
	return "", false
}

// writeFull writes content to the role-appropriate file: primary when
// replicas carries the full replica set, replica file when it's empty.
func (cs *ChunkServer) writeFull(chunkID int64, content []byte, isPrimary bool) error {
	path := cs.replicaPath(chunkID)
	if isPrimary {
		path = cs.primaryPath(chunkID)
	}
	return os.WriteFile(path, content, 0644)
}

// appendLocal opens the role-appropriate file in append mode and writes
// content, returning the size of the file after the write.
func (cs *ChunkServer) appendLocal(chunkID int64, content []byte, isPrimary bool) (int64, error) {
	path := cs.replicaPath(chunkID)
	if isPrimary {
		path = cs.primaryPath(chunkID)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// currentSize returns the append-mode file's existing length before a
// write, used by APPEND to decide whether content fits (§4.2).
func (cs *ChunkServer) currentSize(chunkID int64, isPrimary bool) int64 {
	path := cs.replicaPath(chunkID)
	if isPrimary {
		path = cs.primaryPath(chunkID)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// readAll returns the bytes of whichever payload file exists for chunkID.
func (cs *ChunkServer) readAll(chunkID int64) ([]byte, bool) {
	path, ok := cs.resolveReadPath(chunkID)
	if !ok {
		return nil, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return b, true
}

// deleteChunk removes both payload files for chunkID if present, reporting
// whether anything was actually removed.
func (cs *ChunkServer) deleteChunk(chunkID int64) bool {
	removed := false
	if err := os.Remove(cs.primaryPath(chunkID)); err == nil {
		removed = true
	}
	if err := os.Remove(cs.replicaPath(chunkID)); err == nil {
		removed = true
	}
	return removed
}

// sizeOf returns the byte length of whichever payload file exists.
func (cs *ChunkServer) sizeOf(chunkID int64) (int64, bool) {
	path, ok := cs.resolveReadPath(chunkID)
	if !ok {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}
