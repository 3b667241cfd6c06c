package master

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// Catalog is the master's namespace + chunk-placement authority. It owns
// the file→chunks map, the chunk→replica-set map, the chunk id allocator
// and the set of registered chunk servers — everything §5 calls out as
// living under the single "catalog lock". Concurrent mutating RPCs
// (WRITE/WRITE_OFFSET/DELETE/RENAME/RECORD_APPEND_RETRY/REGISTER) hold
// c.mu for their entire critical section; READ takes a short-lived
// snapshot instead (I1–I3).
type Catalog struct {
	mu sync.Mutex

	fileChunks    map[string][]int64
	chunkReplicas map[int64][]gfs.ServerAddress
	nextChunkID   int64
	liveServers   map[string]gfs.ServerAddress // addr.String() -> addr

	persist *Persister
}

// NewCatalog builds an empty catalog, or reloads one from persist if its
// files already exist (I6: a restart reloads metadata verbatim).
func NewCatalog(persist *Persister) (*Catalog, error) {
	c := &Catalog{
		fileChunks:    make(map[string][]int64),
		chunkReplicas: make(map[int64][]gfs.ServerAddress),
		liveServers:   make(map[string]gfs.ServerAddress),
		nextChunkID:   1,
		persist:       persist,
	}
	fileChunks, chunkReplicas, err := persist.Load()
	if err != nil {
		return nil, err
	}
	if fileChunks != nil {
		c.fileChunks = fileChunks
	}
	if chunkReplicas != nil {
		c.chunkReplicas = chunkReplicas
	}
	for _, chunks := range c.fileChunks {
		for _, id := range chunks {
			if id >= c.nextChunkID {
				c.nextChunkID = id + 1
			}
		}
	}
	return c, nil
}

// RegisterServer adds addr to the live set. Idempotent (§4.1).
func (c *Catalog) RegisterServer(addr gfs.ServerAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveServers[addr.String()] = addr
}

// liveServerListLocked returns every registered address, excluding those in
// excludeFailed (a snapshot of the heartbeat subsystem's failed set taken
// without holding the catalog lock — see the HeartbeatTable doc in
// heartbeat_table.go for the lock-ordering discipline).
func (c *Catalog) liveServerListLocked(excludeFailed map[string]bool) []gfs.ServerAddress {
	out := make([]gfs.ServerAddress, 0, len(c.liveServers))
	for k, addr := range c.liveServers {
		if excludeFailed != nil && excludeFailed[k] {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// LiveServers returns a snapshot of every registered, non-failed address.
func (c *Catalog) LiveServers(excludeFailed map[string]bool) []gfs.ServerAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveServerListLocked(excludeFailed)
}

func shuffle(addrs []gfs.ServerAddress) []gfs.ServerAddress {
	out := make([]gfs.ServerAddress, len(addrs))
	copy(out, addrs)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// allocateChunkLocked picks a fresh replica set for a new chunk. Caller
// must hold c.mu. Returns ErrNotEnoughServers if too few live servers.
func (c *Catalog) allocateChunkLocked(replicationFactor int, excludeFailed map[string]bool) (int64, []gfs.ServerAddress, error) {
	live := c.liveServerListLocked(excludeFailed)
	if len(live) < replicationFactor {
		return 0, nil, gfs.ErrNotEnoughServers
	}
	picked := shuffle(live)[:replicationFactor]
	id := c.nextChunkID
	c.nextChunkID++
	c.chunkReplicas[id] = picked
	return id, picked, nil
}

// ReadPlan returns a stable snapshot of a file's chunk ids and replica
// sets (READ, §4.1). It does not take the catalog lock for the duration
// of any I/O — only to copy the data out.
func (c *Catalog) ReadPlan(filename string) ([]int64, [][]gfs.ServerAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chunks, ok := c.fileChunks[filename]
	if !ok {
		return nil, nil, gfs.ErrFileNotFound
	}
	ids := append([]int64(nil), chunks...)
	locations := make([][]gfs.ServerAddress, len(ids))
	for i, id := range ids {
		locations[i] = append([]gfs.ServerAddress(nil), c.chunkReplicas[id]...)
	}
	return ids, locations, nil
}

// ReplicaSet returns the current replica set for a chunk id.
func (c *Catalog) ReplicaSet(chunkID int64) ([]gfs.ServerAddress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.chunkReplicas[chunkID]
	if !ok {
		return nil, false
	}
	return append([]gfs.ServerAddress(nil), r...), true
}

// Write implements §4.1 WRITE: deletes any existing file's chunks, splits
// data into ceil(len/chunkSize) chunks, and returns the placement plan.
// The (chunk id, replica set) pairs of a file being overwritten are
// returned in deleted; issuing DELETE_CHUNK for them is left to the caller,
// outside the catalog lock.
func (c *Catalog) Write(filename string, data []byte, chunkSize int64, replicationFactor int, excludeFailed map[string]bool) (ids []int64, locations [][]gfs.ServerAddress, deleted []deletedChunk, err error) {
	if len(data) == 0 {
		return nil, nil, nil, fmt.Errorf("gfs: write data must be non-empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.fileChunks[filename]; ok {
		for _, id := range existing {
			replicas := c.chunkReplicas[id]
			deleted = append(deleted, deletedChunk{ChunkID: id, Replicas: replicas})
			delete(c.chunkReplicas, id)
		}
		delete(c.fileChunks, filename)
	}

	n := (int64(len(data)) + chunkSize - 1) / chunkSize
	ids = make([]int64, 0, n)
	locations = make([][]gfs.ServerAddress, 0, n)
	for i := int64(0); i < n; i++ {
		id, replicas, aerr := c.allocateChunkLocked(replicationFactor, excludeFailed)
		if aerr != nil {
			// roll back the ids allocated so far in this call
			for _, rid := range ids {
				delete(c.chunkReplicas, rid)
			}
			return nil, nil, deleted, aerr
		}
		ids = append(ids, id)
		locations = append(locations, replicas)
	}
	c.fileChunks[filename] = ids

	if err := c.persist.Save(c.fileChunks, c.chunkReplicas); err != nil {
		return nil, nil, deleted, err
	}
	return ids, locations, deleted, nil
}

type deletedChunk struct {
	ChunkID  int64
	Replicas []gfs.ServerAddress
}

// RecordAppendPlan returns the last chunk id and its replica set for
// RECORD_APPEND (§4.1). The file must exist with at least one chunk.
func (c *Catalog) RecordAppendPlan(filename string) (int64, []gfs.ServerAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chunks, ok := c.fileChunks[filename]
	if !ok || len(chunks) == 0 {
		return 0, nil, gfs.ErrFileNotFound
	}
	last := chunks[len(chunks)-1]
	return last, append([]gfs.ServerAddress(nil), c.chunkReplicas[last]...), nil
}

// AppendChunks implements RECORD_APPEND_RETRY: allocates fresh chunks and
// appends them to filename's existing chunk list (creating the file if
// it doesn't exist, mirroring WRITE's split behaviour).
func (c *Catalog) AppendChunks(filename string, data []byte, chunkSize int64, replicationFactor int, excludeFailed map[string]bool) ([]int64, [][]gfs.ServerAddress, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("gfs: write data must be non-empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := (int64(len(data)) + chunkSize - 1) / chunkSize
	ids := make([]int64, 0, n)
	locations := make([][]gfs.ServerAddress, 0, n)
	for i := int64(0); i < n; i++ {
		id, replicas, err := c.allocateChunkLocked(replicationFactor, excludeFailed)
		if err != nil {
			for _, rid := range ids {
				delete(c.chunkReplicas, rid)
			}
			return nil, nil, err
		}
		ids = append(ids, id)
		locations = append(locations, replicas)
	}
	c.fileChunks[filename] = append(c.fileChunks[filename], ids...)

	if err := c.persist.Save(c.fileChunks, c.chunkReplicas); err != nil {
		return nil, nil, err
	}
	return ids, locations, nil
}

// Delete implements §4.1 DELETE: removes the file entry and returns every
// (chunk id, replica set) pair so the caller can issue DELETE_CHUNK.
func (c *Catalog) Delete(filename string) ([]deletedChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chunks, ok := c.fileChunks[filename]
	if !ok {
		return nil, gfs.ErrFileNotFound
	}
	var out []deletedChunk
	for _, id := range chunks {
		out = append(out, deletedChunk{ChunkID: id, Replicas: c.chunkReplicas[id]})
		delete(c.chunkReplicas, id)
	}
	delete(c.fileChunks, filename)

	if err := c.persist.Save(c.fileChunks, c.chunkReplicas); err != nil {
		return nil, err
	}
	return out, nil
}

// Rename implements §4.1 RENAME.
func (c *Catalog) Rename(oldName, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.fileChunks[newName]; ok {
		return fmt.Errorf("gfs: rename target %q already exists", newName)
	}
	chunks, ok := c.fileChunks[oldName]
	if !ok {
		return gfs.ErrFileNotFound
	}
	c.fileChunks[newName] = chunks
	delete(c.fileChunks, oldName)

	return c.persist.Save(c.fileChunks, c.chunkReplicas)
}

// FileChunks returns a copy of filename's chunk id list, or false if the
// file doesn't exist.
func (c *Catalog) FileChunks(filename string) ([]int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunks, ok := c.fileChunks[filename]
	if !ok {
		return nil, false
	}
	return append([]int64(nil), chunks...), true
}

// TruncateAfter removes every chunk strictly after index in filename's
// chunk list (WRITE_OFFSET truncation, §4.1). Returns the removed
// (chunk id, replica set) pairs.
func (c *Catalog) TruncateAfter(filename string, index int) ([]deletedChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chunks, ok := c.fileChunks[filename]
	if !ok {
		return nil, gfs.ErrFileNotFound
	}
	if index+1 >= len(chunks) {
		return nil, nil
	}
	var removed []deletedChunk
	for _, id := range chunks[index+1:] {
		removed = append(removed, deletedChunk{ChunkID: id, Replicas: c.chunkReplicas[id]})
		delete(c.chunkReplicas, id)
	}
	c.fileChunks[filename] = chunks[:index+1]

	if err := c.persist.Save(c.fileChunks, c.chunkReplicas); err != nil {
		return nil, err
	}
	return removed, nil
}

// AllocateChunk allocates one fresh chunk and appends it to filename's
// chunk list (used by WRITE_OFFSET when the cursor runs past the last
// existing chunk).
func (c *Catalog) AllocateChunk(filename string, replicationFactor int, excludeFailed map[string]bool) (int64, []gfs.ServerAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, replicas, err := c.allocateChunkLocked(replicationFactor, excludeFailed)
	if err != nil {
		return 0, nil, err
	}
	c.fileChunks[filename] = append(c.fileChunks[filename], id)

	if err := c.persist.Save(c.fileChunks, c.chunkReplicas); err != nil {
		return 0, nil, err
	}
	return id, replicas, nil
}

// PersistNow writes both catalog maps to disk without otherwise mutating
// state. Used after replica-set changes driven by re-replication.
func (c *Catalog) PersistNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persist.Save(c.fileChunks, c.chunkReplicas)
}

// AppendReplica appends newServer to chunkID's replica set (re-replication
// success, §4.3.1) and persists.
func (c *Catalog) AppendReplica(chunkID int64, newServer gfs.ServerAddress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunkReplicas[chunkID] = append(c.chunkReplicas[chunkID], newServer)
	return c.persist.Save(c.fileChunks, c.chunkReplicas)
}

// RemoveReplica removes addr from chunkID's replica set (failure-driven
// removal, §4.3) and persists.
func (c *Catalog) RemoveReplica(chunkID int64, addr gfs.ServerAddress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.chunkReplicas[chunkID]
	out := make([]gfs.ServerAddress, 0, len(set))
	for _, s := range set {
		if s.String() != addr.String() {
			out = append(out, s)
		}
	}
	c.chunkReplicas[chunkID] = out
	return c.persist.Save(c.fileChunks, c.chunkReplicas)
}

// ChunksOnServer returns every chunk id whose replica set currently
// contains addr (used by the failure/hot-spot response loop, §4.3).
func (c *Catalog) ChunksOnServer(addr gfs.ServerAddress) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int64
	for id, set := range c.chunkReplicas {
		for _, s := range set {
			if s.String() == addr.String() {
				out = append(out, id)
				break
			}
		}
	}
	return out
}
