package master

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// dispatch routes one decoded MasterRequest to its handler (§4.1, §6).
func (m *Master) dispatch(req gfs.MasterRequest) gfs.MasterResponse {
	switch req.Type {
	case gfs.TypeRegisterChunkserver:
		return m.handleRegister(req)
	case gfs.TypeRead:
		return m.handleRead(req)
	case gfs.TypeWrite:
		return m.handleWrite(req)
	case gfs.TypeRecordAppend:
		return m.handleRecordAppend(req)
	case gfs.TypeRecordAppendRetry:
		return m.handleRecordAppendRetry(req)
	case gfs.TypeDelete:
		return m.handleDelete(req)
	case gfs.TypeRename:
		return m.handleRename(req)
	case gfs.TypeWriteOffset:
		return m.handleWriteOffset(req)
	default:
		return gfs.MasterResponse{Status: gfs.StatusError, Message: "unknown request type: " + req.Type}
	}
}

func (m *Master) handleRegister(req gfs.MasterRequest) gfs.MasterResponse {
	if req.Address == nil {
		return gfs.MasterResponse{Status: gfs.StatusError, Message: "missing address"}
	}
	m.catalog.RegisterServer(*req.Address)
	// A freshly-registered server counts as alive immediately so it's
	// eligible for placement before its first heartbeat arrives.
	m.heartbeats.Record(req.Address.String(), time.Now(), 0)
	log.WithField("server", *req.Address).Info("chunk server registered")
	return gfs.MasterResponse{Status: gfs.StatusOK, Message: "registered"}
}

func (m *Master) handleRead(req gfs.MasterRequest) gfs.MasterResponse {
	ids, locations, err := m.catalog.ReadPlan(req.Filename)
	if err != nil {
		return gfs.MasterResponse{Status: gfs.StatusFileNotFound}
	}

	now := time.Now()
	for _, id := range ids {
		fire, _ := m.access.Touch(id, now, m.cfg.ThresholdTimeout, m.cfg.MaxRequestThreshold, m.cfg.HotReplicaTarget)
		if fire {
			log.WithField("chunk_id", id).Info("hot chunk detected, firing re-replication")
			go m.reReplicateChunk(id)
		}
	}

	return gfs.MasterResponse{Status: gfs.StatusOK, Chunks: ids, Locations: locations}
}

func (m *Master) handleWrite(req gfs.MasterRequest) gfs.MasterResponse {
	failed := m.heartbeats.FailedSnapshot()
	ids, locations, deleted, err := m.catalog.Write(req.Filename, req.Data, m.cfg.ChunkSize, m.cfg.ReplicationFactor, failed)
	if err != nil {
		return writeErrorResponse(err)
	}

	for _, d := range deleted {
		deleteChunkEverywhere(d.ChunkID, d.Replicas)
	}

	primaries := make([]gfs.ServerAddress, len(locations))
	for i, set := range locations {
		primaries[i] = set[0]
	}
	return gfs.MasterResponse{Status: gfs.StatusOK, ChunkIDs: ids, PrimaryServers: primaries, Locations: locations}
}

func (m *Master) handleRecordAppend(req gfs.MasterRequest) gfs.MasterResponse {
	lastID, replicas, err := m.catalog.RecordAppendPlan(req.Filename)
	if err != nil {
		return gfs.MasterResponse{Status: gfs.StatusError, Message: err.Error()}
	}
	primary := replicas[0]
	secondaries := append([]gfs.ServerAddress(nil), replicas[1:]...)
	return gfs.MasterResponse{
		Status:           gfs.StatusOK,
		LastChunkID:      lastID,
		PrimaryServer:    &primary,
		SecondaryServers: secondaries,
	}
}

func (m *Master) handleRecordAppendRetry(req gfs.MasterRequest) gfs.MasterResponse {
	failed := m.heartbeats.FailedSnapshot()
	ids, locations, err := m.catalog.AppendChunks(req.Filename, req.Data, m.cfg.ChunkSize, m.cfg.ReplicationFactor, failed)
	if err != nil {
		return writeErrorResponse(err)
	}
	primaries := make([]gfs.ServerAddress, len(locations))
	for i, set := range locations {
		primaries[i] = set[0]
	}
	return gfs.MasterResponse{Status: gfs.StatusOK, ChunkIDs: ids, PrimaryServers: primaries, Locations: locations}
}

func (m *Master) handleDelete(req gfs.MasterRequest) gfs.MasterResponse {
	deleted, err := m.catalog.Delete(req.Filename)
	if err != nil {
		return gfs.MasterResponse{Status: gfs.StatusError, Message: err.Error()}
	}
	for _, d := range deleted {
		deleteChunkEverywhere(d.ChunkID, d.Replicas)
	}
	return gfs.MasterResponse{Status: gfs.StatusOK, Message: "deleted"}
}

func (m *Master) handleRename(req gfs.MasterRequest) gfs.MasterResponse {
	if err := m.catalog.Rename(req.OldFilename, req.NewFilename); err != nil {
		return gfs.MasterResponse{Status: gfs.StatusError, Message: err.Error()}
	}
	return gfs.MasterResponse{Status: gfs.StatusOK, Message: "renamed"}
}

// handleWriteOffset implements §4.1 WRITE_OFFSET, the hardest master
// operation: clamp to append-past-end, truncate trailing chunks, walk the
// remaining (single) existing chunk, then allocate fresh chunks until the
// whole payload has a home.
func (m *Master) handleWriteOffset(req gfs.MasterRequest) gfs.MasterResponse {
	chunks, ok := m.catalog.FileChunks(req.Filename)
	if !ok || len(chunks) == 0 {
		return gfs.MasterResponse{Status: gfs.StatusError, Message: gfs.ErrFileNotFound.Error()}
	}

	cs := m.cfg.ChunkSize
	chunksN := int64(len(chunks))
	chunkIndex := req.Offset / cs
	chunkOffset := req.Offset % cs

	lastChunkID := chunks[len(chunks)-1]
	lastReplicas, _ := m.catalog.ReplicaSet(lastChunkID)
	lastSize, err := chunkSize(lastReplicas, lastChunkID)
	if err != nil {
		return gfs.MasterResponse{Status: gfs.StatusError, Message: err.Error()}
	}

	if chunkIndex >= chunksN {
		chunkIndex = chunksN - 1
		chunkOffset = lastSize
	}

	removed, err := m.catalog.TruncateAfter(req.Filename, int(chunkIndex))
	if err != nil {
		return gfs.MasterResponse{Status: gfs.StatusError, Message: err.Error()}
	}
	for _, d := range removed {
		deleteChunkEverywhere(d.ChunkID, d.Replicas)
	}

	var plan []gfs.ChunkPlanEntry
	targetID := chunks[chunkIndex]
	targetReplicas, _ := m.catalog.ReplicaSet(targetID)
	plan = append(plan, gfs.ChunkPlanEntry{
		ChunkID:       targetID,
		ChunkOffset:   chunkOffset,
		PrimaryServer: targetReplicas[0],
		Servers:       targetReplicas,
	})

	cursor := cs - chunkOffset
	failed := m.heartbeats.FailedSnapshot()
	for cursor < int64(len(req.Data)) {
		id, replicas, err := m.catalog.AllocateChunk(req.Filename, m.cfg.ReplicationFactor, failed)
		if err != nil {
			return writeErrorResponse(err)
		}
		plan = append(plan, gfs.ChunkPlanEntry{
			ChunkID:       id,
			ChunkOffset:   0,
			PrimaryServer: replicas[0],
			Servers:       replicas,
		})
		cursor += cs
	}

	return gfs.MasterResponse{Status: gfs.StatusOK, ChunkInfo: plan}
}

func writeErrorResponse(err error) gfs.MasterResponse {
	return gfs.MasterResponse{Status: gfs.StatusError, Message: err.Error()}
}
