package master

import (
	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// reReplicateChunk implements §4.3.1: pick a donor among the chunk's
// current (non-failed) replicas, ask it over its control channel to push
// a copy to one of the available (not-yet-holding) servers, and on
// success append the new replica and persist. Donor iteration order is
// the replica set's own order, primary first; candidate order is
// available's enumeration order, first OK wins (tie-breaking policies,
// §4.3.1).
func (m *Master) reReplicateChunk(chunkID int64) {
	replicas, ok := m.catalog.ReplicaSet(chunkID)
	if !ok {
		return
	}

	failed := m.heartbeats.FailedSnapshot()
	live := m.catalog.LiveServers(nil) // nil: don't exclude, we need the full registered set to compute "available"
	have := make(map[string]bool, len(replicas))
	for _, r := range replicas {
		have[r.String()] = true
	}
	var available []gfs.ServerAddress
	for _, s := range live {
		if failed[s.String()] {
			continue
		}
		if !have[s.String()] {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		log.WithField("chunk_id", chunkID).Warn("re-replicate: no candidate server available")
		return
	}

	for _, donor := range replicas {
		if failed[donor.String()] {
			continue
		}
		newServer, err := m.controlChannels.IncreaseReplication(donor, chunkID, available)
		if err != nil {
			log.WithField("chunk_id", chunkID).WithField("donor", donor).Warn("re-replicate donor failed: ", err)
			continue
		}
		if err := m.catalog.AppendReplica(chunkID, newServer); err != nil {
			log.WithField("chunk_id", chunkID).Error("re-replicate: persist failed: ", err)
			return
		}
		log.WithField("chunk_id", chunkID).WithField("donor", donor).WithField("new_server", newServer).Info("re-replicated chunk")
		return
	}
	log.WithField("chunk_id", chunkID).Warn("re-replicate: every donor failed")
}

// reReplicateForServer runs reReplicateChunk for every chunk currently
// placed on addr. If dropFromSet is true, addr is additionally removed
// from each chunk's replica set after the attempt (failure-based
// re-replication, §4.3); load-based re-replication (num_requests over
// threshold) leaves the replica set untouched.
func (m *Master) reReplicateForServer(addr gfs.ServerAddress, dropFromSet bool) {
	for _, chunkID := range m.catalog.ChunksOnServer(addr) {
		m.reReplicateChunk(chunkID)
		if dropFromSet {
			if err := m.catalog.RemoveReplica(chunkID, addr); err != nil {
				log.WithField("chunk_id", chunkID).Error("remove failed replica: ", err)
			}
		}
	}
}
