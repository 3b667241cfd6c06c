package master

import (
	"sync"
	"time"
)

// HeartbeatTable tracks each chunk server's last-seen heartbeat and
// request count, and the set of servers currently believed dead. It is
// guarded by its own mutex, deliberately independent of Catalog's lock
// (§5): the data plane (placement, namespace mutation) must never block
// on the failure-watch plane or vice versa. Code in this package never
// holds both Catalog.mu and HeartbeatTable.mu at once — any operation
// needing both takes one, copies what it needs, releases it, then takes
// the other.
type HeartbeatTable struct {
	mu          sync.Mutex
	lastSeen    map[string]time.Time
	numRequests map[string]int
	failed      map[string]bool
}

// NewHeartbeatTable builds an empty table.
func NewHeartbeatTable() *HeartbeatTable {
	return &HeartbeatTable{
		lastSeen:    make(map[string]time.Time),
		numRequests: make(map[string]int),
		failed:      make(map[string]bool),
	}
}

// Record processes one heartbeat (§4.3 processor duties 1 and 3). It
// returns whether the server was re-animated from failed (duty 1). The
// caller decides from the heartbeat's own num_requests whether to trigger
// load-based re-replication (duty 2, which needs the catalog lock and so
// happens outside this call).
func (h *HeartbeatTable) Record(id string, now time.Time, numRequests int) (reAnimated bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.failed[id] {
		delete(h.failed, id)
		reAnimated = true
	}
	h.lastSeen[id] = now
	h.numRequests[id] = numRequests
	return reAnimated
}

// IsFailed reports whether id is currently marked failed.
func (h *HeartbeatTable) IsFailed(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failed[id]
}

// FailedSnapshot returns a copy of the current failed set, keyed the same
// way Catalog.liveServers is (addr.String()).
func (h *HeartbeatTable) FailedSnapshot() map[string]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]bool, len(h.failed))
	for k := range h.failed {
		out[k] = true
	}
	return out
}

// DetectDead scans the table for servers whose last heartbeat is older
// than threshold and which are not already failed, marks them failed, and
// returns their ids (§4.3 detector task).
func (h *HeartbeatTable) DetectDead(now time.Time, threshold time.Duration) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var newlyDead []string
	for id, seen := range h.lastSeen {
		if h.failed[id] {
			continue
		}
		if now.Sub(seen) > threshold {
			h.failed[id] = true
			newlyDead = append(newlyDead, id)
		}
	}
	return newlyDead
}
