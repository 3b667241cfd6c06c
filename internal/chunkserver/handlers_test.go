package chunkserver

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/config"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

func newTestServer(t *testing.T, chunkSize int64) *ChunkServer {
	t.Helper()
	cfg := config.Default()
	cfg.ChunkSize = chunkSize
	cfg.StorageRoot = t.TempDir()
	cs, err := New(cfg, gfs.NewServerAddress("127.0.0.1", 5000), "127.0.0.1", 6001)
	require.NoError(t, err)
	return cs
}

func TestChunkServerWriteThenReadAsPrimaryRole(t *testing.T) {
	cs := newTestServer(t, 12)

	replicas := []gfs.ServerAddress{cs.addr} // single-node "replica set" for the unit test
	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: 1, Content: []byte("hello"), Replicas: replicas})
	require.Equal(t, gfs.StatusOK, resp.Status)

	read := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: 1})
	require.Equal(t, gfs.StatusOK, read.Status)
	assert.Equal(t, "hello", string(read.Content))
}

func TestChunkServerSecondaryWriteUsesReplicaFile(t *testing.T) {
	cs := newTestServer(t, 12)

	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: 1, Content: []byte("hello")}) // empty Replicas => secondary
	require.Equal(t, gfs.StatusOK, resp.Status)

	_, err := os.Stat(cs.replicaPath(1))
	assert.NoError(t, err)
}

func TestChunkServerReadFallsBackFromPrimaryToReplica(t *testing.T) {
	cs := newTestServer(t, 12)

	cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: 1, Content: []byte("replica-only")}) // secondary role

	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: 1})
	require.Equal(t, gfs.StatusOK, resp.Status)
	assert.Equal(t, "replica-only", string(resp.Content))
}

func TestChunkServerReadMissingChunkIsError(t *testing.T) {
	cs := newTestServer(t, 12)
	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: 99})
	assert.Equal(t, gfs.StatusError, resp.Status)
}

func TestChunkServerAppendWithinBoundExtendsChunk(t *testing.T) {
	cs := newTestServer(t, 12)

	// Primary role: non-empty secondary_servers.
	secondaries := []gfs.ServerAddress{gfs.NewServerAddress("127.0.0.1", 6002)}
	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeAppend, ChunkID: 1, Content: []byte("AAAAA"), SecondaryServers: secondaries})
	require.Equal(t, gfs.StatusOK, resp.Status)

	read := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: 1})
	assert.Equal(t, "AAAAA", string(read.Content))
}

func TestChunkServerAppendOverflowPadsAndReportsInsufficientSpace(t *testing.T) {
	cs := newTestServer(t, 12)
	// A secondary address that refuses connections: fan-out failures are
	// logged and skipped, never fatal to the primary's own local write.
	secondaries := []gfs.ServerAddress{gfs.NewServerAddress("127.0.0.1", 1)}

	cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeAppend, ChunkID: 1, Content: []byte("AAAAA"), SecondaryServers: secondaries})

	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeAppend, ChunkID: 1, Content: []byte("BBBBBBBB"), SecondaryServers: secondaries})
	assert.Equal(t, gfs.StatusInsufficientSpc, resp.Status)

	read := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: 1})
	require.Equal(t, gfs.StatusOK, read.Status)
	require.Len(t, read.Content, 12) // I4: chunk size ceiling
	assert.Equal(t, "AAAAA", string(read.Content[:5]))
	assert.Equal(t, strings.Repeat("%", 7), string(read.Content[5:]))
}

func TestChunkServerSecondaryAppendReportsReplicaPaddedAtCeiling(t *testing.T) {
	cs := newTestServer(t, 12)

	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeAppend, ChunkID: 1, Content: []byte(strings.Repeat("%", 12))}) // empty SecondaryServers => secondary role
	assert.Equal(t, gfs.StatusReplicaPadded, resp.Status)
}

func TestChunkServerWriteOffsetSplicesAndTruncatesTail(t *testing.T) {
	cs := newTestServer(t, 12)

	cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: 1, Content: []byte("0123456789AB"), Replicas: []gfs.ServerAddress{cs.addr}})

	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeWriteOffset, ChunkID: 1, Content: []byte("XY"), ChunkOffset: 5, Replicas: []gfs.ServerAddress{cs.addr}})
	require.Equal(t, gfs.StatusOK, resp.Status)

	read := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: 1})
	// L3: bytes before the offset are preserved, bytes from the offset
	// onward become exactly the new content — the tail is not preserved.
	assert.Equal(t, "01234XY", string(read.Content))
}

func TestChunkServerDeleteChunkRemovesBothPayloadVariants(t *testing.T) {
	cs := newTestServer(t, 12)
	cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: 1, Content: []byte("x"), Replicas: []gfs.ServerAddress{cs.addr}})

	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeDeleteChunk, ChunkID: 1})
	assert.Equal(t, gfs.StatusOK, resp.Status)
	assert.Equal(t, "deleted", resp.Message)

	read := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: 1})
	assert.Equal(t, gfs.StatusError, read.Status)
}

func TestChunkServerGetChunkSizeReportsFileLength(t *testing.T) {
	cs := newTestServer(t, 12)
	cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: 1, Content: []byte("hello"), Replicas: []gfs.ServerAddress{cs.addr}})

	resp := cs.dispatch(gfs.ChunkRequest{Type: gfs.TypeGetChunkSize, ChunkID: 1})
	require.Equal(t, gfs.StatusOK, resp.Status)
	assert.Equal(t, int64(5), resp.ChunkSize)
}
