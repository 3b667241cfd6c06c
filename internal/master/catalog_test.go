package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	persist := NewPersister(t.TempDir())
	c, err := NewCatalog(persist)
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		c.RegisterServer(gfs.NewServerAddress("127.0.0.1", 6000+i))
	}
	return c
}

func TestCatalogWriteAllocatesExpectedChunkCountAndReplicas(t *testing.T) {
	c := newTestCatalog(t)

	ids, locations, deleted, err := c.Write("a", []byte("0123456789ABCDEF"), 12, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.Len(t, ids, 2) // 16 bytes / 12 = 2 chunks (P1-adjacent: split count)
	for _, set := range locations {
		assert.Len(t, set, 3)
	}
}

func TestCatalogWriteOverwriteReturnsDeletedChunksAndDropsThemFromCatalog(t *testing.T) {
	c := newTestCatalog(t)

	firstIDs, _, _, err := c.Write("a", []byte("hello"), 12, 3, nil)
	require.NoError(t, err)

	_, _, deleted, err := c.Write("a", []byte("world"), 12, 3, nil)
	require.NoError(t, err)

	require.Len(t, deleted, len(firstIDs))
	assert.Equal(t, firstIDs[0], deleted[0].ChunkID)

	// P6: the pre-existing chunk id no longer appears in the catalog.
	_, ok := c.ReplicaSet(firstIDs[0])
	assert.False(t, ok)
}

func TestCatalogChunkIDsAreStrictlyMonotonic(t *testing.T) {
	c := newTestCatalog(t)

	ids1, _, _, err := c.Write("a", []byte("0123456789AB"), 12, 3, nil)
	require.NoError(t, err)
	ids2, _, _, err := c.Write("b", []byte("0123456789AB"), 12, 3, nil)
	require.NoError(t, err)

	// P3
	assert.Greater(t, ids2[0], ids1[len(ids1)-1])
}

func TestCatalogWriteFailsWithoutEnoughServers(t *testing.T) {
	persist := NewPersister(t.TempDir())
	c, err := NewCatalog(persist)
	require.NoError(t, err)
	c.RegisterServer(gfs.NewServerAddress("127.0.0.1", 7001))

	_, _, _, err = c.Write("a", []byte("hello"), 12, 3, nil)
	assert.ErrorIs(t, err, gfs.ErrNotEnoughServers)
}

func TestCatalogRenamePreservesChunkListAndRemovesOldName(t *testing.T) {
	c := newTestCatalog(t)

	ids, _, _, err := c.Write("f", []byte("data!"), 12, 3, nil)
	require.NoError(t, err)

	require.NoError(t, c.Rename("f", "g"))

	// P4
	newIDs, ok := c.FileChunks("g")
	require.True(t, ok)
	assert.Equal(t, ids, newIDs)

	_, ok = c.FileChunks("f")
	assert.False(t, ok)
}

func TestCatalogRenameFailsWhenOldMissingOrNewExists(t *testing.T) {
	c := newTestCatalog(t)
	_, _, _, err := c.Write("exists", []byte("x"), 12, 3, nil)
	require.NoError(t, err)

	err = c.Rename("missing", "whatever")
	assert.Error(t, err)

	_, _, _, err = c.Write("other", []byte("x"), 12, 3, nil)
	require.NoError(t, err)
	err = c.Rename("other", "exists")
	assert.Error(t, err)
}

func TestCatalogDeleteReturnsEveryChunkReplicaSetAndClearsNamespace(t *testing.T) {
	c := newTestCatalog(t)

	ids, locations, _, err := c.Write("e", []byte("hello world!"), 12, 3, nil)
	require.NoError(t, err)

	deleted, err := c.Delete("e")
	require.NoError(t, err)
	require.Len(t, deleted, len(ids))
	for i, d := range deleted {
		assert.Equal(t, ids[i], d.ChunkID)
		assert.Equal(t, locations[i], d.Replicas)
	}

	_, _, err = c.ReadPlan("e")
	assert.ErrorIs(t, err, gfs.ErrFileNotFound)
}

func TestCatalogTruncateAfterRemovesOnlyLaterChunks(t *testing.T) {
	c := newTestCatalog(t)
	ids, _, _, err := c.Write("a", []byte("0123456789ABCDEF"), 12, 3, nil) // 2 chunks
	require.NoError(t, err)
	require.Len(t, ids, 2)

	removed, err := c.TruncateAfter("a", 0)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, ids[1], removed[0].ChunkID)

	remaining, ok := c.FileChunks("a")
	require.True(t, ok)
	assert.Equal(t, []int64{ids[0]}, remaining)
}

func TestCatalogPersistenceReloadsVerbatim(t *testing.T) {
	dir := t.TempDir()
	persist := NewPersister(dir)
	c1, err := NewCatalog(persist)
	require.NoError(t, err)
	c1.RegisterServer(gfs.NewServerAddress("127.0.0.1", 7001))
	c1.RegisterServer(gfs.NewServerAddress("127.0.0.1", 7002))
	c1.RegisterServer(gfs.NewServerAddress("127.0.0.1", 7003))

	ids, locations, _, err := c1.Write("a", []byte("hello world!"), 12, 3, nil)
	require.NoError(t, err)

	// I6: a fresh Catalog over the same directory reloads state verbatim.
	c2, err := NewCatalog(NewPersister(dir))
	require.NoError(t, err)
	reloadedIDs, ok := c2.FileChunks("a")
	require.True(t, ok)
	assert.Equal(t, ids, reloadedIDs)
	reloadedReplicas, ok := c2.ReplicaSet(ids[0])
	require.True(t, ok)
	assert.Equal(t, locations[0], reloadedReplicas)

	// nextChunkID must continue past whatever was persisted (P3 across restarts).
	newIDs, _, _, err := c2.Write("b", []byte("more"), 12, 3, nil)
	require.NoError(t, err)
	assert.Greater(t, newIDs[0], ids[len(ids)-1])
}
