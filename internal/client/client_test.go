package client

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/chunkserver"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/config"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/master"
)

// freePort asks the OS for an unused TCP port by binding and closing.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// waitForDial retries a TCP dial until it succeeds or the deadline passes,
// used to synchronize on a background Serve goroutine's listener coming up.
func waitForDial(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to accept connections", addr)
}

// testCluster wires one master and three chunk servers (chunk_size=12,
// replication_factor=3, per §8's end-to-end scenarios) over real loopback
// TCP/UDP, each with its own temp storage directory.
type testCluster struct {
	client *Client
	master *master.Master
	css    []*chunkserver.ChunkServer
}

func newTestCluster(t *testing.T) *testCluster {
	t.Helper()

	masterPort := freePort(t)
	cfg := config.Default()
	cfg.ChunkSize = 12
	cfg.ReplicationFactor = 3
	cfg.MasterPort = masterPort
	cfg.MasterHeartbeatPort = masterPort + 1
	cfg.StorageRoot = t.TempDir()

	m, err := master.New(cfg)
	require.NoError(t, err)
	go func() {
		_ = m.Serve("127.0.0.1")
	}()
	waitForDial(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(masterPort)))

	masterAddr := gfs.NewServerAddress("127.0.0.1", masterPort)
	cl := New(masterAddr, cfg.ChunkSize)

	var css []*chunkserver.ChunkServer
	for i := 0; i < 3; i++ {
		csCfg := cfg
		csCfg.StorageRoot = t.TempDir()
		port := freePort(t)
		cs, err := chunkserver.New(csCfg, masterAddr, "127.0.0.1", port)
		require.NoError(t, err)
		go func() {
			_ = cs.Serve()
		}()
		waitForDial(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		css = append(css, cs)
	}
	// chunk server registration races the above dials; give the master a
	// moment to process all three before tests start allocating chunks.
	time.Sleep(200 * time.Millisecond)

	t.Cleanup(func() {
		for _, cs := range css {
			cs.Shutdown()
		}
		m.Shutdown()
	})

	return &testCluster{client: cl, master: m, css: css}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// S1: WRITE("a","hello") -> READ("a") returns "hello", one chunk.
func TestScenarioS1SmallWriteRoundTrips(t *testing.T) {
	tc := newTestCluster(t)

	require.NoError(t, tc.client.Write("a", []byte("hello")))
	got, err := tc.client.Read("a")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

// S2: a 16-byte write spans two chunks (12 + 4) and reconstructs whole.
func TestScenarioS2MultiChunkWriteRoundTrips(t *testing.T) {
	tc := newTestCluster(t)

	data := []byte("0123456789ABCDEF")
	require.NoError(t, tc.client.Write("b", data))
	got, err := tc.client.Read("b")
	require.NoError(t, err)
	assert.Equal(t, string(data), string(got))
}

// S3: WRITE("c","AAAAA") then RECORD_APPEND("c","BBBBBBBB") overflows the
// first chunk (5+8=13>12); it pads, the client retries, and the
// reconstructed file strips the padding.
func TestScenarioS3AppendOverflowPadsAndRetries(t *testing.T) {
	tc := newTestCluster(t)

	require.NoError(t, tc.client.Write("c", []byte("AAAAA")))
	require.NoError(t, tc.client.Append("c", []byte("BBBBBBBB")))

	got, err := tc.client.Read("c")
	require.NoError(t, err)
	assert.Equal(t, "AAAAABBBBBBBB", string(got))
}

// S5: WRITE then DELETE then READ fails.
func TestScenarioS5DeleteThenReadFails(t *testing.T) {
	tc := newTestCluster(t)

	require.NoError(t, tc.client.Write("e", []byte("hello world!")))
	require.NoError(t, tc.client.Delete("e"))

	_, err := tc.client.Read("e")
	assert.Error(t, err)
}

// S6: WRITE then RENAME; new name reads the content, old name is gone.
func TestScenarioS6RenameMovesContent(t *testing.T) {
	tc := newTestCluster(t)

	require.NoError(t, tc.client.Write("f", []byte("data!")))
	require.NoError(t, tc.client.Rename("f", "g"))

	got, err := tc.client.Read("g")
	require.NoError(t, err)
	assert.Equal(t, "data!", string(got))

	_, err = tc.client.Read("f")
	assert.Error(t, err)
}

// S4 (as formalized by Law L3, §8): WRITE_OFFSET splices new content at
// the given offset and drops anything previously past offset+len(data).
func TestScenarioS4WriteOffsetSplicesAndTruncatesTail(t *testing.T) {
	tc := newTestCluster(t)

	require.NoError(t, tc.client.Write("d", []byte("0123456789AB")))
	require.NoError(t, tc.client.WriteOffset("d", []byte("XY"), 5))

	got, err := tc.client.Read("d")
	require.NoError(t, err)
	assert.Equal(t, "01234XY", string(got))
}
