// Package client is a non-interactive driver for the master/chunk-server
// wire protocol (§6), grounded on the teacher's gfs/client package. The
// spec's interactive client CLI (filename + operation + prompts) is an
// explicit Non-goal; this package exists to exercise the protocol end to
// end from tests, not to be a user-facing binary.
package client

import (
	"bytes"
	"fmt"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// Client holds the master address and the chunk_size the deployment (or
// test) is using, since the caller must replicate the master's own
// ceil(len/chunk_size) splitting to hand each chunk server its slice.
type Client struct {
	master    gfs.ServerAddress
	chunkSize int64
}

// New builds a Client against master, using chunkSize to split payloads.
func New(master gfs.ServerAddress, chunkSize int64) *Client {
	return &Client{master: master, chunkSize: chunkSize}
}

func (c *Client) callMaster(req gfs.MasterRequest) (gfs.MasterResponse, error) {
	conn, err := dial(c.master)
	if err != nil {
		return gfs.MasterResponse{}, err
	}
	defer conn.Close()

	if err := gfs.WriteMessage(conn, req); err != nil {
		return gfs.MasterResponse{}, err
	}
	var resp gfs.MasterResponse
	if err := gfs.ReadMessage(conn, &resp); err != nil {
		return gfs.MasterResponse{}, err
	}
	return resp, nil
}

// Write implements WRITE (§4.1): ask the master to allocate placement,
// then push each chunk's slice of data to its primary, which fans out to
// its secondaries.
func (c *Client) Write(filename string, data []byte) error {
	resp, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeWrite, Filename: filename, Data: data})
	if err != nil {
		return err
	}
	if resp.Status != gfs.StatusOK {
		return fmt.Errorf("gfs: write %q: %s", filename, resp.Status)
	}

	for i, id := range resp.ChunkIDs {
		servers := resp.Locations[i]
		slice := sliceChunk(data, i, c.chunkSize)
		cresp, err := callChunkServer(servers[0], gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: id, Content: slice, Replicas: servers})
		if err != nil {
			return fmt.Errorf("gfs: write chunk %d: %w", id, err)
		}
		if cresp.Status != gfs.StatusOK {
			return fmt.Errorf("gfs: write chunk %d refused: %s", id, cresp.Message)
		}
	}
	return nil
}

func sliceChunk(data []byte, index int, chunkSize int64) []byte {
	start := int64(index) * chunkSize
	end := start + chunkSize
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	if start > int64(len(data)) {
		return nil
	}
	return data[start:end]
}

// Read implements READ (§4.1): fetch the chunk plan, then read each chunk
// from its replica set (primary first, falling through on a peer error —
// §4.1 read fallback), stripping trailing pad bytes before concatenating
// (L1).
func (c *Client) Read(filename string) ([]byte, error) {
	resp, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeRead, Filename: filename})
	if err != nil {
		return nil, err
	}
	if resp.Status != gfs.StatusOK {
		return nil, fmt.Errorf("gfs: read %q: %s", filename, resp.Status)
	}

	var out bytes.Buffer
	for i, id := range resp.Chunks {
		servers := resp.Locations[i]
		content, err := readChunkAnyReplica(servers, id)
		if err != nil {
			return nil, fmt.Errorf("gfs: read chunk %d: %w", id, err)
		}
		out.Write(bytes.TrimRight(content, string(gfs.PadByte)))
	}
	return out.Bytes(), nil
}

func readChunkAnyReplica(servers []gfs.ServerAddress, chunkID int64) ([]byte, error) {
	var lastErr error
	for _, addr := range servers {
		resp, err := callChunkServer(addr, gfs.ChunkRequest{Type: gfs.TypeRead, ChunkID: chunkID})
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Status != gfs.StatusOK {
			lastErr = fmt.Errorf("%s", resp.Message)
			continue
		}
		return resp.Content, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no replica responded")
	}
	return nil, lastErr
}

// Append implements RECORD_APPEND + the boundary protocol of §4.2/L2: ask
// the master for the last chunk's primary, try an APPEND there, and if the
// primary reports Insufficient Space, retry through RECORD_APPEND_RETRY
// (which allocates fresh chunks, like WRITE) and place the data there
// instead.
func (c *Client) Append(filename string, data []byte) error {
	resp, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeRecordAppend, Filename: filename, Data: data})
	if err != nil {
		return err
	}
	if resp.Status != gfs.StatusOK {
		return fmt.Errorf("gfs: record_append %q: %s", filename, resp.Status)
	}

	cresp, err := callChunkServer(*resp.PrimaryServer, gfs.ChunkRequest{
		Type:             gfs.TypeAppend,
		ChunkID:          resp.LastChunkID,
		Content:          data,
		SecondaryServers: resp.SecondaryServers,
	})
	if err != nil {
		return fmt.Errorf("gfs: append chunk %d: %w", resp.LastChunkID, err)
	}
	if cresp.Status == gfs.StatusOK {
		return nil
	}
	if cresp.Status != gfs.StatusInsufficientSpc {
		return fmt.Errorf("gfs: append chunk %d refused: %s", resp.LastChunkID, cresp.Message)
	}

	retry, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeRecordAppendRetry, Filename: filename, Data: data})
	if err != nil {
		return err
	}
	if retry.Status != gfs.StatusOK {
		return fmt.Errorf("gfs: record_append_retry %q: %s", filename, retry.Status)
	}
	for i, id := range retry.ChunkIDs {
		servers := retry.Locations[i]
		slice := sliceChunk(data, i, c.chunkSize)
		wresp, err := callChunkServer(servers[0], gfs.ChunkRequest{Type: gfs.TypeWrite, ChunkID: id, Content: slice, Replicas: servers})
		if err != nil {
			return fmt.Errorf("gfs: write retried chunk %d: %w", id, err)
		}
		if wresp.Status != gfs.StatusOK {
			return fmt.Errorf("gfs: write retried chunk %d refused: %s", id, wresp.Message)
		}
	}
	return nil
}

// Delete implements DELETE.
func (c *Client) Delete(filename string) error {
	resp, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeDelete, Filename: filename})
	if err != nil {
		return err
	}
	if resp.Status != gfs.StatusOK {
		return fmt.Errorf("gfs: delete %q: %s", filename, resp.Status)
	}
	return nil
}

// Rename implements RENAME.
func (c *Client) Rename(oldName, newName string) error {
	resp, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeRename, OldFilename: oldName, NewFilename: newName})
	if err != nil {
		return err
	}
	if resp.Status != gfs.StatusOK {
		return fmt.Errorf("gfs: rename %q->%q: %s", oldName, newName, resp.Status)
	}
	return nil
}

// WriteOffset implements WRITE_OFFSET (§4.1/L3): fetch the plan, then
// replay the master's own cursor arithmetic to slice data across the
// returned chunk entries.
func (c *Client) WriteOffset(filename string, data []byte, offset int64) error {
	resp, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeWriteOffset, Filename: filename, Data: data, Offset: offset})
	if err != nil {
		return err
	}
	if resp.Status != gfs.StatusOK {
		return fmt.Errorf("gfs: write_offset %q: %s", filename, resp.Status)
	}

	var cursor int64
	for i, entry := range resp.ChunkInfo {
		avail := c.chunkSize
		if i == 0 {
			avail = c.chunkSize - entry.ChunkOffset
		}
		n := avail
		if remaining := int64(len(data)) - cursor; n > remaining {
			n = remaining
		}
		if n < 0 {
			n = 0
		}
		slice := data[cursor : cursor+n]

		wresp, err := callChunkServer(entry.PrimaryServer, gfs.ChunkRequest{
			Type:        gfs.TypeWriteOffset,
			ChunkID:     entry.ChunkID,
			Content:     slice,
			ChunkOffset: entry.ChunkOffset,
			Replicas:    entry.Servers,
		})
		if err != nil {
			return fmt.Errorf("gfs: write_offset chunk %d: %w", entry.ChunkID, err)
		}
		if wresp.Status != gfs.StatusOK {
			return fmt.Errorf("gfs: write_offset chunk %d refused: %s", entry.ChunkID, wresp.Message)
		}
		cursor += n
	}
	return nil
}

// RegisterChunkServer implements REGISTER_CHUNKSERVER, exposed for tests
// that want to control registration timing directly rather than relying
// on a chunkserver.ChunkServer's own startup path.
func (c *Client) RegisterChunkServer(addr gfs.ServerAddress) error {
	resp, err := c.callMaster(gfs.MasterRequest{Type: gfs.TypeRegisterChunkserver, Address: &addr})
	if err != nil {
		return err
	}
	if resp.Status != gfs.StatusOK {
		return fmt.Errorf("gfs: register %v: %s", addr, resp.Status)
	}
	return nil
}
