package master

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// Persister rewrites the two catalog JSON files (§3 I6, §6) in full on
// every mutation. No WAL; last-write-wins semantics per file on crash, as
// specified — this is a deliberate simplification, not an oversight.
type Persister struct {
	fileToChunksPath   string
	chunkLocationsPath string
}

// NewPersister roots the two catalog files under dir.
func NewPersister(dir string) *Persister {
	return &Persister{
		fileToChunksPath:   filepath.Join(dir, "file_to_chunks.json"),
		chunkLocationsPath: filepath.Join(dir, "chunk_locations.json"),
	}
}

// Load reads both files back, if present. A missing file yields a nil map
// (fresh catalog), not an error.
func (p *Persister) Load() (map[string][]int64, map[int64][]gfs.ServerAddress, error) {
	fileChunks, err := loadJSON[map[string][]int64](p.fileToChunksPath)
	if err != nil {
		return nil, nil, err
	}

	raw, err := loadJSON[map[string][]gfs.ServerAddress](p.chunkLocationsPath)
	if err != nil {
		return nil, nil, err
	}
	var chunkReplicas map[int64][]gfs.ServerAddress
	if raw != nil {
		chunkReplicas = make(map[int64][]gfs.ServerAddress, len(raw))
		for k, v := range raw {
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				continue
			}
			chunkReplicas[id] = v
		}
	}
	return fileChunks, chunkReplicas, nil
}

func loadJSON[T any](path string) (T, error) {
	var zero T
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// Save rewrites both files in full.
func (p *Persister) Save(fileChunks map[string][]int64, chunkReplicas map[int64][]gfs.ServerAddress) error {
	if err := writeJSONAtomic(p.fileToChunksPath, fileChunks); err != nil {
		return err
	}

	byString := make(map[string][]gfs.ServerAddress, len(chunkReplicas))
	for id, set := range chunkReplicas {
		byString[strconv.FormatInt(id, 10)] = set
	}
	return writeJSONAtomic(p.chunkLocationsPath, byString)
}

func writeJSONAtomic(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
