// Package manifest loads the chunk list prepared by the external splitting
// stage and filters out chunks a previous run already completed.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"parenc/checkpoint"
	"parenc/models"
)

// Load reads a chunk manifest: a JSON array of chunks written by the
// splitting stage into the temp directory.
//
// Every chunk is validated and chunk names must be unique, since the name is
// the checkpoint key.
func Load(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk manifest: %w", err)
	}

	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to parse chunk manifest %s: %w", path, err)
	}

	seen := make(map[string]bool, len(chunks))
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid chunk %d in manifest: %w", i, err)
		}
		if seen[chunks[i].Name] {
			return nil, fmt.Errorf("duplicate chunk name %q in manifest", chunks[i].Name)
		}
		seen[chunks[i].Name] = true
	}

	return chunks, nil
}

// FilterDone returns the chunks that still need encoding: a chunk is skipped
// only when the done-set records it with exactly its expected frame count.
// A done entry with a different count means the earlier artifact is not
// trustworthy and the chunk is re-encoded.
func FilterDone(chunks []models.Chunk, store *checkpoint.Store) []models.Chunk {
	remaining := make([]models.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if frames, ok := store.Frames(chunk.Name); ok && frames == chunk.Frames {
			continue
		}
		remaining = append(remaining, chunk)
	}
	return remaining
}
