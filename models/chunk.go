// Package models provides core data structures for the encoding engine.
package models

import (
	"fmt"
	"strings"
)

// Chunk represents an independently encodable unit of the source video.
//
// Chunks are created by the external splitting stage before scheduling
// begins. Each chunk is consumed exactly once by a worker, driven through
// the multi-pass encode pipeline, and discarded when the pipeline terminates.
// Chunks are value objects: they are copied into the work queue and owned
// exclusively by whichever worker currently processes them.
//
// Use NewChunk to create a validated Chunk instance.
type Chunk struct {
	// Index is the stable ordering/log identity of the chunk.
	Index int `json:"index"`

	// Name is the human-readable identity used as the checkpoint key.
	Name string `json:"name"`

	// Source is the path of the split source segment fed to the encoder.
	Source string `json:"source"`

	// Frames is the expected frame count of the encoded output.
	Frames int `json:"frames"`

	// Output is the path where the encoded artifact will appear.
	Output string `json:"output"`

	// Quantizer is the chunk-local quality parameter. The target-quality
	// routine may adjust it before the pass loop; zero means "use the
	// configured default".
	Quantizer int `json:"quantizer,omitempty"`
}

// NewChunk creates a new Chunk with validation.
//
// Returns an error if the chunk parameters are invalid:
//   - Index cannot be negative
//   - Name and Output cannot be empty or whitespace-only
//   - Frames must be greater than 0
func NewChunk(index int, name, source string, frames int, output string) (*Chunk, error) {
	c := &Chunk{
		Index:  index,
		Name:   name,
		Source: source,
		Frames: frames,
		Output: output,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk: %w", err)
	}
	return c, nil
}

// Validate checks if the Chunk has valid data.
//
// Returns an error if:
//   - Index is negative
//   - Name or Output is empty or whitespace-only
//   - Frames is not positive (a chunk with no frames cannot be verified)
func (c *Chunk) Validate() error {
	if c.Index < 0 {
		return fmt.Errorf("index cannot be negative")
	}

	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if c.Frames <= 0 {
		return fmt.Errorf("frames must be greater than 0")
	}

	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}
