package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrIndexUnavailable wraps failures to reach the backing vector store.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Chunk is one contiguous piece of an ingested document together with its
// position metadata. Chunks are immutable once created.
type Chunk struct {
	Text        string
	Filename    string
	ChunkIndex  int
	TotalChunks int
}

// Validate enforces the payload schema at ingest time instead of trusting
// stored records at read time.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk %d of %q has empty text", c.ChunkIndex, c.Filename)
	}
	if c.TotalChunks <= 0 {
		return fmt.Errorf("chunk %d of %q has non-positive total %d", c.ChunkIndex, c.Filename, c.TotalChunks)
	}
	if c.ChunkIndex < 0 || c.ChunkIndex >= c.TotalChunks {
		return fmt.Errorf("chunk index %d of %q out of range [0,%d)", c.ChunkIndex, c.Filename, c.TotalChunks)
	}
	return nil
}

// Metadata is the fixed per-record payload stored alongside the text.
type Metadata struct {
	Filename    string
	ChunkIndex  int
	TotalChunks int
}

// Result is one similarity-search hit. Results only live for the duration
// of a query.
type Result struct {
	Text     string
	Score    float64
	Metadata Metadata
}

// Record is a chunk plus its vector and stable identifier, ready for the
// store.
type Record struct {
	ID     uint64
	Vector []float32
	Chunk  Chunk
}

// Store is the external vector-store capability: an id-keyed upsert plus
// cosine top-k search. Implementations must tolerate concurrent calls.
type Store interface {
	// Ensure creates the backing collection with the given vector
	// dimensionality if it does not exist yet.
	Ensure(ctx context.Context, dimension int) error
	// Upsert writes records, replacing any record whose id already exists.
	Upsert(ctx context.Context, records []Record) error
	// Search returns up to topK results ordered by descending cosine
	// similarity to the query vector.
	Search(ctx context.Context, vector []float32, topK int) ([]Result, error)
	// Clear drops all records from the collection.
	Clear(ctx context.Context) error
}
