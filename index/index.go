// Package index owns document insertion and similarity search over an
// embedding-backed vector store.
package index

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/vhoang/docbot/config"
	"github.com/vhoang/docbot/embeddings"
)

// Index pairs an embedder with a vector store. The embedding dimensionality
// is fixed at construction; the backing collection is created lazily before
// the first write with exactly that dimensionality.
type Index struct {
	embedder  embeddings.Embedder
	store     Store
	dimension int
	logger    *log.Logger

	mu    sync.Mutex
	ready bool
}

func New(embedder embeddings.Embedder, store Store, dimension int, logger *log.Logger) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", config.ErrInvalidConfig, dimension)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Index{
		embedder:  embedder,
		store:     store,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// ChunkID derives a stable identifier from chunk text: the integer value of
// the first eight hex digits of the text's MD5. Identical text always maps
// to the identical id, so re-ingesting a chunk overwrites its record.
func ChunkID(text string) uint64 {
	sum := md5.Sum([]byte(text))
	return uint64(binary.BigEndian.Uint32(sum[:4]))
}

// Embed delegates to the embedding capability and guarantees one vector per
// text, in input order, with the configured dimensionality.
func (ix *Index) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != ix.dimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, index is %d", config.ErrInvalidConfig, i, len(vec), ix.dimension)
		}
	}
	return vectors, nil
}

// Upsert embeds the chunks in one batch and writes them keyed by content
// hash. Store failures are reported, never swallowed: a caller that loses a
// document must know.
func (ix *Index) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return fmt.Errorf("invalid chunk: %w", err)
		}
	}

	if err := ix.ensure(ctx); err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := ix.Embed(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = Record{
			ID:     ChunkID(chunk.Text),
			Vector: vectors[i],
			Chunk:  chunk,
		}
	}

	if err := ix.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("%w: upsert %d records: %v", ErrIndexUnavailable, len(records), err)
	}

	ix.logger.Printf("indexed %d chunks", len(records))
	return nil
}

// Search embeds the query and returns up to topK results by descending
// similarity. An empty store yields an empty slice, not an error; the
// caller decides what emptiness means.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}

	if err := ix.ensure(ctx); err != nil {
		return nil, err
	}

	vectors, err := ix.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	results, err := ix.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrIndexUnavailable, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Clear drops every record from the backing collection.
func (ix *Index) Clear(ctx context.Context) error {
	if err := ix.ensure(ctx); err != nil {
		return err
	}
	if err := ix.store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrIndexUnavailable, err)
	}
	return nil
}

func (ix *Index) ensure(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.ready {
		return nil
	}
	if err := ix.store.Ensure(ctx, ix.dimension); err != nil {
		return fmt.Errorf("%w: ensure collection: %v", ErrIndexUnavailable, err)
	}
	ix.ready = true
	return nil
}
