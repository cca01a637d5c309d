package index

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/vhoang/docbot/config"
	"github.com/vhoang/docbot/embeddings"
)

type stubEmbedder struct {
	dimension int
	err       error
	calls     int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, s.dimension)
		vec[0] = float32(len(texts[i]))
		vectors[i] = vec
	}
	return vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubStore struct {
	records    map[uint64]Record
	results    []Result
	ensureErr  error
	upsertErr  error
	searchErr  error
	ensured    int
	lastEnsure int
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[uint64]Record)}
}

func (s *stubStore) Ensure(ctx context.Context, dimension int) error {
	s.ensured++
	s.lastEnsure = dimension
	return s.ensureErr
}

func (s *stubStore) Upsert(ctx context.Context, records []Record) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, record := range records {
		s.records[record.ID] = record
	}
	return nil
}

func (s *stubStore) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

func (s *stubStore) Clear(ctx context.Context) error {
	s.records = make(map[uint64]Record)
	return nil
}

var _ Store = (*stubStore)(nil)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testChunks(texts ...string) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{Text: text, Filename: "doc.txt", ChunkIndex: i, TotalChunks: len(texts)}
	}
	return chunks
}

func TestChunkIDMatchesTruncatedMD5(t *testing.T) {
	text := "Paris is the capital of France."
	sum := md5.Sum([]byte(text))
	want, err := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
	if err != nil {
		t.Fatalf("parse reference id: %v", err)
	}
	if got := ChunkID(text); got != want {
		t.Fatalf("expected id %d, got %d", want, got)
	}
}

func TestChunkIDIsDeterministic(t *testing.T) {
	if ChunkID("same text") != ChunkID("same text") {
		t.Fatal("expected identical text to yield identical ids")
	}
	if ChunkID("one text") == ChunkID("another text") {
		t.Fatal("expected different texts to yield different ids")
	}
}

func TestNewRejectsBadDimension(t *testing.T) {
	if _, err := New(&stubEmbedder{dimension: 3}, newStubStore(), 0, testLogger()); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected invalid configuration error, got %v", err)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := newStubStore()
	ix, err := New(&stubEmbedder{dimension: 3}, store, 3, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := testChunks("first chunk text", "second chunk text")
	if err := ix.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := ix.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if len(store.records) != 2 {
		t.Fatalf("expected 2 distinct records after re-ingest, got %d", len(store.records))
	}
}

func TestUpsertEnsuresCollectionOnceWithDimension(t *testing.T) {
	store := newStubStore()
	ix, err := New(&stubEmbedder{dimension: 4}, store, 4, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := ix.Upsert(context.Background(), testChunks("some chunk text")); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	if store.ensured != 1 {
		t.Fatalf("expected one ensure call, got %d", store.ensured)
	}
	if store.lastEnsure != 4 {
		t.Fatalf("expected ensure with dimension 4, got %d", store.lastEnsure)
	}
}

func TestUpsertRejectsInvalidChunk(t *testing.T) {
	store := newStubStore()
	ix, err := New(&stubEmbedder{dimension: 3}, store, 3, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []Chunk{{Text: "text", Filename: "doc.txt", ChunkIndex: 2, TotalChunks: 2}}
	if err := ix.Upsert(context.Background(), bad); err == nil {
		t.Fatal("expected error for chunk index out of range")
	}
	if len(store.records) != 0 {
		t.Fatal("expected no records written for invalid input")
	}
}

func TestUpsertReportsStoreFailure(t *testing.T) {
	store := newStubStore()
	store.upsertErr = errors.New("connection refused")
	ix, err := New(&stubEmbedder{dimension: 3}, store, 3, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = ix.Upsert(context.Background(), testChunks("some chunk text"))
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable error, got %v", err)
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	store := newStubStore()
	ix, err := New(&stubEmbedder{dimension: 5}, store, 3, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = ix.Upsert(context.Background(), testChunks("some chunk text"))
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected dimension mismatch to be fatal, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatal("expected no records written on dimension mismatch")
	}
}

func TestSearchEmptyStoreReturnsEmptySlice(t *testing.T) {
	store := newStubStore()
	ix, err := New(&stubEmbedder{dimension: 3}, store, 3, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := ix.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSearchOrdersByDescendingScore(t *testing.T) {
	store := newStubStore()
	store.results = []Result{
		{Text: "middle", Score: 0.5},
		{Text: "best", Score: 0.9},
		{Text: "worst", Score: 0.1},
	}
	ix, err := New(&stubEmbedder{dimension: 3}, store, 3, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := ix.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < len(results)-1; i++ {
		if results[i].Score < results[i+1].Score {
			t.Fatalf("results not in descending score order: %v", results)
		}
	}
}

func TestSearchReportsStoreFailure(t *testing.T) {
	store := newStubStore()
	store.searchErr = errors.New("timeout")
	ix, err := New(&stubEmbedder{dimension: 3}, store, 3, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := ix.Search(context.Background(), "query", 5); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable error, got %v", err)
	}
}
