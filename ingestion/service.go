package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/vhoang/docbot/index"
	"github.com/vhoang/docbot/splitter"
)

// ErrEmptyDocument rejects blank documents before any external call.
var ErrEmptyDocument = errors.New("document is empty")

// Stats summarizes one ingested document.
type Stats struct {
	Chunks int
	Chars  int
}

// Indexer is the slice of the embedding index the ingestion service needs.
type Indexer interface {
	Upsert(ctx context.Context, chunks []index.Chunk) error
}

// Service splits documents and writes their chunks to the index.
type Service struct {
	splitter *splitter.Splitter
	index    Indexer
	logger   *log.Logger
}

func NewService(sp *splitter.Splitter, ix Indexer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{splitter: sp, index: ix, logger: logger}
}

// IngestText chunks raw document text and upserts it. Index failures
// propagate: silently losing a document is a correctness bug, the caller
// must see the ingest failed.
func (s *Service) IngestText(ctx context.Context, content, filename string) (Stats, error) {
	if strings.TrimSpace(content) == "" {
		return Stats{}, ErrEmptyDocument
	}

	pieces := s.splitter.Split(content)
	texts := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		texts = append(texts, piece)
	}
	if len(texts) == 0 {
		return Stats{}, ErrEmptyDocument
	}

	chunks := make([]index.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = index.Chunk{
			Text:        text,
			Filename:    filename,
			ChunkIndex:  i,
			TotalChunks: len(texts),
		}
	}

	if err := s.index.Upsert(ctx, chunks); err != nil {
		return Stats{}, fmt.Errorf("index document %q: %w", filename, err)
	}

	stats := Stats{Chunks: len(chunks), Chars: utf8.RuneCountInString(content)}
	s.logger.Printf("ingested %s (%d chunks, %d chars)", filename, stats.Chunks, stats.Chars)
	return stats, nil
}

// IngestFile reads one file, extracts its text by detected format, and
// ingests it under its base name.
func (s *Service) IngestFile(ctx context.Context, path string) (Stats, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return Stats{}, fmt.Errorf("unsupported file type: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("read file: %w", err)
	}

	content, err := ExtractText(data, format)
	if err != nil {
		return Stats{}, fmt.Errorf("extract %s: %w", path, err)
	}

	return s.IngestText(ctx, content, filepath.Base(path))
}

// IngestDirectory walks dir and ingests every supported file. Per-file
// failures are logged and skipped; the walk itself failing, or no supported
// file being found, is an error.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (Stats, error) {
	if _, err := os.Stat(dir); err != nil {
		return Stats{}, fmt.Errorf("data directory: %w", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(path) != FormatUnknown {
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return Stats{}, fmt.Errorf("walk data directory: %w", err)
	}

	if len(entries) == 0 {
		return Stats{}, fmt.Errorf("no supported documents found in %s", dir)
	}

	var total Stats
	for _, path := range entries {
		stats, err := s.IngestFile(ctx, path)
		if err != nil {
			s.logger.Printf("ingest failed for %s: %v", path, err)
			continue
		}
		total.Chunks += stats.Chunks
		total.Chars += stats.Chars
	}
	return total, nil
}
