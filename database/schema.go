// Package database manages the Postgres connection and the chunk schema.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureChunkSchema creates the pgvector extension and the chunk table with
// the given embedding dimensionality. The id is a content hash, so the
// primary key doubles as the dedup key. Reusing an existing table with a
// different dimensionality fails here, before any write.
func EnsureChunkSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS doc_chunks (
			id BIGINT PRIMARY KEY,
			content TEXT NOT NULL,
			filename TEXT NOT NULL,
			chunk_index INT NOT NULL,
			total_chunks INT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_doc_chunks_filename ON doc_chunks(filename)",
		"CREATE INDEX IF NOT EXISTS idx_doc_chunks_embedding ON doc_chunks USING ivfflat (embedding vector_cosine_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	var existing int
	err := pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'doc_chunks'::regclass AND attname = 'embedding'
	`).Scan(&existing)
	if err != nil {
		return fmt.Errorf("read embedding column dimension: %w", err)
	}
	if existing > 0 && existing != dimension {
		return fmt.Errorf("doc_chunks embedding dimension is %d, configured %d", existing, dimension)
	}

	return nil
}
