package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/vhoang/docbot/database"
)

// PostgresStore keeps chunk records in a pgvector table, one row per
// content hash.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ensure(ctx context.Context, dimension int) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	return database.EnsureChunkSchema(ctx, s.pool, dimension)
}

func (s *PostgresStore) Upsert(ctx context.Context, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, record := range records {
		if _, err = tx.Exec(ctx, `
			INSERT INTO doc_chunks (id, content, filename, chunk_index, total_chunks, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				filename = EXCLUDED.filename,
				chunk_index = EXCLUDED.chunk_index,
				total_chunks = EXCLUDED.total_chunks,
				embedding = EXCLUDED.embedding,
				updated_at = NOW()
		`, int64(record.ID), record.Chunk.Text, record.Chunk.Filename, record.Chunk.ChunkIndex, record.Chunk.TotalChunks, pgvector.NewVector(record.Vector)); err != nil {
			return fmt.Errorf("upsert chunk %d: %w", record.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT content, filename, chunk_index, total_chunks,
		       1 - (embedding <=> $1::vector) AS score
		FROM doc_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, topK)
	for rows.Next() {
		var item Result
		if scanErr := rows.Scan(&item.Text, &item.Metadata.Filename, &item.Metadata.ChunkIndex, &item.Metadata.TotalChunks, &item.Score); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE doc_chunks"); err != nil {
		return fmt.Errorf("truncate doc_chunks: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
