package index

import (
	"context"
	"fmt"

	"github.com/vhoang/docbot/config"
	"github.com/vhoang/docbot/database"
)

// NewStore builds the configured vector-store backend. The returned close
// function releases backend resources and is safe to defer.
func NewStore(ctx context.Context, cfg config.Config) (Store, func(), error) {
	switch cfg.VectorStore {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		return NewPostgresStore(pool), pool.Close, nil
	case config.StoreQdrant:
		store := NewQdrantStore(QdrantConfig{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
		})
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown vector store %q", config.ErrInvalidConfig, cfg.VectorStore)
	}
}
