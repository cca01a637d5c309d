package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// QdrantStore is a minimal REST client to a Qdrant collection using cosine
// distance.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *QdrantStore) Ensure(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	// PUT of an existing collection with the same schema is a no-op;
	// a dimensionality conflict comes back as an error status.
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.call(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, record := range records {
		points[i] = map[string]any{
			"id":     record.ID,
			"vector": record.Vector,
			"payload": map[string]any{
				"text":         record.Chunk.Text,
				"filename":     record.Chunk.Filename,
				"chunk_index":  record.Chunk.ChunkIndex,
				"total_chunks": record.Chunk.TotalChunks,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.call(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.call(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		item := Result{Score: r.Score}
		if v, ok := r.Payload["text"].(string); ok {
			item.Text = v
		}
		if v, ok := r.Payload["filename"].(string); ok {
			item.Metadata.Filename = v
		}
		if v, ok := r.Payload["chunk_index"].(float64); ok {
			item.Metadata.ChunkIndex = int(v)
		}
		if v, ok := r.Payload["total_chunks"].(float64); ok {
			item.Metadata.TotalChunks = int(v)
		}
		results = append(results, item)
	}
	return results, nil
}

func (s *QdrantStore) Clear(ctx context.Context) error {
	body := map[string]any{"filter": map[string]any{}}
	return s.call(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
}

func (s *QdrantStore) call(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal qdrant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}

var _ Store = (*QdrantStore)(nil)
