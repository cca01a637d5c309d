package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vhoang/docbot/chat"
	"github.com/vhoang/docbot/index"
	"github.com/vhoang/docbot/ingestion"
	"github.com/vhoang/docbot/memory"
	"github.com/vhoang/docbot/splitter"
)

type stubIndexer struct {
	chunks []index.Chunk
	err    error
}

func (s *stubIndexer) Upsert(ctx context.Context, chunks []index.Chunk) error {
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

type stubSearcher struct {
	results []index.Result
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int) ([]index.Result, error) {
	return s.results, nil
}

type stubLLM struct {
	answer string
	err    error
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func newTestServer(t *testing.T, ix *stubIndexer, client *stubLLM) *Server {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	sp, err := splitter.New(200, 20)
	if err != nil {
		t.Fatalf("build splitter: %v", err)
	}
	ingest := ingestion.NewService(sp, ix, logger)

	newSession := func() *chat.Service {
		assembler := chat.NewAssembler(&stubSearcher{}, 5, logger)
		return chat.NewService(assembler, client, memory.New(0), false, logger)
	}
	return New(ingest, newSession, logger)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "ok"})

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	ix := &stubIndexer{}
	srv := newTestServer(t, ix, &stubLLM{answer: "ok"})

	rec := doJSON(t, srv, http.MethodPost, "/v1/ingest", map[string]string{
		"filename": "facts.txt",
		"content":  "Paris is the capital of France. It is in Europe.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[ingestResponse](t, rec)
	if resp.Filename != "facts.txt" {
		t.Fatalf("unexpected filename %q", resp.Filename)
	}
	if resp.Chunks == 0 || len(ix.chunks) != resp.Chunks {
		t.Fatalf("expected reported chunks to match stored, got %d vs %d", resp.Chunks, len(ix.chunks))
	}
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "ok"})

	rec := doJSON(t, srv, http.MethodPost, "/v1/ingest", map[string]string{"content": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestSurfacesIndexFailure(t *testing.T) {
	ix := &stubIndexer{err: errors.New("store unreachable")}
	srv := newTestServer(t, ix, &stubLLM{answer: "ok"})

	rec := doJSON(t, srv, http.MethodPost, "/v1/ingest", map[string]string{"content": "some text"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestChatAssignsSessionAndAnswers(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "Paris."})

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat", map[string]string{
		"question": "What is the capital of France?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[chatResponse](t, rec)
	if resp.SessionID == "" {
		t.Fatal("expected server-assigned session id")
	}
	if resp.Answer != "Paris." || resp.Failed {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatKeepsHistoryPerSession(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "Paris."})

	first := decodeBody[chatResponse](t, doJSON(t, srv, http.MethodPost, "/v1/chat", map[string]string{
		"question": "What is the capital of France?",
	}))

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat", map[string]string{
		"sessionId": first.SessionID,
		"question":  "Is it in Europe?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	histRec := doJSON(t, srv, http.MethodGet, "/v1/history?session="+first.SessionID, nil)
	hist := decodeBody[historyResponse](t, histRec)
	if len(hist.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges for session, got %d", len(hist.Exchanges))
	}
	if hist.Exchanges[0].Question != "What is the capital of France?" {
		t.Fatalf("unexpected first exchange: %+v", hist.Exchanges[0])
	}
}

func TestChatFailedGenerationStaysHTTPOK(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{err: errors.New("model unavailable")})

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat", map[string]string{"question": "q"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generation failure is a payload, not a transport error; got %d", rec.Code)
	}

	resp := decodeBody[chatResponse](t, rec)
	if !resp.Failed {
		t.Fatal("expected failed flag")
	}
}

func TestChatRejectsEmptyQuestion(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "ok"})

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat", map[string]string{"question": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClearEndpointEmptiesHistory(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "Paris."})

	first := decodeBody[chatResponse](t, doJSON(t, srv, http.MethodPost, "/v1/chat", map[string]string{
		"question": "What is the capital of France?",
	}))

	rec := doJSON(t, srv, http.MethodPost, "/v1/clear", map[string]string{"sessionId": first.SessionID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	hist := decodeBody[historyResponse](t, doJSON(t, srv, http.MethodGet, "/v1/history?session="+first.SessionID, nil))
	if len(hist.Exchanges) != 0 {
		t.Fatalf("expected empty history after clear, got %d", len(hist.Exchanges))
	}
}

func TestClearRequiresSessionID(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "ok"})

	rec := doJSON(t, srv, http.MethodPost, "/v1/clear", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubLLM{answer: "ok"})

	rec := doJSON(t, srv, http.MethodGet, "/v1/chat", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", rec.Header().Get("Allow"))
	}
}
