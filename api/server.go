// Package api exposes the caller-facing operations over a thin JSON API.
// It only invokes the core entry points; all components are constructed
// once at startup and injected.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vhoang/docbot/chat"
	"github.com/vhoang/docbot/ingestion"
	"github.com/vhoang/docbot/memory"
)

// SessionFactory builds a fresh per-session orchestrator sharing the
// process-wide index and language model.
type SessionFactory func() *chat.Service

// Server routes HTTP requests to the ingestion service and per-session
// chat orchestrators.
type Server struct {
	ingest     *ingestion.Service
	newSession SessionFactory
	logger     *log.Logger
	handler    http.Handler

	mu       sync.Mutex
	sessions map[string]*chat.Service
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type ingestResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Chars    int    `json:"chars"`
}

type chatRequest struct {
	SessionID  string `json:"sessionId"`
	Question   string `json:"question"`
	UseContext *bool  `json:"useContext"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Answer    string `json:"answer"`
	Failed    bool   `json:"failed"`
}

type clearRequest struct {
	SessionID string `json:"sessionId"`
}

type historyResponse struct {
	SessionID string            `json:"sessionId"`
	Exchanges []historyExchange `json:"exchanges"`
}

type historyExchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// New constructs a Server over an ingestion service and a session factory.
func New(ingest *ingestion.Service, newSession SessionFactory, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		ingest:     ingest,
		newSession: newSession,
		logger:     logger,
		sessions:   make(map[string]*chat.Service),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/history", s.handleHistory)
	mux.HandleFunc("/v1/clear", s.handleClear)
	return mux
}

// session returns the orchestrator for id, creating one when id is blank or
// unknown. The second return is the effective session id.
func (s *Server) session(id string) (*chat.Service, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	svc, ok := s.sessions[id]
	if !ok {
		svc = s.newSession()
		s.sessions[id] = svc
	}
	return svc, id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = "uploaded.txt"
	}

	stats, err := s.ingest.IngestText(r.Context(), req.Content, filename)
	if err != nil {
		if errors.Is(err, ingestion.ErrEmptyDocument) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingest %q: %w", filename, err))
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{
		Filename: filename,
		Chunks:   stats.Chunks,
		Chars:    stats.Chars,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	useContext := true
	if req.UseContext != nil {
		useContext = *req.UseContext
	}

	svc, sessionID := s.session(strings.TrimSpace(req.SessionID))

	result, err := svc.Ask(r.Context(), req.Question, useContext)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuestion) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("chat failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		SessionID: sessionID,
		Answer:    result.Text(),
		Failed:    result.Failed(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("session query parameter is required"))
		return
	}

	svc, sessionID := s.session(sessionID)
	s.writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sessionID,
		Exchanges: toHistoryExchanges(svc.History()),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("sessionId is required"))
		return
	}

	svc, _ := s.session(sessionID)
	svc.ClearHistory()

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "history cleared"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

func toHistoryExchanges(exchanges []memory.Exchange) []historyExchange {
	out := make([]historyExchange, len(exchanges))
	for i, ex := range exchanges {
		out[i] = historyExchange{Question: ex.Question, Answer: ex.Answer}
	}
	return out
}
