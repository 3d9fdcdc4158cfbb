package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/salesrag/salesrag/internal/types"
	"github.com/salesrag/salesrag/pkg/ingest"
	"github.com/salesrag/salesrag/pkg/rag"
	"github.com/salesrag/salesrag/pkg/store"
)

//go:embed ui.html
var uiPage []byte

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// local-only demo UI
		return true
	},
}

// Message is the envelope exchanged over the chat websocket.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Answerer is the slice of the RAG engine the server needs.
type Answerer interface {
	Answer(ctx context.Context, query string) (*rag.Answer, error)
	AnswerStream(ctx context.Context, query string) (<-chan string, <-chan error, *rag.Answer, error)
}

// Ingestor runs a blocking folder ingestion.
type Ingestor interface {
	IngestDirectory(ctx context.Context, dir string) (*ingest.Report, error)
}

type Config struct {
	Host       string
	Port       int
	Streaming  bool
	Collection string
	DocsDir    string
	HealthFn   func(ctx context.Context) error
}

// Server exposes the three-panel web UI: chat, DB inspector, and ingestion.
type Server struct {
	config   Config
	engine   Answerer
	ingestor Ingestor
	store    types.VectorStore
	mux      *http.ServeMux
}

func New(config Config, engine Answerer, ingestor Ingestor, vs types.VectorStore) *Server {
	s := &Server{
		config:   config,
		engine:   engine,
		ingestor: ingestor,
		store:    vs,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/api/query", s.handleQuery)
	s.mux.HandleFunc("/api/ingest", s.handleIngest)
	s.mux.HandleFunc("/api/inspect", s.handleInspect)
	s.mux.HandleFunc("/api/clear", s.handleClear)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	log.Printf("Starting UI server on http://%s", addr)
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(uiPage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ollamaStatus := "ok"
	if s.config.HealthFn != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.config.HealthFn(ctx); err != nil {
			ollamaStatus = fmt.Sprintf("error: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"ollama": ollamaStatus,
	})
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	answer, err := s.engine.Answer(r.Context(), req.Query)
	if errors.Is(err, rag.ErrNoDocuments) {
		writeJSON(w, http.StatusOK, queryResponse{
			Answer:  rag.NoDocumentsMessage,
			Sources: []string{},
		})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}
		if msg.Type != "query" || msg.Content == "" {
			continue
		}

		s.handleChatMessage(r.Context(), conn, msg.Content)
	}
}

func (s *Server) handleChatMessage(ctx context.Context, conn *websocket.Conn, query string) {
	// Cancelling unblocks the token producer if we stop reading early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, errs, answer, err := s.engine.AnswerStream(ctx, query)
	if errors.Is(err, rag.ErrNoDocuments) {
		s.sendMessage(conn, Message{Type: "response", Content: rag.NoDocumentsMessage})
		s.sendMessage(conn, Message{Type: "done"})
		return
	}
	if err != nil {
		s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
		return
	}

	s.sendMessage(conn, Message{Type: "sources", Data: answer.Sources})

	for chunk := range stream {
		s.sendMessage(conn, Message{Type: "stream", Content: chunk})
	}
	if err := <-errs; err != nil {
		s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
		return
	}
	s.sendMessage(conn, Message{Type: "done"})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

type ingestRequest struct {
	Path string `json:"path"`
}

type ingestResponse struct {
	Report string `json:"report"`
	Files  int    `json:"files"`
	Failed int    `json:"failed"`
	Chunks int    `json:"chunks"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		req.Path = s.config.DocsDir
	}

	report, err := s.ingestor.IngestDirectory(r.Context(), req.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Report: report.Summary(),
		Files:  len(report.Files),
		Failed: report.Failed(),
		Chunks: report.TotalChunks,
	})
}

type inspectResponse struct {
	Count  int    `json:"count"`
	Report string `json:"report"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	report, err := store.Inspect(r.Context(), s.store)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, inspectResponse{
		Count:  report.Count,
		Report: report.Render(s.config.Collection),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.Clear(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	count, err := s.store.Count(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
