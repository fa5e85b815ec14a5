// Package server exposes the conversation engine over HTTP: a streaming
// chat endpoint plus an embedded single-page chat widget. It carries no
// retrieval or generation logic of its own.
package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"docchat/internal/chat"
	"docchat/internal/domain"
)

//go:embed static/*
var staticFS embed.FS

// Server serves the chat widget and the SSE chat API.
type Server struct {
	engine *chat.Engine
	addr   string
}

// New creates a server around an engine.
func New(engine *chat.Engine, addr string) *Server {
	if addr == "" {
		addr = ":8080"
	}
	return &Server{engine: engine, addr: addr}
}

// ListenAndServe blocks serving HTTP on the configured address.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.addr, s.Handler())
}

// Handler returns the route mux, separate from ListenAndServe so tests
// can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/chat", s.handleChat)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "widget not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

type chatRequest struct {
	Query    string `json:"query"`
	Role     string `json:"role,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

type doneEvent struct {
	ThreadID string `json:"thread_id"`
	Answer   string `json:"answer"`
}

// handleChat streams the answer as server-sent events: zero or more
// "token" events, then exactly one "done" or "error" event.
//
// A missing index or unreachable backend surfaces as an "error" event so
// the widget can distinguish a system fault from the model answering
// that it does not know.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	turn, err := s.engine.Run(r.Context(), req.Query, req.Role, req.ThreadID)
	if err != nil {
		writeEvent(w, flusher, "error", map[string]string{"error": publicError(err)})
		return
	}

	var answer string
	for tok := range turn.Tokens {
		if tok.Err != nil {
			writeEvent(w, flusher, "error", map[string]string{"error": publicError(tok.Err)})
			return
		}
		if tok.Done {
			break
		}
		answer += tok.Content
		writeEvent(w, flusher, "token", map[string]string{"content": tok.Content})
	}
	writeEvent(w, flusher, "done", doneEvent{ThreadID: turn.ThreadID, Answer: answer})
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

// publicError keeps the taxonomy visible to the front end without
// leaking backend internals.
func publicError(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		return "no documents have been indexed yet"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model backend is unavailable"
	case errors.Is(err, domain.ErrModelMismatch):
		return "index was built with a different embedding model"
	case errors.Is(err, domain.ErrGenerationFailed):
		return "generation failed"
	default:
		return err.Error()
	}
}
