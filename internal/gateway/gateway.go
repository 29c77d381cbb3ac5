// Package gateway exposes the chat service over HTTP: session
// handshake, message intake, and a server-sent event stream carrying
// bot replies.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/securesure/chatd/internal/chat"
	"github.com/securesure/chatd/pkg/observability"
	"github.com/securesure/chatd/pkg/session"
)

const welcomeText = "Welcome to the SecureSure assistant API."

// Config tunes the gateway server.
type Config struct {
	Port int `yaml:"port"`

	// KeepAliveInterval paces SSE comment frames so idle connections
	// stay open through proxies. Defaults to 25s.
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
}

// Server is the public HTTP surface of the chat service.
type Server struct {
	handler    *chat.Handler
	store      session.Store
	broker     *Broker
	httpServer *http.Server
	keepAlive  time.Duration
	port       int
}

// NewServer wires the gateway around a turn handler, session store, and
// reply broker.
func NewServer(handler *chat.Handler, store session.Store, broker *Broker, cfg Config) *Server {
	keepAlive := cfg.KeepAliveInterval
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &Server{
		handler:   handler,
		store:     store,
		broker:    broker,
		keepAlive: keepAlive,
		port:      cfg.Port,
	}
}

// Routes returns the gateway's handler tree, exposed for tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWelcome)
	mux.HandleFunc("/api/connect", s.handleConnect)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/message", s.handleMessage)
	mux.HandleFunc("/api/session", s.handleSession)
	return s.instrument(corsAllowAll(mux))
}

// Start blocks serving the gateway.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.Routes(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the event stream holds its response open.
		IdleTimeout: 120 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the gateway.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeText})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": uuid.NewString()})
}

// handleEvents holds the connection open and streams bot_response
// events for one session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := s.broker.Subscribe(sessionID)
	defer cancel()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case text, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(map[string]string{"data": text})
			if err != nil {
				log.Printf("[gateway] session=%s marshal event: %v", sessionID, err)
				continue
			}
			fmt.Fprintf(w, "event: bot_response\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

type inboundMessage struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

// handleMessage accepts a user turn and dispatches it. The reply
// arrives on the session's event stream; the POST only acknowledges
// intake.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg inboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(msg.SessionID) == "" || strings.TrimSpace(msg.Data) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id and data are required"})
		return
	}

	go func() {
		if _, err := s.handler.HandleTurn(context.Background(), msg.SessionID, msg.Data); err != nil {
			if errors.Is(err, chat.ErrMalformedMessage) {
				return
			}
			log.Printf("[gateway] session=%s turn error: %v", msg.SessionID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleSession reports a session's summary metadata without loading
// its history.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	sess, err := s.store.Get(r.Context(), sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	if err != nil {
		log.Printf("[gateway] session=%s lookup error: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session lookup failed"})
		return
	}

	meta, err := sess.Meta(r.Context())
	if err != nil {
		log.Printf("[gateway] session=%s meta error: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		observability.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
	})
}
