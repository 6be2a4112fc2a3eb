package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rvtrace/rvcore-sim/csr"
	"github.com/rvtrace/rvcore-sim/service"
)

// Server is the inspection HTTP/WebSocket server for one hart's Inspector,
// grounded on api/server.go's ServeMux-plus-CORS-middleware shape.
type Server[U csr.Uint] struct {
	inspector   *service.Inspector[U]
	broadcaster *Broadcaster
	mux         *http.ServeMux
	server      *http.Server
	addr        string
}

// NewServer builds a Server listening on addr (e.g. "127.0.0.1:7777") that
// inspects ins. The caller drives the simulation and calls ins.SetState /
// pushes broadcaster events as violations/hits occur.
func NewServer[U csr.Uint](addr string, ins *service.Inspector[U]) *Server[U] {
	s := &Server[U]{
		inspector:   ins,
		broadcaster: NewBroadcaster(),
		mux:         http.NewServeMux(),
		addr:        addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server[U]) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/csrs", s.handleCsrs)
	s.mux.HandleFunc("/api/v1/triggers", s.handleTriggers)
	s.mux.HandleFunc("/api/v1/violations", s.handleViolations)
	s.mux.HandleFunc("/api/v1/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler with CORS middleware applied.
func (s *Server[U]) Handler() http.Handler { return s.corsMiddleware(s.mux) }

// Broadcaster returns the server's event broadcaster, for the co-simulation
// host to push violation/trigger/state events onto.
func (s *Server[U]) Broadcaster() *Broadcaster { return s.broadcaster }

// Start runs the HTTP server until Shutdown is called.
func (s *Server[U]) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("rvcoresim api server listening on http://%s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and disconnects all clients.
func (s *Server[U]) Shutdown(ctx context.Context) error {
	s.broadcaster.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server[U]) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, _ := s.inspector.State()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "run_state": string(state)})
}

func (s *Server[U]) handleCsrs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inspector.CsrStates())
}

func (s *Server[U]) handleTriggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inspector.TriggerStates())
}

func (s *Server[U]) handleViolations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inspector.Violations())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

// corsMiddleware restricts cross-origin access to localhost, matching
// api/server.go's development-tool security posture.
func (s *Server[U]) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAllowedOrigin(origin string) bool {
	if origin == "" || strings.HasPrefix(origin, "file://") {
		return true
	}
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "https://127.0.0.1")
}

