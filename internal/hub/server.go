// Package hub serves a docstore over websocket so several planner
// instances share one set of collections.
//
// Clients connect to /ws?project=<name>, send Requests and receive
// Responses. A listen request subscribes to a collection: the current
// documents and every later change arrive as snapshot responses tagged
// with the listen id.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/roach88/wedplan/internal/docstore"
	"github.com/roach88/wedplan/internal/metrics"
)

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default ":8787").
	Addr string

	// Project is the only project name clients may connect to.
	Project string

	// Logger for server activity (default: slog.Default()).
	Logger *slog.Logger

	// Metrics, when set, records connections and requests and is served
	// on /metrics.
	Metrics *metrics.Collector

	// OriginPatterns allowed for browser clients. Empty allows same-origin
	// only.
	OriginPatterns []string
}

// Server manages websocket clients of one document store.
type Server struct {
	cfg    Config
	docs   *docstore.Store
	logger *slog.Logger

	listener net.Listener
	server   *http.Server

	clientsMu sync.Mutex
	clients   map[*client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server for docs.
func New(docs *docstore.Store, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		docs:    docs,
		logger:  cfg.Logger,
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the HTTP routes: /ws, /health and, with metrics, /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", s.cfg.Metrics.Handler())
	}
	return mux
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("hub listening", "addr", ln.Addr().String(), "project", s.cfg.Project)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("hub server error", "error", err)
		}
	}()
	return nil
}

// Stop closes every client and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping hub")
	s.cancel()

	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()
	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "hub shutting down")
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("hub shutdown: %w", err)
		}
	}
	s.wg.Wait()
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if project := r.URL.Query().Get("project"); project != s.cfg.Project {
		http.Error(w, "unknown project", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(s, conn)
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ConnectionOpened()
	}
	s.logger.Info("client connected", "remote", r.RemoteAddr, "clients", count)

	c.serve(s.ctx)

	s.clientsMu.Lock()
	delete(s.clients, c)
	count = len(s.clients)
	s.clientsMu.Unlock()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ConnectionClosed()
	}
	s.logger.Info("client disconnected", "remote", r.RemoteAddr, "clients", count)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"project":   s.cfg.Project,
		"clients":   s.ClientCount(),
		"read_only": s.docs.ReadOnly(),
	})
}
