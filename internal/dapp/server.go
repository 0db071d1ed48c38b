// Package dapp serves the static test page the harness drives against the
// wallet extension. The page talks to the injected provider only; the server
// itself has no wallet logic.
package dapp

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/observability"
)

//go:embed page.html
var pageHTML []byte

// Server hosts the test dapp on a local listener. Binding to port 0 lets the
// OS pick a free port; URL() reports the resolved address after Start.
type Server struct {
	addr string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	started  bool

	logger *zap.Logger
}

func NewServer(addr string) *Server {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	return &Server{
		addr:   addr,
		logger: observability.GetLogger().Named("dapp"),
	}
}

// Start binds the listener and begins serving in the background. It returns
// once the listener is accepting, so URL() is valid immediately after.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("dapp server already started on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dapp server listen on %s: %w", s.addr, err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.listener = ln
	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.started = true

	s.logger.Info("Test dapp serving", zap.String("url", s.urlLocked()))

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Test dapp server stopped", zap.Error(err))
		}
	}()
	return nil
}

// URL returns the base URL of the running server.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ""
	}
	return s.urlLocked()
}

func (s *Server) urlLocked() string {
	return fmt.Sprintf("http://%s/", s.listener.Addr().String())
}

// Stop shuts the server down, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("dapp server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pageHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
