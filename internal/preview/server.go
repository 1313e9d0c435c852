package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
)

// Server serves the export directory, the build status and Prometheus
// metrics.
type Server struct {
	root   string
	reg    *prom.Registry
	status *Status

	srv *http.Server
	ln  net.Listener
}

// NewServer creates a server for root. reg and status may be nil, which
// disables /metrics and /status respectively.
func NewServer(root string, reg *prom.Registry, status *Status) *Server {
	return &Server{root: root, reg: reg, status: status}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.root)))
	if s.reg != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.reg))
	}
	if s.status != nil {
		mux.HandleFunc("/status", s.handleStatus)
	}
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Snapshot()); err != nil {
		slog.Error("failed to write status", logfields.Error(err))
	}
}

// Start binds addr and serves in the background. Binding happens before
// Start returns so a port conflict is reported to the caller.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Preview server error", logfields.Error(err))
		}
	}()
	slog.Info("Preview server listening", logfields.URL("http://"+ln.Addr().String()), logfields.Dir(s.root))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
