// Package apihttp hosts the local progressive stream server: one file per
// active session, served with range semantics while the swarm is still
// downloading it.
package apihttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"peerplay/internal/domain"
	"peerplay/internal/domain/ports"
	"peerplay/internal/readiness"
)

type Server struct {
	logger *slog.Logger
	gate   *readiness.Gate

	mu      sync.RWMutex
	session ports.Session

	hub     *wsHub
	httpSrv *http.Server
	addr    string // host:port actually bound
	handler http.Handler
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(gate *readiness.Gate, opts ...Option) *Server {
	s := &Server{
		gate:   gate,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newWSHub(s.logger)
	go s.hub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/stream/", s.handleStream)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = otelhttp.NewHandler(mux, "stream-server")
	handler = metricsMiddleware(handler)
	handler = loggingMiddleware(s.logger, handler)
	handler = rateLimitMiddleware(handler)
	handler = recoveryMiddleware(s.logger, handler)
	s.handler = handler
	return s
}

// ServeHTTP lets tests exercise the full middleware chain without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start binds a loopback listener, probing at most attempts consecutive
// ports starting at port, and serves in the background. Exhaustion surfaces
// domain.ErrPortInUse with an actionable message; there is no silent fallback
// beyond the configured probe window.
func (s *Server) Start(port, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port+i)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		s.addr = ln.Addr().String()
		s.httpSrv = &http.Server{
			Handler:           s.handler,
			ReadHeaderTimeout: 5 * time.Second,
			// No write timeout: responses stream for as long as playback runs.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("stream server error", slog.String("error", err.Error()))
			}
		}()
		s.logger.Info("stream server started", slog.String("addr", s.addr))
		return nil
	}

	return fmt.Errorf("%w: ports %d-%d on 127.0.0.1 (%v); free the port or change streaming.port in the config",
		domain.ErrPortInUse, port, port+attempts-1, lastErr)
}

// Addr returns the bound host:port, empty before Start.
func (s *Server) Addr() string { return s.addr }

// Attach registers the single active session and returns the URL the player
// should open. A previous session, if any, is replaced; the lifecycle
// controller guarantees it was already closed.
func (s *Server) Attach(session ports.Session) string {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return fmt.Sprintf("http://%s/stream/%s", s.addr, session.ID())
}

// Detach forgets the session if it is still the active one.
func (s *Server) Detach(sessionID string) {
	s.mu.Lock()
	if s.session != nil && s.session.ID() == sessionID {
		s.session = nil
	}
	s.mu.Unlock()
}

func (s *Server) activeSession() ports.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// BroadcastProgress pushes a progress snapshot to connected event clients.
func (s *Server) BroadcastProgress(p domain.Progress) {
	s.hub.broadcastProgress(p)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Close() {
	s.hub.Close()
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(ctx)
	}
}
