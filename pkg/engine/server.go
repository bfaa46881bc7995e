package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/getmockd/mockrelay/pkg/config"
	"github.com/getmockd/mockrelay/pkg/logging"
)

// Server runs an Engine on the data port and an optional admin handler on
// the admin port.
type Server struct {
	cfg    *config.ServerConfig
	engine *Engine
	admin  http.Handler
	log    *slog.Logger

	mu          sync.Mutex
	running     bool
	startTime   time.Time
	httpServer  *http.Server
	adminServer *http.Server
	httpAddr    net.Addr
	adminAddr   net.Addr
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAdminHandler serves h on cfg.AdminPort.
func WithAdminHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.admin = h
	}
}

// NewServer creates a Server for e.
func NewServer(cfg *config.ServerConfig, e *Engine, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	s := &Server{
		cfg:    cfg,
		engine: e,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine served by s.
func (s *Server) Engine() *Engine {
	return s.engine
}

// Start binds the listeners and serves in the background. A port of 0 binds
// an ephemeral port; see Addr and AdminAddr.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	s.httpAddr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serve(s.httpServer, ln, "HTTP")

	if s.admin != nil && s.cfg.AdminPort > 0 {
		adminLn, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.AdminPort)))
		if err != nil {
			_ = s.httpServer.Close()
			return fmt.Errorf("failed to listen on admin port %d: %w", s.cfg.AdminPort, err)
		}
		s.adminAddr = adminLn.Addr()
		s.adminServer = &http.Server{
			Handler:           s.admin,
			ReadHeaderTimeout: s.cfg.ReadTimeout,
		}
		s.serve(s.adminServer, adminLn, "admin")
	}

	s.running = true
	s.startTime = time.Now()
	s.log.Info("engine started", "addr", s.httpAddr.String(), "admin_addr", addrString(s.adminAddr))
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener, name string) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(name+" server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	s.running = false
	s.log.Info("engine stopped", "uptime", time.Since(s.startTime).Round(time.Second))
	return errors.Join(errs...)
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Uptime returns the time since Start, or 0 when stopped.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startTime)
}

// Addr returns the bound data address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// AdminAddr returns the bound admin address, or nil when not serving.
func (s *Server) AdminAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminAddr
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
