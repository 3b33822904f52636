package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flavluc/chat/internal/transport"
)

// Server binds the hub to its listeners: raw TCP for line clients and, when
// configured, HTTP for the WebSocket endpoint and the status routes.
type Server struct {
	cfg      Config
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	httpLn   net.Listener
	acceptWG sync.WaitGroup
}

// NewServer creates a server for cfg. Zero fields of cfg take their defaults.
func NewServer(cfg Config) *Server {
	cfg = sanitizeConfig(cfg)
	s := &Server{
		cfg:     cfg,
		hub:     NewHub(cfg),
		origins: newOriginPolicy(cfg.AllowedOrigins),
		logger:  slog.With("component", "server"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// Start runs the hub and begins accepting connections. It returns once the
// listeners are bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	var httpLn net.Listener
	if s.cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
		}
	}

	go s.hub.Run()

	s.mu.Lock()
	s.listener = ln
	s.httpLn = httpLn
	if httpLn != nil {
		s.httpSrv = CreateServer(httpLn.Addr().String(), s.Routes())
	}
	httpSrv := s.httpSrv
	s.mu.Unlock()

	s.acceptWG.Add(1)
	go s.acceptLoop(ln)
	s.logger.Info("listening for line clients", "addr", ln.Addr().String())

	if httpSrv != nil {
		go func() {
			if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server stopped", "err", err)
			}
		}()
		s.logger.Info("listening for HTTP", "addr", httpLn.Addr().String())
	}
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.acceptWG.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		stream := transport.NewTCPStream(conn, int(s.cfg.MaxLineSize), s.cfg.WriteTimeout)
		if err := s.hub.Connect(stream); err != nil {
			s.logger.Warn("rejecting connection", "remote", conn.RemoteAddr().String(), "err", err)
			_ = conn.Close()
		}
	}
}

// Addr returns the bound TCP address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the bound HTTP address, or "" when HTTP is disabled.
func (s *Server) HTTPAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

// Shutdown stops accepting, shuts the HTTP server down and then stops the hub,
// which closes every client connection.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	ln, httpSrv := s.listener, s.httpSrv
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	var errs []error
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close listener: %w", err))
	}
	s.acceptWG.Wait()
	if httpSrv != nil {
		if err := ShutdownServer(httpSrv, timeout); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.hub.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	return errors.Join(errs...)
}
