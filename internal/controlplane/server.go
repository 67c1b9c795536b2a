// Package controlplane serves a small local HTTP API to inspect a running
// master or minion and to request an immediate sync.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Config struct {
	Addr  string
	Token string
}

type Server struct {
	config *Config
	server *http.Server
	ln     net.Listener
}

func NewServer(config *Config, backend Backend) (*Server, error) {
	if config.Addr == "" {
		return nil, errors.New("control plane address is empty")
	}

	routes := SetupRoutes(backend, &RouteConfig{
		Auth: TokenAuthConfig{Token: config.Token},
	})

	return &Server{
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           routes,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}, nil
}

// Listen binds the address so that bind errors surface before Start.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("control plane listen: %w", err)
	}
	s.ln = ln
	return nil
}

func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.config.Addr
}

func (s *Server) Start(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", s.Addr()), "auth", s.config.Token != "")
	if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control plane serve: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
