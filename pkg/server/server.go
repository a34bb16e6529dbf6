// Package server implements the roomchat TCP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/NicolasHaas/roomchat/pkg/store"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.Gateway
}

// Server is the main chat server.
type Server struct {
	cfg         Config
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *Metrics
	store       store.Gateway

	listener   net.Listener
	acceptDone chan struct{}
	running    atomic.Bool
	handlers   sync.WaitGroup
	stopOnce   sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	metrics := NewMetrics()
	registry := NewRegistry(cfg.MaxClients)
	return &Server{
		cfg:         cfg,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, metrics),
		metrics:     metrics,
		store:       deps.Store,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Registry returns the client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the TCP listener and launches the accept loop.
func (s *Server) Start() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	if s.running.Load() {
		return fmt.Errorf("server: already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	s.acceptDone = make(chan struct{})
	s.running.Store(true)

	slog.Info("chat server listening", "addr", ln.Addr().String(), "max_clients", s.registry.Capacity())
	go s.acceptLoop(ln)
	return nil
}

// acceptLoop accepts connections one at a time and hands each to its own goroutine.
func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept error", "err", err)
			continue
		}

		remote := remoteAddr(conn)
		slot, err := s.registry.Add(conn)
		if err != nil {
			s.metrics.RejectedConnections.Add(1)
			slog.Warn("connection rejected", "remote", remote, "err", err)
			_ = conn.Close()
			continue
		}

		s.metrics.TotalConnections.Add(1)
		s.handlers.Add(1)
		go s.handleConn(slot, conn)
	}
}
