package server

import (
	"context"
	"fmt"
	"log/slog"
)

// Run seeds rooms, starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}

	// Load rooms from YAML config if provided
	if s.cfg.RoomsFile != "" {
		if _, err := LoadRoomsFromYAML(s.cfg.RoomsFile, s.store); err != nil {
			slog.Error("failed to load rooms config", "err", err)
		}
	}

	if err := s.Start(); err != nil {
		s.Shutdown()
		return err
	}

	// Start Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	s.metrics.StartPeriodicLog(s.cfg.MetricsInterval, s.ctx.Done())

	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown stops accepting, disconnects every client, waits for all handlers
// to exit and closes the store. It is safe to call more than once and before Start.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		s.cancel()

		if s.listener != nil {
			_ = s.listener.Close()
			<-s.acceptDone
		}

		s.registry.CloseAll()
		s.handlers.Wait()

		if s.store != nil {
			if err := s.store.Close(); err != nil {
				slog.Error("close store", "err", err)
			}
		}
		slog.Info("server stopped")
	})
}
