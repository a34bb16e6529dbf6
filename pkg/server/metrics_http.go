package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format and /healthz. It runs in the
// background and shuts down when the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

func (s *Server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.running.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("stopped\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP roomchat_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE roomchat_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "roomchat_uptime_seconds %f\n", uptime)

	write("roomchat_connections_active", "Current connections with a running handler.", "gauge",
		m.ActiveConnections.Load())
	write("roomchat_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("roomchat_connections_rejected_total", "Connections closed because the registry was full.", "counter",
		m.RejectedConnections.Load())
	write("roomchat_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())
	write("roomchat_registry_capacity", "Maximum number of concurrent sessions.", "gauge",
		int64(s.registry.Capacity()))
	write("roomchat_rooms_active", "Rooms with at least one member.", "gauge",
		int64(len(s.registry.ActiveRooms())))

	write("roomchat_auth_success_total", "Successful authentication attempts.", "counter",
		m.SuccessfulAuths.Load())
	write("roomchat_auth_failed_total", "Failed authentication attempts.", "counter",
		m.FailedAuths.Load())
	write("roomchat_registrations_total", "Users registered.", "counter",
		m.Registrations.Load())

	write("roomchat_rooms_created_total", "Rooms created.", "counter",
		m.RoomsCreated.Load())
	write("roomchat_room_joins_total", "Room joins.", "counter",
		m.RoomJoins.Load())
	write("roomchat_room_leaves_total", "Room leaves.", "counter",
		m.RoomLeaves.Load())

	write("roomchat_chat_messages_total", "Chat messages accepted for relay.", "counter",
		m.ChatMessages.Load())
	write("roomchat_broadcast_deliveries_total", "Chat frames written to recipients.", "counter",
		m.BroadcastDeliveries.Load())
	write("roomchat_broadcast_failures_total", "Failed recipient writes.", "counter",
		m.BroadcastFailures.Load())
	write("roomchat_protocol_errors_total", "Undecodable or unexpected frames.", "counter",
		m.ProtocolErrors.Load())
}
