package server

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections    atomic.Int64 // lifetime TCP connections accepted into a slot
	ActiveConnections   atomic.Int64 // current connections with a running handler
	RejectedConnections atomic.Int64 // connections closed because the registry was full
	TotalDisconnects    atomic.Int64 // handler exits (clean + unclean)

	// Account counters
	SuccessfulAuths atomic.Int64
	FailedAuths     atomic.Int64
	Registrations   atomic.Int64 // users created during this run

	// Room counters
	RoomsCreated atomic.Int64
	RoomJoins    atomic.Int64
	RoomLeaves   atomic.Int64

	// Chat counters
	ChatMessages        atomic.Int64 // chat frames accepted for relay
	BroadcastDeliveries atomic.Int64 // frames written to recipients
	BroadcastFailures   atomic.Int64 // failed recipient writes
	ProtocolErrors      atomic.Int64 // undecodable or unexpected frames
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all counters.
type MetricsSnapshot struct {
	Uptime        string
	UptimeSeconds int64

	ActiveConnections   int64
	TotalConnections    int64
	RejectedConnections int64
	TotalDisconnects    int64

	SuccessfulAuths int64
	FailedAuths     int64
	Registrations   int64

	RoomsCreated int64
	RoomJoins    int64
	RoomLeaves   int64

	ChatMessages        int64
	BroadcastDeliveries int64
	BroadcastFailures   int64
	ProtocolErrors      int64
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:              uptime.Truncate(time.Second).String(),
		UptimeSeconds:       int64(uptime.Seconds()),
		ActiveConnections:   m.ActiveConnections.Load(),
		TotalConnections:    m.TotalConnections.Load(),
		RejectedConnections: m.RejectedConnections.Load(),
		TotalDisconnects:    m.TotalDisconnects.Load(),
		SuccessfulAuths:     m.SuccessfulAuths.Load(),
		FailedAuths:         m.FailedAuths.Load(),
		Registrations:       m.Registrations.Load(),
		RoomsCreated:        m.RoomsCreated.Load(),
		RoomJoins:           m.RoomJoins.Load(),
		RoomLeaves:          m.RoomLeaves.Load(),
		ChatMessages:        m.ChatMessages.Load(),
		BroadcastDeliveries: m.BroadcastDeliveries.Load(),
		BroadcastFailures:   m.BroadcastFailures.Load(),
		ProtocolErrors:      m.ProtocolErrors.Load(),
	}
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"rejected", s.RejectedConnections,
		"rooms_created", s.RoomsCreated,
		"chat_msgs", s.ChatMessages,
		"broadcast_failures", s.BroadcastFailures,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed. A non-positive interval disables it.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
