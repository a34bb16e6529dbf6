package server

import (
	"log/slog"

	"github.com/NicolasHaas/roomchat/pkg/protocol"
)

// Broadcaster fans chat frames out to the members of a room.
type Broadcaster struct {
	registry *Registry
	metrics  *Metrics
}

// NewBroadcaster creates a broadcaster over registry. metrics may be nil.
func NewBroadcaster(registry *Registry, metrics *Metrics) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: metrics}
}

// Broadcast sends one ChatMessage to every authenticated session in roomID,
// the sender included. The frame is encoded once. Targets are copied out under
// the registry lock and written after it is released, one at a time. A failed
// send is logged and skipped. Returns the number of successful deliveries.
func (b *Broadcaster) Broadcast(roomID, sender, text string) int {
	frame := protocol.Encode(protocol.NewChatMessage(roomID, sender, text))
	targets := b.registry.RoomTargets(roomID)

	delivered := 0
	for _, t := range targets {
		if _, err := t.Conn.Write(frame); err != nil {
			slog.Warn("broadcast send failed", "room", roomID, "slot", t.Slot, "err", err)
			if b.metrics != nil {
				b.metrics.BroadcastFailures.Add(1)
			}
			continue
		}
		delivered++
	}
	if b.metrics != nil {
		b.metrics.BroadcastDeliveries.Add(int64(delivered))
	}
	slog.Debug("broadcast", "room", roomID, "from", sender, "targets", len(targets), "delivered", delivered)
	return delivered
}
