package server

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/roomchat/pkg/protocol"
)

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	r := NewRegistry(3)
	alice, bob, carol := newFakeConn("a:1"), newFakeConn("b:1"), newFakeConn("c:1")
	_, _ = r.Add(alice)
	_, _ = r.Add(bob)
	_, _ = r.Add(carol)
	r.SetAuthenticated(0, 1, "alice")
	r.SetRoom(0, "r1", "one")
	r.SetAuthenticated(1, 2, "bob")
	r.SetRoom(1, "r2", "two")
	r.SetAuthenticated(2, 3, "carol")
	r.SetRoom(2, "r1", "one")

	m := NewMetrics()
	b := NewBroadcaster(r, m)
	if n := b.Broadcast("r1", "alice", "hello"); n != 2 {
		t.Fatalf("Broadcast delivered %d; want 2", n)
	}

	frame := protocol.Encode(protocol.NewChatMessage("r1", "alice", "hello"))
	for name, c := range map[string]*fakeConn{"alice": alice, "carol": carol} {
		if !bytes.Equal(c.written(), frame) {
			t.Fatalf("%s did not receive exactly one chat frame", name)
		}
	}
	if len(bob.written()) != 0 {
		t.Fatalf("bob received a frame for another room")
	}

	msg, err := protocol.Decode(carol.written())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := &protocol.ChatMessage{RoomID: "r1", Username: "alice", Text: "hello"}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Fatalf("chat mismatch (-want +got):\n%s", diff)
	}
	if m.BroadcastDeliveries.Load() != 2 {
		t.Fatalf("BroadcastDeliveries = %d; want 2", m.BroadcastDeliveries.Load())
	}
}

func TestBroadcastSkipsFailedTargets(t *testing.T) {
	r := NewRegistry(3)
	conns := []*fakeConn{newFakeConn("a:1"), newFakeConn("b:1"), newFakeConn("c:1")}
	for i, c := range conns {
		_, _ = r.Add(c)
		r.SetAuthenticated(i, int64(i+1), "user")
		r.SetRoom(i, "r1", "one")
	}
	conns[1].failures = true

	m := NewMetrics()
	if n := NewBroadcaster(r, m).Broadcast("r1", "SYSTEM", "notice"); n != 2 {
		t.Fatalf("Broadcast delivered %d; want 2", n)
	}
	if len(conns[2].written()) == 0 {
		t.Fatalf("delivery stopped at the failed target")
	}
	if m.BroadcastFailures.Load() != 1 {
		t.Fatalf("BroadcastFailures = %d; want 1", m.BroadcastFailures.Load())
	}
}

func TestBroadcastEmptyRoom(t *testing.T) {
	r := NewRegistry(1)
	if n := NewBroadcaster(r, nil).Broadcast("nobody-here", "SYSTEM", "x"); n != 0 {
		t.Fatalf("Broadcast delivered %d; want 0", n)
	}
}
