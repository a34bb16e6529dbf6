package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/roomchat/pkg/client"
	"github.com/NicolasHaas/roomchat/pkg/crypto"
	"github.com/NicolasHaas/roomchat/pkg/protocol"
	"github.com/NicolasHaas/roomchat/pkg/server"
	"github.com/NicolasHaas/roomchat/pkg/store"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MetricsInterval = 0
	st := store.NewMemory(store.WithHashParams(crypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}))
	srv := server.New(cfg, server.Dependencies{Store: st})
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)
	return srv.Addr().String()
}

type connected struct {
	*client.Client
	events chan protocol.Message
}

func connect(t *testing.T, addr string) *connected {
	t.Helper()
	c, err := client.Dial(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	events := make(chan protocol.Message, 64)
	c.SetEventHandler(func(msg protocol.Message) { events <- msg })
	c.StartReceiving()
	return &connected{Client: c, events: events}
}

// next returns the next received message of type T, skipping any others.
func next[T protocol.Message](t *testing.T, c *connected) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.events:
			if m, ok := msg.(T); ok {
				return m
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func login(t *testing.T, c *connected, username string) {
	t.Helper()
	req := require.New(t)
	req.NoError(c.Register(username, "pw"))
	req.Equal(protocol.StatusSuccess, next[*protocol.RegisterResponse](t, c).Status)
	req.NoError(c.Login(username, "pw"))
	req.Equal(protocol.StatusSuccess, next[*protocol.AuthResponse](t, c).Status)
}

func TestClientSessionFlow(t *testing.T) {
	req := require.New(t)
	addr := startServer(t)

	alice := connect(t, addr)
	req.Equal(client.StateConnected, alice.State())

	req.NoError(alice.Login("alice", "pw"))
	req.Equal(protocol.StatusAuthFailed, next[*protocol.AuthResponse](t, alice).Status)
	req.Equal(client.StateConnected, alice.State())

	login(t, alice, "alice")
	req.Equal(client.StateAuthenticated, alice.State())
	req.Equal("alice", alice.Username())

	req.NoError(alice.CreateRoom("lobby"))
	created := next[*protocol.CreateRoomResponse](t, alice)
	req.Equal(protocol.StatusSuccess, created.Status)
	req.Len(created.RoomID, 36)
	req.Equal(client.StateInRoom, alice.State())
	id, name := alice.Room()
	req.Equal(created.RoomID, id)
	req.Equal("lobby", name)

	bob := connect(t, addr)
	login(t, bob, "bob")
	req.NoError(bob.JoinRoom(created.RoomID))
	joined := next[*protocol.JoinRoomResponse](t, bob)
	req.Equal(protocol.StatusSuccess, joined.Status)
	req.Equal("lobby", joined.RoomName)
	_, name = bob.Room()
	req.Equal("lobby", name)

	req.NoError(alice.Send("hi bob"))
	for _, c := range []*connected{alice, bob} {
		var msg *protocol.ChatMessage
		for msg == nil || msg.Username == "SYSTEM" {
			msg = next[*protocol.ChatMessage](t, c)
		}
		req.Equal("alice", msg.Username)
		req.Equal("hi bob", msg.Text)
		req.Equal(created.RoomID, msg.RoomID)
	}

	req.NoError(bob.LeaveRoom())
	req.Equal(client.StateAuthenticated, bob.State())
	req.ErrorIs(bob.Send("gone"), client.ErrNotInRoom)
}

func TestClientJoinMissingRoom(t *testing.T) {
	req := require.New(t)
	c := connect(t, startServer(t))
	login(t, c, "carol")

	req.NoError(c.JoinRoom("11111111-2222-3333-4444-555555555555"))
	resp := next[*protocol.JoinRoomResponse](t, c)
	req.Equal(protocol.StatusRoomNotFound, resp.Status)
	req.Equal(client.StateAuthenticated, c.State())
}

func TestClientLocalStateChecks(t *testing.T) {
	req := require.New(t)
	c := connect(t, startServer(t))

	req.ErrorIs(c.CreateRoom("lobby"), client.ErrNotAuthenticated)
	req.ErrorIs(c.JoinRoom("x"), client.ErrNotAuthenticated)
	req.ErrorIs(c.LeaveRoom(), client.ErrNotInRoom)
	req.ErrorIs(c.Send("hi"), client.ErrNotInRoom)

	req.NoError(c.Close())
	req.ErrorIs(c.Login("dave", "pw"), client.ErrNotConnected)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop did not stop after Close")
	}
	req.Equal(client.StateDisconnected, c.State())
}

func TestClientServerShutdown(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MetricsInterval = 0
	srv := server.New(cfg, server.Dependencies{Store: store.NewMemory()})
	require.NoError(t, srv.Start())

	c := connect(t, srv.Addr().String())
	srv.Shutdown()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the server going away")
	}
	require.Equal(t, client.StateDisconnected, c.State())
}
