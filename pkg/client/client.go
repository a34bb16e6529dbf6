// Package client implements the roomchat client networking.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/NicolasHaas/roomchat/pkg/protocol"
)

// State represents the client's position in the session state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateInRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected     = errors.New("client: not connected")
	ErrNotAuthenticated = errors.New("client: not logged in")
	ErrNotInRoom        = errors.New("client: not in a room")
)

// EventHandler is a callback for every frame received from the server.
// It runs on the receive goroutine after the client state has been updated.
type EventHandler func(msg protocol.Message)

// Client manages the TCP connection to a chat server.
type Client struct {
	conn    net.Conn
	writeMu sync.Mutex
	handler EventHandler
	done    chan struct{}

	mu          sync.RWMutex
	state       State
	username    string
	roomID      string
	roomName    string
	pendingUser string // username of the last login request
	pendingRoom string // name of the last create room request
}

// Dial connects to the server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	return &Client{
		conn:  conn,
		done:  make(chan struct{}),
		state: StateConnected,
	}
}

// SetEventHandler sets the callback for incoming messages. Call it before StartReceiving.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Username returns the logged in username, or "" before login.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Room returns the id and name of the current room.
func (c *Client) Room() (id, name string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.roomName
}

// send writes one frame. Frames from concurrent callers never interleave.
func (c *Client) send(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.Send(c.conn, msg)
}

func (c *Client) require(want State) error {
	switch st := c.State(); {
	case st == StateDisconnected:
		return ErrNotConnected
	case st < want && want == StateInRoom:
		return ErrNotInRoom
	case st < want:
		return ErrNotAuthenticated
	}
	return nil
}

// Login sends an auth request. The outcome arrives as an AuthResponse.
func (c *Client) Login(username, password string) error {
	if err := c.require(StateConnected); err != nil {
		return err
	}
	c.mu.Lock()
	c.pendingUser = username
	c.mu.Unlock()
	return c.send(protocol.NewAuthRequest(username, password))
}

// Register sends a register request. The outcome arrives as a RegisterResponse.
func (c *Client) Register(username, password string) error {
	if err := c.require(StateConnected); err != nil {
		return err
	}
	return c.send(protocol.NewRegisterRequest(username, password))
}

// CreateRoom asks the server to create a room and move this client into it.
func (c *Client) CreateRoom(name string) error {
	if err := c.require(StateAuthenticated); err != nil {
		return err
	}
	c.mu.Lock()
	c.pendingRoom = name
	c.mu.Unlock()
	return c.send(protocol.NewCreateRoomRequest(name))
}

// JoinRoom asks the server to move this client into the room with the given id.
func (c *Client) JoinRoom(roomID string) error {
	if err := c.require(StateAuthenticated); err != nil {
		return err
	}
	return c.send(protocol.NewJoinRoomRequest(roomID))
}

// LeaveRoom leaves the current room. The server sends no reply, so the local
// state changes as soon as the request is written.
func (c *Client) LeaveRoom() error {
	if err := c.require(StateInRoom); err != nil {
		return err
	}
	roomID, _ := c.Room()
	if err := c.send(protocol.NewLeaveRoomRequest(roomID)); err != nil {
		return err
	}
	c.mu.Lock()
	if c.state == StateInRoom {
		c.state = StateAuthenticated
	}
	c.roomID, c.roomName = "", ""
	c.mu.Unlock()
	return nil
}

// Send posts text to the current room.
func (c *Client) Send(text string) error {
	if err := c.require(StateInRoom); err != nil {
		return err
	}
	c.mu.RLock()
	msg := protocol.NewChatMessage(c.roomID, c.username, text)
	c.mu.RUnlock()
	return c.send(msg)
}

// StartReceiving starts a goroutine that reads incoming messages, updates the
// client state and dispatches them to the event handler.
func (c *Client) StartReceiving() {
	go func() {
		defer close(c.done)
		defer c.setState(StateDisconnected)
		for {
			msg, err := protocol.Receive(c.conn, protocol.DefaultBufferSize)
			if err != nil {
				if errors.Is(err, protocol.ErrConnectionClosed) || errors.Is(err, net.ErrClosed) {
					slog.Debug("connection closed")
					return
				}
				slog.Error("read error", "err", err)
				return
			}
			c.apply(msg)
			if c.handler != nil {
				c.handler(msg)
			}
		}
	}()
}

// apply moves the local state machine along with the server's responses.
func (c *Client) apply(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch m := msg.(type) {
	case *protocol.AuthResponse:
		if m.Status == protocol.StatusSuccess && c.state == StateConnected {
			c.state = StateAuthenticated
			c.username = c.pendingUser
		}
	case *protocol.CreateRoomResponse:
		if m.Status == protocol.StatusSuccess {
			c.state = StateInRoom
			c.roomID, c.roomName = m.RoomID, c.pendingRoom
		}
	case *protocol.JoinRoomResponse:
		if m.Status == protocol.StatusSuccess {
			c.state = StateInRoom
			c.roomID, c.roomName = m.RoomID, m.RoomName
		}
	}
}

func (c *Client) setState(st State) {
	c.mu.Lock()
	c.state = st
	if st == StateDisconnected {
		c.roomID, c.roomName = "", ""
	}
	c.mu.Unlock()
}

// Close closes the connection. The receive goroutine exits on its next read.
func (c *Client) Close() error {
	c.setState(StateDisconnected)
	return c.conn.Close()
}

// Done returns a channel that's closed when the receive loop stops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
