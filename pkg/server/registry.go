package server

import (
	"errors"
	"net"
	"sync"

	"github.com/samber/lo"
)

// ErrRegistryFull is returned by Add when every slot is taken.
var ErrRegistryFull = errors.New("server: client registry full")

type slot struct {
	inUse bool
	conn  net.Conn
	sess  Session
}

// Target is a connection selected for a broadcast.
type Target struct {
	Slot int
	Conn net.Conn
}

// Registry is the fixed-capacity table of connected sessions.
// One mutex covers the whole table; no socket I/O happens while it is held.
type Registry struct {
	mu    sync.Mutex
	slots []slot
	count int
}

// NewRegistry creates a registry with capacity slots.
func NewRegistry(capacity int) *Registry {
	return &Registry{slots: make([]slot, capacity)}
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Count returns the number of occupied slots.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Add occupies the first free slot with conn and returns its index.
// The caller closes conn when Add fails.
func (r *Registry) Add(conn net.Conn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].inUse {
			continue
		}
		r.slots[i] = slot{
			inUse: true,
			conn:  conn,
			sess:  Session{Slot: i, RemoteAddr: remoteAddr(conn)},
		}
		r.count++
		return i, nil
	}
	return -1, ErrRegistryFull
}

// Remove frees a slot and closes its socket. Removing a free slot is a no-op.
func (r *Registry) Remove(index int) {
	r.mu.Lock()
	if index < 0 || index >= len(r.slots) || !r.slots[index].inUse {
		r.mu.Unlock()
		return
	}
	conn := r.slots[index].conn
	r.slots[index] = slot{}
	r.count--
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// FindByConn returns the slot holding conn.
func (r *Registry) FindByConn(conn net.Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].inUse && r.slots[i].conn == conn {
			return i, true
		}
	}
	return -1, false
}

// Get returns a copy of the session in a slot.
func (r *Registry) Get(index int) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.slots) || !r.slots[index].inUse {
		return Session{}, false
	}
	return r.slots[index].sess, true
}

// update applies fn to an occupied slot and returns the resulting session.
func (r *Registry) update(index int, fn func(*Session)) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.slots) || !r.slots[index].inUse {
		return Session{}, false
	}
	fn(&r.slots[index].sess)
	return r.slots[index].sess, true
}

// SetAuthenticated marks a slot as logged in as username.
func (r *Registry) SetAuthenticated(index int, userID int64, username string) (Session, bool) {
	return r.update(index, func(s *Session) {
		s.Authenticated = true
		s.UserID = userID
		s.Username = username
	})
}

// SetRoom records the room a slot is now in.
func (r *Registry) SetRoom(index int, roomID, roomName string) (Session, bool) {
	return r.update(index, func(s *Session) {
		s.RoomID = roomID
		s.RoomName = roomName
	})
}

// ClearRoom removes a slot from its room.
func (r *Registry) ClearRoom(index int) (Session, bool) {
	return r.update(index, func(s *Session) {
		s.RoomID = ""
		s.RoomName = ""
	})
}

// RoomTargets copies out the connections of every authenticated session in roomID.
func (r *Registry) RoomTargets(roomID string) []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.FilterMap(r.slots, func(s slot, i int) (Target, bool) {
		return Target{Slot: i, Conn: s.conn}, s.inUse && s.sess.InRoom(roomID)
	})
}

// Sessions returns a copy of every occupied slot.
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.FilterMap(r.slots, func(s slot, _ int) (Session, bool) {
		return s.sess, s.inUse
	})
}

// ActiveRooms returns the ids of rooms with at least one member.
func (r *Registry) ActiveRooms() []string {
	rooms := lo.FilterMap(r.Sessions(), func(s Session, _ int) (string, bool) {
		return s.RoomID, s.RoomID != ""
	})
	return lo.Uniq(rooms)
}

// CloseAll closes every registered socket so blocked reads return.
// Slots stay occupied until their handlers call Remove.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := lo.FilterMap(r.slots, func(s slot, _ int) (net.Conn, bool) {
		return s.conn, s.inUse && s.conn != nil
	})
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
