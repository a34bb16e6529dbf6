package server

// State is the position of a session in the connection state machine.
type State int

const (
	StateConnected     State = iota // socket accepted, not logged in
	StateAuthenticated              // logged in, not in a room
	StateInRoom                     // logged in and member of one room
)

func (s State) String() string {
	switch s {
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

// Session is a point-in-time copy of one registry slot.
type Session struct {
	Slot          int
	RemoteAddr    string
	Authenticated bool
	UserID        int64
	Username      string
	RoomID        string // empty = not in a room
	RoomName      string
}

// State derives the state machine position from the session fields.
func (s Session) State() State {
	switch {
	case !s.Authenticated:
		return StateConnected
	case s.RoomID == "":
		return StateAuthenticated
	default:
		return StateInRoom
	}
}

// InRoom reports whether the session is a member of roomID.
func (s Session) InRoom(roomID string) bool {
	return s.Authenticated && s.RoomID != "" && s.RoomID == roomID
}
