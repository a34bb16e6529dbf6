package protocol

import "bytes"

// Message is one of the typed frame bodies defined in this package.
type Message interface {
	Type() MessageType
	marshalBody(b []byte)
	unmarshalBody(b []byte)
}

// ----- Auth -----

type AuthRequest struct {
	Username string
	Password string
}

type AuthResponse struct {
	Status Status
}

// ----- Registration -----

type RegisterRequest struct {
	Username string
	Password string
}

type RegisterResponse struct {
	Status Status
}

// ----- Rooms -----

type CreateRoomRequest struct {
	RoomName string
}

type CreateRoomResponse struct {
	Status Status
	RoomID string
}

type JoinRoomRequest struct {
	RoomID string
}

type JoinRoomResponse struct {
	Status   Status
	RoomName string
	RoomID   string
}

type LeaveRoomRequest struct {
	RoomID string
}

// ----- Chat -----

type ChatMessage struct {
	RoomID   string
	Username string
	Text     string
}

// ErrorMessage reports a protocol-level failure without closing the connection.
type ErrorMessage struct {
	Code Status
	Text string
}

func (*AuthRequest) Type() MessageType        { return TypeAuthRequest }
func (*AuthResponse) Type() MessageType       { return TypeAuthResponse }
func (*RegisterRequest) Type() MessageType    { return TypeRegisterRequest }
func (*RegisterResponse) Type() MessageType   { return TypeRegisterResponse }
func (*CreateRoomRequest) Type() MessageType  { return TypeCreateRoomRequest }
func (*CreateRoomResponse) Type() MessageType { return TypeCreateRoomResponse }
func (*JoinRoomRequest) Type() MessageType    { return TypeJoinRoomRequest }
func (*JoinRoomResponse) Type() MessageType   { return TypeJoinRoomResponse }
func (*LeaveRoomRequest) Type() MessageType   { return TypeLeaveRoomRequest }
func (*ChatMessage) Type() MessageType        { return TypeChatMessage }
func (*ErrorMessage) Type() MessageType       { return TypeError }

// putString copies s into a zero-filled field of len(dst), keeping the last byte as terminator.
func putString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	clear(dst[n:])
}

// getString returns the field contents without trailing zero padding.
// Embedded zero bytes are kept.
func getString(src []byte) string {
	return string(bytes.TrimRight(src, "\x00"))
}

func (m *AuthRequest) marshalBody(b []byte) {
	putString(b[:UsernameSize], m.Username)
	putString(b[UsernameSize:], m.Password)
}

func (m *AuthRequest) unmarshalBody(b []byte) {
	m.Username = getString(b[:UsernameSize])
	m.Password = getString(b[UsernameSize:])
}

func (m *AuthResponse) marshalBody(b []byte)   { b[0] = byte(m.Status) }
func (m *AuthResponse) unmarshalBody(b []byte) { m.Status = Status(b[0]) }

func (m *RegisterRequest) marshalBody(b []byte) {
	putString(b[:UsernameSize], m.Username)
	putString(b[UsernameSize:], m.Password)
}

func (m *RegisterRequest) unmarshalBody(b []byte) {
	m.Username = getString(b[:UsernameSize])
	m.Password = getString(b[UsernameSize:])
}

func (m *RegisterResponse) marshalBody(b []byte)   { b[0] = byte(m.Status) }
func (m *RegisterResponse) unmarshalBody(b []byte) { m.Status = Status(b[0]) }

func (m *CreateRoomRequest) marshalBody(b []byte)   { putString(b, m.RoomName) }
func (m *CreateRoomRequest) unmarshalBody(b []byte) { m.RoomName = getString(b) }

func (m *CreateRoomResponse) marshalBody(b []byte) {
	b[0] = byte(m.Status)
	putString(b[1:], m.RoomID)
}

func (m *CreateRoomResponse) unmarshalBody(b []byte) {
	m.Status = Status(b[0])
	m.RoomID = getString(b[1:])
}

func (m *JoinRoomRequest) marshalBody(b []byte)   { putString(b, m.RoomID) }
func (m *JoinRoomRequest) unmarshalBody(b []byte) { m.RoomID = getString(b) }

func (m *JoinRoomResponse) marshalBody(b []byte) {
	b[0] = byte(m.Status)
	putString(b[1:1+RoomNameSize], m.RoomName)
	putString(b[1+RoomNameSize:], m.RoomID)
}

func (m *JoinRoomResponse) unmarshalBody(b []byte) {
	m.Status = Status(b[0])
	m.RoomName = getString(b[1 : 1+RoomNameSize])
	m.RoomID = getString(b[1+RoomNameSize:])
}

func (m *LeaveRoomRequest) marshalBody(b []byte)   { putString(b, m.RoomID) }
func (m *LeaveRoomRequest) unmarshalBody(b []byte) { m.RoomID = getString(b) }

func (m *ChatMessage) marshalBody(b []byte) {
	putString(b[:RoomIDSize], m.RoomID)
	putString(b[RoomIDSize:RoomIDSize+UsernameSize], m.Username)
	putString(b[RoomIDSize+UsernameSize:], m.Text)
}

func (m *ChatMessage) unmarshalBody(b []byte) {
	m.RoomID = getString(b[:RoomIDSize])
	m.Username = getString(b[RoomIDSize : RoomIDSize+UsernameSize])
	m.Text = getString(b[RoomIDSize+UsernameSize:])
}

func (m *ErrorMessage) marshalBody(b []byte) {
	b[0] = byte(m.Code)
	putString(b[1:], m.Text)
}

func (m *ErrorMessage) unmarshalBody(b []byte) {
	m.Code = Status(b[0])
	m.Text = getString(b[1:])
}

// newMessage returns an empty message for a type tag, or nil for unknown tags.
func newMessage(t MessageType) Message {
	switch t {
	case TypeAuthRequest:
		return &AuthRequest{}
	case TypeAuthResponse:
		return &AuthResponse{}
	case TypeRegisterRequest:
		return &RegisterRequest{}
	case TypeRegisterResponse:
		return &RegisterResponse{}
	case TypeCreateRoomRequest:
		return &CreateRoomRequest{}
	case TypeCreateRoomResponse:
		return &CreateRoomResponse{}
	case TypeJoinRoomRequest:
		return &JoinRoomRequest{}
	case TypeJoinRoomResponse:
		return &JoinRoomResponse{}
	case TypeLeaveRoomRequest:
		return &LeaveRoomRequest{}
	case TypeChatMessage:
		return &ChatMessage{}
	case TypeError:
		return &ErrorMessage{}
	default:
		return nil
	}
}
