// Package protocol defines the fixed-layout chat messages and their length-prefixed framing.
//
// Every frame is an 8-byte header followed by a body whose size is fixed per message type:
//
//	[type(1) | padding(3) | totalLength(4, big-endian)] [body]
//
// totalLength covers the header and the body.
package protocol

import (
	"errors"
	"fmt"
)

// MessageType is the one-byte tag at the start of every frame.
type MessageType uint8

const (
	TypeAuthRequest        MessageType = 1
	TypeAuthResponse       MessageType = 2
	TypeRegisterRequest    MessageType = 3
	TypeRegisterResponse   MessageType = 4
	TypeCreateRoomRequest  MessageType = 5
	TypeCreateRoomResponse MessageType = 6
	TypeJoinRoomRequest    MessageType = 7
	TypeJoinRoomResponse   MessageType = 8
	TypeLeaveRoomRequest   MessageType = 9
	TypeChatMessage        MessageType = 10
	TypeError              MessageType = 255
)

func (t MessageType) String() string {
	switch t {
	case TypeAuthRequest:
		return "auth_request"
	case TypeAuthResponse:
		return "auth_response"
	case TypeRegisterRequest:
		return "register_request"
	case TypeRegisterResponse:
		return "register_response"
	case TypeCreateRoomRequest:
		return "create_room_request"
	case TypeCreateRoomResponse:
		return "create_room_response"
	case TypeJoinRoomRequest:
		return "join_room_request"
	case TypeJoinRoomResponse:
		return "join_room_response"
	case TypeLeaveRoomRequest:
		return "leave_room_request"
	case TypeChatMessage:
		return "chat_message"
	case TypeError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Field capacities in bytes, terminating zero included.
const (
	UsernameSize = 32
	PasswordSize = 64
	RoomNameSize = 64
	RoomIDSize   = 37 // 36-char UUID + terminator
	TextSize     = 1024
)

const (
	// HeaderSize is the byte size of the frame header.
	HeaderSize = 8

	// MaxFrameSize is the size of the largest frame (a ChatMessage).
	MaxFrameSize = HeaderSize + RoomIDSize + UsernameSize + TextSize // 1101

	// DefaultBufferSize is the default receive capacity of a connection.
	DefaultBufferSize = 2048
)

// Status is the one-byte result code carried by responses and error frames.
type Status uint8

const (
	StatusSuccess       Status = 0
	StatusAuthFailed    Status = 1 // bad credentials, or action requires login
	StatusUserExists    Status = 2
	StatusRoomNotFound  Status = 3 // also used for "not in this room"
	StatusInternalError Status = 255
)

var (
	ErrConnectionClosed = errors.New("protocol: connection closed")
	ErrShortRead        = errors.New("protocol: short read")
	ErrMessageTooLarge  = errors.New("protocol: message too large")
	ErrMalformedHeader  = errors.New("protocol: malformed header")
	ErrUnknownType      = errors.New("protocol: unknown message type")
	ErrBodySize         = errors.New("protocol: body size mismatch")
)

// BodySize returns the fixed body size for a message type.
func BodySize(t MessageType) (int, bool) {
	switch t {
	case TypeAuthRequest, TypeRegisterRequest:
		return UsernameSize + PasswordSize, true
	case TypeAuthResponse, TypeRegisterResponse:
		return 1, true
	case TypeCreateRoomRequest:
		return RoomNameSize, true
	case TypeCreateRoomResponse:
		return 1 + RoomIDSize, true
	case TypeJoinRoomRequest, TypeLeaveRoomRequest:
		return RoomIDSize, true
	case TypeJoinRoomResponse:
		return 1 + RoomNameSize + RoomIDSize, true
	case TypeChatMessage:
		return RoomIDSize + UsernameSize + TextSize, true
	case TypeError:
		return 1 + TextSize, true
	default:
		return 0, false
	}
}

// Header is the decoded frame header.
type Header struct {
	Type   MessageType
	Length uint32 // header + body
}

// HeaderOf returns the header that precedes msg on the wire.
func HeaderOf(msg Message) Header {
	size, _ := BodySize(msg.Type())
	return Header{Type: msg.Type(), Length: uint32(HeaderSize + size)} //nolint:gosec // sizes are small constants
}
