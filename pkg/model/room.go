package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxRoomNameLength leaves room for the terminator in the 64-byte wire field.
	MaxRoomNameLength = 63
	// RoomIDLength is the length of the canonical UUID text form.
	RoomIDLength = 36
)

var ErrRoomNameEmpty = errors.New("room name must not be empty")
var ErrRoomNameTooLong = errors.New("room name too long")
var ErrRoomIDInvalid = errors.New("room id must be a canonical UUID")

// Room is a named chat room. Membership is not stored; it is derived from sessions.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"` // 0 = created by the server
	CreatedAt time.Time `json:"created_at"`
}

// NewRoom returns a room with a freshly generated id.
func NewRoom(name string, ownerID int64) *Room {
	return &Room{
		ID:      uuid.NewString(),
		Name:    name,
		OwnerID: ownerID,
	}
}

// Validate checks the room name and id.
func (r *Room) Validate() error {
	if err := ValidateRoomName(r.Name); err != nil {
		return err
	}
	return ValidateRoomID(r.ID)
}

// ValidateRoomName checks that a name is non-blank and fits the wire field.
func ValidateRoomName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	return nil
}

// ValidateRoomID checks that id is a 36-character UUID.
func ValidateRoomID(id string) error {
	if len(id) != RoomIDLength {
		return ErrRoomIDInvalid
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrRoomIDInvalid
	}
	return nil
}
