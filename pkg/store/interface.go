package store

import (
	"github.com/NicolasHaas/roomchat/pkg/crypto"
	"github.com/NicolasHaas/roomchat/pkg/model"
)

// Gateway is the persistence interface used by the chat server.
// Implementations include the default SQLite store and an in-memory store for tests.
type Gateway interface {
	// Close closes the underlying storage connection.
	Close() error

	// ---- Users ----

	// RegisterUser validates the credentials, hashes the password and stores a new user.
	// A taken username yields model.ErrUserExists.
	RegisterUser(username, password string) (int64, error)

	// Authenticate reports whether the credentials match a stored user.
	// Unknown users and wrong passwords both return (false, nil).
	Authenticate(username, password string) (bool, error)

	// GetUserID returns the ID of a user, or model.ErrUserNotFound.
	GetUserID(username string) (int64, error)

	// GetUserByUsername retrieves a user by username. Returns (nil, nil) if not found.
	GetUserByUsername(username string) (*model.User, error)

	// ListUsers returns all users ordered by ID.
	ListUsers() ([]model.User, error)

	// ---- Rooms ----

	// CreateRoom generates a room id, stores the room and returns the id.
	CreateRoom(name string, ownerID int64) (string, error)

	// InsertRoom stores a room with a caller-chosen id.
	InsertRoom(room *model.Room) error

	// GetRoom retrieves a room by id. Returns (nil, nil) if not found.
	GetRoom(id string) (*model.Room, error)

	// GetRoomByName retrieves the oldest room with the given name. Returns (nil, nil) if not found.
	GetRoomByName(name string) (*model.Room, error)

	// RoomExists reports whether a room id is known.
	RoomExists(id string) (bool, error)

	// GetRoomName returns the name of a room, or model.ErrRoomNotFound.
	GetRoomName(id string) (string, error)

	// ListRooms returns all rooms in creation order.
	ListRooms() ([]model.Room, error)
}

// Compile-time checks.
var (
	_ Gateway = (*Store)(nil)
	_ Gateway = (*MemoryStore)(nil)
)

// Option configures a store.
type Option func(*options)

type options struct {
	hashParams crypto.Params
}

// WithHashParams overrides the Argon2id cost used for new passwords.
func WithHashParams(p crypto.Params) Option {
	return func(o *options) { o.hashParams = p }
}

func buildOptions(opts []Option) options {
	o := options{hashParams: crypto.DefaultParams}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// validateCredentials applies the model rules shared by both stores.
func validateCredentials(username, password string) error {
	if err := model.ValidateUsername(username); err != nil {
		return err
	}
	return model.ValidatePassword(password)
}
