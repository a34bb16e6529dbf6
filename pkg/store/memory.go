package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/NicolasHaas/roomchat/pkg/crypto"
	"github.com/NicolasHaas/roomchat/pkg/model"
)

// MemoryStore provides an in-memory Gateway implementation for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	now  func() time.Time
	opts options

	nextUserID int64

	usersByUsername map[string]*model.User
	roomsByID       map[string]*model.Room
	roomOrder       []string // insertion order, like SQLite rowid
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory(opts ...Option) *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() }, opts...)
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time, opts ...Option) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:             now,
		opts:            buildOptions(opts),
		nextUserID:      1,
		usersByUsername: make(map[string]*model.User),
		roomsByID:       make(map[string]*model.Room),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// RegisterUser validates, hashes and stores a new user.
func (s *MemoryStore) RegisterUser(username, password string) (int64, error) {
	if err := validateCredentials(username, password); err != nil {
		return 0, fmt.Errorf("store: register user: %w", err)
	}
	hash, err := crypto.HashPasswordWith(password, s.opts.hashParams)
	if err != nil {
		return 0, fmt.Errorf("store: register user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[username]; exists {
		return 0, fmt.Errorf("store: register user: %w", model.ErrUserExists)
	}
	user := &model.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	s.nextUserID++
	s.usersByUsername[username] = user
	return user.ID, nil
}

// Authenticate checks a password against the stored hash.
func (s *MemoryStore) Authenticate(username, password string) (bool, error) {
	s.mu.RLock()
	user, ok := s.usersByUsername[username]
	var hash string
	if ok {
		hash = user.PasswordHash
	}
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	match, err := crypto.VerifyPassword(password, hash)
	if err != nil {
		return false, fmt.Errorf("store: authenticate %q: %w", username, err)
	}
	return match, nil
}

// GetUserID returns the ID of a user.
func (s *MemoryStore) GetUserID(username string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	return user.ID, nil
}

// GetUserByUsername retrieves a user by username.
func (s *MemoryStore) GetUserByUsername(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, nil
	}
	copyUser := *user
	return &copyUser, nil
}

// ListUsers returns all users ordered by ID.
func (s *MemoryStore) ListUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.User, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users[u.ID-1] = *u
	}
	return users, nil
}

// CreateRoom stores a new room under a generated id.
func (s *MemoryStore) CreateRoom(name string, ownerID int64) (string, error) {
	room := model.NewRoom(name, ownerID)
	if err := s.InsertRoom(room); err != nil {
		return "", err
	}
	return room.ID, nil
}

// InsertRoom stores a room with the id already set.
func (s *MemoryStore) InsertRoom(room *model.Room) error {
	if err := room.Validate(); err != nil {
		return fmt.Errorf("store: insert room: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roomsByID[room.ID]; exists {
		return fmt.Errorf("store: insert room: constraint failed: UNIQUE constraint failed: rooms.id")
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = s.now().UTC().Truncate(time.Second)
	}
	copyRoom := *room
	s.roomsByID[room.ID] = &copyRoom
	s.roomOrder = append(s.roomOrder, room.ID)
	return nil
}

// GetRoom retrieves a room by id.
func (s *MemoryStore) GetRoom(id string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.roomsByID[id]
	if !ok {
		return nil, nil
	}
	copyRoom := *room
	return &copyRoom, nil
}

// GetRoomByName retrieves the oldest room with the given name.
func (s *MemoryStore) GetRoomByName(name string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.roomOrder {
		if room := s.roomsByID[id]; room.Name == name {
			copyRoom := *room
			return &copyRoom, nil
		}
	}
	return nil, nil
}

// RoomExists reports whether a room id is known.
func (s *MemoryStore) RoomExists(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roomsByID[id]
	return ok, nil
}

// GetRoomName returns the name of a room.
func (s *MemoryStore) GetRoomName(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.roomsByID[id]
	if !ok {
		return "", model.ErrRoomNotFound
	}
	return room.Name, nil
}

// ListRooms returns all rooms in creation order.
func (s *MemoryStore) ListRooms() ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]model.Room, 0, len(s.roomOrder))
	for _, id := range s.roomOrder {
		rooms = append(rooms, *s.roomsByID[id])
	}
	return rooms, nil
}
