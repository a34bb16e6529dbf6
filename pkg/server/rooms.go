package server

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/roomchat/pkg/model"
	"github.com/NicolasHaas/roomchat/pkg/store"
)

// RoomYAML represents a room in YAML config. ID is optional; a new one is generated when empty.
type RoomYAML struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name"`
}

// RoomsConfig is the top-level YAML config for rooms.
type RoomsConfig struct {
	Rooms []RoomYAML `yaml:"rooms"`
}

// UserYAML represents a user in YAML export.
type UserYAML struct {
	ID        int64  `yaml:"id"`
	Username  string `yaml:"username"`
	CreatedAt string `yaml:"created_at"`
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// LoadRoomsFromYAML reads a rooms YAML file and creates the missing rooms in the store.
func LoadRoomsFromYAML(path string, st store.Gateway) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return 0, fmt.Errorf("server: read rooms config: %w", err)
	}
	return ImportRoomsFromYAML(data, st)
}

// ImportRoomsFromYAML parses YAML data and creates every room whose id and name are both unknown.
// Rooms are owned by the server. Returns the number of rooms created.
func ImportRoomsFromYAML(data []byte, st store.Gateway) (int, error) {
	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("server: parse rooms config: %w", err)
	}

	created := 0
	for _, r := range cfg.Rooms {
		ok, err := ensureRoom(st, r)
		if err != nil {
			slog.Error("failed to create room from config", "name", r.Name, "err", err)
			continue
		}
		if ok {
			created++
		}
	}

	slog.Info("imported rooms from YAML", "count", len(cfg.Rooms), "created", created)
	return created, nil
}

func ensureRoom(st store.Gateway, r RoomYAML) (bool, error) {
	if r.ID != "" {
		existing, err := st.GetRoom(r.ID)
		if err != nil {
			return false, err
		}
		if existing != nil {
			return false, nil
		}
	}
	existing, err := st.GetRoomByName(r.Name)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	if r.ID == "" {
		id, err := st.CreateRoom(r.Name, 0)
		if err != nil {
			return false, err
		}
		slog.Debug("created room from config", "name", r.Name, "room", id)
		return true, nil
	}
	if err := st.InsertRoom(&model.Room{ID: r.ID, Name: r.Name}); err != nil {
		return false, err
	}
	slog.Debug("created room from config", "name", r.Name, "room", r.ID)
	return true, nil
}

// ExportRoomsYAML exports all rooms as YAML in the seed file format.
func ExportRoomsYAML(st store.Gateway) ([]byte, error) {
	rooms, err := st.ListRooms()
	if err != nil {
		return nil, err
	}
	cfg := RoomsConfig{Rooms: lo.Map(rooms, func(r model.Room, _ int) RoomYAML {
		return RoomYAML{ID: r.ID, Name: r.Name}
	})}
	return yaml.Marshal(&cfg)
}

// ExportUsersYAML exports all users as YAML. Password hashes are not included.
func ExportUsersYAML(st store.Gateway) ([]byte, error) {
	users, err := st.ListUsers()
	if err != nil {
		return nil, err
	}
	export := UsersExport{Users: lo.Map(users, func(u model.User, _ int) UserYAML {
		return UserYAML{
			ID:        u.ID,
			Username:  u.Username,
			CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		}
	})}
	return yaml.Marshal(&export)
}
