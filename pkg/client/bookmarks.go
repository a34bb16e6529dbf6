package client

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Bookmark represents a saved room on a server.
type Bookmark struct {
	Name     string `yaml:"name"` // room name as reported by the server
	Addr     string `yaml:"addr"`
	RoomID   string `yaml:"room_id"`
	LastUsed int64  `yaml:"last_used,omitempty"`
}

// BookmarkStore manages room bookmarks stored next to the binary.
type BookmarkStore struct {
	path      string
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

// NewBookmarkStore creates a bookmark store using a file next to the executable.
func NewBookmarkStore() *BookmarkStore {
	exePath, err := os.Executable()
	if err != nil {
		exePath = "."
	}
	return NewBookmarkStoreAt(filepath.Join(filepath.Dir(exePath), "rooms.yaml"))
}

// NewBookmarkStoreAt creates a bookmark store backed by path.
func NewBookmarkStoreAt(path string) *BookmarkStore {
	return &BookmarkStore{path: path}
}

// Load reads bookmarks from disk. Returns empty list if file doesn't exist.
func (bs *BookmarkStore) Load() error {
	data, err := os.ReadFile(bs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			bs.Bookmarks = nil
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, bs)
}

// Save writes bookmarks to disk.
func (bs *BookmarkStore) Save() error {
	data, err := yaml.Marshal(bs)
	if err != nil {
		return err
	}
	return os.WriteFile(bs.path, data, 0600)
}

// Add adds or updates the bookmark for a room. Returns true if it was a new entry.
func (bs *BookmarkStore) Add(b Bookmark) bool {
	for i, existing := range bs.Bookmarks {
		if existing.Addr == b.Addr && existing.RoomID == b.RoomID {
			bs.Bookmarks[i] = b
			return false
		}
	}
	bs.Bookmarks = append(bs.Bookmarks, b)
	return true
}

// Touch updates LastUsed for an existing bookmark.
func (bs *BookmarkStore) Touch(addr, roomID string, ts int64) bool {
	for i := range bs.Bookmarks {
		if bs.Bookmarks[i].Addr == addr && bs.Bookmarks[i].RoomID == roomID {
			bs.Bookmarks[i].LastUsed = ts
			return true
		}
	}
	return false
}

// Find returns the bookmark on addr whose name or room id matches key, or nil.
func (bs *BookmarkStore) Find(addr, key string) *Bookmark {
	for _, b := range bs.Bookmarks {
		if b.Addr == addr && (b.Name == key || b.RoomID == key) {
			return &b
		}
	}
	return nil
}

// ForServer returns the bookmarks for addr, most recently used first.
func (bs *BookmarkStore) ForServer(addr string) []Bookmark {
	out := lo.Filter(bs.Bookmarks, func(b Bookmark, _ int) bool { return b.Addr == addr })
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastUsed > out[j].LastUsed })
	return out
}
