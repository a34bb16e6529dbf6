package client

import (
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Settings stores user preferences persisted as YAML next to the binary.
type Settings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`

	path string
}

// DefaultSettings returns default settings.
func DefaultSettings() *Settings {
	return &Settings{
		Host: "127.0.0.1",
		Port: 8080,
		path: settingsPath(),
	}
}

// Addr returns the server address as host:port.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func settingsPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "settings.yaml")
}

// LoadSettings loads settings from the YAML file next to the binary or returns defaults.
func LoadSettings() *Settings {
	return LoadSettingsFrom(settingsPath())
}

// LoadSettingsFrom loads settings from path or returns defaults that will be saved there.
func LoadSettingsFrom(path string) *Settings {
	s := DefaultSettings()
	s.path = path
	data, err := os.ReadFile(path) //nolint:gosec // path chosen by the local user
	if err != nil {
		return s
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		slog.Error("parse settings", "path", path, "err", err)
		s = DefaultSettings()
		s.path = path
	}
	return s
}

// Save writes settings to YAML.
func (s *Settings) Save() error {
	if s.path == "" {
		s.path = settingsPath()
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
